package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	admins := []string{"admin", "coordinator", "department_head"}
	paths := Paths{Login: "/login", Unauthorized: "/unauthorized"}

	tests := []struct {
		name     string
		state    AuthState
		roles    []string
		expected Decision
		redirect string
	}{
		{
			name:     "loading never redirects",
			state:    AuthState{Loading: true},
			roles:    admins,
			expected: Loading,
		},
		{
			name:     "loading wins over a cached user",
			state:    AuthState{Loading: true, Authenticated: true, Role: "student"},
			roles:    admins,
			expected: Loading,
		},
		{
			name:     "anonymous goes to login",
			state:    AuthState{},
			roles:    nil,
			expected: Unauthenticated,
			redirect: "/login",
		},
		{
			name:     "student on admin page",
			state:    AuthState{Authenticated: true, Role: "student"},
			roles:    admins,
			expected: Unauthorized,
			redirect: "/unauthorized",
		},
		{
			name:     "coordinator on admin page",
			state:    AuthState{Authenticated: true, Role: "coordinator"},
			roles:    admins,
			expected: Authorized,
		},
		{
			name:     "empty role list admits any role",
			state:    AuthState{Authenticated: true, Role: "tutor"},
			roles:    []string{},
			expected: Authorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := Decide(tt.state, tt.roles)
			assert.Equal(t, tt.expected, decision)
			assert.Equal(t, tt.redirect, decision.Redirect(paths))
		})
	}
}
