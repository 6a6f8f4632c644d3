// Package guard decides what a protected page does for the current auth state.
package guard

// Decision is the outcome of guarding a route.
type Decision int

const (
	// Loading means verification is still running; render a loading state
	// and decide again later.
	Loading Decision = iota
	Unauthenticated
	Unauthorized
	Authorized
)

// Paths are the pages a guarded request is redirected to.
type Paths struct {
	Login        string
	Unauthorized string
}

type AuthState struct {
	Loading       bool
	Authenticated bool
	Role          string
}

func (d Decision) String() string {
	switch d {
	case Loading:
		return "loading"
	case Unauthenticated:
		return "unauthenticated"
	case Unauthorized:
		return "unauthorized"
	case Authorized:
		return "authorized"
	}
	return "unknown"
}

// Redirect is where the client is sent, or "" when the page renders or
// waits.
func (d Decision) Redirect(paths Paths) string {
	switch d {
	case Unauthenticated:
		return paths.Login
	case Unauthorized:
		return paths.Unauthorized
	}
	return ""
}

// Decide applies the guard. An empty roles list admits any authenticated user.
func Decide(state AuthState, roles []string) Decision {
	if state.Loading {
		return Loading
	}
	if !state.Authenticated {
		return Unauthenticated
	}
	if len(roles) == 0 {
		return Authorized
	}
	for _, role := range roles {
		if role == state.Role {
			return Authorized
		}
	}
	return Unauthorized
}
