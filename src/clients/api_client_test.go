package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"tutorhub-portal-svc/src/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCredentials struct {
	token      string
	next       string
	refreshErr error
	refreshes  int32
}

func (f *fakeCredentials) AccessToken(ctx context.Context) (string, error) {
	return f.token, nil
}

func (f *fakeCredentials) Refresh(ctx context.Context) (string, error) {
	atomic.AddInt32(&f.refreshes, 1)
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	f.token = f.next
	return f.token, nil
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *APIClient {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewAPIClientWithHTTP(server.URL, server.Client())
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func TestAuthClient_Login(t *testing.T) {
	api := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body models.Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@hcmut.edu.vn", body.Email)

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"accessToken":  "t1",
				"refreshToken": "r1",
				"user":         map[string]interface{}{"role": "student"},
			},
		})
	})

	payload, err := NewAuthClient(api).Login(context.Background(), models.Credentials{Email: "a@hcmut.edu.vn", Password: "x"})
	require.NoError(t, err)
	assert.Equal(t, "t1", payload.AccessToken)
	assert.Equal(t, "r1", payload.RefreshToken)
	assert.Equal(t, models.RoleStudent, payload.User.Role)
}

func TestAPIClient_BusinessErrorWithOKStatus(t *testing.T) {
	api := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": false,
			"message": "Email hoặc mật khẩu không đúng",
		})
	})

	_, err := NewAuthClient(api).Login(context.Background(), models.Credentials{Email: "a@hcmut.edu.vn", Password: "bad"})
	require.Error(t, err)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "Email hoặc mật khẩu không đúng", apiErr.Message)
	assert.Equal(t, "Email hoặc mật khẩu không đúng", Message(err))
}

func TestAPIClient_RefreshesExpiredTokenAndRetriesOnce(t *testing.T) {
	var calls int32
	api := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"success": false,
				"message": "Token expired",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"user": map[string]interface{}{"_id": "u1", "role": "tutor"}},
		})
	})

	creds := &fakeCredentials{token: "stale", next: "fresh"}
	user, err := NewAuthClient(api).Me(context.Background(), creds)
	require.NoError(t, err)

	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&creds.refreshes))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestAPIClient_SecondExpiredDoesNotLoop(t *testing.T) {
	var calls int32
	api := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"success": false,
			"message": "jwt expired",
		})
	})

	creds := &fakeCredentials{token: "stale", next: "still-stale"}
	_, err := NewSessionClient(api).List(context.Background(), creds, models.SessionFilter{})
	require.Error(t, err)

	assert.True(t, IsTokenExpired(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&creds.refreshes))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestAPIClient_UnauthorizedWithoutExpiryIsNotRetried(t *testing.T) {
	var calls int32
	api := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"success": false,
			"message": "Invalid token",
		})
	})

	creds := &fakeCredentials{token: "bad"}
	_, err := NewAuthClient(api).Me(context.Background(), creds)
	require.Error(t, err)

	assert.True(t, IsUnauthorized(err))
	assert.False(t, IsTokenExpired(err))
	assert.Equal(t, int32(0), atomic.LoadInt32(&creds.refreshes))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestAPIClient_RefreshFailureIsReturned(t *testing.T) {
	api := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"success": false,
			"code":    CodeTokenExpired,
			"message": "Phiên đăng nhập đã hết hạn",
		})
	})

	refreshErr := errors.New("refresh token revoked")
	creds := &fakeCredentials{token: "stale", refreshErr: refreshErr}
	_, err := NewChatClient(api).Conversations(context.Background(), creds)

	require.Error(t, err)
	assert.ErrorIs(t, err, refreshErr)
}

func TestSessionClient_ListNormalizesShapes(t *testing.T) {
	shapes := map[string]interface{}{
		"data.sessions": map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"sessions": []interface{}{map[string]interface{}{"_id": "s1", "status": "pending"}}},
		},
		"data array": map[string]interface{}{
			"success": true,
			"data":    []interface{}{map[string]interface{}{"_id": "s1", "status": "pending"}},
		},
		"top-level sessions": map[string]interface{}{
			"success":  true,
			"sessions": []interface{}{map[string]interface{}{"id": "s1", "status": "pending"}},
		},
	}

	for name, body := range shapes {
		t.Run(name, func(t *testing.T) {
			api := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, body)
			})

			sessions, err := NewSessionClient(api).List(context.Background(), &fakeCredentials{token: "t"}, models.SessionFilter{})
			require.NoError(t, err)
			require.Len(t, sessions, 1)
			assert.Equal(t, "s1", sessions[0].ID)
			assert.Equal(t, models.SessionStatusPending, sessions[0].Status)
		})
	}

	t.Run("empty", func(t *testing.T) {
		api := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
		})

		sessions, err := NewSessionClient(api).List(context.Background(), &fakeCredentials{token: "t"}, models.SessionFilter{})
		require.NoError(t, err)
		assert.NotNil(t, sessions)
		assert.Empty(t, sessions)
	})
}

func TestSessionClient_Transition(t *testing.T) {
	api := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/sessions/s1/confirm", r.URL.Path)
		assert.Equal(t, "Bearer t", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"session": map[string]interface{}{"_id": "s1", "status": "confirmed"}},
		})
	})

	session, err := NewSessionClient(api).Transition(context.Background(), &fakeCredentials{token: "t"}, "s1", "confirm", nil)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusConfirmed, session.Status)

	_, err = NewSessionClient(api).Transition(context.Background(), &fakeCredentials{token: "t"}, "s1", "delete", nil)
	assert.Error(t, err)
}

func TestSessionClient_TransitionWithoutSessionBody(t *testing.T) {
	api := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Không có dữ liệu"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Đã xác nhận"})
	})
	sessions := NewSessionClient(api)

	session, err := sessions.Transition(context.Background(), &fakeCredentials{token: "t"}, "s1", "confirm", nil)
	require.NoError(t, err)
	assert.Nil(t, session)

	session, err = sessions.Register(context.Background(), &fakeCredentials{token: "t"}, "s1")
	require.NoError(t, err)
	assert.Nil(t, session)

	_, err = sessions.Get(context.Background(), &fakeCredentials{token: "t"}, "s1")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestAPIClient_NonJSONErrorBody(t *testing.T) {
	api := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	})

	err := NewAuthClient(api).Logout(context.Background(), "r1")
	require.Error(t, err)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream unavailable", apiErr.Message)
}
