package auth

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
	"tutorhub-portal-svc/src/clients"
	"tutorhub-portal-svc/src/internal/models"
	"tutorhub-portal-svc/src/internal/storage"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu sync.Mutex

	loginPayload *models.AuthPayload
	loginErr     error
	meUser       *models.User
	meErr        error
	meGate       chan struct{}
	meEntered    chan struct{}
	refreshToken string
	refreshErr   error
	logoutErr    error
	permissions  []string

	logoutCalls  int
	refreshCalls int
}

func (f *fakeBackend) Login(ctx context.Context, credentials models.Credentials) (*models.AuthPayload, error) {
	return f.loginPayload, f.loginErr
}

func (f *fakeBackend) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthPayload, error) {
	return f.loginPayload, f.loginErr
}

func (f *fakeBackend) SSOLogin(ctx context.Context, credentials models.SSOCredentials) (*models.AuthPayload, error) {
	return f.loginPayload, f.loginErr
}

func (f *fakeBackend) Refresh(ctx context.Context, refreshToken string) (*clients.RefreshResult, error) {
	f.mu.Lock()
	f.refreshCalls++
	f.mu.Unlock()
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &clients.RefreshResult{AccessToken: f.refreshToken}, nil
}

func (f *fakeBackend) Logout(ctx context.Context, refreshToken string) error {
	f.mu.Lock()
	f.logoutCalls++
	f.mu.Unlock()
	return f.logoutErr
}

func (f *fakeBackend) Me(ctx context.Context, creds clients.Credentials) (*models.User, error) {
	if f.meEntered != nil {
		close(f.meEntered)
	}
	if f.meGate != nil {
		<-f.meGate
	}
	if _, err := creds.AccessToken(ctx); err != nil {
		return nil, err
	}
	return f.meUser, f.meErr
}

func (f *fakeBackend) Permissions(ctx context.Context, creds clients.Credentials) ([]string, error) {
	return f.permissions, nil
}

func seedLogin(t *testing.T, store storage.Storage, clientID string, user models.User) {
	t.Helper()
	ctx := context.Background()
	data, err := json.Marshal(user)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, clientID, storage.KeyAccessToken, "t0"))
	require.NoError(t, store.Set(ctx, clientID, storage.KeyRefreshToken, "r0"))
	require.NoError(t, store.Set(ctx, clientID, storage.KeyUser, string(data)))
}

func assertCleared(t *testing.T, store storage.Storage, clientID string) {
	t.Helper()
	for _, key := range storage.AllKeys {
		_, err := store.Get(context.Background(), clientID, key)
		assert.ErrorIs(t, err, models.ErrStorageNotFound, key)
	}
}

func TestSession_LoginSuccess(t *testing.T) {
	store := storage.NewMemoryStorage()
	backend := &fakeBackend{
		loginPayload: &models.AuthPayload{
			AccessToken:  "t1",
			RefreshToken: "r1",
			User:         &models.User{Role: models.RoleStudent},
		},
		permissions: []string{"session:register"},
	}
	session := NewSession("c1", backend, store)

	result := session.Login(context.Background(), models.Credentials{Email: "a@hcmut.edu.vn", Password: "x"})

	assert.True(t, result.Success)
	assert.True(t, session.IsAuthenticated())
	assert.False(t, session.Loading())
	assert.True(t, session.HasRole(models.RoleStudent))
	assert.True(t, session.HasAnyRole(models.RoleTutor, models.RoleStudent))
	assert.False(t, session.HasAnyRole(models.AdminRoles...))
	assert.True(t, session.HasPermission("session:register"))

	token, err := store.Get(context.Background(), "c1", storage.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "t1", token)

	refresh, err := store.Get(context.Background(), "c1", storage.KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "r1", refresh)

	select {
	case <-session.Ready():
	default:
		t.Fatal("session should be ready after login")
	}
}

func TestSession_LoginFailureReturnsMessage(t *testing.T) {
	backend := &fakeBackend{
		loginErr: &clients.APIError{StatusCode: 401, Message: "Invalid email or password"},
	}
	session := NewSession("c1", backend, storage.NewMemoryStorage())

	result := session.Login(context.Background(), models.Credentials{Email: "a@hcmut.edu.vn", Password: "bad"})

	assert.False(t, result.Success)
	assert.Equal(t, "Invalid email or password", result.Message)
	assert.False(t, session.IsAuthenticated())
}

func TestSession_LogoutTwiceIsIdempotent(t *testing.T) {
	store := storage.NewMemoryStorage()
	backend := &fakeBackend{logoutErr: errors.New("backend down")}
	seedLogin(t, store, "c1", models.User{ID: "u1", Role: models.RoleTutor})
	session := NewSession("c1", backend, store)

	assert.NotPanics(t, func() {
		session.Logout(context.Background())
		assertCleared(t, store, "c1")

		session.Logout(context.Background())
		assertCleared(t, store, "c1")
	})

	assert.False(t, session.IsAuthenticated())
	assert.Equal(t, 1, backend.logoutCalls, "second logout has no refresh token to revoke")
}

func TestSession_VerifyWithoutTokenFinishesUnauthenticated(t *testing.T) {
	session := NewSession("c1", &fakeBackend{}, storage.NewMemoryStorage())
	assert.True(t, session.Loading())

	session.Verify(context.Background())

	assert.False(t, session.Loading())
	assert.False(t, session.IsAuthenticated())
}

func TestSession_VerifyRevalidatesUser(t *testing.T) {
	store := storage.NewMemoryStorage()
	seedLogin(t, store, "c1", models.User{ID: "u1", FullName: "Old Name", Role: models.RoleTutor})
	backend := &fakeBackend{meUser: &models.User{ID: "u1", FullName: "New Name", Role: models.RoleTutor}}
	session := NewSession("c1", backend, store)

	session.Verify(context.Background())

	require.True(t, session.IsAuthenticated())
	assert.Equal(t, "New Name", session.User().FullName)
	assert.False(t, session.Loading())
}

func TestSession_VerifyFailureForcesLogout(t *testing.T) {
	store := storage.NewMemoryStorage()
	seedLogin(t, store, "c1", models.User{ID: "u1", Role: models.RoleStudent})
	backend := &fakeBackend{meErr: &clients.APIError{StatusCode: 404, Message: "User not found"}}
	session := NewSession("c1", backend, store)

	session.Verify(context.Background())

	assert.False(t, session.IsAuthenticated())
	assert.False(t, session.Loading())
	assertCleared(t, store, "c1")
}

func TestSession_LoginDuringVerifyWins(t *testing.T) {
	store := storage.NewMemoryStorage()
	seedLogin(t, store, "c1", models.User{ID: "stale", Role: models.RoleStudent})
	backend := &fakeBackend{
		meErr:     &clients.APIError{StatusCode: 401, Message: "Invalid token"},
		meGate:    make(chan struct{}),
		meEntered: make(chan struct{}),
		loginPayload: &models.AuthPayload{
			AccessToken:  "t1",
			RefreshToken: "r1",
			User:         &models.User{ID: "u2", Role: models.RoleTutor},
		},
	}
	session := NewSession("c1", backend, store)

	done := make(chan struct{})
	go func() {
		session.Verify(context.Background())
		close(done)
	}()
	<-backend.meEntered

	result := session.Login(context.Background(), models.Credentials{Email: "b@hcmut.edu.vn", Password: "y"})
	require.True(t, result.Success)

	close(backend.meGate)
	<-done

	require.True(t, session.IsAuthenticated())
	assert.Equal(t, "u2", session.User().ID)

	token, err := store.Get(context.Background(), "c1", storage.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "t1", token)
}

func TestSession_RefreshPersistsNewToken(t *testing.T) {
	store := storage.NewMemoryStorage()
	seedLogin(t, store, "c1", models.User{ID: "u1", Role: models.RoleStudent})
	backend := &fakeBackend{refreshToken: "t2"}
	session := NewSession("c1", backend, store)

	token, err := session.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t2", token)

	stored, err := store.Get(context.Background(), "c1", storage.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "t2", stored)
}

func TestSession_RefreshFailureClearsState(t *testing.T) {
	store := storage.NewMemoryStorage()
	seedLogin(t, store, "c1", models.User{ID: "u1", Role: models.RoleStudent})
	backend := &fakeBackend{refreshErr: errors.New("revoked")}
	session := NewSession("c1", backend, store)

	_, err := session.Refresh(context.Background())
	assert.ErrorIs(t, err, models.ErrRefreshFailed)
	assertCleared(t, store, "c1")
}

func TestSession_AccessTokenRefreshesExpiredJWT(t *testing.T) {
	store := storage.NewMemoryStorage()
	seedLogin(t, store, "c1", models.User{ID: "u1", Role: models.RoleStudent})

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:    "u1",
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte("any-key"))
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), "c1", storage.KeyAccessToken, signed))

	backend := &fakeBackend{refreshToken: "t2"}
	session := NewSession("c1", backend, store)

	token, err := session.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t2", token)
	assert.Equal(t, 1, backend.refreshCalls)
}

func TestSession_AccessTokenWithoutLogin(t *testing.T) {
	session := NewSession("c1", &fakeBackend{}, storage.NewMemoryStorage())

	_, err := session.AccessToken(context.Background())
	assert.ErrorIs(t, err, models.ErrNotAuthenticated)
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()
	sign := func(exp time.Time) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)})
		signed, err := token.SignedString([]byte("k"))
		require.NoError(t, err)
		return signed
	}

	assert.True(t, tokenExpired(sign(now.Add(-time.Hour)), now))
	assert.True(t, tokenExpired(sign(now.Add(5*time.Second)), now), "inside the skew window")
	assert.False(t, tokenExpired(sign(now.Add(time.Hour)), now))
	assert.False(t, tokenExpired("opaque-token", now))
}
