package user

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"tutorhub-portal-svc/src/clients"
	"tutorhub-portal-svc/src/internal/auth"
	"tutorhub-portal-svc/src/internal/cache"
	"tutorhub-portal-svc/src/internal/models"
	"tutorhub-portal-svc/src/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type adminBackend struct{}

var adminUser = &models.User{ID: "admin-1", Role: models.RoleAdmin}

func (adminBackend) Login(ctx context.Context, credentials models.Credentials) (*models.AuthPayload, error) {
	return &models.AuthPayload{AccessToken: "t1", RefreshToken: "r1", User: adminUser}, nil
}

func (b adminBackend) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthPayload, error) {
	return b.Login(ctx, models.Credentials{})
}

func (b adminBackend) SSOLogin(ctx context.Context, credentials models.SSOCredentials) (*models.AuthPayload, error) {
	return b.Login(ctx, models.Credentials{})
}

func (adminBackend) Refresh(ctx context.Context, refreshToken string) (*clients.RefreshResult, error) {
	return &clients.RefreshResult{AccessToken: "t2"}, nil
}

func (adminBackend) Logout(ctx context.Context, refreshToken string) error { return nil }

func (adminBackend) Me(ctx context.Context, creds clients.Credentials) (*models.User, error) {
	return adminUser, nil
}

func (adminBackend) Permissions(ctx context.Context, creds clients.Credentials) ([]string, error) {
	return nil, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []models.ActivityMessage
}

func (p *recordingPublisher) Publish(message models.ActivityMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
	return nil
}

func newAdminRouter(t *testing.T, backend *fakeBackend) (*gin.Engine, *recordingPublisher, cache.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.NewMemoryStorage()
	session := auth.NewSession("c1", adminBackend{}, store)
	require.True(t, session.Login(context.Background(), models.Credentials{Email: "a@hcmut.edu.vn", Password: "x"}).Success)

	cfg := testConfig()
	cfg.App.Timeout = 5
	cfg.Cache.UserStatsExpirationMinutes = 5

	cacheService := cache.NewCacheService(store)
	publisher := &recordingPublisher{}
	h := NewHandler(cfg, NewUserService(NewUserRepository(backend), cfg), cacheService, publisher)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		auth.SetContext(c, session)
		c.Next()
	})
	router.GET("/admin/users", h.GetAllUsers)
	router.GET("/admin/users/stats", h.GetUserStats)
	router.PATCH("/admin/users/:id/suspend", h.SuspendUser)
	return router, publisher, cacheService
}

func TestHandler_GetAllUsersRejectsBadRole(t *testing.T) {
	router, _, _ := newAdminRouter(t, &fakeBackend{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/users?role=wizard", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_GetAllUsers(t *testing.T) {
	backend := &fakeBackend{users: []*models.User{{ID: "u1"}, {ID: "u2"}}, total: 2}
	router, _, _ := newAdminRouter(t, backend)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/users?page=abc&limit=10", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data ListResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data.Users, 2)
	assert.Equal(t, 1, body.Data.Page)
	assert.Equal(t, 10, body.Data.Limit)
}

func TestHandler_StatsAreCachedUntilStatusChanges(t *testing.T) {
	backend := &fakeBackend{counts: map[string]int64{"/": 4}}
	router, publisher, _ := newAdminRouter(t, backend)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/users/stats", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	firstRound := len(backend.requests)
	assert.Positive(t, firstRound)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/admin/users/u9/suspend", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.UserStatusSuspended, backend.updated["u9"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/users/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2*firstRound, len(backend.requests))

	require.Len(t, publisher.messages, 1)
	assert.Equal(t, models.ActionUserStatusUpdate, publisher.messages[0].Action)
	assert.Equal(t, "u9", publisher.messages[0].TargetID)
}

func TestHandler_SuspendUnknownUser(t *testing.T) {
	backend := &fakeBackend{err: &clients.APIError{StatusCode: http.StatusNotFound, Message: "missing"}}
	router, publisher, _ := newAdminRouter(t, backend)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/admin/users/ghost/suspend", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, publisher.messages)
}
