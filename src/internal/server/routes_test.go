package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"tutorhub-portal-svc/src/internal/config"
	"tutorhub-portal-svc/src/internal/dependency"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Configuration{
		App:     config.Application{Name: "tutorhub-portal-svc", Version: "test", Timeout: 5},
		Backend: config.BackendConfig{BaseURL: "http://127.0.0.1:1"},
		Storage: config.StorageConfig{Driver: dependency.StorageMemory},
		Cookie:  config.CookieConfig{Name: "portal_test", Secret: "0123456789abcdef0123456789abcdef", MaxAge: 3600},
		Portal: config.PortalConfig{
			VerifyWaitMs:    500,
			LoginPath:       "/login",
			DashboardPath:   "/dashboard",
			UnauthorizedURL: "/unauthorized",
		},
	}

	router := gin.New()
	deps, err := dependency.NewDependencyManager(router, nil, nil, nil, cfg)
	require.NoError(t, err)
	t.Cleanup(deps.Close)

	SetupRoutes(deps)
	return router
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"storage":"ok"`)
}

func TestHealthDetailed(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"queue":"disabled"`)
}

func TestProtectedRoutesRedirectAnonymousClients(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/dashboard", "/admin", "/sessions", "/chat/conversations"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		assert.Equal(t, http.StatusFound, rec.Code, path)
		assert.Equal(t, "/login", rec.Header().Get("Location"), path)
		assert.NotEmpty(t, rec.Result().Cookies(), path)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "tutorhub_portal_http_requests_total"))
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/sessions", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
