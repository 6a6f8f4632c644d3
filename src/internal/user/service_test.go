package user

import (
	"context"
	"sync"
	"testing"
	"tutorhub-portal-svc/src/clients"
	"tutorhub-portal-svc/src/internal/config"
	"tutorhub-portal-svc/src/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCreds struct{}

func (staticCreds) AccessToken(ctx context.Context) (string, error) { return "t1", nil }
func (staticCreds) Refresh(ctx context.Context) (string, error)     { return "t1", nil }

type fakeBackend struct {
	mu       sync.Mutex
	users    []*models.User
	total    int64
	counts   map[string]int64
	requests []models.GetAllUsersRequest
	updated  map[string]string
	err      error
}

func (f *fakeBackend) List(ctx context.Context, creds clients.Credentials, req *models.GetAllUsersRequest) (*models.GetAllUsersResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, *req)
	if f.err != nil {
		return nil, f.err
	}
	if f.counts != nil {
		return &models.GetAllUsersResponse{TotalCount: f.counts[req.Role+"/"+req.Status]}, nil
	}
	return &models.GetAllUsersResponse{Users: f.users, TotalCount: f.total, Page: req.Page, Limit: req.Limit}, nil
}

func (f *fakeBackend) UpdateStatus(ctx context.Context, creds clients.Credentials, userID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.updated == nil {
		f.updated = map[string]string{}
	}
	f.updated[userID] = status
	return nil
}

func testConfig() *config.Configuration {
	return &config.Configuration{Search: config.SearchConfig{MinQueryLimit: 20, MaxQueryLimit: 100}}
}

func TestGetAllUsers_AppliesLimitsAndPages(t *testing.T) {
	backend := &fakeBackend{users: []*models.User{{ID: "u1", Role: models.RoleStudent}}, total: 250}
	service := NewUserService(NewUserRepository(backend), testConfig())

	response, err := service.GetAllUsers(context.Background(), staticCreds{}, &models.GetAllUsersRequest{Limit: 500})

	require.NoError(t, err)
	assert.Equal(t, 100, response.Limit)
	assert.Equal(t, 1, response.Page)
	assert.Equal(t, 3, response.TotalPages)
	require.Len(t, response.Users, 1)
	assert.Equal(t, models.UserStatusActive, response.Users[0].Status)
	assert.Equal(t, 100, backend.requests[0].Limit)
}

func TestGetAllUsers_DefaultLimit(t *testing.T) {
	backend := &fakeBackend{}
	service := NewUserService(NewUserRepository(backend), testConfig())

	response, err := service.GetAllUsers(context.Background(), staticCreds{}, &models.GetAllUsersRequest{})

	require.NoError(t, err)
	assert.Equal(t, 20, response.Limit)
	assert.Equal(t, 0, response.TotalPages)
}

func TestGetAllUsers_RejectsInvalidFilters(t *testing.T) {
	backend := &fakeBackend{}
	service := NewUserService(NewUserRepository(backend), testConfig())

	_, err := service.GetAllUsers(context.Background(), staticCreds{}, &models.GetAllUsersRequest{Role: "wizard"})
	assert.ErrorIs(t, err, models.ErrInvalidRoleFilter)

	_, err = service.GetAllUsers(context.Background(), staticCreds{}, &models.GetAllUsersRequest{Status: "banned"})
	assert.ErrorIs(t, err, models.ErrInvalidStatusFilter)

	assert.Empty(t, backend.requests)
}

func TestGetUserStats_CountsPerFilter(t *testing.T) {
	backend := &fakeBackend{counts: map[string]int64{
		"/":                              12,
		"/" + models.UserStatusActive:    9,
		"/" + models.UserStatusInactive:  2,
		"/" + models.UserStatusSuspended: 1,
		models.RoleStudent + "/":         8,
		models.RoleTutor + "/":           2,
		models.RoleAdmin + "/":           1,
		models.RoleCoordinator + "/":     1,
	}}
	service := NewUserService(NewUserRepository(backend), testConfig())

	stats, err := service.GetUserStats(context.Background(), staticCreds{})

	require.NoError(t, err)
	assert.Equal(t, int64(12), stats.Total)
	assert.Equal(t, int64(9), stats.Active)
	assert.Equal(t, int64(1), stats.Suspended)
	assert.Equal(t, int64(8), stats.Students)
	assert.Equal(t, int64(2), stats.Tutors)
	assert.Equal(t, int64(2), stats.Staff)
	for _, req := range backend.requests {
		assert.Equal(t, 1, req.Limit)
	}
}

func TestUpdateStatus(t *testing.T) {
	backend := &fakeBackend{}
	service := NewUserService(NewUserRepository(backend), testConfig())

	require.NoError(t, service.SuspendUser(context.Background(), staticCreds{}, "u7"))
	assert.Equal(t, models.UserStatusSuspended, backend.updated["u7"])

	assert.ErrorIs(t, service.ActivateUser(context.Background(), staticCreds{}, ""), models.ErrInvalidParams)

	backend.err = &clients.APIError{StatusCode: 404, Message: "missing"}
	assert.ErrorIs(t, service.DeactivateUser(context.Background(), staticCreds{}, "ghost"), models.ErrUserNotFound)
}
