package dashboard

import (
	"context"
	"testing"
	"tutorhub-portal-svc/src/clients"
	"tutorhub-portal-svc/src/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type anonymous struct{}

func (anonymous) AccessToken(ctx context.Context) (string, error) { return "t1", nil }
func (anonymous) Refresh(ctx context.Context) (string, error)     { return "t1", nil }

type fakeStats struct {
	stats *models.DashboardStats
	err   error
}

func (f fakeStats) Stats(ctx context.Context, creds clients.Credentials) (*models.DashboardStats, error) {
	return f.stats, f.err
}

type fakeSessions struct {
	sessions []models.Session
	err      error
	filter   *models.SessionFilter
}

func (f fakeSessions) List(ctx context.Context, creds clients.Credentials, filter models.SessionFilter) ([]models.Session, error) {
	*f.filter = filter
	return f.sessions, f.err
}

func TestLoad_BothSlices(t *testing.T) {
	var filter models.SessionFilter
	service := NewDashboardService(
		fakeStats{stats: &models.DashboardStats{TotalSessions: 4}},
		fakeSessions{sessions: []models.Session{{ID: "s1"}}, filter: &filter},
	)

	view := service.Load(context.Background(), anonymous{})

	require.NotNil(t, view.Stats)
	assert.Equal(t, int64(4), view.Stats.TotalSessions)
	assert.Len(t, view.Upcoming, 1)
	assert.Empty(t, view.StatsError)
	assert.True(t, filter.Upcoming)
}

func TestLoad_SlicesFailIndependently(t *testing.T) {
	var filter models.SessionFilter
	service := NewDashboardService(
		fakeStats{err: &clients.APIError{StatusCode: 500, Message: "Stats service down"}},
		fakeSessions{sessions: []models.Session{{ID: "s1"}, {ID: "s2"}}, filter: &filter},
	)

	view := service.Load(context.Background(), anonymous{})

	assert.Nil(t, view.Stats)
	assert.Equal(t, "Stats service down", view.StatsError)
	assert.Len(t, view.Upcoming, 2)
	assert.Empty(t, view.UpcomingError)
}
