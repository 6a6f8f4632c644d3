package dashboard

import (
	"context"
	"tutorhub-portal-svc/src/clients"
	"tutorhub-portal-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const upcomingLimit = 5

type StatsAPI interface {
	Stats(ctx context.Context, creds clients.Credentials) (*models.DashboardStats, error)
}

type SessionsAPI interface {
	List(ctx context.Context, creds clients.Credentials, filter models.SessionFilter) ([]models.Session, error)
}

// View is the dashboard page. Each slice loads on its own; a failed slice
// carries its error and leaves the other intact.
type View struct {
	Stats         *models.DashboardStats `json:"stats"`
	StatsError    string                 `json:"statsError,omitempty"`
	Upcoming      []models.Session       `json:"upcoming"`
	UpcomingError string                 `json:"upcomingError,omitempty"`
}

type Service interface {
	Load(ctx context.Context, creds clients.Credentials) *View
}

type dashboardService struct {
	stats    StatsAPI
	sessions SessionsAPI
}

func NewDashboardService(stats StatsAPI, sessions SessionsAPI) Service {
	return &dashboardService{
		stats:    stats,
		sessions: sessions,
	}
}

func (s *dashboardService) Load(ctx context.Context, creds clients.Credentials) *View {
	view := &View{Upcoming: []models.Session{}}

	// Slices never cancel each other, so the group never sees an error.
	var g errgroup.Group

	g.Go(func() error {
		stats, err := s.stats.Stats(ctx, creds)
		if err != nil {
			logrus.WithError(err).Warn("Dashboard stats unavailable")
			view.StatsError = clients.Message(err)
			return nil
		}
		view.Stats = stats
		return nil
	})

	g.Go(func() error {
		sessions, err := s.sessions.List(ctx, creds, models.SessionFilter{Upcoming: true, Limit: upcomingLimit})
		if err != nil {
			logrus.WithError(err).Warn("Upcoming sessions unavailable")
			view.UpcomingError = clients.Message(err)
			return nil
		}
		view.Upcoming = sessions
		return nil
	})

	_ = g.Wait()
	return view
}
