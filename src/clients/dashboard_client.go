package clients

import (
	"context"
	"net/http"
	"tutorhub-portal-svc/src/internal/models"
)

// DashboardClient reads the per-user dashboard summary
type DashboardClient struct {
	api *APIClient
}

func NewDashboardClient(api *APIClient) *DashboardClient {
	return &DashboardClient{api: api}
}

func (c *DashboardClient) Stats(ctx context.Context, creds Credentials) (*models.DashboardStats, error) {
	env, err := c.api.call(ctx, creds, http.MethodGet, "/dashboard/stats", nil)
	if err != nil {
		return nil, err
	}

	var stats models.DashboardStats
	if err := env.decodeField("stats", &stats); err != nil {
		return nil, err
	}
	if stats == (models.DashboardStats{}) {
		if err := env.decode(&stats); err != nil {
			return nil, err
		}
	}
	return &stats, nil
}
