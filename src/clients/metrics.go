package clients

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	backendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutorhub_portal_backend_requests_total",
			Help: "Total number of requests sent to the tutoring backend",
		},
		[]string{"method", "status"},
	)

	tokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutorhub_portal_token_refresh_total",
			Help: "Access token refresh attempts by result",
		},
		[]string{"result"},
	)
)

// RecordRefresh counts a token refresh attempt.
func RecordRefresh(ok bool) {
	if ok {
		tokenRefreshTotal.WithLabelValues("success").Inc()
		return
	}
	tokenRefreshTotal.WithLabelValues("failure").Inc()
}
