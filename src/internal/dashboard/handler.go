package dashboard

import (
	"context"
	"net/http"
	"time"
	"tutorhub-portal-svc/src/internal/auth"
	"tutorhub-portal-svc/src/internal/config"

	"github.com/gin-gonic/gin"
)

type Handler interface {
	GetDashboard(c *gin.Context)
}

type handler struct {
	config  *config.Configuration
	service Service
}

func NewHandler(cfg *config.Configuration, service Service) Handler {
	return &handler{
		config:  cfg,
		service: service,
	}
}

func (h *handler) GetDashboard(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
	defer cancel()

	session := auth.FromContext(c)
	view := h.service.Load(ctx, session)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"user":          session.User(),
			"stats":         view.Stats,
			"statsError":    view.StatsError,
			"upcoming":      view.Upcoming,
			"upcomingError": view.UpcomingError,
		},
	})
}
