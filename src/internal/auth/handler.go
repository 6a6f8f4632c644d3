package auth

import (
	"context"
	"net/http"
	"time"
	"tutorhub-portal-svc/src/clients"
	"tutorhub-portal-svc/src/internal/config"
	"tutorhub-portal-svc/src/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Handler interface {
	LoginPage(c *gin.Context)
	Login(c *gin.Context)
	Register(c *gin.Context)
	Logout(c *gin.Context)
	Me(c *gin.Context)
}

type handler struct {
	config    *config.Configuration
	manager   *Manager
	publisher clients.ActivityPublisher
}

func NewHandler(cfg *config.Configuration, manager *Manager, publisher clients.ActivityPublisher) Handler {
	return &handler{
		config:    cfg,
		manager:   manager,
		publisher: publisher,
	}
}

func (h *handler) timeout(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
}

func (h *handler) LoginPage(c *gin.Context) {
	session := FromContext(c)
	if session != nil && !session.Loading() && session.IsAuthenticated() {
		c.Redirect(http.StatusFound, h.config.Portal.DashboardPath)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"page":       "login",
		"ssoEnabled": h.config.SSO.Enabled,
		"error":      c.Query("error"),
	})
}

func (h *handler) Login(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	var credentials models.Credentials
	if err := c.ShouldBind(&credentials); err != nil {
		c.JSON(http.StatusBadRequest, Result{Success: false, Message: "Email and password are required"})
		return
	}

	session := FromContext(c)
	result := session.Login(ctx, credentials)
	h.respond(c, session, result, models.ActionLogin)
}

func (h *handler) Register(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	var req models.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, Result{Success: false, Message: err.Error()})
		return
	}

	session := FromContext(c)
	result := session.Register(ctx, req)
	h.respond(c, session, result, models.ActionRegister)
}

func (h *handler) respond(c *gin.Context, session *Session, result Result, action string) {
	if !result.Success {
		c.JSON(http.StatusUnauthorized, result)
		return
	}

	if user := session.User(); user != nil {
		h.publish(models.ActivityMessage{
			ClientID:    session.ClientID(),
			UserID:      user.ID,
			Role:        user.Role,
			ServiceName: models.ServicePortalAuth,
			Action:      action,
		})
	}

	c.Redirect(http.StatusSeeOther, h.config.Portal.DashboardPath)
}

func (h *handler) Logout(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	session := FromContext(c)
	user := session.User()

	session.Logout(ctx)
	h.manager.Drop(session.ClientID())

	if user != nil {
		h.publish(models.ActivityMessage{
			ClientID:    session.ClientID(),
			UserID:      user.ID,
			Role:        user.Role,
			ServiceName: models.ServicePortalAuth,
			Action:      models.ActionLogout,
		})
	}

	c.Redirect(http.StatusSeeOther, h.config.Portal.LoginPath)
}

func (h *handler) Me(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	session := FromContext(c)
	response := gin.H{
		"user":        session.User(),
		"permissions": session.Permissions(),
	}

	if token, err := session.AccessToken(ctx); err == nil {
		if claims, err := ParseClaims(token); err == nil && claims.ExpiresAt != nil {
			response["tokenExpiresAt"] = claims.ExpiresAt.Time
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    response,
	})
}

func (h *handler) publish(message models.ActivityMessage) {
	if err := h.publisher.Publish(message); err != nil {
		logrus.WithError(err).WithField("action", message.Action).Warn("Failed to publish activity")
	}
}
