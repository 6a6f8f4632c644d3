// Package sso signs portal clients in through the university identity
// provider using the OAuth2 authorization code flow.
package sso

import (
	"context"
	"net/http"
	"net/url"
	"time"
	"tutorhub-portal-svc/src/clients"
	"tutorhub-portal-svc/src/internal/auth"
	"tutorhub-portal-svc/src/internal/config"
	"tutorhub-portal-svc/src/internal/middleware"
	"tutorhub-portal-svc/src/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const cookieValueState = "sso_state"

type Handler interface {
	Start(c *gin.Context)
	Callback(c *gin.Context)
}

type handler struct {
	config    *config.Configuration
	oauth     *oauth2.Config
	publisher clients.ActivityPublisher
}

// NewOAuthConfig builds the provider configuration, or nil when SSO is
// not configured.
func NewOAuthConfig(cfg config.SSOConfig) *oauth2.Config {
	if !cfg.Enabled || cfg.ClientID == "" || cfg.AuthURL == "" || cfg.TokenURL == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.AuthURL,
			TokenURL: cfg.TokenURL,
		},
		RedirectURL: cfg.RedirectURL,
		Scopes:      cfg.Scopes,
	}
}

func NewHandler(cfg *config.Configuration, publisher clients.ActivityPublisher) Handler {
	return &handler{
		config:    cfg,
		oauth:     NewOAuthConfig(cfg.SSO),
		publisher: publisher,
	}
}

func (h *handler) Start(c *gin.Context) {
	if h.oauth == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": models.ErrSSODisabled.Error()})
		return
	}

	cookie := middleware.CookieSession(c)
	if cookie == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Client session missing"})
		return
	}

	state := uuid.NewString()
	cookie.Values[cookieValueState] = state
	if err := cookie.Save(c.Request, c.Writer); err != nil {
		logrus.WithError(err).Error("Failed to store SSO state")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to start SSO login"})
		return
	}

	c.Redirect(http.StatusFound, h.oauth.AuthCodeURL(state))
}

func (h *handler) Callback(c *gin.Context) {
	if h.oauth == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": models.ErrSSODisabled.Error()})
		return
	}

	if providerErr := c.Query("error"); providerErr != "" {
		logrus.WithField("error", providerErr).Warn("Identity provider rejected the login")
		h.fail(c, c.DefaultQuery("error_description", providerErr))
		return
	}

	cookie := middleware.CookieSession(c)
	if cookie == nil {
		h.fail(c, models.ErrInvalidState.Error())
		return
	}

	expected, _ := cookie.Values[cookieValueState].(string)
	delete(cookie.Values, cookieValueState)
	if err := cookie.Save(c.Request, c.Writer); err != nil {
		logrus.WithError(err).Warn("Failed to clear SSO state")
	}

	if expected == "" || c.Query("state") != expected {
		logrus.Warn("SSO callback with mismatched state")
		h.fail(c, models.ErrInvalidState.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
	defer cancel()

	token, err := h.oauth.Exchange(ctx, c.Query("code"))
	if err != nil {
		logrus.WithError(err).Warn("SSO code exchange failed")
		h.fail(c, "Could not complete SSO login")
		return
	}

	idToken, _ := token.Extra("id_token").(string)
	session := auth.FromContext(c)
	result := session.SSOLogin(ctx, models.SSOCredentials{
		Provider:    h.config.SSO.Provider,
		AccessToken: token.AccessToken,
		IDToken:     idToken,
	})
	if !result.Success {
		h.fail(c, result.Message)
		return
	}

	if user := session.User(); user != nil {
		if err := h.publisher.Publish(models.ActivityMessage{
			ClientID:    session.ClientID(),
			UserID:      user.ID,
			Role:        user.Role,
			ServiceName: models.ServicePortalSSO,
			Action:      models.ActionSSOLogin,
		}); err != nil {
			logrus.WithError(err).Warn("Failed to publish activity")
		}
	}

	c.Redirect(http.StatusSeeOther, h.config.Portal.DashboardPath)
}

func (h *handler) fail(c *gin.Context, message string) {
	c.Redirect(http.StatusSeeOther, h.config.Portal.LoginPath+"?error="+url.QueryEscape(message))
}
