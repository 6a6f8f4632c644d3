package middleware

import (
	"net/http"
	"time"
	"tutorhub-portal-svc/src/internal/auth"
	"tutorhub-portal-svc/src/internal/config"
	"tutorhub-portal-svc/src/internal/guard"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"
)

const (
	contextKeyCookieSession = "cookie_session"
	cookieValueClientID     = "client_id"
)

// AuthMiddleware binds requests to a portal client and guards pages by role
type AuthMiddleware struct {
	store      sessions.Store
	cookieName string
	manager    *auth.Manager
	portal     config.PortalConfig
	paths      guard.Paths
}

// NewCookieStore creates the signed cookie store that carries the client id
func NewCookieStore(cfg config.CookieConfig) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(cfg.Secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   cfg.MaxAge,
		Secure:   cfg.Secure,
		HttpOnly: cfg.HttpOnly,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(cfg *config.Configuration, store sessions.Store, manager *auth.Manager) *AuthMiddleware {
	return &AuthMiddleware{
		store:      store,
		cookieName: cfg.Cookie.Name,
		manager:    manager,
		portal:     cfg.Portal,
		paths: guard.Paths{
			Login:        cfg.Portal.LoginPath,
			Unauthorized: cfg.Portal.UnauthorizedURL,
		},
	}
}

// ClientSession resolves the portal client from its cookie, issuing a new
// client id on first visit, and attaches its auth session to the request.
func (m *AuthMiddleware) ClientSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := m.store.Get(c.Request, m.cookieName)
		if err != nil {
			// Tampered or signed with an old secret; the store hands back a
			// fresh session in that case.
			logrus.WithError(err).Debug("Discarding unreadable client cookie")
		}

		clientID, _ := cookie.Values[cookieValueClientID].(string)
		if _, parseErr := uuid.Parse(clientID); parseErr != nil {
			clientID = uuid.NewString()
			cookie.Values[cookieValueClientID] = clientID
			if err := cookie.Save(c.Request, c.Writer); err != nil {
				logrus.WithError(err).Error("Failed to save client cookie")
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Failed to start client session",
				})
				c.Abort()
				return
			}
			logrus.WithField("client_id", clientID).Debug("New portal client")
		}

		c.Set(contextKeyCookieSession, cookie)
		auth.SetContext(c, m.manager.Get(clientID))
		c.Next()
	}
}

// RequireAuth admits any authenticated user
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return m.RequireRoles()
}

// RequireRoles admits authenticated users holding one of roles. While the
// stored login is still being verified the request waits briefly; if that is
// not enough it answers 503 instead of redirecting.
func (m *AuthMiddleware) RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := auth.FromContext(c)
		if session == nil {
			logrus.Error("Auth session not found in context - ensure ClientSession middleware runs first")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Client session missing",
			})
			c.Abort()
			return
		}

		if session.Loading() {
			m.waitForVerification(c, session)
		}

		state := guard.AuthState{
			Loading:       session.Loading(),
			Authenticated: session.IsAuthenticated(),
		}
		if user := session.User(); user != nil {
			state.Role = user.Role
		}

		decision := guard.Decide(state, roles)
		switch decision {
		case guard.Loading:
			c.Header("Retry-After", "1")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"message": "Verifying session, please retry",
			})
			c.Abort()
			return
		case guard.Unauthenticated, guard.Unauthorized:
			if decision == guard.Unauthorized {
				logrus.WithFields(logrus.Fields{
					"client_id": session.ClientID(),
					"user_role": state.Role,
					"path":      c.Request.URL.Path,
				}).Warn("User attempted to access a page without the required role")
			}
			c.Redirect(http.StatusFound, decision.Redirect(m.paths))
			c.Abort()
			return
		}

		if user := session.User(); user != nil {
			c.Set("user_id", user.ID)
			c.Set("user_role", user.Role)
		}
		c.Next()
	}
}

func (m *AuthMiddleware) waitForVerification(c *gin.Context, session *auth.Session) {
	timer := time.NewTimer(m.portal.VerifyWait())
	defer timer.Stop()

	select {
	case <-session.Ready():
	case <-timer.C:
		logrus.WithField("client_id", session.ClientID()).Debug("Session verification still running")
	case <-c.Request.Context().Done():
	}
}

// CookieSession returns the client cookie attached by ClientSession, or nil.
func CookieSession(c *gin.Context) *sessions.Session {
	value, exists := c.Get(contextKeyCookieSession)
	if !exists {
		return nil
	}
	cookie, _ := value.(*sessions.Session)
	return cookie
}
