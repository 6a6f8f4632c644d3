package tutoring

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"
	"tutorhub-portal-svc/src/clients"
	"tutorhub-portal-svc/src/internal/auth"
	"tutorhub-portal-svc/src/internal/config"
	"tutorhub-portal-svc/src/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Backend is SessionAPI plus listing and creation.
type Backend interface {
	SessionAPI
	List(ctx context.Context, creds clients.Credentials, filter models.SessionFilter) ([]models.Session, error)
	Create(ctx context.Context, creds clients.Credentials, req models.CreateSessionRequest) (*models.Session, error)
}

type Handler interface {
	ListSessions(c *gin.Context)
	CreateSession(c *gin.Context)
	GetSession(c *gin.Context)
	PerformAction(c *gin.Context)
	Register(c *gin.Context)
	SubmitFeedback(c *gin.Context)
}

type handler struct {
	config    *config.Configuration
	backend   Backend
	gate      *Gate
	publisher clients.ActivityPublisher
}

func NewHandler(cfg *config.Configuration, backend Backend, publisher clients.ActivityPublisher) Handler {
	return &handler{
		config:    cfg,
		backend:   backend,
		gate:      NewGate(backend),
		publisher: publisher,
	}
}

// SessionView is a session together with what the viewer can do with it.
type SessionView struct {
	Session      *models.Session `json:"session"`
	Actions      []Action        `json:"actions"`
	Availability Seats           `json:"availability"`
}

func newSessionView(s *models.Session, viewer Viewer) SessionView {
	return SessionView{
		Session:      s,
		Actions:      AvailableActions(s, viewer),
		Availability: Availability(s),
	}
}

func (h *handler) timeout(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
}

func (h *handler) ListSessions(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	var filter models.SessionFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.sendErrorResponse(c, http.StatusBadRequest, "Invalid filter", err.Error())
		return
	}
	if filter.Status != "" && !isValidStatus(filter.Status) {
		h.sendErrorResponse(c, http.StatusBadRequest, "Invalid filter", models.ErrInvalidFilter.Error())
		return
	}

	session := auth.FromContext(c)
	viewer := ViewerOf(session.User())

	sessions, err := h.backend.List(ctx, session, filter)
	if err != nil {
		h.handleError(c, "", err)
		return
	}

	views := make([]SessionView, len(sessions))
	for i := range sessions {
		views[i] = newSessionView(&sessions[i], viewer)
	}

	logrus.WithFields(logrus.Fields{
		"client_id": session.ClientID(),
		"count":     len(views),
		"status":    filter.Status,
	}).Debug("Sessions listed")

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    views,
	})
}

func (h *handler) CreateSession(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendErrorResponse(c, http.StatusBadRequest, "Invalid session", err.Error())
		return
	}

	session := auth.FromContext(c)
	created, err := h.backend.Create(ctx, session, req)
	if err != nil {
		h.handleError(c, "", err)
		return
	}

	h.publish(session, models.ActionSessionCreate, created.ID, nil)

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    newSessionView(created, ViewerOf(session.User())),
		"message": "Session created successfully",
	})
}

func (h *handler) GetSession(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	session := auth.FromContext(c)
	current, err := h.gate.Load(ctx, session, c.Param("id"))
	if err != nil {
		h.handleError(c, "", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    newSessionView(current, ViewerOf(session.User())),
	})
}

type actionRequest struct {
	Reason string `json:"reason" form:"reason"`
}

func (h *handler) PerformAction(c *gin.Context) {
	action, ok := ParseAction(c.Param("action"))
	if !ok {
		h.sendErrorResponse(c, http.StatusNotFound, "Unknown action", c.Param("action"))
		return
	}
	if action == ActionFeedback {
		h.SubmitFeedback(c)
		return
	}

	var req actionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBind(&req); err != nil {
			h.sendErrorResponse(c, http.StatusBadRequest, "Invalid request", err.Error())
			return
		}
	}
	h.perform(c, action, req.Reason)
}

func (h *handler) Register(c *gin.Context) {
	h.perform(c, ActionRegister, "")
}

func (h *handler) perform(c *gin.Context, action Action, reason string) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	session := auth.FromContext(c)
	viewer := ViewerOf(session.User())

	current, err := h.gate.Load(ctx, session, c.Param("id"))
	if err != nil {
		h.handleError(c, action, err)
		return
	}

	updated, err := h.gate.Perform(ctx, session, current, viewer, action, reason)
	if err != nil {
		h.handleError(c, action, err)
		return
	}

	event := models.ActionSessionTransition
	if action == ActionRegister {
		event = models.ActionSessionRegister
	}
	h.publish(session, event, updated.ID, map[string]string{
		"action": string(action),
		"from":   string(current.Status),
		"to":     string(updated.Status),
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    newSessionView(updated, viewer),
	})
}

func (h *handler) SubmitFeedback(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	var req models.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendErrorResponse(c, http.StatusBadRequest, "Invalid feedback", err.Error())
		return
	}

	session := auth.FromContext(c)
	current, err := h.gate.Load(ctx, session, c.Param("id"))
	if err != nil {
		h.handleError(c, ActionFeedback, err)
		return
	}

	feedback, err := h.gate.SubmitFeedback(ctx, session, current, ViewerOf(session.User()), req)
	if err != nil {
		h.handleError(c, ActionFeedback, err)
		return
	}

	h.publish(session, models.ActionFeedbackSubmit, current.ID, map[string]string{
		"rating": strconv.Itoa(req.Rating),
	})

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    feedback,
		"message": "Feedback submitted successfully",
	})
}

func (h *handler) handleError(c *gin.Context, action Action, err error) {
	var transitionErr *TransitionError
	if !errors.As(err, &transitionErr) {
		transitionErr = ClassifyError(action, err)
	}

	logrus.WithError(err).WithFields(logrus.Fields{
		"session_id": c.Param("id"),
		"action":     action,
		"code":       transitionErr.Code,
	}).Warn("Session request failed")

	c.JSON(transitionErr.HTTPStatus(), gin.H{
		"success": false,
		"code":    transitionErr.Code,
		"message": transitionErr.Message,
		"hint":    transitionErr.Hint(),
	})
}

func (h *handler) sendErrorResponse(c *gin.Context, statusCode int, error, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error":   error,
		"message": message,
	})
}

func (h *handler) publish(session *auth.Session, action, targetID string, metadata map[string]string) {
	user := session.User()
	if user == nil {
		return
	}

	err := h.publisher.Publish(models.ActivityMessage{
		ClientID:    session.ClientID(),
		UserID:      user.ID,
		Role:        user.Role,
		ServiceName: models.ServicePortalSessions,
		Action:      action,
		TargetID:    targetID,
		Metadata:    metadata,
	})
	if err != nil {
		logrus.WithError(err).WithField("action", action).Warn("Failed to publish activity")
	}
}

func isValidStatus(status string) bool {
	switch models.SessionStatus(status) {
	case models.SessionStatusPending, models.SessionStatusConfirmed, models.SessionStatusInProgress,
		models.SessionStatusCompleted, models.SessionStatusCancelled, models.SessionStatusNoShow:
		return true
	}
	return false
}
