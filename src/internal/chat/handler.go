package chat

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
	"tutorhub-portal-svc/src/clients"
	"tutorhub-portal-svc/src/internal/auth"
	"tutorhub-portal-svc/src/internal/config"
	"tutorhub-portal-svc/src/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Backend is API plus the chat writes and user search.
type Backend interface {
	API
	CreateConversation(ctx context.Context, creds clients.Credentials, userID string) (*models.Conversation, error)
	Send(ctx context.Context, creds clients.Credentials, conversationID, content string) (*models.Message, error)
	SearchUsers(ctx context.Context, creds clients.Credentials, query string) ([]models.User, error)
}

type Handler interface {
	ListConversations(c *gin.Context)
	CreateConversation(c *gin.Context)
	GetMessages(c *gin.Context)
	Stream(c *gin.Context)
	SendMessage(c *gin.Context)
	SearchUsers(c *gin.Context)
}

type handler struct {
	config    *config.Configuration
	backend   Backend
	hub       *Hub
	publisher clients.ActivityPublisher
}

func NewHandler(cfg *config.Configuration, backend Backend, hub *Hub, publisher clients.ActivityPublisher) Handler {
	return &handler{
		config:    cfg,
		backend:   backend,
		hub:       hub,
		publisher: publisher,
	}
}

func (h *handler) timeout(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
}

func (h *handler) ListConversations(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	session := auth.FromContext(c)
	conversations, err := h.backend.Conversations(ctx, session)
	if err != nil {
		h.sendBackendError(c, "Failed to load conversations", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    DedupeConversations(conversations),
	})
}

func (h *handler) CreateConversation(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	var req models.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	session := auth.FromContext(c)
	conversation, err := h.backend.CreateConversation(ctx, session, req.UserID)
	if err != nil {
		h.sendBackendError(c, "Failed to start conversation", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    conversation,
	})
}

// GetMessages selects the conversation for this client and returns the
// first snapshot. Polling continues in the background.
func (h *handler) GetMessages(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	session := auth.FromContext(c)
	poller := h.hub.Poller(session.ClientID(), session)

	snapshot, err := poller.Select(ctx, c.Param("id"))
	if err != nil && len(snapshot.Messages) == 0 {
		h.sendBackendError(c, "Failed to load messages", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    snapshot,
	})
}

// Stream pushes every poll result as a server-sent event until the browser
// disconnects or the client logs out.
func (h *handler) Stream(c *gin.Context) {
	session := auth.FromContext(c)
	poller := h.hub.Poller(session.ClientID(), session)
	conversationID := c.Param("id")

	if poller.Current() != conversationID || !poller.Polling() {
		ctx, cancel := h.timeout(c)
		_, err := poller.Select(ctx, conversationID)
		cancel()
		if err != nil {
			logrus.WithError(err).WithField("conversation_id", conversationID).Warn("Initial chat fetch failed, streaming anyway")
		}
	}

	updates, unsubscribe := poller.Subscribe()
	defer unsubscribe()

	heartbeat := time.NewTicker(h.heartbeat())
	defer heartbeat.Stop()

	logrus.WithFields(logrus.Fields{
		"client_id":       session.ClientID(),
		"conversation_id": conversationID,
	}).Debug("Chat stream opened")

	c.SSEvent("snapshot", poller.Snapshot())
	c.Stream(func(w io.Writer) bool {
		select {
		case snapshot, ok := <-updates:
			if !ok {
				return false
			}
			if snapshot.ConversationID != conversationID {
				c.SSEvent("switched", snapshot.ConversationID)
				return false
			}
			c.SSEvent("snapshot", snapshot)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *handler) heartbeat() time.Duration {
	if h.config.Chat.StreamHeartbeatSec <= 0 {
		return 15 * time.Second
	}
	return time.Duration(h.config.Chat.StreamHeartbeatSec) * time.Second
}

func (h *handler) SendMessage(c *gin.Context) {
	ctx, cancel := h.timeout(c)
	defer cancel()

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Message content is required"})
		return
	}

	session := auth.FromContext(c)
	conversationID := c.Param("id")

	message, err := h.backend.Send(ctx, session, conversationID, req.Content)
	if err != nil {
		h.sendBackendError(c, "Failed to send message", err)
		return
	}

	h.hub.Poller(session.ClientID(), session).AppendSent(*message)

	if user := session.User(); user != nil {
		if err := h.publisher.Publish(models.ActivityMessage{
			ClientID:    session.ClientID(),
			UserID:      user.ID,
			Role:        user.Role,
			ServiceName: models.ServicePortalChat,
			Action:      models.ActionMessageSend,
			TargetID:    conversationID,
		}); err != nil {
			logrus.WithError(err).Warn("Failed to publish activity")
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    message,
	})
}

// SearchUsers is debounced per client: while the user is still typing only
// the last query reaches the backend and earlier ones answer 204.
func (h *handler) SearchUsers(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": []models.User{}})
		return
	}

	ctx, cancel := h.timeout(c)
	defer cancel()

	session := auth.FromContext(c)
	var users []models.User
	err := h.hub.Debouncer(session.ClientID()).Do(ctx, "user-search", func(ctx context.Context) error {
		var err error
		users, err = h.backend.SearchUsers(ctx, session, query)
		return err
	})

	switch {
	case errors.Is(err, ErrSuperseded):
		c.Status(http.StatusNoContent)
	case err != nil:
		h.sendBackendError(c, "Failed to search users", err)
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "data": users})
	}
}

func (h *handler) sendBackendError(c *gin.Context, summary string, err error) {
	status := http.StatusBadGateway
	if apiErr, ok := clients.AsAPIError(err); ok && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		status = apiErr.StatusCode
	}
	if errors.Is(err, models.ErrNotAuthenticated) || errors.Is(err, models.ErrRefreshFailed) || errors.Is(err, models.ErrNoRefreshToken) {
		status = http.StatusUnauthorized
	}

	logrus.WithError(err).Warn(summary)
	c.JSON(status, gin.H{
		"success": false,
		"error":   summary,
		"message": clients.Message(err),
	})
}
