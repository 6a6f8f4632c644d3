package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"tutorhub-portal-svc/src/internal/models"
)

// SessionClient handles tutoring session endpoints
type SessionClient struct {
	api *APIClient
}

func NewSessionClient(api *APIClient) *SessionClient {
	return &SessionClient{api: api}
}

// List returns sessions visible to the current user. The backend answers
// with data.sessions, data as a bare array, or a top-level sessions key;
// all three normalize to the same slice.
func (c *SessionClient) List(ctx context.Context, creds Credentials, filter models.SessionFilter) ([]models.Session, error) {
	query := url.Values{}
	if filter.Status != "" {
		query.Set("status", filter.Status)
	}
	if filter.Upcoming {
		query.Set("upcoming", "true")
	}
	if filter.IsOpen {
		query.Set("isOpen", "true")
	}
	if filter.Page > 0 {
		query.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}

	env, err := c.api.call(ctx, creds, http.MethodGet, withQuery("/sessions", query), nil)
	if err != nil {
		return nil, err
	}

	sessions := []models.Session{}
	if err := env.decodeField("sessions", &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *SessionClient) Get(ctx context.Context, creds Credentials, id string) (*models.Session, error) {
	env, err := c.api.call(ctx, creds, http.MethodGet, "/sessions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	return decodeSession(env)
}

func (c *SessionClient) Create(ctx context.Context, creds Credentials, req models.CreateSessionRequest) (*models.Session, error) {
	env, err := c.api.call(ctx, creds, http.MethodPost, "/sessions", req)
	if err != nil {
		return nil, err
	}
	return decodeSession(env)
}

// Transition calls PUT /sessions/:id/:action for confirm, start, complete
// and cancel, and returns the session as the backend now has it. The session
// is nil when the backend acknowledged the action without echoing it.
func (c *SessionClient) Transition(ctx context.Context, creds Credentials, id, action string, body interface{}) (*models.Session, error) {
	switch action {
	case "confirm", "start", "complete", "cancel":
	default:
		return nil, fmt.Errorf("unsupported session transition %q", action)
	}

	path := fmt.Sprintf("/sessions/%s/%s", url.PathEscape(id), action)
	env, err := c.api.call(ctx, creds, http.MethodPut, path, body)
	if err != nil {
		return nil, err
	}
	return decodeEchoedSession(env)
}

// Register enrolls the current student in an open session. Like Transition
// it may return a nil session on success.
func (c *SessionClient) Register(ctx context.Context, creds Credentials, id string) (*models.Session, error) {
	path := fmt.Sprintf("/sessions/%s/register", url.PathEscape(id))
	env, err := c.api.call(ctx, creds, http.MethodPost, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeEchoedSession(env)
}

// SubmitFeedback posts feedback for a completed session. It does not touch
// the session itself.
func (c *SessionClient) SubmitFeedback(ctx context.Context, creds Credentials, req models.FeedbackRequest) (*models.Feedback, error) {
	env, err := c.api.call(ctx, creds, http.MethodPost, "/feedback", req)
	if err != nil {
		return nil, err
	}

	var feedback models.Feedback
	if err := env.decodeField("feedback", &feedback); err != nil {
		return nil, err
	}
	if feedback.ID == "" {
		if err := env.decode(&feedback); err != nil {
			return nil, err
		}
	}
	return &feedback, nil
}

func decodeSession(env *envelope) (*models.Session, error) {
	session, err := decodeEchoedSession(env)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, models.ErrSessionNotFound
	}
	return session, nil
}

func decodeEchoedSession(env *envelope) (*models.Session, error) {
	var session models.Session
	if err := env.decodeField("session", &session); err != nil {
		return nil, err
	}
	if session.ID == "" {
		if err := env.decode(&session); err != nil {
			return nil, err
		}
	}
	if session.ID == "" {
		return nil, nil
	}
	return &session, nil
}
