package tutoring

import (
	"context"
	"fmt"
	"tutorhub-portal-svc/src/clients"
	"tutorhub-portal-svc/src/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tutorhub_portal_session_actions_total",
	Help: "Session lifecycle actions by action and result.",
}, []string{"action", "result"})

// SessionAPI is the part of the backend the gate calls.
type SessionAPI interface {
	Get(ctx context.Context, creds clients.Credentials, id string) (*models.Session, error)
	Transition(ctx context.Context, creds clients.Credentials, id, action string, body interface{}) (*models.Session, error)
	Register(ctx context.Context, creds clients.Credentials, id string) (*models.Session, error)
	SubmitFeedback(ctx context.Context, creds clients.Credentials, req models.FeedbackRequest) (*models.Feedback, error)
}

// Gate checks an action against the lifecycle rules before calling the
// backend. The backend's answer is always the resulting session; the gate
// never predicts the next status itself and reloads the session when the
// backend did not send it back.
type Gate struct {
	api SessionAPI
}

func NewGate(api SessionAPI) *Gate {
	return &Gate{api: api}
}

// Perform carries out action on s for viewer. reason is sent with cancel
// and ignored otherwise. Feedback goes through SubmitFeedback.
func (g *Gate) Perform(ctx context.Context, creds clients.Credentials, s *models.Session, viewer Viewer, action Action, reason string) (*models.Session, error) {
	if action == ActionFeedback || !Can(s, viewer, action) {
		actionsTotal.WithLabelValues(string(action), "rejected").Inc()
		return nil, invalidTransition(s, action)
	}

	var (
		updated *models.Session
		err     error
	)
	switch action {
	case ActionRegister:
		updated, err = g.api.Register(ctx, creds, s.ID)
	case ActionCancel:
		updated, err = g.api.Transition(ctx, creds, s.ID, string(action), models.CancelRequest{Reason: reason})
	default:
		updated, err = g.api.Transition(ctx, creds, s.ID, string(action), nil)
	}

	if err != nil {
		actionsTotal.WithLabelValues(string(action), "failed").Inc()
		classified := ClassifyError(action, err)
		logrus.WithError(err).WithFields(logrus.Fields{
			"session_id": s.ID,
			"action":     action,
			"code":       classified.Code,
		}).Warn("Session action failed")
		return nil, classified
	}

	actionsTotal.WithLabelValues(string(action), "ok").Inc()
	if updated == nil {
		updated, err = g.api.Get(ctx, creds, s.ID)
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"session_id": s.ID,
				"action":     action,
			}).Warn("Session action applied but reloading the session failed")
			return nil, ClassifyError(action, err)
		}
	}
	logrus.WithFields(logrus.Fields{
		"session_id": s.ID,
		"action":     action,
		"status":     updated.Status,
	}).Info("Session action performed")
	return updated, nil
}

// SubmitFeedback posts feedback for a completed session. The session
// itself is left unchanged.
func (g *Gate) SubmitFeedback(ctx context.Context, creds clients.Credentials, s *models.Session, viewer Viewer, req models.FeedbackRequest) (*models.Feedback, error) {
	if !Can(s, viewer, ActionFeedback) {
		actionsTotal.WithLabelValues(string(ActionFeedback), "rejected").Inc()
		return nil, invalidTransition(s, ActionFeedback)
	}

	req.SessionID = s.ID
	feedback, err := g.api.SubmitFeedback(ctx, creds, req)
	if err != nil {
		actionsTotal.WithLabelValues(string(ActionFeedback), "failed").Inc()
		return nil, ClassifyError(ActionFeedback, err)
	}

	actionsTotal.WithLabelValues(string(ActionFeedback), "ok").Inc()
	return feedback, nil
}

// Load fetches the current session, classifying failures like actions do.
func (g *Gate) Load(ctx context.Context, creds clients.Credentials, id string) (*models.Session, error) {
	s, err := g.api.Get(ctx, creds, id)
	if err != nil {
		return nil, ClassifyError("", err)
	}
	return s, nil
}

func invalidTransition(s *models.Session, action Action) *TransitionError {
	status := models.SessionStatus("")
	if s != nil {
		status = s.Status
	}
	return &TransitionError{
		Code:    CodeInvalidTransition,
		Action:  action,
		Message: fmt.Sprintf("cannot %s a %s session", action, status),
	}
}
