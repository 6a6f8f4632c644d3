package tutoring

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"tutorhub-portal-svc/src/clients"
	"tutorhub-portal-svc/src/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noCredentials struct{}

func (noCredentials) AccessToken(ctx context.Context) (string, error) { return "t1", nil }
func (noCredentials) Refresh(ctx context.Context) (string, error)     { return "t2", nil }

type fakeSessionAPI struct {
	session       *models.Session
	next          *models.Session
	applied       *models.Session
	err           error
	registerErr   error
	calls         []string
	lastBody      interface{}
	feedbackCalls int
}

func (f *fakeSessionAPI) Get(ctx context.Context, creds clients.Credentials, id string) (*models.Session, error) {
	f.calls = append(f.calls, "get")
	return f.session, f.err
}

func (f *fakeSessionAPI) Transition(ctx context.Context, creds clients.Credentials, id, action string, body interface{}) (*models.Session, error) {
	f.calls = append(f.calls, action)
	f.lastBody = body
	if f.err != nil {
		return nil, f.err
	}
	if f.applied != nil {
		f.session = f.applied
	}
	return f.next, nil
}

func (f *fakeSessionAPI) Register(ctx context.Context, creds clients.Credentials, id string) (*models.Session, error) {
	f.calls = append(f.calls, "register")
	if f.err != nil {
		return nil, f.err
	}
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	if f.applied != nil {
		f.session = f.applied
	}
	return f.next, nil
}

func (f *fakeSessionAPI) SubmitFeedback(ctx context.Context, creds clients.Credentials, req models.FeedbackRequest) (*models.Feedback, error) {
	f.feedbackCalls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.Feedback{ID: "f1", SessionID: req.SessionID, Rating: req.Rating}, nil
}

func TestGate_IllegalActionMakesNoCall(t *testing.T) {
	api := &fakeSessionAPI{}
	gate := NewGate(api)
	s := sessionWithStatus(models.SessionStatusInProgress)

	_, err := gate.Perform(context.Background(), noCredentials{}, s, studentViewer, ActionCancel, "")

	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, CodeInvalidTransition, transitionErr.Code)
	assert.Equal(t, http.StatusConflict, transitionErr.HTTPStatus())
	assert.Empty(t, api.calls)
}

func TestGate_StudentCannotConfirm(t *testing.T) {
	api := &fakeSessionAPI{}
	gate := NewGate(api)

	_, err := gate.Perform(context.Background(), noCredentials{}, sessionWithStatus(models.SessionStatusPending), studentViewer, ActionConfirm, "")

	assert.Error(t, err)
	assert.Empty(t, api.calls)
}

func TestGate_ReturnsServerSession(t *testing.T) {
	// The backend decides the resulting status; the gate must not assume
	// confirm always lands on confirmed.
	api := &fakeSessionAPI{next: &models.Session{ID: "s1", Status: models.SessionStatusCancelled}}
	gate := NewGate(api)

	updated, err := gate.Perform(context.Background(), noCredentials{}, sessionWithStatus(models.SessionStatusPending), tutorViewer, ActionConfirm, "")

	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCancelled, updated.Status)
	assert.Equal(t, []string{"confirm"}, api.calls)
}

func TestGate_CancelSendsReason(t *testing.T) {
	api := &fakeSessionAPI{next: &models.Session{ID: "s1", Status: models.SessionStatusCancelled}}
	gate := NewGate(api)

	_, err := gate.Perform(context.Background(), noCredentials{}, sessionWithStatus(models.SessionStatusConfirmed), studentViewer, ActionCancel, "sick")

	require.NoError(t, err)
	assert.Equal(t, models.CancelRequest{Reason: "sick"}, api.lastBody)
}

func TestGate_BackendErrorIsClassified(t *testing.T) {
	api := &fakeSessionAPI{err: &clients.APIError{StatusCode: 400, Message: "Session must be confirmed before starting"}}
	gate := NewGate(api)

	_, err := gate.Perform(context.Background(), noCredentials{}, sessionWithStatus(models.SessionStatusConfirmed), tutorViewer, ActionStart, "")

	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, CodeNotConfirmed, transitionErr.Code)
	assert.Equal(t, "Session must be confirmed before starting", transitionErr.Message)
}

func TestGate_SubmitFeedback(t *testing.T) {
	api := &fakeSessionAPI{}
	gate := NewGate(api)
	completed := sessionWithStatus(models.SessionStatusCompleted)

	feedback, err := gate.SubmitFeedback(context.Background(), noCredentials{}, completed, studentViewer, models.FeedbackRequest{Rating: 5})
	require.NoError(t, err)
	assert.Equal(t, "s1", feedback.SessionID)
	assert.Equal(t, models.SessionStatusCompleted, completed.Status)

	_, err = gate.SubmitFeedback(context.Background(), noCredentials{}, sessionWithStatus(models.SessionStatusPending), studentViewer, models.FeedbackRequest{Rating: 5})
	assert.Error(t, err)
	assert.Equal(t, 1, api.feedbackCalls)

	_, err = gate.Perform(context.Background(), noCredentials{}, completed, studentViewer, ActionFeedback, "")
	assert.Error(t, err, "feedback is not a transition")
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
	}{
		{"structured code wins", &clients.APIError{StatusCode: 409, Code: "SESSION_FULL", Message: "tutor session is full"}, CodeSessionFull},
		{"confirmed phrase", &clients.APIError{StatusCode: 400, Message: "Only confirmed sessions can be started"}, CodeNotConfirmed},
		{"tutor phrase", &clients.APIError{StatusCode: 403, Message: "Only the tutor can do this"}, CodeNotTutor},
		{"unknown code skips phrases", &clients.APIError{StatusCode: 403, Code: "QUOTA", Message: "tutor quota reached"}, CodeForbidden},
		{"forbidden status", &clients.APIError{StatusCode: 403, Message: "Nope"}, CodeForbidden},
		{"not found status", &clients.APIError{StatusCode: 404, Message: "Missing"}, CodeNotFound},
		{"logged out", models.ErrNotAuthenticated, CodeUnauthenticated},
		{"refresh failed", errors.Join(models.ErrRefreshFailed, errors.New("revoked")), CodeUnauthenticated},
		{"transport", errors.New("connection refused"), CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := ClassifyError(ActionStart, tt.err)
			assert.Equal(t, tt.code, classified.Code)
		})
	}

	assert.Nil(t, ClassifyError(ActionStart, nil))
	assert.NotEmpty(t, Hint(CodeNotConfirmed))
}

func TestGate_ReloadsSessionWhenBackendDoesNotEchoIt(t *testing.T) {
	api := &fakeSessionAPI{
		session: sessionWithStatus(models.SessionStatusPending),
		applied: sessionWithStatus(models.SessionStatusConfirmed),
	}
	gate := NewGate(api)

	updated, err := gate.Perform(context.Background(), noCredentials{}, api.session, tutorViewer, ActionConfirm, "")

	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusConfirmed, updated.Status)
	assert.Equal(t, []string{"confirm", "get"}, api.calls)
}
