// Package tutoring decides which lifecycle actions a viewer may take on a
// tutoring session and carries them out against the backend.
package tutoring

import (
	"tutorhub-portal-svc/src/internal/models"
)

type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionFeedback Action = "feedback"
	ActionRegister Action = "register"
)

func ParseAction(value string) (Action, bool) {
	switch action := Action(value); action {
	case ActionConfirm, ActionStart, ActionComplete, ActionCancel, ActionFeedback, ActionRegister:
		return action, true
	}
	return "", false
}

// Viewer is the authenticated user looking at a session.
type Viewer struct {
	ID   string
	Role string
}

func ViewerOf(user *models.User) Viewer {
	if user == nil {
		return Viewer{}
	}
	return Viewer{ID: user.ID, Role: user.Role}
}

// IsTutor reports whether v is the session's tutor. The tutor reference
// may carry the user id, or only the bare id the backend sent.
func IsTutor(s *models.Session, v Viewer) bool {
	if s == nil || v.ID == "" {
		return false
	}
	return s.Tutor.User.Is(v.ID) || s.Tutor.ID == v.ID
}

// IsStudent reports whether v is the session's student or one of its
// registered students.
func IsStudent(s *models.Session, v Viewer) bool {
	if s == nil || v.ID == "" {
		return false
	}
	if s.Student != nil && s.Student.Is(v.ID) {
		return true
	}
	for _, ref := range s.RegisteredStudents {
		if ref.Is(v.ID) {
			return true
		}
	}
	return false
}

// AvailableActions lists the actions v may take on s, in display order.
func AvailableActions(s *models.Session, v Viewer) []Action {
	if s == nil {
		return nil
	}

	tutor := IsTutor(s, v)
	student := IsStudent(s, v)
	actions := []Action{}

	switch s.Status {
	case models.SessionStatusPending:
		if tutor {
			actions = append(actions, ActionConfirm)
		}
		if tutor || student {
			actions = append(actions, ActionCancel)
		}
	case models.SessionStatusConfirmed:
		if tutor {
			actions = append(actions, ActionStart)
		}
		if tutor || student {
			actions = append(actions, ActionCancel)
		}
	case models.SessionStatusInProgress:
		if tutor {
			actions = append(actions, ActionComplete)
		}
	case models.SessionStatusCompleted:
		if tutor || student {
			actions = append(actions, ActionFeedback)
		}
	}

	if canRegister(s, v, tutor, student) {
		actions = append(actions, ActionRegister)
	}
	return actions
}

func canRegister(s *models.Session, v Viewer, tutor, student bool) bool {
	if tutor || student || v.Role != models.RoleStudent || !s.IsOpen {
		return false
	}
	if s.Status != models.SessionStatusPending && s.Status != models.SessionStatusConfirmed {
		return false
	}
	return !Availability(s).Full
}

func Can(s *models.Session, v Viewer, action Action) bool {
	for _, allowed := range AvailableActions(s, v) {
		if allowed == action {
			return true
		}
	}
	return false
}
