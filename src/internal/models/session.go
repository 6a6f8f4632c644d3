package models

import (
	"encoding/json"
	"time"
)

type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusConfirmed  SessionStatus = "confirmed"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusCancelled  SessionStatus = "cancelled"
	SessionStatusNoShow     SessionStatus = "no_show"
)

// Terminal reports whether no further transition is possible.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled || s == SessionStatusNoShow
}

const (
	SessionTypeOnline  = "online"
	SessionTypeOffline = "offline"
	SessionTypeHybrid  = "hybrid"
)

// Session is a tutoring session, not to be confused with an auth session.
type Session struct {
	ID                 string        `json:"id"`
	Title              string        `json:"title"`
	Subject            string        `json:"subject"`
	Description        string        `json:"description,omitempty"`
	Status             SessionStatus `json:"status"`
	Tutor              TutorRef      `json:"tutor"`
	Student            *Ref          `json:"student,omitempty"`
	RegisteredStudents []Ref         `json:"registeredStudents"`
	MaxParticipants    int           `json:"maxParticipants"`
	ScheduledDate      time.Time     `json:"scheduledDate"`
	StartTime          string        `json:"startTime"`
	EndTime            string        `json:"endTime"`
	SessionType        string        `json:"sessionType"`
	IsOpen             bool          `json:"isOpen"`
	Location           string        `json:"location,omitempty"`
	MeetingLink        string        `json:"meetingLink,omitempty"`
	CancelReason       string        `json:"cancelReason,omitempty"`
}

func (s *Session) UnmarshalJSON(data []byte) error {
	type alias Session
	aux := struct {
		*alias
		MongoID string `json:"_id"`
	}{alias: (*alias)(s)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if s.ID == "" {
		s.ID = aux.MongoID
	}
	return nil
}

// SessionFilter narrows GET /sessions.
type SessionFilter struct {
	Status   string `form:"status"`
	Upcoming bool   `form:"upcoming"`
	IsOpen   bool   `form:"isOpen"`
	Page     int    `form:"page"`
	Limit    int    `form:"limit"`
}

type CreateSessionRequest struct {
	Title           string    `json:"title" binding:"required"`
	Subject         string    `json:"subject" binding:"required"`
	Description     string    `json:"description,omitempty"`
	ScheduledDate   time.Time `json:"scheduledDate" binding:"required"`
	StartTime       string    `json:"startTime" binding:"required"`
	EndTime         string    `json:"endTime" binding:"required"`
	SessionType     string    `json:"sessionType" binding:"required,oneof=online offline hybrid"`
	IsOpen          bool      `json:"isOpen"`
	MaxParticipants int       `json:"maxParticipants,omitempty" binding:"omitempty,min=1"`
	Location        string    `json:"location,omitempty"`
	MeetingLink     string    `json:"meetingLink,omitempty"`
	StudentID       string    `json:"studentId,omitempty"`
}

type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

type FeedbackRequest struct {
	SessionID string `json:"sessionId"`
	Rating    int    `json:"rating" binding:"required,min=1,max=5"`
	Comment   string `json:"comment,omitempty"`
}

type Feedback struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
