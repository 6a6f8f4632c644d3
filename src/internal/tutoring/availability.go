package tutoring

import (
	"fmt"
	"tutorhub-portal-svc/src/internal/models"
)

type Style string

const (
	StyleNone     Style = ""
	StyleOpen     Style = "open"
	StyleLastSpot Style = "last-spot"
	StyleFull     Style = "full"
)

const LabelFull = "Đã đầy"

// Seats describes how many places an open session has left.
type Seats struct {
	Capacity  int    `json:"capacity"`
	Taken     int    `json:"taken"`
	Remaining int    `json:"remaining"`
	Full      bool   `json:"full"`
	Label     string `json:"label"`
	Style     Style  `json:"style"`
}

// Availability reports the seats of s. Sessions without a participant cap
// are never full and carry no label.
func Availability(s *models.Session) Seats {
	if s == nil || s.MaxParticipants <= 0 {
		return Seats{Style: StyleNone}
	}

	seats := Seats{
		Capacity: s.MaxParticipants,
		Taken:    len(s.RegisteredStudents),
	}
	seats.Remaining = seats.Capacity - seats.Taken
	if seats.Remaining < 0 {
		seats.Remaining = 0
	}

	switch {
	case seats.Remaining == 0:
		seats.Full = true
		seats.Label = LabelFull
		seats.Style = StyleFull
	case seats.Remaining == 1:
		seats.Label = "Còn 1 chỗ"
		seats.Style = StyleLastSpot
	default:
		seats.Label = fmt.Sprintf("Còn %d chỗ", seats.Remaining)
		seats.Style = StyleOpen
	}
	return seats
}
