package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Ref is a reference to a user that the backend sends either populated
// (an object) or as a bare id (string or number). ID is always set.
type Ref struct {
	ID   string
	User *User
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		return json.Unmarshal(data, &r.ID)
	case '{':
		var u User
		if err := json.Unmarshal(data, &u); err != nil {
			return err
		}
		r.ID = u.ID
		r.User = &u
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("unsupported reference %s: %w", string(data), err)
		}
		r.ID = n.String()
		return nil
	}
}

func (r Ref) MarshalJSON() ([]byte, error) {
	if r.User != nil {
		return json.Marshal(r.User)
	}
	return json.Marshal(r.ID)
}

// Is reports whether the reference points at userID.
func (r Ref) Is(userID string) bool {
	return r.ID != "" && r.ID == userID
}

// TutorRef references a tutor profile, which in turn references a user.
type TutorRef struct {
	ID   string
	User Ref
	// Profile fields, present when the backend populates the tutor.
	Subjects []string
	Rating   float64
}

func (t *TutorRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] != '{' {
		var bare Ref
		if err := json.Unmarshal(data, &bare); err != nil {
			return err
		}
		t.ID = bare.ID
		return nil
	}

	var aux struct {
		ID       string   `json:"id"`
		MongoID  string   `json:"_id"`
		User     *Ref     `json:"user"`
		UserID   *Ref     `json:"userId"`
		Subjects []string `json:"subjects"`
		Rating   float64  `json:"rating"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	t.ID = aux.ID
	if t.ID == "" {
		t.ID = aux.MongoID
	}
	switch {
	case aux.User != nil:
		t.User = *aux.User
	case aux.UserID != nil:
		t.User = *aux.UserID
	}
	t.Subjects = aux.Subjects
	t.Rating = aux.Rating
	return nil
}

func (t TutorRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID       string   `json:"id"`
		User     Ref      `json:"user"`
		Subjects []string `json:"subjects,omitempty"`
		Rating   float64  `json:"rating,omitempty"`
	}{t.ID, t.User, t.Subjects, t.Rating})
}
