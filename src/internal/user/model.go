package user

import "tutorhub-portal-svc/src/internal/models"

// Profile is a user as shown in the administration area.
type Profile struct {
	ID             string  `json:"id"`
	FullName       string  `json:"fullName"`
	Email          string  `json:"email"`
	Role           string  `json:"role"`
	Status         string  `json:"status"`
	StudentID      string  `json:"studentId,omitempty"`
	Faculty        string  `json:"faculty,omitempty"`
	Avatar         *string `json:"avatar,omitempty"`
	TrainingPoints int     `json:"trainingPoints"`
}

type Stats struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Inactive  int64 `json:"inactive"`
	Suspended int64 `json:"suspended"`
	Students  int64 `json:"students"`
	Tutors    int64 `json:"tutors"`
	Staff     int64 `json:"staff"`
}

// ListResponse is one page of users
type ListResponse struct {
	Users      []*Profile `json:"users"`
	TotalCount int64      `json:"totalCount"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	TotalPages int        `json:"totalPages"`
}

// ToProfile converts a backend user to its admin profile
func ToProfile(u *models.User) *Profile {
	status := u.Status
	if status == "" {
		status = models.UserStatusActive
	}
	return &Profile{
		ID:             u.ID,
		FullName:       u.FullName,
		Email:          u.Email,
		Role:           u.Role,
		Status:         status,
		StudentID:      u.StudentID,
		Faculty:        u.Faculty,
		Avatar:         u.Avatar,
		TrainingPoints: u.TrainingPoints,
	}
}

