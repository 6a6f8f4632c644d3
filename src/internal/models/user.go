package models

import "encoding/json"

// Role constants
const (
	RoleStudent        = "student"
	RoleTutor          = "tutor"
	RoleCoordinator    = "coordinator"
	RoleDepartmentHead = "department_head"
	RoleAdmin          = "admin"
)

// Status constants
const (
	UserStatusActive    = "active"
	UserStatusInactive  = "inactive"
	UserStatusSuspended = "suspended"
)

// AdminRoles may reach the administration area.
var AdminRoles = []string{RoleAdmin, RoleCoordinator, RoleDepartmentHead}

type User struct {
	ID             string  `json:"id"`
	Email          string  `json:"email"`
	FullName       string  `json:"fullName"`
	Role           string  `json:"role"`
	Status         string  `json:"status,omitempty"`
	StudentID      string  `json:"studentId,omitempty"`
	Faculty        string  `json:"faculty,omitempty"`
	Avatar         *string `json:"avatar,omitempty"`
	TrainingPoints int     `json:"trainingPoints,omitempty"`
}

// UnmarshalJSON accepts both "id" and the backend's "_id".
func (u *User) UnmarshalJSON(data []byte) error {
	type alias User
	aux := struct {
		*alias
		MongoID string `json:"_id"`
	}{alias: (*alias)(u)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = aux.MongoID
	}
	return nil
}

// IsValidRole reports whether role is one of the platform roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleStudent, RoleTutor, RoleCoordinator, RoleDepartmentHead, RoleAdmin:
		return true
	}
	return false
}

// IsValidUserStatus reports whether status is an account status the backend accepts.
func IsValidUserStatus(status string) bool {
	switch status {
	case UserStatusActive, UserStatusInactive, UserStatusSuspended:
		return true
	}
	return false
}

// Credentials is the password login payload.
type Credentials struct {
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required"`
}

// RegisterRequest is the self-registration payload.
type RegisterRequest struct {
	Email     string `json:"email" form:"email" binding:"required,email"`
	Password  string `json:"password" form:"password" binding:"required,min=6"`
	FullName  string `json:"fullName" form:"fullName" binding:"required"`
	Role      string `json:"role" form:"role" binding:"required,oneof=student tutor"`
	StudentID string `json:"studentId,omitempty" form:"studentId"`
	Faculty   string `json:"faculty,omitempty" form:"faculty"`
}

// SSOCredentials carries what the identity provider issued.
type SSOCredentials struct {
	Provider    string `json:"provider"`
	AccessToken string `json:"accessToken"`
	IDToken     string `json:"idToken,omitempty"`
}

// AuthPayload is the data section of login, register and sso responses.
type AuthPayload struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         *User  `json:"user"`
}
