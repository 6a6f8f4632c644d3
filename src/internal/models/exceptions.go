package models

import "errors"

var (
	ErrStorageConnection = errors.New("storage connection error")
	ErrStorageGet        = errors.New("storage get error")
	ErrStorageSet        = errors.New("storage set error")
	ErrStorageDelete     = errors.New("storage delete error")
	ErrStorageNotFound   = errors.New("storage key not found")
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNoRefreshToken   = errors.New("no refresh token stored")
	ErrRefreshFailed    = errors.New("token refresh failed")
	ErrInvalidState     = errors.New("invalid sso state")
	ErrSSODisabled      = errors.New("sso is not configured")
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidFilter   = errors.New("invalid filter")
)

var (
	ErrConversationNotSelected = errors.New("no conversation selected")
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidParams       = errors.New("invalid parameters")
	ErrInvalidRoleFilter   = errors.New("invalid role filter")
	ErrInvalidStatusFilter = errors.New("invalid status filter")
)
