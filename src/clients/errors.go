package clients

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes the backend may put in the envelope "code" field.
const (
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
)

// APIError is a failure reported by the backend, either through an HTTP
// error status or through an envelope with success set to false.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("backend error %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.Code == CodeUnauthorized
}

// IsTokenExpired is true for a 401 that the backend attributes to an expired
// access token. Older backends only say so in the message text.
func (e *APIError) IsTokenExpired() bool {
	if e.StatusCode != http.StatusUnauthorized {
		return false
	}
	return e.Code == CodeTokenExpired || strings.Contains(strings.ToLower(e.Message), "expired")
}

func (e *APIError) IsForbidden() bool {
	return e.StatusCode == http.StatusForbidden || e.Code == CodeForbidden
}

func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound || e.Code == CodeNotFound
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsTokenExpired reports whether err is an expired-token rejection.
func IsTokenExpired(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.IsTokenExpired()
}

// IsUnauthorized reports whether err is any authentication rejection.
func IsUnauthorized(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.IsUnauthorized()
}

// IsNotFound reports whether err is a missing-resource rejection.
func IsNotFound(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.IsNotFound()
}

// Message returns the text to show a user for err: the backend message
// verbatim when there is one.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if apiErr, ok := AsAPIError(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
