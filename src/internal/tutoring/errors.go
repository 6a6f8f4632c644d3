package tutoring

import (
	"errors"
	"net/http"
	"strings"
	"tutorhub-portal-svc/src/clients"
	"tutorhub-portal-svc/src/internal/models"
)

// ErrorCode identifies why a lifecycle action failed.
type ErrorCode string

const (
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	CodeNotTutor          ErrorCode = "NOT_SESSION_TUTOR"
	CodeNotConfirmed      ErrorCode = "SESSION_NOT_CONFIRMED"
	CodeSessionFull       ErrorCode = "SESSION_FULL"
	CodeAlreadyRegistered ErrorCode = "ALREADY_REGISTERED"
	CodeUnauthenticated   ErrorCode = "UNAUTHENTICATED"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeUnknown           ErrorCode = "UNKNOWN"
)

var knownCodes = map[ErrorCode]bool{
	CodeInvalidTransition: true,
	CodeNotTutor:          true,
	CodeNotConfirmed:      true,
	CodeSessionFull:       true,
	CodeAlreadyRegistered: true,
	CodeForbidden:         true,
	CodeNotFound:          true,
}

var hints = map[ErrorCode]string{
	CodeInvalidTransition: "Thao tác này không khả dụng ở trạng thái hiện tại của buổi học.",
	CodeNotTutor:          "Chỉ gia sư của buổi học mới có thể thực hiện thao tác này.",
	CodeNotConfirmed:      "Buổi học cần được xác nhận trước khi bắt đầu.",
	CodeSessionFull:       "Buổi học đã đủ số lượng học viên.",
	CodeAlreadyRegistered: "Bạn đã đăng ký buổi học này.",
	CodeUnauthenticated:   "Phiên đăng nhập đã hết hạn, vui lòng đăng nhập lại.",
	CodeForbidden:         "Bạn không có quyền thực hiện thao tác này.",
	CodeNotFound:          "Không tìm thấy buổi học.",
}

// Hint is the user-facing explanation shown next to the server's message.
func Hint(code ErrorCode) string {
	return hints[code]
}

// TransitionError is a failed lifecycle action. Message is the server's
// message verbatim when the failure came from the backend.
type TransitionError struct {
	Code    ErrorCode
	Action  Action
	Message string
}

func (e *TransitionError) Error() string {
	return e.Message
}

func (e *TransitionError) Hint() string {
	return Hint(e.Code)
}

// HTTPStatus maps the code to the status the portal answers with.
func (e *TransitionError) HTTPStatus() int {
	switch e.Code {
	case CodeInvalidTransition, CodeNotConfirmed, CodeSessionFull, CodeAlreadyRegistered:
		return http.StatusConflict
	case CodeNotTutor, CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	}
	return http.StatusBadGateway
}

// ClassifyError turns any error from a lifecycle call into a
// *TransitionError. A structured backend code wins; backends that only send
// text are matched on the two phrases they are known to use.
func ClassifyError(action Action, err error) *TransitionError {
	if err == nil {
		return nil
	}

	var transitionErr *TransitionError
	if errors.As(err, &transitionErr) {
		return transitionErr
	}

	if errors.Is(err, models.ErrNotAuthenticated) ||
		errors.Is(err, models.ErrNoRefreshToken) ||
		errors.Is(err, models.ErrRefreshFailed) {
		return &TransitionError{Code: CodeUnauthenticated, Action: action, Message: err.Error()}
	}
	if errors.Is(err, models.ErrSessionNotFound) {
		return &TransitionError{Code: CodeNotFound, Action: action, Message: err.Error()}
	}

	apiErr, ok := clients.AsAPIError(err)
	if !ok {
		return &TransitionError{Code: CodeUnknown, Action: action, Message: err.Error()}
	}

	result := &TransitionError{Code: CodeUnknown, Action: action, Message: apiErr.Message}
	message := strings.ToLower(apiErr.Message)

	switch {
	case knownCodes[ErrorCode(apiErr.Code)]:
		result.Code = ErrorCode(apiErr.Code)
	case apiErr.Code == "" && strings.Contains(message, "confirmed"):
		result.Code = CodeNotConfirmed
	case apiErr.Code == "" && strings.Contains(message, "tutor"):
		result.Code = CodeNotTutor
	case apiErr.IsUnauthorized():
		result.Code = CodeUnauthenticated
	case apiErr.IsForbidden():
		result.Code = CodeForbidden
	case apiErr.IsNotFound():
		result.Code = CodeNotFound
	}
	return result
}
