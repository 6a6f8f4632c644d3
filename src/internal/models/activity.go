package models

import "time"

type ActivityMessage struct {
	ClientID    string            `json:"client_id"`
	UserID      string            `json:"user_id"`
	Role        string            `json:"role,omitempty"`
	ServiceName string            `json:"service_name"`
	Action      string            `json:"action"`
	TargetID    string            `json:"target_id,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Activity action constants
const (
	ActionLogin             = "login"
	ActionRegister          = "register"
	ActionSSOLogin          = "sso_login"
	ActionLogout            = "logout"
	ActionSessionCreate     = "session_create"
	ActionSessionTransition = "session_transition"
	ActionSessionRegister   = "session_register"
	ActionFeedbackSubmit    = "feedback_submit"
	ActionMessageSend       = "message_send"
	ActionUserStatusUpdate  = "user_status_update"
)

// Service name constants
const (
	ServicePortalAuth     = "portal.handler.auth"
	ServicePortalSSO      = "portal.handler.sso"
	ServicePortalSessions = "portal.handler.sessions"
	ServicePortalChat     = "portal.handler.chat"
	ServicePortalAdmin    = "portal.handler.admin"
)
