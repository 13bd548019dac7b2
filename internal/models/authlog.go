package models

import "time"

// Auth log actions.
const (
	ActionAuth   = "auth"
	ActionLogin  = "login"
	ActionLogout = "logout"
	ActionPing   = "ping"
	ActionExpire = "expire"
)

// Auth log results.
const (
	ResultAllow   = "allow"
	ResultDeny    = "deny"
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// AuthLogEntry is an append-only audit record.
type AuthLogEntry struct {
	UserID    *string   `json:"userId"`
	SessionID *string   `json:"sessionId"`
	Action    string    `json:"action"`
	Result    string    `json:"result"`
	Reason    string    `json:"reason,omitempty"`
	Message   string    `json:"message"`
	GatewayID string    `json:"gatewayId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// StringPtr returns nil for "" so optional references serialize as null.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
