package audit

import "time"

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	UserID        string    `json:"user_id,omitempty"`
	ApplicationID string    `json:"application_id,omitempty"`
	Action        string    `json:"action"`
	Reason        string    `json:"reason,omitempty"`
	AttemptedURL  string    `json:"attempted_url,omitempty"`
	RemoteAddr    string    `json:"remote_addr,omitempty"`
	UserAgent     string    `json:"user_agent,omitempty"`
}

type AuditEvent string

const (
	EventSessionIssued    AuditEvent = "session_issued"
	EventSessionCompleted AuditEvent = "session_completed"
	EventSessionReplayed  AuditEvent = "session_replay_rejected"
	EventRedirectRejected AuditEvent = "redirect_rejected"
	EventApplicationSaved AuditEvent = "application_saved"
	EventApplicationGone  AuditEvent = "application_deleted"
	EventTierSaved        AuditEvent = "tier_saved"
	EventMembershipSaved  AuditEvent = "membership_saved"
)
