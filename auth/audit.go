package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AuditAction is the closed vocabulary of security-relevant events.
type AuditAction string

const (
	ActionLoginSuccess  AuditAction = "LOGIN_SUCCESS"
	ActionLoginFailed   AuditAction = "LOGIN_FAILED"
	ActionAccountLocked AuditAction = "ACCOUNT_LOCKED"
	ActionLogout        AuditAction = "LOGOUT"
)

// AuditEvent is an immutable record of a security-relevant action. UserID is
// empty for pre-authentication failures where no account could be resolved.
type AuditEvent struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	UserID    string                 `json:"user_id,omitempty"`
	Action    AuditAction            `json:"action"`
	Resource  string                 `json:"resource,omitempty"`
	IPAddress string                 `json:"ip_address,omitempty"`
	UserAgent string                 `json:"user_agent,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// AuditSink records audit events. Implementations are append-only: events are
// never mutated or deleted. Record errors are swallowed by the authenticator
// at the call boundary, so sinks do not need their own retry logic.
type AuditSink interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// NewAuditEvent builds an event with a fresh ID and timestamp.
func NewAuditEvent(action AuditAction, userID, resource string, meta RequestMeta, details map[string]interface{}) *AuditEvent {
	return &AuditEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Details:   details,
	}
}

// LogAuditSink writes audit events to the structured log. It is the fallback
// sink when no external audit store is configured.
type LogAuditSink struct {
	logger *logrus.Logger
}

// NewLogAuditSink creates a logrus-backed audit sink.
func NewLogAuditSink(logger *logrus.Logger) *LogAuditSink {
	return &LogAuditSink{logger: logger}
}

// Record writes the event as a structured log entry.
func (s *LogAuditSink) Record(_ context.Context, event *AuditEvent) error {
	s.logger.WithFields(logrus.Fields{
		"audit_id":   event.ID,
		"action":     event.Action,
		"user_id":    event.UserID,
		"resource":   event.Resource,
		"ip_address": event.IPAddress,
		"user_agent": event.UserAgent,
		"details":    event.Details,
	}).Info("audit event")
	return nil
}
