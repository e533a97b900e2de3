package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultAuditStream is the Redis stream key for audit events.
	DefaultAuditStream = "vitalog:audit"

	// defaultAuditMaxLen caps the stream length; retention beyond the cap
	// belongs to an external archiver, not the auth core.
	defaultAuditMaxLen = 100000

	// auditWriteTimeout bounds the sink write so a slow stream cannot stall
	// an authentication result.
	auditWriteTimeout = 2 * time.Second
)

// RedisAuditSink appends audit events to a Redis stream (XADD with an
// approximate length cap). DragonflyDB works as well. The stream is
// append-only; nothing in this service reads it back.
type RedisAuditSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisAuditSink creates a stream-backed audit sink. An empty stream name
// selects DefaultAuditStream.
func NewRedisAuditSink(client *redis.Client, stream string) *RedisAuditSink {
	if stream == "" {
		stream = DefaultAuditStream
	}
	return &RedisAuditSink{
		client: client,
		stream: stream,
		maxLen: defaultAuditMaxLen,
	}
}

// Record appends the event to the stream. The write carries its own short
// timeout in addition to any caller deadline.
func (s *RedisAuditSink) Record(ctx context.Context, event *AuditEvent) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, auditWriteTimeout)
	defer cancel()

	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":         event.ID,
			"timestamp":  event.Timestamp.Format(time.RFC3339Nano),
			"user_id":    event.UserID,
			"action":     string(event.Action),
			"resource":   event.Resource,
			"ip_address": event.IPAddress,
			"user_agent": event.UserAgent,
			"details":    string(details),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}
