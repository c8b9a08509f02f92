package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/authkit/auth-service/internal/events"
)

// defaultAuditMaxLen caps the audit stream with approximate trimming.
const defaultAuditMaxLen = 10000

// AuditService appends authentication events to a Redis stream.
type AuditService struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewAuditService constructs the service. A nil client disables recording.
func NewAuditService(client *redis.Client, stream string) *AuditService {
	return &AuditService{client: client, stream: stream, maxLen: defaultAuditMaxLen}
}

// Record appends the event to the stream.
func (s *AuditService) Record(ctx context.Context, event events.Event) error {
	if s == nil || s.client == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{
			"type":    string(event.Type),
			"subject": event.Subject,
			"event":   payload,
		},
	}).Err()
}

// Recent returns up to count events, newest first.
func (s *AuditService) Recent(ctx context.Context, count int64) ([]events.Event, error) {
	if s == nil || s.client == nil {
		return nil, nil
	}
	messages, err := s.client.XRevRangeN(ctx, s.stream, "+", "-", count).Result()
	if err != nil {
		return nil, err
	}

	out := make([]events.Event, 0, len(messages))
	for _, msg := range messages {
		raw, ok := msg.Values["event"].(string)
		if !ok {
			continue
		}
		var event events.Event
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			return nil, fmt.Errorf("decode audit event %s: %w", msg.ID, err)
		}
		out = append(out, event)
	}
	return out, nil
}
