package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLoginSucceeded EventType = "login_succeeded"
	EventLoginFailed    EventType = "login_failed"
	EventUserRegistered EventType = "user_registered"
	EventTokenRefreshed EventType = "token_refreshed"
	EventTokenRejected  EventType = "token_rejected"
	EventUserDisabled   EventType = "user_disabled"
	EventUserEnabled    EventType = "user_enabled"
	EventUserDeleted    EventType = "user_deleted"
)

// Event represents an authentication event emitted by services.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Subject   string            `json:"subject,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, subject string, metadata map[string]string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
}

// AllEventTypes lists every event type published by the service.
func AllEventTypes() []EventType {
	return []EventType{
		EventLoginSucceeded,
		EventLoginFailed,
		EventUserRegistered,
		EventTokenRefreshed,
		EventTokenRejected,
		EventUserDisabled,
		EventUserEnabled,
		EventUserDeleted,
	}
}
