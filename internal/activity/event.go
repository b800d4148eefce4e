// Package activity records what users do: events are published to RabbitMQ
// by the API and written to activity_log by the worker.
package activity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	UserRegistered EventType = "user.registered"
	UserLoggedIn   EventType = "user.logged_in"
	UserLoggedOut  EventType = "user.logged_out"
	TodoCreated    EventType = "todo.created"
)

type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	UserID     string    `json:"user_id"`
	TodoID     string    `json:"todo_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewEvent(eventType EventType, userID, todoID string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     userID,
		TodoID:     todoID,
		OccurredAt: time.Now().UTC(),
	}
}

// Validate rejects events a consumer cannot store.
func (e Event) Validate() error {
	if e.ID == "" || e.UserID == "" {
		return fmt.Errorf("event %q is missing id or user_id", e.Type)
	}
	switch e.Type {
	case UserRegistered, UserLoggedIn, UserLoggedOut:
		return nil
	case TodoCreated:
		if e.TodoID == "" {
			return fmt.Errorf("event %q is missing todo_id", e.Type)
		}
		return nil
	default:
		return fmt.Errorf("unknown event type: %s", e.Type)
	}
}
