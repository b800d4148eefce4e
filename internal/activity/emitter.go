package activity

import (
	"context"
	"encoding/json"
	"time"

	"todo_auth/internal/queue"

	"github.com/sirupsen/logrus"
)

type EmitterInterface interface {
	Emit(ctx context.Context, event Event)
}

// Emitter publishes events best-effort: a failed publish is logged and never
// fails the request that caused it.
type Emitter struct {
	publisher queue.Publisher
	timeout   time.Duration
}

func NewEmitter(publisher queue.Publisher) *Emitter {
	return &Emitter{publisher: publisher, timeout: 2 * time.Second}
}

func (e *Emitter) Emit(ctx context.Context, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).WithField("event_type", event.Type).Error("Failed to encode activity event")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	if err := e.publisher.Publish(ctx, body); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"event_type": event.Type,
			"user_id":    event.UserID,
		}).Warn("Failed to publish activity event")
	}
}
