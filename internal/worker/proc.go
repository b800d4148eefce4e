package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"todo_auth/internal/activity"
	"todo_auth/internal/utils"

	"github.com/sirupsen/logrus"
)

// ErrPoisonMessage marks a delivery that can never be stored. It is dropped
// instead of retried.
var ErrPoisonMessage = errors.New("poison message")

// Processor writes activity events from the queue into activity_log.
type Processor struct {
	db   *sql.DB
	repo activity.ActivityRepositoryInterface
}

func NewProcessor(db *sql.DB, repo activity.ActivityRepositoryInterface) *Processor {
	return &Processor{db: db, repo: repo}
}

// Handle decodes and stores one message body. Storing the same event twice
// is a no-op.
func (p *Processor) Handle(ctx context.Context, body []byte, workerID int) (activity.Event, error) {
	var event activity.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return event, fmt.Errorf("%w: %v", ErrPoisonMessage, err)
	}
	if err := event.Validate(); err != nil {
		return event, fmt.Errorf("%w: %v", ErrPoisonMessage, err)
	}

	logrus.WithFields(logrus.Fields{
		"worker_id":  workerID,
		"event_id":   event.ID,
		"event_type": event.Type,
		"user_id":    event.UserID,
	}).Debug("Storing activity event")

	err := utils.WithTransaction(ctx, p.db, func(tx *sql.Tx) error {
		return p.repo.Insert(ctx, tx, event)
	})
	return event, err
}
