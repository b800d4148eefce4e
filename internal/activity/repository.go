package activity

import (
	"context"
	"database/sql"
)

type ActivityRepository struct{}

type ActivityRepositoryInterface interface {
	Insert(ctx context.Context, tx *sql.Tx, event Event) error
}

func NewActivityRepository() ActivityRepositoryInterface {
	return &ActivityRepository{}
}

// Insert stores event once; redelivered events with the same id are ignored.
func (r *ActivityRepository) Insert(ctx context.Context, tx *sql.Tx, event Event) error {
	query := `
		INSERT INTO activity_log (
			id, event_type, user_id, todo_id, occurred_at
		)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`

	var todoID sql.NullString
	if event.TodoID != "" {
		todoID = sql.NullString{String: event.TodoID, Valid: true}
	}

	_, err := tx.ExecContext(ctx, query,
		event.ID,
		string(event.Type),
		event.UserID,
		todoID,
		event.OccurredAt.UnixMilli(),
	)
	return err
}
