package todo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"todo_auth/internal/apperror"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type TodoRepository struct{}

type TodoRepositoryInterface interface {
	Create(ctx context.Context, tx *sql.Tx, todo *Todo) error
	GetByID(ctx context.Context, db *sql.DB, id string) (*Todo, error)
}

func NewTodoRepository() TodoRepositoryInterface {
	return &TodoRepository{}
}

// Create assigns an id and creation time and inserts the todo.
func (r *TodoRepository) Create(
	ctx context.Context,
	tx *sql.Tx,
	todo *Todo,
) error {
	if todo.Fields == nil {
		todo.Fields = map[string]any{}
	}
	fields, err := json.Marshal(todo.Fields)
	if err != nil {
		return apperror.Validation("Todo fields must be a JSON object")
	}

	query := `
		INSERT INTO todos (
			id, fields, created_at
		)
		VALUES ($1, $2, $3)
	`

	id := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Millisecond)

	if _, err := tx.ExecContext(ctx, query, id, string(fields), now.UnixMilli()); err != nil {
		logrus.WithError(err).Error("Failed to create todo")
		return apperror.Storage("create todo", err)
	}

	todo.ID = id
	todo.CreatedAt = now
	return nil
}

// GetByID retrieves a todo by ID
func (r *TodoRepository) GetByID(
	ctx context.Context,
	db *sql.DB,
	id string,
) (*Todo, error) {
	query := `
		SELECT id, fields, created_at
		FROM todos
		WHERE id = $1
	`

	t, err := Scan(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("todo not found")
		}
		return nil, apperror.Storage("get todo", err)
	}

	return t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Scan reads id, fields and created_at, in that order, from row.
func Scan(row rowScanner) (*Todo, error) {
	var (
		t         Todo
		fields    string
		createdAt int64
	)
	if err := row.Scan(&t.ID, &fields, &createdAt); err != nil {
		return nil, err
	}

	decoded, err := DecodeFields(strings.NewReader(fields))
	if err != nil {
		return nil, err
	}
	t.Fields = decoded
	t.CreatedAt = time.UnixMilli(createdAt).UTC()

	return &t, nil
}
