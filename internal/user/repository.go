package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"todo_auth/internal/apperror"
	"todo_auth/internal/db"
	"todo_auth/internal/todo"

	"github.com/sirupsen/logrus"
)

// ErrPositionTaken means another transaction claimed the next todo position
// first. The whole transaction can be retried.
var ErrPositionTaken = errors.New("todo position taken")

type UserRepository struct{}

// UserRepositoryInterface is the credential store.
type UserRepositoryInterface interface {
	Create(ctx context.Context, tx *sql.Tx, user *User) error
	GetByID(ctx context.Context, db *sql.DB, id string) (*User, error)
	GetByUsername(ctx context.Context, db *sql.DB, username string) (*User, error)
	AppendTodo(ctx context.Context, tx *sql.Tx, userID, todoID string) error
	GetByIDWithTodos(ctx context.Context, db *sql.DB, userID string) (*User, error)
	CountTodos(ctx context.Context, db *sql.DB, userID string) (int, error)
}

func NewUserRepository() UserRepositoryInterface {
	return &UserRepository{}
}

// Create inserts the user. The unique index on username decides duplicates.
func (r *UserRepository) Create(
	ctx context.Context,
	tx *sql.Tx,
	user *User,
) error {
	query := `
		INSERT INTO users (
			id, username, password, role, created_at
		)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := tx.ExecContext(ctx,
		query,
		user.ID,
		user.Username,
		user.Password,
		string(user.Role),
		user.CreatedAt.UnixMilli(),
	)

	if err != nil {
		if db.IsUniqueViolation(err) {
			logrus.WithField("username", user.Username).Info("Username already taken")
			return apperror.Validation("Username already in use!")
		}
		logrus.WithError(err).Error("Failed to create user")
		return apperror.Storage("create user", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     user.Role,
	}).Info("User created successfully")

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, db *sql.DB, id string) (*User, error) {
	query := `
		SELECT id, username, password, role, created_at
		FROM users
		WHERE id = $1
	`

	user, err := scanUser(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logrus.WithField("user_id", id).Warn("User not found")
			return nil, apperror.NotFound("user not found")
		}
		logrus.WithError(err).Error("Failed to get user by ID")
		return nil, apperror.Storage("get user by id", err)
	}

	return user, nil
}

// GetByUsername retrieves a user by exact, case-sensitive username
func (r *UserRepository) GetByUsername(ctx context.Context, db *sql.DB, username string) (*User, error) {
	query := `
		SELECT id, username, password, role, created_at
		FROM users
		WHERE username = $1
	`

	user, err := scanUser(db.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logrus.WithField("username", username).Debug("User not found")
			return nil, apperror.NotFound("user not found")
		}
		logrus.WithError(err).Error("Failed to get user by username")
		return nil, apperror.Storage("get user by username", err)
	}

	return user, nil
}

// AppendTodo records todoID as the newest todo owned by userID.
func (r *UserRepository) AppendTodo(ctx context.Context, tx *sql.Tx, userID, todoID string) error {
	query := `
		INSERT INTO user_todos (user_id, todo_id, position)
		SELECT u.id, CAST($2 AS TEXT), COALESCE((
			SELECT MAX(ut.position) FROM user_todos ut WHERE ut.user_id = u.id
		), 0) + 1
		FROM users u
		WHERE u.id = $1
	`

	result, err := tx.ExecContext(ctx, query, userID, todoID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			logrus.WithField("user_id", userID).Info("Todo position taken by a concurrent create")
			return apperror.Storage("append todo", ErrPositionTaken)
		}
		logrus.WithError(err).Error("Failed to append todo to user")
		return apperror.Storage("append todo", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperror.Storage("append todo", err)
	}

	if rowsAffected == 0 {
		return apperror.NotFound("user not found")
	}

	return nil
}

// GetByIDWithTodos retrieves a user with its todos in creation order.
func (r *UserRepository) GetByIDWithTodos(ctx context.Context, db *sql.DB, userID string) (*User, error) {
	user, err := r.GetByID(ctx, db, userID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT t.id, t.fields, t.created_at
		FROM user_todos ut
		JOIN todos t ON t.id = ut.todo_id
		WHERE ut.user_id = $1
		ORDER BY ut.position ASC
	`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, apperror.Storage("list todos", err)
	}
	defer rows.Close()

	user.Todos = []*todo.Todo{}
	for rows.Next() {
		t, err := todo.Scan(rows)
		if err != nil {
			logrus.WithError(err).Error("Error scanning todo row")
			return nil, apperror.Storage("scan todo", err)
		}
		user.Todos = append(user.Todos, t)
	}

	if err = rows.Err(); err != nil {
		return nil, apperror.Storage("list todos", err)
	}

	return user, nil
}

// CountTodos returns how many todos userID owns. Todos are never removed, so
// the count only grows.
func (r *UserRepository) CountTodos(ctx context.Context, db *sql.DB, userID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_todos WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, apperror.Storage("count todos", err)
	}
	return n, nil
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		user      User
		role      string
		createdAt int64
	)
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Password,
		&role,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	user.Role = Role(role)
	user.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &user, nil
}
