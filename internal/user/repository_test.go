package user

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"todo_auth/internal/apperror"
	"todo_auth/internal/db"
	"todo_auth/internal/db/dbtest"
	"todo_auth/internal/todo"
	"todo_auth/internal/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createUser(t *testing.T, database *sql.DB, repo UserRepositoryInterface, username string, role Role) *User {
	t.Helper()
	u := &User{
		ID:        uuid.NewString(),
		Username:  username,
		Password:  "hash",
		Role:      role,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	ctx := context.Background()
	require.NoError(t, utils.WithTransaction(ctx, database, func(tx *sql.Tx) error {
		return repo.Create(ctx, tx, u)
	}))
	return u
}

func createTodo(t *testing.T, database *sql.DB, repo UserRepositoryInterface, userID string, fields map[string]any) *todo.Todo {
	t.Helper()
	td := todo.New(fields)
	ctx := context.Background()
	require.NoError(t, utils.WithTransaction(ctx, database, func(tx *sql.Tx) error {
		if err := todo.NewTodoRepository().Create(ctx, tx, td); err != nil {
			return err
		}
		return repo.AppendTodo(ctx, tx, userID, td.ID)
	}))
	return td
}

func TestUserRepository_CreateAndLookup(t *testing.T) {
	database := dbtest.OpenTestSQLite(t)
	repo := NewUserRepository()
	ctx := context.Background()

	u := createUser(t, database, repo, "alice", RoleAdmin)

	byID, err := repo.GetByID(ctx, database, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)
	assert.Equal(t, RoleAdmin, byID.Role)
	assert.Equal(t, "hash", byID.Password)
	assert.True(t, u.CreatedAt.Equal(byID.CreatedAt))

	byName, err := repo.GetByUsername(ctx, database, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)
}

func TestUserRepository_UsernameIsCaseSensitive(t *testing.T) {
	database := dbtest.OpenTestSQLite(t)
	repo := NewUserRepository()

	createUser(t, database, repo, "alice", RoleUser)

	_, err := repo.GetByUsername(context.Background(), database, "Alice")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	createUser(t, database, repo, "Alice", RoleUser)
}

func TestUserRepository_DuplicateUsername(t *testing.T) {
	database := dbtest.OpenTestSQLite(t)
	repo := NewUserRepository()
	ctx := context.Background()

	createUser(t, database, repo, "alice", RoleUser)

	dup := &User{ID: uuid.NewString(), Username: "alice", Password: "x", Role: RoleUser, CreatedAt: time.Now()}
	err := utils.WithTransaction(ctx, database, func(tx *sql.Tx) error {
		return repo.Create(ctx, tx, dup)
	})
	require.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, "Username already in use!", apperror.PublicMessage(err, ""))

	var n int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM users WHERE username = $1`, "alice").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestUserRepository_NotFound(t *testing.T) {
	database := dbtest.OpenTestSQLite(t)
	repo := NewUserRepository()
	ctx := context.Background()

	_, err := repo.GetByID(ctx, database, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = repo.GetByIDWithTodos(ctx, database, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUserRepository_TodosInInsertionOrder(t *testing.T) {
	database := dbtest.OpenTestSQLite(t)
	repo := NewUserRepository()
	ctx := context.Background()

	alice := createUser(t, database, repo, "alice", RoleUser)
	bob := createUser(t, database, repo, "bob", RoleUser)

	empty, err := repo.GetByIDWithTodos(ctx, database, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, empty.Todos)
	assert.Empty(t, empty.Todos)

	first := createTodo(t, database, repo, alice.ID, map[string]any{"name": "a"})
	createTodo(t, database, repo, bob.ID, map[string]any{"name": "bob's"})
	second := createTodo(t, database, repo, alice.ID, map[string]any{"name": "b"})
	third := createTodo(t, database, repo, alice.ID, map[string]any{"name": "a"})

	got, err := repo.GetByIDWithTodos(ctx, database, alice.ID)
	require.NoError(t, err)
	require.Len(t, got.Todos, 3)
	assert.Equal(t, first.ID, got.Todos[0].ID)
	assert.Equal(t, second.ID, got.Todos[1].ID)
	assert.Equal(t, third.ID, got.Todos[2].ID)
	assert.Equal(t, "b", got.Todos[1].Fields["name"])

	bobs, err := repo.GetByIDWithTodos(ctx, database, bob.ID)
	require.NoError(t, err)
	require.Len(t, bobs.Todos, 1)
	assert.Equal(t, "bob's", bobs.Todos[0].Fields["name"])
}

func TestUserRepository_AppendTodoUnknownUser(t *testing.T) {
	database := dbtest.OpenTestSQLite(t)
	repo := NewUserRepository()
	ctx := context.Background()

	td := todo.New(map[string]any{"name": "orphan"})
	err := utils.WithTransaction(ctx, database, func(tx *sql.Tx) error {
		if err := todo.NewTodoRepository().Create(ctx, tx, td); err != nil {
			return err
		}
		return repo.AppendTodo(ctx, tx, "missing", td.ID)
	})
	require.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = todo.NewTodoRepository().GetByID(ctx, database, td.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound, "todo insert must roll back with the failed append")
}

func TestUserRepository_PositionIsUniquePerUser(t *testing.T) {
	database := dbtest.OpenTestSQLite(t)
	repo := NewUserRepository()
	ctx := context.Background()

	alice := createUser(t, database, repo, "alice", RoleUser)
	first := createTodo(t, database, repo, alice.ID, map[string]any{"name": "a"})
	other := todo.New(map[string]any{"name": "b"})
	require.NoError(t, utils.WithTransaction(ctx, database, func(tx *sql.Tx) error {
		return todo.NewTodoRepository().Create(ctx, tx, other)
	}))

	var pos int64
	require.NoError(t, database.QueryRow(
		`SELECT position FROM user_todos WHERE todo_id = $1`, first.ID,
	).Scan(&pos))

	_, err := database.Exec(`INSERT INTO user_todos (user_id, todo_id, position) VALUES ($1, $2, $3)`, alice.ID, other.ID, pos)
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err))

	n, err := repo.CountTodos(ctx, database, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
