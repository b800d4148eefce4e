package user

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"todo_auth/internal/activity"
	"todo_auth/internal/apperror"
	"todo_auth/internal/auth"
	"todo_auth/internal/cache"
	"todo_auth/internal/observability"
	"todo_auth/internal/todo"
	"todo_auth/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	cacheTimeout      = 2 * time.Second
	maxAppendAttempts = 3
)

type UserService struct {
	repo     UserRepositoryInterface
	todoRepo todo.TodoRepositoryInterface
	db       *sql.DB
	cache    *cache.TodoCache
	events   activity.EmitterInterface
}

type UserServiceInterface interface {
	Register(ctx context.Context, username, password, role string) (*User, error)
	Authenticate(ctx context.Context, username, password string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	AddTodo(ctx context.Context, userID string, fields map[string]any) (*todo.Todo, error)
	ListTodos(ctx context.Context, userID string) ([]*todo.Todo, error)
}

func NewUserService(
	repo UserRepositoryInterface,
	todoRepo todo.TodoRepositoryInterface,
	db *sql.DB,
	todoCache *cache.TodoCache,
	events activity.EmitterInterface,
) UserServiceInterface {
	return &UserService{
		repo:     repo,
		todoRepo: todoRepo,
		db:       db,
		cache:    todoCache,
		events:   events,
	}
}

// Register creates a user with a hashed password. Duplicate usernames are
// detected by the store's unique constraint.
func (s *UserService) Register(ctx context.Context, username, password, role string) (*User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, apperror.Validation("Username is required!")
	}
	if password == "" {
		return nil, apperror.Validation("Password is required!")
	}

	parsedRole, err := ParseRole(role)
	if err != nil {
		return nil, err
	}

	// Hash password
	hashedPassword, err := auth.GeneratePasswordHash(password)
	if err != nil {
		return nil, apperror.Storage("hash password", err)
	}

	user := &User{
		ID:        uuid.NewString(),
		Username:  username,
		Password:  hashedPassword,
		Role:      parsedRole,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	done := observeDB("create_user")
	err = utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		return s.repo.Create(ctx, tx, user)
	})
	done()
	if err != nil {
		return nil, err
	}

	observability.GlobalMetrics.UsersRegisteredTotal.WithLabelValues(string(user.Role)).Inc()
	s.events.Emit(ctx, activity.NewEvent(activity.UserRegistered, user.ID, ""))

	return user, nil
}

// Authenticate checks a username and password pair and returns the user.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*User, error) {
	done := observeDB("get_user_by_username")
	user, err := s.repo.GetByUsername(ctx, s.db, username)
	done()
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			_ = auth.CompareDummyHash(password)
			return nil, apperror.Authentication("Unauthorized")
		}
		return nil, err
	}

	if err := auth.ComparePasswordHash([]byte(user.Password), password); err != nil {
		return nil, apperror.Authentication("Unauthorized")
	}

	return user, nil
}

// GetUserByID retrieves user by ID
func (s *UserService) GetUserByID(ctx context.Context, id string) (*User, error) {
	done := observeDB("get_user_by_id")
	defer done()
	return s.repo.GetByID(ctx, s.db, id)
}

// AddTodo stores a todo and its ownership link in one transaction.
func (s *UserService) AddTodo(ctx context.Context, userID string, fields map[string]any) (*todo.Todo, error) {
	t := todo.New(fields)

	done := observeDB("create_todo")
	var err error
	for attempt := 1; ; attempt++ {
		err = utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
			if err := s.todoRepo.Create(ctx, tx, t); err != nil {
				return err
			}
			return s.repo.AppendTodo(ctx, tx, userID, t.ID)
		})
		if !errors.Is(err, ErrPositionTaken) || attempt == maxAppendAttempts {
			break
		}
	}
	done()
	if err != nil {
		observability.GlobalMetrics.TodosCreatedTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	observability.GlobalMetrics.TodosCreatedTotal.WithLabelValues("success").Inc()

	cacheCtx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()
	if err := s.cache.Invalidate(cacheCtx, cache.UserTodosKey(userID)); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Failed to invalidate todo cache")
	}

	s.events.Emit(ctx, activity.NewEvent(activity.TodoCreated, userID, t.ID))

	return t, nil
}

// ListTodos returns the user's todos in creation order, from cache when
// possible.
func (s *UserService) ListTodos(ctx context.Context, userID string) ([]*todo.Todo, error) {
	cacheCtx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()

	// Try cache first
	cacheKey := cache.UserTodosKey(userID)
	cachedData, err := s.cache.Get(cacheCtx, cacheKey)
	if err != nil {
		logrus.WithError(err).Warn("Failed to read todo cache")
	}
	if err == nil && cachedData != nil {
		var todos []*todo.Todo
		if json.Unmarshal(cachedData, &todos) == nil && s.cacheIsCurrent(ctx, userID, len(todos)) {
			logrus.WithField("user_id", userID).Debug("cache hit for user todos")
			return todos, nil
		}
	}

	// Cache miss, get from DB
	done := observeDB("get_user_with_todos")
	user, err := s.repo.GetByIDWithTodos(ctx, s.db, userID)
	done()
	if err != nil {
		return nil, err
	}

	// Set cache (ignore error, cache miss is not critical)
	if err := s.cache.Set(cacheCtx, cacheKey, user.Todos); err != nil {
		logrus.WithError(err).Warn("Failed to set cache for user todos")
	}

	return user.Todos, nil
}

// cacheIsCurrent reports whether a cached list of cachedLen todos still
// holds every committed todo. A failed invalidation or a list cached by a
// reader that raced a create leaves the entry short, and it is then ignored.
func (s *UserService) cacheIsCurrent(ctx context.Context, userID string, cachedLen int) bool {
	done := observeDB("count_todos")
	n, err := s.repo.CountTodos(ctx, s.db, userID)
	done()
	if err != nil {
		return false
	}
	if n != cachedLen {
		logrus.WithFields(logrus.Fields{"user_id": userID, "cached": cachedLen, "stored": n}).Debug("Stale todo cache entry")
		return false
	}
	return true
}

func observeDB(operation string) func() {
	start := time.Now()
	return func() {
		observability.GlobalMetrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
