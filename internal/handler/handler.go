package handler

import (
	"database/sql"
	"net/http"
	"time"

	"todo_auth/internal/activity"
	"todo_auth/internal/auth"
	"todo_auth/internal/cache"
	"todo_auth/internal/config"
	"todo_auth/internal/middleware"
	"todo_auth/internal/observability"
	"todo_auth/internal/queue"
	"todo_auth/internal/todo"
	"todo_auth/internal/user"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
)

// SetupHandler initializes all dependencies and routes. conn and redisClient
// may be nil, which turns off activity events and the Redis backed features.
func SetupHandler(db *sql.DB, conn *amqp.Connection, redisClient *redis.Client, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.PrometheusMiddleware(observability.GlobalMetrics))
	r.Use(middleware.BodyLimit(cfg.MaxBodyBytes))

	// Initialize repositories
	userRepo := user.NewUserRepository()
	todoRepo := todo.NewTodoRepository()

	var publisher queue.Publisher = queue.NoopPublisher{}
	if conn != nil {
		publisher = queue.NewAMQPPublisher(conn, cfg.RabbitMQ.Queue)
	}
	events := activity.NewEmitter(publisher)

	issuer := auth.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
	denylist := cache.NewTokenDenylist(redisClient)

	// Initialize services
	userService := user.NewUserService(userRepo, todoRepo, db, cache.NewTodoCache(redisClient), events)

	// Initialize controllers
	userController := user.NewUserController(userService, issuer, denylist, events, user.CookieOptions{
		Name:   cfg.Cookie.Name,
		Secure: cfg.Cookie.Secure,
	})

	local := middleware.NewLocalStrategy(userService)
	bearer := middleware.NewBearerStrategy(issuer, userService, denylist, cfg.Cookie.Name)

	setupRoutes(r, userController, local, bearer, redisClient, db)

	return r
}

// setupRoutes configures all application routes
func setupRoutes(
	r *gin.Engine,
	userCtrl *user.UserController,
	local, bearer middleware.Strategy,
	redisClient *redis.Client,
	db *sql.DB,
) {
	r.GET("/health", health(db))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public routes, limited per client IP
	credentials := middleware.RateLimiterMiddleware(redisClient, middleware.StrictRateLimiter(), middleware.ClientIPKey)
	r.POST("/register", credentials, userCtrl.Register)
	r.POST("/login", credentials, middleware.Authenticate(local), userCtrl.Login)

	// Protected routes
	protected := r.Group("/")
	protected.Use(middleware.Authenticate(bearer))
	protected.Use(middleware.RateLimiterMiddleware(redisClient, middleware.DefaultRateLimiterConfig(), middleware.UserKey))
	{
		protected.GET("/logout", userCtrl.Logout)
		protected.POST("/todo", userCtrl.CreateTodo)
		protected.GET("/todos", userCtrl.GetTodos)
		protected.GET("/admin", userCtrl.Admin)
		protected.GET("/authenticated", userCtrl.Authenticated)
	}
}

func health(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
