package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	AppName  string `env:"APP_NAME" envDefault:"todo_auth"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	AppPort  string `env:"APP_PORT" envDefault:"8087"`
	GinMode  string `env:"GIN_MODE" envDefault:"debug"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Upper bound on request body size in bytes.
	MaxBodyBytes int64 `env:"MAX_BODY_BYTES" envDefault:"262144"`

	// Comma separated list of origins allowed to send credentialed requests.
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	DB       DBConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	JWT      JWTConfig
	Cookie   CookieConfig
	Worker   WorkerConfig
}

type DBConfig struct {
	Driver   string `env:"DB_DRIVER" envDefault:"pgx"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME" envDefault:"todo_db"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	Path     string `env:"DB_PATH" envDefault:"todo.db"`
}

// RedisConfig with an empty Host disables the cache, the token denylist and
// rate limiting.
type RedisConfig struct {
	Host          string `env:"REDIS_HOST"`
	Port          string `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

type RabbitMQConfig struct {
	URL   string `env:"RABBITMQ_URL"`
	Queue string `env:"RABBITMQ_QUEUE" envDefault:"activity_events"`
}

func (r RabbitMQConfig) Enabled() bool {
	return r.URL != ""
}

type JWTConfig struct {
	Secret string        `env:"JWT_SECRET"`
	Issuer string        `env:"JWT_ISSUER" envDefault:"todo_auth"`
	TTL    time.Duration `env:"JWT_TTL" envDefault:"1h"`
}

type CookieConfig struct {
	Name   string `env:"COOKIE_NAME" envDefault:"access_token"`
	Secure bool   `env:"COOKIE_SECURE" envDefault:"false"`
}

type WorkerConfig struct {
	Count       int    `env:"WORKER_COUNT" envDefault:"3"`
	MetricsPort string `env:"WORKER_METRICS_PORT" envDefault:"8088"`
}

const minReleaseSecretLength = 32

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("Failed to load .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWT.Secret == c.JWT.Issuer {
		return errors.New("JWT_SECRET must not equal JWT_ISSUER")
	}
	if c.JWT.TTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("unsupported GIN_MODE %q", c.GinMode)
	}
	if c.GinMode == "release" && len(c.JWT.Secret) < minReleaseSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes in release mode", minReleaseSecretLength)
	}

	switch c.DB.Driver {
	case "pgx", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}

	if c.Worker.Count <= 0 {
		return errors.New("WORKER_COUNT must be positive")
	}

	return nil
}

// SetupLogging applies the formatter and level used by both binaries.
func SetupLogging(level string) {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.WithField("level", level).Warn("Unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}
