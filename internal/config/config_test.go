package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-key-for-config-testing")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8087", cfg.AppPort)
	assert.Equal(t, "pgx", cfg.DB.Driver)
	assert.Equal(t, "todo_auth", cfg.JWT.Issuer)
	assert.Equal(t, time.Hour, cfg.JWT.TTL)
	assert.Equal(t, "access_token", cfg.Cookie.Name)
	assert.Equal(t, "activity_events", cfg.RabbitMQ.Queue)
	assert.Equal(t, 3, cfg.Worker.Count)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.RabbitMQ.Enabled())
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-key-for-config-testing")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("JWT_TTL", "30m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 2, cfg.Redis.RedisDB)
	assert.Equal(t, 30*time.Minute, cfg.JWT.TTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowedOrigins)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			GinMode: "debug",
			DB:      DBConfig{Driver: "pgx"},
			JWT:     JWTConfig{Secret: "secret", Issuer: "todo_auth", TTL: time.Hour},
			Worker:  WorkerConfig{Count: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "secret equals issuer", mutate: func(c *Config) { c.JWT.Issuer = "secret" }, wantErr: true},
		{name: "zero ttl", mutate: func(c *Config) { c.JWT.TTL = 0 }, wantErr: true},
		{name: "short secret in release", mutate: func(c *Config) { c.GinMode = "release" }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.DB.Driver = "mysql" }, wantErr: true},
		{name: "no workers", mutate: func(c *Config) { c.Worker.Count = 0 }, wantErr: true},
		{name: "unknown gin mode", mutate: func(c *Config) { c.GinMode = "prod" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
