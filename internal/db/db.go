package db

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"todo_auth/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const maxRetries = 5

// Init opens the configured database, applies the schema and exits the
// process if either step fails.
func Init(DBCfg *config.DBConfig) *sql.DB {
	db, err := Open(DBCfg)
	if err != nil {
		logrus.WithError(err).Fatalf("Failed to connect to database after %d attempts", maxRetries)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := Migrate(ctx, db); err != nil {
		logrus.WithError(err).Fatal("Failed to apply database schema")
	}

	logrus.WithField("driver", DBCfg.Driver).Info("Database connection established successfully")
	return db
}

// Open connects with retries and configures the pool.
func Open(DBCfg *config.DBConfig) (*sql.DB, error) {
	driver, dsn := DSN(DBCfg)

	var db *sql.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = sql.Open(driver, dsn)
		if err != nil {
			logrus.Warnf("Failed to open database connection (attempt %d/%d): %v", i+1, maxRetries, err)
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}

		if err = db.Ping(); err != nil {
			logrus.Warnf("Failed to ping database (attempt %d/%d): %v", i+1, maxRetries, err)
			if err := db.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close database connection")
			}
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}

		// Connection successful
		break
	}

	if err != nil {
		return nil, err
	}

	if driver == "sqlite" {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(100)
		db.SetMaxIdleConns(10)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}

// DSN returns the database/sql driver name and data source for the config.
func DSN(DBCfg *config.DBConfig) (string, string) {
	if DBCfg.Driver == "sqlite" {
		return "sqlite", filepath.Clean(DBCfg.Path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	return "pgx", fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s", DBCfg.Host, DBCfg.Port, DBCfg.User, DBCfg.Password, DBCfg.Name, DBCfg.SSLMode)
}
