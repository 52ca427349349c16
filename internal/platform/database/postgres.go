package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

const (
	connectAttempts = 10
	retryDelay      = 2 * time.Second
)

// Open connects to Postgres, retrying while the database is starting.
func Open(ctx context.Context, dsn string, log *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	for i := 0; i < connectAttempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			log.Info("connected to database")
			return db, nil
		}
		log.Info("waiting for database", "attempt", i+1, "error", err)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	db.Close()
	return nil, fmt.Errorf("could not connect to database: %w", err)
}

// Migrate applies all pending migrations from source (e.g. "file://migrations").
func Migrate(source, dsn string, log *slog.Logger) error {
	m, err := migrate.New(source, dsn)
	if err != nil {
		return fmt.Errorf("migration init failed: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	log.Info("migrations applied", "source", source)
	return nil
}
