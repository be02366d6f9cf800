// Package db implements the relayer's persistent store on Postgres. The
// store owns all off-chain state; the chain remains the source of truth for
// on-chain state and conflicts are resolved in its favor by the sync service.
package db

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "db")

const defaultQueryTimeout = 60 * time.Second

// Store wraps the SQL connection pool. All methods are safe for concurrent
// use; write paths rely on upserts and unique constraints rather than
// application-level locking.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres and bootstraps the schema.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "could not open database")
	}
	database.SetMaxOpenConns(20)
	database.SetMaxIdleConns(5)
	database.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := database.PingContext(pingCtx); err != nil {
		return nil, errors.Wrap(err, "could not reach database")
	}

	s := &Store{db: database}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	log.Info("Database ready")
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "could not apply schema")
	}
	return nil
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}
