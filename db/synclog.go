package db

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Operation and status labels for the sync log.
const (
	OpSync     = "sync"
	OpDiscover = "discover"
	OpFinalize = "finalize"
	OpDispute  = "dispute"
	OpCleanup  = "cleanup"

	StatusOK    = "ok"
	StatusError = "error"
	StatusWarn  = "warn"
)

// LogSyncOperation appends one operation record. The log is observability
// only; failures here must never fail the operation being recorded, so
// callers typically discard the error after logging it.
func (s *Store) LogSyncOperation(ctx context.Context, operation, market, status, message string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_log (operation, market_address, status, message)
		VALUES ($1, $2, $3, $4)`,
		operation, NormalizeAddress(market), status, message)
	return errors.Wrap(err, "could not append sync log")
}

// RecentSyncLogs returns the newest entries, most recent first.
func (s *Store) RecentSyncLogs(ctx context.Context, limit int) ([]*SyncLogEntry, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, operation, market_address, status, message, created_at
		FROM sync_log ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "could not list sync logs")
	}
	defer rows.Close()

	var entries []*SyncLogEntry
	for rows.Next() {
		var e SyncLogEntry
		if err := rows.Scan(&e.ID, &e.Operation, &e.MarketAddress, &e.Status, &e.Message, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "could not scan sync log")
		}
		entries = append(entries, &e)
	}
	return entries, errors.Wrap(rows.Err(), "sync log rows")
}

// CleanupSyncLogs deletes entries older than the retention window.
func (s *Store) CleanupSyncLogs(ctx context.Context, retention time.Duration) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sync_log WHERE created_at < now() - make_interval(secs => $1)`,
		retention.Seconds())
	if err != nil {
		return 0, errors.Wrap(err, "could not clean up sync log")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "rows affected")
}
