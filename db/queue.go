package db

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// EnqueueFinalization upserts a market's queue entry with fresh counts and a
// refreshed last_checked_at. Completed entries are terminal and never
// reopened.
func (s *Store) EnqueueFinalization(ctx context.Context, market string, signatureCount, eligibleCount int, outcome uint8, thresholdMet bool) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO finalization_queue
			(market_address, signature_count, eligible_count, proposal_outcome, threshold_met, last_checked_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (market_address) DO UPDATE SET
			signature_count = EXCLUDED.signature_count,
			eligible_count = EXCLUDED.eligible_count,
			proposal_outcome = EXCLUDED.proposal_outcome,
			threshold_met = EXCLUDED.threshold_met,
			last_checked_at = now()
		WHERE finalization_queue.completed_at IS NULL`,
		NormalizeAddress(market), signatureCount, eligibleCount, outcome, thresholdMet)
	return errors.Wrap(err, "could not enqueue finalization")
}

const queueColumns = `market_address, signature_count, eligible_count, proposal_outcome,
	threshold_met, last_checked_at, attempted_at, completed_at, last_error`

func scanQueueEntry(row interface{ Scan(...interface{}) error }) (*QueueEntry, error) {
	var e QueueEntry
	var attempted, completed sql.NullTime
	if err := row.Scan(&e.MarketAddress, &e.SignatureCount, &e.EligibleCount, &e.ProposalOutcome,
		&e.ThresholdMet, &e.LastCheckedAt, &attempted, &completed, &e.LastError); err != nil {
		return nil, err
	}
	if attempted.Valid {
		t := attempted.Time
		e.AttemptedAt = &t
	}
	if completed.Valid {
		t := completed.Time
		e.CompletedAt = &t
	}
	return &e, nil
}

// PendingFinalizations lists non-completed queue entries, oldest check first.
func (s *Store) PendingFinalizations(ctx context.Context, limit int) ([]*QueueEntry, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+queueColumns+` FROM finalization_queue
		WHERE completed_at IS NULL
		ORDER BY last_checked_at LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "could not list pending finalizations")
	}
	defer rows.Close()

	var entries []*QueueEntry
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, "could not scan queue entry")
		}
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "queue rows")
}

// GetQueueEntry fetches one entry. Returns (nil, nil) when absent.
func (s *Store) GetQueueEntry(ctx context.Context, market string) (*QueueEntry, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+queueColumns+` FROM finalization_queue WHERE market_address = $1`,
		NormalizeAddress(market))
	e, err := scanQueueEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch queue entry")
	}
	return e, nil
}

// MarkFinalizationAttempted records a failed attempt; the entry stays
// pending for the next sweep.
func (s *Store) MarkFinalizationAttempted(ctx context.Context, market, errorMessage string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		UPDATE finalization_queue
		SET attempted_at = now(), last_checked_at = now(), last_error = $2
		WHERE market_address = $1 AND completed_at IS NULL`,
		NormalizeAddress(market), errorMessage)
	return errors.Wrap(err, "could not mark finalization attempted")
}

// MarkFinalizationCompleted transitions an entry to its terminal state.
func (s *Store) MarkFinalizationCompleted(ctx context.Context, market string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		UPDATE finalization_queue
		SET completed_at = now(), last_checked_at = now(), last_error = ''
		WHERE market_address = $1 AND completed_at IS NULL`,
		NormalizeAddress(market))
	return errors.Wrap(err, "could not mark finalization completed")
}

// TouchFinalization refreshes last_checked_at for a not-yet-ready entry.
func (s *Store) TouchFinalization(ctx context.Context, market string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		UPDATE finalization_queue SET last_checked_at = now()
		WHERE market_address = $1 AND completed_at IS NULL`,
		NormalizeAddress(market))
	return errors.Wrap(err, "could not touch queue entry")
}

// CountPendingFinalizations counts non-completed entries.
func (s *Store) CountPendingFinalizations(ctx context.Context) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM finalization_queue WHERE completed_at IS NULL`).Scan(&n)
	return n, errors.Wrap(err, "could not count pending finalizations")
}
