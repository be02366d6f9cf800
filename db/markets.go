package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/sidebetlabs/relayer/types"
)

// UpsertMarket inserts or refreshes a market mirror row and stamps
// last_synced_at. Idempotent; concurrent syncs of the same market are safe.
func (s *Store) UpsertMarket(ctx context.Context, info *types.MarketInfo) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO markets
			(address, topic, threshold, staking_token, participant_count, total_staked,
			 status, created_at_chain, proposed_at_chain, resolved_at_chain, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (address) DO UPDATE SET
			topic = EXCLUDED.topic,
			threshold = EXCLUDED.threshold,
			staking_token = EXCLUDED.staking_token,
			participant_count = EXCLUDED.participant_count,
			total_staked = EXCLUDED.total_staked,
			status = EXCLUDED.status,
			created_at_chain = EXCLUDED.created_at_chain,
			proposed_at_chain = EXCLUDED.proposed_at_chain,
			resolved_at_chain = EXCLUDED.resolved_at_chain,
			last_synced_at = now()`,
		NormalizeAddress(info.Address.Hex()), info.Topic, info.Threshold,
		NormalizeAddress(info.StakingToken.Hex()), info.Participants,
		info.TotalStaked.String(), info.Status,
		info.CreatedAt, info.ProposedAt, info.ResolvedAt,
	)
	return errors.Wrap(err, "could not upsert market")
}

const marketColumns = `address, topic, threshold, staking_token, participant_count,
	total_staked::text, status, created_at_chain, proposed_at_chain, resolved_at_chain, last_synced_at`

func scanMarket(row interface{ Scan(...interface{}) error }) (*Market, error) {
	var m Market
	var staked string
	if err := row.Scan(&m.Address, &m.Topic, &m.Threshold, &m.StakingToken,
		&m.ParticipantCount, &staked, &m.Status,
		&m.CreatedAtChain, &m.ProposedAtChain, &m.ResolvedAtChain, &m.LastSyncedAt); err != nil {
		return nil, err
	}
	var err error
	if m.TotalStaked, err = parseNumeric(staked); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMarket fetches a market by address. Returns (nil, nil) when unknown.
func (s *Store) GetMarket(ctx context.Context, address string) (*Market, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+marketColumns+` FROM markets WHERE address = $1`,
		NormalizeAddress(address))
	m, err := scanMarket(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch market")
	}
	return m, nil
}

// ListMarkets returns markets ordered by chain creation time, newest first,
// optionally filtered by status.
func (s *Store) ListMarkets(ctx context.Context, status *types.MarketStatus, limit, offset int) ([]*Market, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + marketColumns + ` FROM markets`
	args := []interface{}{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at_chain DESC, address`
	args = append(args, limit, offset)
	if status != nil {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "could not list markets")
	}
	defer rows.Close()

	var markets []*Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, errors.Wrap(err, "could not scan market")
		}
		markets = append(markets, m)
	}
	return markets, errors.Wrap(rows.Err(), "market rows")
}

// CountMarkets returns the total market count.
func (s *Store) CountMarkets(ctx context.Context) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM markets`).Scan(&n)
	return n, errors.Wrap(err, "could not count markets")
}

// CountMarketsByStatus groups market counts by lifecycle status.
func (s *Store) CountMarketsByStatus(ctx context.Context) (map[types.MarketStatus]int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT status, count(*) FROM markets GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "could not count markets by status")
	}
	defer rows.Close()

	counts := make(map[types.MarketStatus]int)
	for rows.Next() {
		var status types.MarketStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(err, "could not scan status count")
		}
		counts[status] = n
	}
	return counts, errors.Wrap(rows.Err(), "status count rows")
}

// StaleMarketAddresses returns addresses of non-terminal markets whose
// mirror is older than the given staleness.
func (s *Store) StaleMarketAddresses(ctx context.Context, staleness time.Duration) ([]string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT address FROM markets
		WHERE last_synced_at < now() - make_interval(secs => $1) AND status NOT IN ($2, $3)
		ORDER BY last_synced_at`,
		staleness.Seconds(), types.StatusResolved, types.StatusCancelled)
	if err != nil {
		return nil, errors.Wrap(err, "could not query stale markets")
	}
	defer rows.Close()
	return collectStrings(rows)
}

// AllMarketAddresses returns every known market address.
func (s *Store) AllMarketAddresses(ctx context.Context) ([]string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT address FROM markets`)
	if err != nil {
		return nil, errors.Wrap(err, "could not query market addresses")
	}
	defer rows.Close()
	return collectStrings(rows)
}

func collectStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "could not scan row")
		}
		out = append(out, v)
	}
	return out, errors.Wrap(rows.Err(), "rows")
}
