package db

import (
	"context"
	"database/sql"
	"math/big"

	"github.com/pkg/errors"
)

// UpsertParticipant mirrors one (market, wallet) stake row from the chain,
// creating the user row lazily on first reference.
func (s *Store) UpsertParticipant(ctx context.Context, market, wallet string, stake *big.Int, outcome uint8, hasAttested bool) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	market = NormalizeAddress(market)
	wallet = NormalizeAddress(wallet)

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO users (address) VALUES ($1) ON CONFLICT (address) DO NOTHING`, wallet); err != nil {
		return errors.Wrap(err, "could not ensure user")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO participants (market_address, wallet, stake, outcome, has_attested)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (market_address, wallet) DO UPDATE SET
			stake = EXCLUDED.stake,
			outcome = EXCLUDED.outcome,
			has_attested = EXCLUDED.has_attested`,
		market, wallet, stake.String(), outcome, hasAttested)
	return errors.Wrap(err, "could not upsert participant")
}

func scanParticipant(row interface{ Scan(...interface{}) error }) (*Participant, error) {
	var p Participant
	var stake string
	if err := row.Scan(&p.MarketAddress, &p.Wallet, &stake, &p.Outcome, &p.HasAttested); err != nil {
		return nil, err
	}
	var err error
	if p.Stake, err = parseNumeric(stake); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetParticipant fetches one participant row. Returns (nil, nil) when the
// wallet holds no stake in the market.
func (s *Store) GetParticipant(ctx context.Context, market, wallet string) (*Participant, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT market_address, wallet, stake::text, outcome, has_attested
		FROM participants WHERE market_address = $1 AND wallet = $2`,
		NormalizeAddress(market), NormalizeAddress(wallet))
	p, err := scanParticipant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch participant")
	}
	return p, nil
}

// GetParticipants lists all participants of a market.
func (s *Store) GetParticipants(ctx context.Context, market string) ([]*Participant, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT market_address, wallet, stake::text, outcome, has_attested
		FROM participants WHERE market_address = $1 ORDER BY wallet`,
		NormalizeAddress(market))
	if err != nil {
		return nil, errors.Wrap(err, "could not list participants")
	}
	defer rows.Close()

	var participants []*Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, errors.Wrap(err, "could not scan participant")
		}
		participants = append(participants, p)
	}
	return participants, errors.Wrap(rows.Err(), "participant rows")
}

// CountEligibleParticipants counts participants staked on the given outcome.
func (s *Store) CountEligibleParticipants(ctx context.Context, market string, outcome uint8) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM participants WHERE market_address = $1 AND outcome = $2`,
		NormalizeAddress(market), outcome).Scan(&n)
	return n, errors.Wrap(err, "could not count eligible participants")
}

// CountParticipants returns the total participant row count.
func (s *Store) CountParticipants(ctx context.Context) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM participants`).Scan(&n)
	return n, errors.Wrap(err, "could not count participants")
}
