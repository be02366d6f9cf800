package db

import (
	"context"
	"math/big"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/sidebetlabs/relayer/errcode"
)

// uniqueViolation is the Postgres error code raised when the partial unique
// index on (market, signer, nonce) rejects a duplicate valid attestation.
const uniqueViolation = "23505"

// CreateAttestation stores a verified attestation. A duplicate valid row for
// (market, signer, nonce) surfaces as an errcode.Conflict.
func (s *Store) CreateAttestation(ctx context.Context, a *Attestation) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO attestations
			(market_address, proposal_id, signer, outcome, nonce, signature, is_valid)
		VALUES ($1, $2, $3, $4, $5, $6, true)
		RETURNING id`,
		NormalizeAddress(a.MarketAddress), a.ProposalID, NormalizeAddress(a.Signer),
		a.Outcome, a.Nonce.String(), a.Signature).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return 0, errcode.Newf(errcode.Conflict,
				"attestation already recorded for signer %s nonce %s", a.Signer, a.Nonce)
		}
		return 0, errors.Wrap(err, "could not create attestation")
	}
	return id, nil
}

// CountValidAttestations counts valid attestations for a market and outcome.
func (s *Store) CountValidAttestations(ctx context.Context, market string, outcome uint8) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM attestations
		WHERE market_address = $1 AND outcome = $2 AND is_valid`,
		NormalizeAddress(market), outcome).Scan(&n)
	return n, errors.Wrap(err, "could not count attestations")
}

const attestationColumns = `id, market_address, proposal_id, signer, outcome,
	nonce::text, signature, is_valid, submitted_at`

func scanAttestation(row interface{ Scan(...interface{}) error }) (*Attestation, error) {
	var a Attestation
	var nonce string
	if err := row.Scan(&a.ID, &a.MarketAddress, &a.ProposalID, &a.Signer, &a.Outcome,
		&nonce, &a.Signature, &a.IsValid, &a.SubmittedAt); err != nil {
		return nil, err
	}
	var err error
	if a.Nonce, err = parseNumeric(nonce); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAttestations lists valid attestations for a market in submission order,
// optionally filtered by outcome.
func (s *Store) GetAttestations(ctx context.Context, market string, outcome *uint8) ([]*Attestation, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + attestationColumns + ` FROM attestations
		WHERE market_address = $1 AND is_valid`
	args := []interface{}{NormalizeAddress(market)}
	if outcome != nil {
		query += ` AND outcome = $2`
		args = append(args, *outcome)
	}
	query += ` ORDER BY submitted_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "could not list attestations")
	}
	defer rows.Close()

	var attestations []*Attestation
	for rows.Next() {
		a, err := scanAttestation(rows)
		if err != nil {
			return nil, errors.Wrap(err, "could not scan attestation")
		}
		attestations = append(attestations, a)
	}
	return attestations, errors.Wrap(rows.Err(), "attestation rows")
}

// GetAttestationsForFinalization returns the signature bundle as three
// parallel slices in stable submission order, the shape the contract's
// finalize entry point consumes.
func (s *Store) GetAttestationsForFinalization(ctx context.Context, market string, outcome uint8) ([][]byte, []*big.Int, []string, error) {
	o := outcome
	attestations, err := s.GetAttestations(ctx, market, &o)
	if err != nil {
		return nil, nil, nil, err
	}
	signatures := make([][]byte, 0, len(attestations))
	nonces := make([]*big.Int, 0, len(attestations))
	signers := make([]string, 0, len(attestations))
	for _, a := range attestations {
		signatures = append(signatures, a.Signature)
		nonces = append(nonces, a.Nonce)
		signers = append(signers, a.Signer)
	}
	return signatures, nonces, signers, nil
}

// CountAttestations returns the total valid attestation count.
func (s *Store) CountAttestations(ctx context.Context) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM attestations WHERE is_valid`).Scan(&n)
	return n, errors.Wrap(err, "could not count attestations")
}

// DeleteAttestations removes all attestations for a market. Development
// environments only; the API layer enforces the gate.
func (s *Store) DeleteAttestations(ctx context.Context, market string) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM attestations WHERE market_address = $1`, NormalizeAddress(market))
	if err != nil {
		return 0, errors.Wrap(err, "could not delete attestations")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "rows affected")
}
