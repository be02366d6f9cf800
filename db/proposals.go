package db

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/sidebetlabs/relayer/types"
)

// CreateProposal inserts a proposal unless a non-disputed one already exists
// for the market. Reports whether a row was created.
func (s *Store) CreateProposal(ctx context.Context, p *Proposal) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO proposals
			(market_address, proposer, outcome, dispute_until, evidence_hash,
			 attestation_count, is_disputed, created_at_chain)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7)
		ON CONFLICT (market_address) WHERE NOT is_disputed DO NOTHING`,
		NormalizeAddress(p.MarketAddress), NormalizeAddress(p.Proposer), p.Outcome,
		p.DisputeUntil, p.EvidenceHash, p.AttestationCount, p.CreatedAtChain)
	if err != nil {
		return false, errors.Wrap(err, "could not create proposal")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n > 0, nil
}

const proposalColumns = `id, market_address, proposer, outcome, dispute_until,
	evidence_hash, attestation_count, is_disputed, created_at_chain, inserted_at`

func scanProposal(row interface{ Scan(...interface{}) error }) (*Proposal, error) {
	var p Proposal
	if err := row.Scan(&p.ID, &p.MarketAddress, &p.Proposer, &p.Outcome, &p.DisputeUntil,
		&p.EvidenceHash, &p.AttestationCount, &p.IsDisputed, &p.CreatedAtChain, &p.InsertedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetActiveProposal returns the newest non-disputed proposal for a market,
// or (nil, nil) when none exists.
func (s *Store) GetActiveProposal(ctx context.Context, market string) (*Proposal, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+proposalColumns+` FROM proposals
		WHERE market_address = $1 AND NOT is_disputed
		ORDER BY id DESC LIMIT 1`,
		NormalizeAddress(market))
	p, err := scanProposal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch active proposal")
	}
	return p, nil
}

// SetProposalAttestationCount refreshes the cached aggregate after an ingest.
func (s *Store) SetProposalAttestationCount(ctx context.Context, proposalID int64, count int) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx,
		`UPDATE proposals SET attestation_count = $2 WHERE id = $1`, proposalID, count)
	return errors.Wrap(err, "could not update attestation count")
}

// MarkProposalDisputed flags a proposal as disputed, freeing the market's
// active-proposal slot.
func (s *Store) MarkProposalDisputed(ctx context.Context, proposalID int64) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx,
		`UPDATE proposals SET is_disputed = true WHERE id = $1`, proposalID)
	return errors.Wrap(err, "could not mark proposal disputed")
}

// ExpiredProposals lists non-disputed proposals whose dispute window has
// passed for markets that are not yet terminal.
func (s *Store) ExpiredProposals(ctx context.Context, chainNow uint64) ([]*Proposal, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.market_address, p.proposer, p.outcome, p.dispute_until,
			p.evidence_hash, p.attestation_count, p.is_disputed, p.created_at_chain, p.inserted_at
		FROM proposals p JOIN markets m ON m.address = p.market_address
		WHERE NOT p.is_disputed AND p.dispute_until <= $1 AND m.status NOT IN ($2, $3)`,
		chainNow, types.StatusResolved, types.StatusCancelled)
	if err != nil {
		return nil, errors.Wrap(err, "could not query expired proposals")
	}
	defer rows.Close()
	return collectProposals(rows)
}

// AgedProposals lists non-disputed proposals older than maxAgeSeconds whose
// market is still in Proposed status.
func (s *Store) AgedProposals(ctx context.Context, chainNow, maxAgeSeconds uint64) ([]*Proposal, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.market_address, p.proposer, p.outcome, p.dispute_until,
			p.evidence_hash, p.attestation_count, p.is_disputed, p.created_at_chain, p.inserted_at
		FROM proposals p JOIN markets m ON m.address = p.market_address
		WHERE NOT p.is_disputed AND p.created_at_chain + $2 <= $1 AND m.status = $3`,
		chainNow, maxAgeSeconds, types.StatusProposed)
	if err != nil {
		return nil, errors.Wrap(err, "could not query aged proposals")
	}
	defer rows.Close()
	return collectProposals(rows)
}

func collectProposals(rows *sql.Rows) ([]*Proposal, error) {
	var proposals []*Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, errors.Wrap(err, "could not scan proposal")
		}
		proposals = append(proposals, p)
	}
	return proposals, errors.Wrap(rows.Err(), "proposal rows")
}
