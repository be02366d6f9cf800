// Package attestation implements the authoritative ingestion path for
// attestation signatures: verification, authorization against the mirrored
// market state, persistence and threshold accounting.
package attestation

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sidebetlabs/relayer/db"
	"github.com/sidebetlabs/relayer/errcode"
	"github.com/sidebetlabs/relayer/types"
)

var log = logrus.WithField("prefix", "attestation")

// Verifier recovers and checks typed-data signatures. Implemented by the
// chain gateway.
type Verifier interface {
	VerifyAttestation(signature []byte, claimedSigner string, market common.Address, outcome uint8, nonce *big.Int) bool
}

// Syncer performs a one-shot market sync, used when an attestation arrives
// for a market the store has not mirrored yet.
type Syncer interface {
	SyncMarket(ctx context.Context, market common.Address) error
}

// Database is the slice of the store this service uses.
type Database interface {
	GetMarket(ctx context.Context, address string) (*db.Market, error)
	GetParticipant(ctx context.Context, market, wallet string) (*db.Participant, error)
	GetActiveProposal(ctx context.Context, market string) (*db.Proposal, error)
	CreateAttestation(ctx context.Context, a *db.Attestation) (int64, error)
	CountValidAttestations(ctx context.Context, market string, outcome uint8) (int, error)
	SetProposalAttestationCount(ctx context.Context, proposalID int64, count int) error
	CountEligibleParticipants(ctx context.Context, market string, outcome uint8) (int, error)
	EnqueueFinalization(ctx context.Context, market string, signatureCount, eligibleCount int, outcome uint8, thresholdMet bool) error
	GetAttestations(ctx context.Context, market string, outcome *uint8) ([]*db.Attestation, error)
}

// Service validates and stores attestations and keeps the finalization
// queue fed.
type Service struct {
	verifier      Verifier
	syncer        Syncer
	store         Database
	minSignatures int
}

// New builds the signature service.
func New(verifier Verifier, syncer Syncer, store Database, minSignatures int) *Service {
	return &Service{verifier: verifier, syncer: syncer, store: store, minSignatures: minSignatures}
}

// Result reports the outcome of an accepted submission.
type Result struct {
	AttestationID      int64
	SignatureCount     int
	EligibleCount      int
	RequiredSignatures int
	Enqueued           bool
}

// Submit runs the full ingest pipeline for one attestation. Errors carry
// taxonomy kinds for the HTTP layer.
func (s *Service) Submit(ctx context.Context, market common.Address, signer string, outcome uint8, nonce *big.Int, signature []byte) (*Result, error) {
	addr := strings.ToLower(market.Hex())
	signer = strings.ToLower(signer)

	if !s.verifier.VerifyAttestation(signature, signer, market, outcome, nonce) {
		ingestTotal.WithLabelValues("signature_invalid").Inc()
		return nil, errcode.Newf(errcode.SignatureInvalid,
			"signature does not recover to %s for market %s", signer, addr)
	}

	stored, err := s.store.GetMarket(ctx, addr)
	if err != nil {
		return nil, errors.Wrap(err, "could not look up market")
	}
	if stored == nil {
		// First contact with this market: mirror it synchronously before
		// judging participation.
		if err := s.syncer.SyncMarket(ctx, market); err != nil {
			log.WithError(err).WithField("market", addr).Warn("One-shot sync for unknown market failed")
		}
		if stored, err = s.store.GetMarket(ctx, addr); err != nil {
			return nil, errors.Wrap(err, "could not look up market after sync")
		}
		if stored == nil {
			ingestTotal.WithLabelValues("not_found").Inc()
			return nil, errcode.Newf(errcode.NotFound, "unknown market %s", addr)
		}
	}

	participant, err := s.store.GetParticipant(ctx, addr, signer)
	if err != nil {
		return nil, errors.Wrap(err, "could not look up participant")
	}
	if participant == nil {
		ingestTotal.WithLabelValues("not_participant").Inc()
		return nil, errcode.Newf(errcode.NotParticipant, "%s holds no stake in market %s", signer, addr)
	}
	if participant.Outcome != outcome {
		ingestTotal.WithLabelValues("outcome_mismatch").Inc()
		return nil, errcode.Newf(errcode.OutcomeMismatch,
			"signer staked outcome %d but attested %d", participant.Outcome, outcome)
	}

	proposal, err := s.store.GetActiveProposal(ctx, addr)
	if err != nil {
		return nil, errors.Wrap(err, "could not look up proposal")
	}
	if proposal == nil {
		ingestTotal.WithLabelValues("no_active_proposal").Inc()
		return nil, errcode.Newf(errcode.NoActiveProposal, "market %s has no active proposal", addr)
	}
	if proposal.Outcome != outcome {
		ingestTotal.WithLabelValues("outcome_mismatch").Inc()
		return nil, errcode.Newf(errcode.OutcomeMismatch,
			"active proposal is for outcome %d, attestation is for %d", proposal.Outcome, outcome)
	}

	id, err := s.store.CreateAttestation(ctx, &db.Attestation{
		MarketAddress: addr,
		ProposalID:    proposal.ID,
		Signer:        signer,
		Outcome:       outcome,
		Nonce:         nonce,
		Signature:     signature,
	})
	if err != nil {
		if errcode.Is(err, errcode.Conflict) {
			ingestTotal.WithLabelValues("duplicate").Inc()
		}
		return nil, err
	}

	// Recount from the store rather than incrementing, so racing inserts
	// converge on the correct aggregate.
	count, err := s.store.CountValidAttestations(ctx, addr, proposal.Outcome)
	if err != nil {
		return nil, errors.Wrap(err, "could not recount attestations")
	}
	if err := s.store.SetProposalAttestationCount(ctx, proposal.ID, count); err != nil {
		return nil, errors.Wrap(err, "could not cache attestation count")
	}

	eligible, err := s.store.CountEligibleParticipants(ctx, addr, proposal.Outcome)
	if err != nil {
		return nil, errors.Wrap(err, "could not count eligible participants")
	}
	required := types.RequiredSignatures(eligible, stored.Threshold, s.minSignatures)

	result := &Result{
		AttestationID:      id,
		SignatureCount:     count,
		EligibleCount:      eligible,
		RequiredSignatures: required,
	}
	if count >= required {
		if err := s.store.EnqueueFinalization(ctx, addr, count, eligible, proposal.Outcome, true); err != nil {
			return nil, errors.Wrap(err, "could not enqueue finalization")
		}
		result.Enqueued = true
		log.WithFields(logrus.Fields{
			"market":     addr,
			"signatures": count,
			"required":   required,
		}).Info("Attestation threshold reached, market queued for finalization")
	}

	ingestTotal.WithLabelValues("ok").Inc()
	log.WithFields(logrus.Fields{
		"market": addr,
		"signer": signer,
		"count":  count,
	}).Debug("Attestation stored")
	return result, nil
}

// Counts summarizes attestation progress for a market.
type Counts struct {
	Yes                int
	No                 int
	EligibleCount      int
	RequiredSignatures int
	ProposalOutcome    *uint8
}

// CountsForMarket reports yes/no attestation counts and, when an active
// proposal exists, the threshold computation for its outcome.
func (s *Service) CountsForMarket(ctx context.Context, market string) (*Counts, error) {
	market = strings.ToLower(market)
	stored, err := s.store.GetMarket(ctx, market)
	if err != nil {
		return nil, errors.Wrap(err, "could not look up market")
	}
	if stored == nil {
		return nil, errcode.Newf(errcode.NotFound, "unknown market %s", market)
	}

	yes, err := s.store.CountValidAttestations(ctx, market, 1)
	if err != nil {
		return nil, err
	}
	no, err := s.store.CountValidAttestations(ctx, market, 0)
	if err != nil {
		return nil, err
	}
	counts := &Counts{Yes: yes, No: no}

	proposal, err := s.store.GetActiveProposal(ctx, market)
	if err != nil {
		return nil, err
	}
	if proposal != nil {
		eligible, err := s.store.CountEligibleParticipants(ctx, market, proposal.Outcome)
		if err != nil {
			return nil, err
		}
		outcome := proposal.Outcome
		counts.ProposalOutcome = &outcome
		counts.EligibleCount = eligible
		counts.RequiredSignatures = types.RequiredSignatures(eligible, stored.Threshold, s.minSignatures)
	}
	return counts, nil
}
