package finalizer

import (
	"context"

	"github.com/pkg/errors"

	"github.com/sidebetlabs/relayer/types"
)

// IsReady evaluates the finalization readiness predicate against the store:
// a live, non-terminal market with an active proposal whose dispute window
// has passed and enough valid attestations for the proposed outcome. The
// dispute boundary is strict: a check at exactly disputeUntil passes only
// once chain time has reached the boundary (now >= disputeUntil).
func (s *Service) IsReady(ctx context.Context, market string, chainNow uint64) (bool, string, error) {
	stored, err := s.store.GetMarket(ctx, market)
	if err != nil {
		return false, "", errors.Wrap(err, "could not load market")
	}
	if stored == nil {
		return false, "market unknown", nil
	}
	if stored.Status.Terminal() {
		return false, "market is " + stored.Status.String(), nil
	}

	proposal, err := s.store.GetActiveProposal(ctx, market)
	if err != nil {
		return false, "", errors.Wrap(err, "could not load proposal")
	}
	if proposal == nil {
		return false, "no active proposal", nil
	}
	if chainNow < proposal.DisputeUntil {
		return false, "dispute window open", nil
	}

	count, err := s.store.CountValidAttestations(ctx, market, proposal.Outcome)
	if err != nil {
		return false, "", errors.Wrap(err, "could not count attestations")
	}
	eligible, err := s.store.CountEligibleParticipants(ctx, market, proposal.Outcome)
	if err != nil {
		return false, "", errors.Wrap(err, "could not count eligible participants")
	}
	required := types.RequiredSignatures(eligible, stored.Threshold, s.minSignatures)
	if count < required {
		return false, "insufficient signatures", nil
	}
	return true, "", nil
}
