package api

import (
	"encoding/hex"
	"time"

	"github.com/sidebetlabs/relayer/db"
)

// View shaping. Addresses leave the API lower-case; big integers leave as
// decimal strings; timestamps leave as RFC 3339 for wall time and seconds
// for chain time.

func marketView(m *db.Market, proposal *db.Proposal) M {
	v := M{
		"address":          m.Address,
		"topic":            m.Topic,
		"threshold":        m.Threshold,
		"stakingToken":     m.StakingToken,
		"participantCount": m.ParticipantCount,
		"totalStaked":      m.TotalStaked.String(),
		"status":           int(m.Status),
		"statusLabel":      m.Status.String(),
		"createdAt":        m.CreatedAtChain,
		"proposedAt":       m.ProposedAtChain,
		"resolvedAt":       m.ResolvedAtChain,
		"lastSyncedAt":     m.LastSyncedAt.UTC().Format(time.RFC3339),
	}
	if proposal != nil {
		v["proposal"] = proposalView(proposal)
	}
	return v
}

func proposalView(p *db.Proposal) M {
	return M{
		"id":               p.ID,
		"market":           p.MarketAddress,
		"proposer":         p.Proposer,
		"outcome":          p.Outcome,
		"disputeUntil":     p.DisputeUntil,
		"evidenceHash":     p.EvidenceHash,
		"attestationCount": p.AttestationCount,
		"isDisputed":       p.IsDisputed,
		"createdAt":        p.CreatedAtChain,
	}
}

func attestationView(a *db.Attestation) M {
	return M{
		"id":          a.ID,
		"market":      a.MarketAddress,
		"proposalId":  a.ProposalID,
		"signer":      a.Signer,
		"outcome":     a.Outcome,
		"nonce":       a.Nonce.String(),
		"signature":   "0x" + hex.EncodeToString(a.Signature),
		"submittedAt": a.SubmittedAt.UTC().Format(time.RFC3339),
	}
}

func participantView(p *db.Participant) M {
	return M{
		"market":      p.MarketAddress,
		"wallet":      p.Wallet,
		"stake":       p.Stake.String(),
		"outcome":     p.Outcome,
		"hasAttested": p.HasAttested,
	}
}

func queueEntryView(e *db.QueueEntry) M {
	v := M{
		"market":          e.MarketAddress,
		"signatureCount":  e.SignatureCount,
		"eligibleCount":   e.EligibleCount,
		"proposalOutcome": e.ProposalOutcome,
		"thresholdMet":    e.ThresholdMet,
		"lastCheckedAt":   e.LastCheckedAt.UTC().Format(time.RFC3339),
		"lastError":       e.LastError,
	}
	if e.AttemptedAt != nil {
		v["attemptedAt"] = e.AttemptedAt.UTC().Format(time.RFC3339)
	}
	if e.CompletedAt != nil {
		v["completedAt"] = e.CompletedAt.UTC().Format(time.RFC3339)
	}
	return v
}

func syncLogView(e *db.SyncLogEntry) M {
	return M{
		"id":        e.ID,
		"operation": e.Operation,
		"market":    e.MarketAddress,
		"status":    e.Status,
		"message":   e.Message,
		"createdAt": e.CreatedAt.UTC().Format(time.RFC3339),
	}
}
