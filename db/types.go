package db

import (
	"math/big"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/sidebetlabs/relayer/types"
)

// Market is the persisted mirror of a market contract. Addresses are stored
// lower-case and compared lower-case everywhere.
type Market struct {
	Address          string
	Topic            string
	Threshold        uint8
	StakingToken     string
	ParticipantCount uint64
	TotalStaked      *big.Int
	Status           types.MarketStatus
	CreatedAtChain   uint64
	ProposedAtChain  uint64
	ResolvedAtChain  uint64
	LastSyncedAt     time.Time
}

// Participant is one (market, wallet) stake row.
type Participant struct {
	MarketAddress string
	Wallet        string
	Stake         *big.Int
	Outcome       uint8
	HasAttested   bool
}

// Proposal is a proposed result for a market. At most one non-disputed row
// exists per market, enforced by a partial unique index.
type Proposal struct {
	ID               int64
	MarketAddress    string
	Proposer         string
	Outcome          uint8
	DisputeUntil     uint64
	EvidenceHash     string
	AttestationCount int
	IsDisputed       bool
	CreatedAtChain   uint64
	InsertedAt       time.Time
}

// Attestation is a stored typed-data signature.
type Attestation struct {
	ID            int64
	MarketAddress string
	ProposalID    int64
	Signer        string
	Outcome       uint8
	Nonce         *big.Int
	Signature     []byte
	IsValid       bool
	SubmittedAt   time.Time
}

// QueueEntry is one market under finalization consideration. A set
// completed_at is terminal.
type QueueEntry struct {
	MarketAddress   string
	SignatureCount  int
	EligibleCount   int
	ProposalOutcome uint8
	ThresholdMet    bool
	LastCheckedAt   time.Time
	AttemptedAt     *time.Time
	CompletedAt     *time.Time
	LastError       string
}

// SyncLogEntry is one append-only operation record.
type SyncLogEntry struct {
	ID            int64
	Operation     string
	MarketAddress string
	Status        string
	Message       string
	CreatedAt     time.Time
}

// NormalizeAddress lower-cases a 0x-prefixed address for storage and lookup.
func NormalizeAddress(addr string) string {
	return strings.ToLower(addr)
}

// parseNumeric converts a NUMERIC column scanned as text into a big.Int.
func parseNumeric(raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, errors.Errorf("invalid numeric value %q", raw)
	}
	return v, nil
}
