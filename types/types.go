// Package types holds the chain-facing value types shared by the gateway,
// the store and the services. Values here mirror what the market contract
// reports; the store is the system of record for everything else.
package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MarketStatus mirrors the contract's market lifecycle enum.
type MarketStatus uint8

// Market lifecycle states. The ordering is part of the contract ABI.
const (
	StatusOpen MarketStatus = iota
	StatusProposed
	StatusResolved
	StatusDisputed
	StatusCancelled
)

// String implements fmt.Stringer.
func (s MarketStatus) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusProposed:
		return "proposed"
	case StatusResolved:
		return "resolved"
	case StatusDisputed:
		return "disputed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can occur.
func (s MarketStatus) Terminal() bool {
	return s == StatusResolved || s == StatusCancelled
}

// MarketInfo is the market contract's self-description.
type MarketInfo struct {
	Address      common.Address
	Topic        string
	Threshold    uint8 // percent, 51..99
	StakingToken common.Address
	Participants uint64
	TotalStaked  *big.Int
	Status       MarketStatus
	CreatedAt    uint64 // chain time, seconds
	ProposedAt   uint64
	ResolvedAt   uint64
}

// ChainProposal is the contract's current proposal, if any.
type ChainProposal struct {
	Proposer         common.Address
	Outcome          uint8
	DisputeUntil     uint64 // chain time, seconds
	EvidenceHash     string
	AttestationCount uint64
	IsDisputed       bool
	CreatedAt        uint64
}

// ChainParticipant is one staked participant as reported by the contract.
type ChainParticipant struct {
	Wallet      common.Address
	Stake       *big.Int
	Outcome     uint8
	HasAttested bool
}
