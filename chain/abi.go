package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ABI fragments for the market and factory contracts. The contracts are a
// fixed dependency; only the entry points the relayer touches are declared.
const marketABIJSON = `[
	{"type":"function","name":"getMarketInfo","stateMutability":"view","inputs":[],"outputs":[
		{"name":"topic","type":"string"},
		{"name":"threshold","type":"uint256"},
		{"name":"stakingToken","type":"address"},
		{"name":"participantCount","type":"uint256"},
		{"name":"totalStaked","type":"uint256"},
		{"name":"status","type":"uint8"},
		{"name":"createdAt","type":"uint256"},
		{"name":"proposedAt","type":"uint256"},
		{"name":"resolvedAt","type":"uint256"}]},
	{"type":"function","name":"getProposal","stateMutability":"view","inputs":[],"outputs":[
		{"name":"proposer","type":"address"},
		{"name":"outcome","type":"uint256"},
		{"name":"disputeUntil","type":"uint256"},
		{"name":"evidenceHash","type":"string"},
		{"name":"attestationCount","type":"uint256"},
		{"name":"isDisputed","type":"bool"},
		{"name":"createdAt","type":"uint256"}]},
	{"type":"function","name":"getParticipants","stateMutability":"view","inputs":[],"outputs":[
		{"name":"wallets","type":"address[]"},
		{"name":"stakes","type":"uint256[]"},
		{"name":"outcomes","type":"uint256[]"},
		{"name":"hasAttested","type":"bool[]"}]},
	{"type":"function","name":"finalizeMarket","stateMutability":"nonpayable","inputs":[
		{"name":"signatures","type":"bytes[]"},
		{"name":"nonces","type":"uint256[]"},
		{"name":"signers","type":"address[]"}],"outputs":[]}
]`

const factoryABIJSON = `[
	{"type":"function","name":"getAllMarkets","stateMutability":"view","inputs":[],"outputs":[
		{"name":"markets","type":"address[]"}]},
	{"type":"function","name":"predictMarketAddress","stateMutability":"view","inputs":[
		{"name":"topic","type":"string"},
		{"name":"threshold","type":"uint256"},
		{"name":"stakingToken","type":"address"},
		{"name":"minStake","type":"uint256"},
		{"name":"salt","type":"bytes32"}],"outputs":[
		{"name":"predicted","type":"address"}]}
]`

var (
	marketABI  = mustParseABI(marketABIJSON)
	factoryABI = mustParseABI(factoryABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
