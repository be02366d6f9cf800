// Package chain implements the gateway to the settlement chain. It is the
// single point of contact with the RPC endpoint: typed reads of market
// state, EIP-712 attestation verification and finalize submission. No
// business logic lives here.
package chain

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"net"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sidebetlabs/relayer/errcode"
	rtypes "github.com/sidebetlabs/relayer/types"
)

var log = logrus.WithField("prefix", "chain")

const (
	readTimeout    = 30 * time.Second
	confirmTimeout = 60 * time.Second
)

// Gateway wraps the chain RPC client and the relayer hot wallet. It is safe
// for concurrent use; the wallet is touched only by FinalizeMarket.
type Gateway struct {
	client     *ethclient.Client
	chainID    *big.Int
	key        *ecdsa.PrivateKey
	from       common.Address
	factory    common.Address
	hasFactory bool
}

// NewGateway dials the RPC endpoint and loads the relayer key.
func NewGateway(ctx context.Context, rpcURL, privKeyHex string, chainID *big.Int, factory common.Address, hasFactory bool) (*Gateway, error) {
	key, err := crypto.HexToECDSA(privKeyHex)
	if err != nil {
		return nil, errors.Wrap(err, "invalid relayer private key")
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errcode.Wrap(err, errcode.ChainUnavailable, "could not dial chain RPC")
	}
	g := &Gateway{
		client:     client,
		chainID:    chainID,
		key:        key,
		from:       crypto.PubkeyToAddress(key.PublicKey),
		factory:    factory,
		hasFactory: hasFactory,
	}
	log.WithFields(logrus.Fields{
		"relayer": g.from.Hex(),
		"chainId": chainID.String(),
	}).Info("Connected to chain RPC")
	return g, nil
}

// Close releases the underlying RPC connection.
func (g *Gateway) Close() {
	g.client.Close()
}

// RelayerAddress returns the hot wallet address used for finalization.
func (g *Gateway) RelayerAddress() common.Address { return g.from }

// ChainID returns the configured chain id.
func (g *Gateway) ChainID() *big.Int { return new(big.Int).Set(g.chainID) }

// Connected probes the RPC endpoint and verifies the reported chain id.
func (g *Gateway) Connected(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	reported, err := g.client.ChainID(ctx)
	if err != nil {
		return errcode.Wrap(err, errcode.ChainUnavailable, "chain id probe failed")
	}
	if reported.Cmp(g.chainID) != 0 {
		return errcode.Newf(errcode.ChainUnavailable, "chain id mismatch: configured %s, endpoint reports %s", g.chainID, reported)
	}
	return nil
}

// ChainTime returns the latest block timestamp in seconds.
func (g *Gateway) ChainTime(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	header, err := g.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, errcode.Wrap(err, errcode.ChainUnavailable, "could not fetch latest header")
	}
	return header.Time, nil
}

// GetMarketInfo reads the market contract's self-description.
func (g *Gateway) GetMarketInfo(ctx context.Context, market common.Address) (*rtypes.MarketInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	contract := bind.NewBoundContract(market, marketABI, g.client, g.client, g.client)
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "getMarketInfo"); err != nil {
		return nil, classifyCallError(err, "getMarketInfo")
	}
	info := &rtypes.MarketInfo{
		Address:      market,
		Topic:        *abiString(&out[0]),
		Threshold:    uint8(abiBig(&out[1]).Uint64()),
		StakingToken: *abiAddress(&out[2]),
		Participants: abiBig(&out[3]).Uint64(),
		TotalStaked:  abiBig(&out[4]),
		Status:       rtypes.MarketStatus(*abiUint8(&out[5])),
		CreatedAt:    abiBig(&out[6]).Uint64(),
		ProposedAt:   abiBig(&out[7]).Uint64(),
		ResolvedAt:   abiBig(&out[8]).Uint64(),
	}
	return info, nil
}

// GetProposal reads the market's current proposal. Returns nil when the
// contract reports no proposer, meaning no proposal has been made yet.
func (g *Gateway) GetProposal(ctx context.Context, market common.Address) (*rtypes.ChainProposal, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	contract := bind.NewBoundContract(market, marketABI, g.client, g.client, g.client)
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "getProposal"); err != nil {
		return nil, classifyCallError(err, "getProposal")
	}
	proposer := *abiAddress(&out[0])
	if proposer == (common.Address{}) {
		return nil, nil
	}
	return &rtypes.ChainProposal{
		Proposer:         proposer,
		Outcome:          uint8(abiBig(&out[1]).Uint64()),
		DisputeUntil:     abiBig(&out[2]).Uint64(),
		EvidenceHash:     *abiString(&out[3]),
		AttestationCount: abiBig(&out[4]).Uint64(),
		IsDisputed:       *abiBool(&out[5]),
		CreatedAt:        abiBig(&out[6]).Uint64(),
	}, nil
}

// GetParticipants reads the full participant list of a market.
func (g *Gateway) GetParticipants(ctx context.Context, market common.Address) ([]rtypes.ChainParticipant, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	contract := bind.NewBoundContract(market, marketABI, g.client, g.client, g.client)
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "getParticipants"); err != nil {
		return nil, classifyCallError(err, "getParticipants")
	}
	wallets := *abiAddressSlice(&out[0])
	stakes := *abiBigSlice(&out[1])
	outcomes := *abiBigSlice(&out[2])
	attested := *abiBoolSlice(&out[3])
	if len(stakes) != len(wallets) || len(outcomes) != len(wallets) || len(attested) != len(wallets) {
		return nil, errcode.Newf(errcode.ContractCall, "getParticipants returned ragged arrays for %s", market.Hex())
	}
	participants := make([]rtypes.ChainParticipant, 0, len(wallets))
	for i := range wallets {
		participants = append(participants, rtypes.ChainParticipant{
			Wallet:      wallets[i],
			Stake:       stakes[i],
			Outcome:     uint8(outcomes[i].Uint64()),
			HasAttested: attested[i],
		})
	}
	return participants, nil
}

// GetAllMarkets lists every market the factory has deployed. Returns an
// empty slice when no factory is configured.
func (g *Gateway) GetAllMarkets(ctx context.Context) ([]common.Address, error) {
	if !g.hasFactory {
		return []common.Address{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	contract := bind.NewBoundContract(g.factory, factoryABI, g.client, g.client, g.client)
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "getAllMarkets"); err != nil {
		return nil, classifyCallError(err, "getAllMarkets")
	}
	return *abiAddressSlice(&out[0]), nil
}

// PredictMarketAddress asks the factory for the deterministic address a
// market with these parameters would deploy to.
func (g *Gateway) PredictMarketAddress(ctx context.Context, topic string, threshold uint8, token common.Address, minStake *big.Int, salt common.Hash) (common.Address, error) {
	if !g.hasFactory {
		return common.Address{}, errcode.New(errcode.NotFound, "no factory contract configured")
	}
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	contract := bind.NewBoundContract(g.factory, factoryABI, g.client, g.client, g.client)
	var out []interface{}
	err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "predictMarketAddress",
		topic, new(big.Int).SetUint64(uint64(threshold)), token, minStake, [32]byte(salt))
	if err != nil {
		return common.Address{}, classifyCallError(err, "predictMarketAddress")
	}
	return *abiAddress(&out[0]), nil
}

// FinalizeMarket submits the signature bundle and waits for one
// confirmation. The arrays must be parallel and in stable submission order.
func (g *Gateway) FinalizeMarket(ctx context.Context, market common.Address, signatures [][]byte, nonces []*big.Int, signers []common.Address) (*types.Receipt, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(g.key, g.chainID)
	if err != nil {
		return nil, errcode.Wrap(err, errcode.Internal, "could not build transactor")
	}
	opts.Context = ctx

	contract := bind.NewBoundContract(market, marketABI, g.client, g.client, g.client)
	tx, err := contract.Transact(opts, "finalizeMarket", signatures, nonces, signers)
	if err != nil {
		return nil, classifyCallError(err, "finalizeMarket")
	}
	log.WithFields(logrus.Fields{
		"market": strings.ToLower(market.Hex()),
		"tx":     tx.Hash().Hex(),
		"sigs":   len(signatures),
	}).Info("Submitted finalize transaction")

	waitCtx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, g.client, tx)
	if err != nil {
		return nil, errcode.Wrap(err, errcode.ChainUnavailable, "timed out waiting for finalize confirmation")
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, errcode.Newf(errcode.ContractCall, "finalize transaction %s reverted", tx.Hash().Hex())
	}
	return receipt, nil
}

// classifyCallError splits RPC failures into transport problems and
// contract-level rejections.
func classifyCallError(err error, method string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errcode.Wrap(err, errcode.ChainUnavailable, method+" timed out")
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return errcode.Wrap(err, errcode.ChainUnavailable, method+" transport failure")
	}
	msg := err.Error()
	if strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host") || strings.Contains(msg, "EOF") {
		return errcode.Wrap(err, errcode.ChainUnavailable, method+" transport failure")
	}
	return errcode.Wrap(err, errcode.ContractCall, method+" failed")
}
