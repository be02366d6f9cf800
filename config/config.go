// Package config resolves the relayer's immutable runtime configuration from
// command-line flags with environment fallbacks. The configuration is read
// once at startup; there is no hot reload.
package config

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

// Config is the immutable runtime configuration of the relayer process.
type Config struct {
	Port              int
	DatabaseURL       string
	RPCURL            string
	ChainID           *big.Int
	RelayerPrivateKey string
	FactoryAddress    common.Address
	HasFactory        bool

	MinSignaturesThreshold int
	MaxProposalAge         time.Duration
	SyncStaleness          time.Duration

	RateLimitWindow      time.Duration
	RateLimitMaxRequests int
	// Write tier: attestation submission and sync triggers.
	WriteRateLimitWindow      time.Duration
	WriteRateLimitMaxRequests int

	AllowedOrigins []string
	Environment    string
}

// Development reports whether development-only routes are enabled.
func (c *Config) Development() bool {
	return strings.EqualFold(c.Environment, "development")
}

// FromCLI builds a Config from the cli context, validating required values.
func FromCLI(cliCtx *cli.Context) (*Config, error) {
	cfg := &Config{
		Port:                      cliCtx.Int(PortFlag.Name),
		DatabaseURL:               cliCtx.String(DatabaseURLFlag.Name),
		RPCURL:                    cliCtx.String(RPCURLFlag.Name),
		RelayerPrivateKey:         strings.TrimPrefix(cliCtx.String(RelayerPrivateKeyFlag.Name), "0x"),
		MinSignaturesThreshold:    cliCtx.Int(MinSignaturesFlag.Name),
		MaxProposalAge:            time.Duration(cliCtx.Int(MaxProposalAgeFlag.Name)) * time.Hour,
		SyncStaleness:             time.Duration(cliCtx.Int(SyncStalenessFlag.Name)) * time.Minute,
		RateLimitWindow:           time.Duration(cliCtx.Int(RateLimitWindowFlag.Name)) * time.Millisecond,
		RateLimitMaxRequests:      cliCtx.Int(RateLimitMaxFlag.Name),
		WriteRateLimitWindow:      time.Minute,
		WriteRateLimitMaxRequests: 10,
		Environment:               cliCtx.String(EnvironmentFlag.Name),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database-url is required")
	}
	if cfg.RPCURL == "" {
		return nil, errors.New("rpc-url is required")
	}
	if !cliCtx.IsSet(ChainIDFlag.Name) {
		return nil, errors.New("chain-id is required")
	}
	cfg.ChainID = new(big.Int).SetUint64(cliCtx.Uint64(ChainIDFlag.Name))
	if cfg.RelayerPrivateKey == "" {
		return nil, errors.New("relayer-private-key is required")
	}
	if cfg.MinSignaturesThreshold < 1 {
		return nil, errors.Errorf("min-signatures-threshold must be positive, got %d", cfg.MinSignaturesThreshold)
	}

	if raw := cliCtx.String(FactoryAddressFlag.Name); raw != "" {
		if !common.IsHexAddress(raw) {
			return nil, errors.Errorf("invalid factory address %q", raw)
		}
		cfg.FactoryAddress = common.HexToAddress(raw)
		cfg.HasFactory = true
	}

	for _, origin := range strings.Split(cliCtx.String(AllowedOriginsFlag.Name), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	return cfg, nil
}
