package config

import (
	"github.com/urfave/cli/v2"
)

// Flags declared here resolve from the command line first and fall back to
// the environment variable named in EnvVars.
var (
	// PortFlag is the port the HTTP API listens on.
	PortFlag = &cli.IntFlag{
		Name:    "port",
		Usage:   "Port for the relayer HTTP API",
		Value:   3000,
		EnvVars: []string{"PORT"},
	}
	// DatabaseURLFlag points at the Postgres instance backing the store.
	DatabaseURLFlag = &cli.StringFlag{
		Name:    "database-url",
		Usage:   "Postgres connection string for the relayer store",
		EnvVars: []string{"DATABASE_URL"},
	}
	// RPCURLFlag points at the chain JSON-RPC endpoint.
	RPCURLFlag = &cli.StringFlag{
		Name:    "rpc-url",
		Usage:   "Chain JSON-RPC endpoint",
		EnvVars: []string{"RPC_URL"},
	}
	// ChainIDFlag is the EIP-155 chain id used in the typed-data domain.
	ChainIDFlag = &cli.Uint64Flag{
		Name:    "chain-id",
		Usage:   "Chain id of the settlement chain",
		EnvVars: []string{"CHAIN_ID"},
	}
	// RelayerPrivateKeyFlag is the hot wallet used for finalize transactions.
	RelayerPrivateKeyFlag = &cli.StringFlag{
		Name:    "relayer-private-key",
		Usage:   "Hex-encoded private key of the relayer hot wallet",
		EnvVars: []string{"RELAYER_PRIVATE_KEY"},
	}
	// FactoryAddressFlag is the optional market factory contract.
	FactoryAddressFlag = &cli.StringFlag{
		Name:    "factory-address",
		Usage:   "Address of the market factory contract (optional)",
		EnvVars: []string{"FACTORY_ADDRESS"},
	}
	// MinSignaturesFlag is the global floor on attestations before finalize.
	MinSignaturesFlag = &cli.IntFlag{
		Name:    "min-signatures-threshold",
		Usage:   "Global minimum attestation count required for finalization",
		Value:   3,
		EnvVars: []string{"MIN_SIGNATURES_THRESHOLD"},
	}
	// MaxProposalAgeFlag bounds how long an undercollected proposal may age.
	MaxProposalAgeFlag = &cli.IntFlag{
		Name:    "max-proposal-age-hours",
		Usage:   "Age in hours after which a proposal is swept as stale",
		Value:   24,
		EnvVars: []string{"MAX_PROPOSAL_AGE_HOURS"},
	}
	// RateLimitWindowFlag is the default-tier rate limit window.
	RateLimitWindowFlag = &cli.IntFlag{
		Name:    "rate-limit-window-ms",
		Usage:   "Rate limit window in milliseconds",
		Value:   60000,
		EnvVars: []string{"RATE_LIMIT_WINDOW_MS"},
	}
	// RateLimitMaxFlag is the default-tier request budget per window.
	RateLimitMaxFlag = &cli.IntFlag{
		Name:    "rate-limit-max-requests",
		Usage:   "Maximum requests per window for the default tier",
		Value:   100,
		EnvVars: []string{"RATE_LIMIT_MAX_REQUESTS"},
	}
	// AllowedOriginsFlag configures CORS.
	AllowedOriginsFlag = &cli.StringFlag{
		Name:    "allowed-origins",
		Usage:   "Comma-separated list of origins allowed by CORS",
		Value:   "*",
		EnvVars: []string{"ALLOWED_ORIGINS"},
	}
	// SyncStalenessFlag controls when a market is considered stale.
	SyncStalenessFlag = &cli.IntFlag{
		Name:    "sync-staleness-minutes",
		Usage:   "Minutes after which a market's mirror is considered stale",
		Value:   5,
		EnvVars: []string{"SYNC_STALENESS_MINUTES"},
	}
	// EnvironmentFlag gates development-only API routes.
	EnvironmentFlag = &cli.StringFlag{
		Name:    "environment",
		Usage:   "Deployment environment (development or production)",
		Value:   "production",
		EnvVars: []string{"ENVIRONMENT"},
	}
	// VerbosityFlag sets the logging level.
	VerbosityFlag = &cli.StringFlag{
		Name:    "verbosity",
		Usage:   "Logging verbosity (trace, debug, info, warn, error, fatal)",
		Value:   "info",
		EnvVars: []string{"VERBOSITY"},
	}
)

// Flags is the full flag set of the relayer command.
var Flags = []cli.Flag{
	PortFlag,
	DatabaseURLFlag,
	RPCURLFlag,
	ChainIDFlag,
	RelayerPrivateKeyFlag,
	FactoryAddressFlag,
	MinSignaturesFlag,
	MaxProposalAgeFlag,
	RateLimitWindowFlag,
	RateLimitMaxFlag,
	AllowedOriginsFlag,
	SyncStalenessFlag,
	EnvironmentFlag,
	VerbosityFlag,
}
