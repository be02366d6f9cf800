package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func resolve(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	var cfg *Config
	var cfgErr error
	app := &cli.App{
		Flags: Flags,
		Action: func(cliCtx *cli.Context) error {
			cfg, cfgErr = FromCLI(cliCtx)
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"relayer"}, args...)))
	return cfg, cfgErr
}

func validArgs() []string {
	return []string{
		"--database-url", "postgres://relayer@localhost/relayer",
		"--rpc-url", "http://localhost:8545",
		"--chain-id", "31337",
		"--relayer-private-key", "0xabc123",
	}
}

func TestFromCLIDefaults(t *testing.T) {
	cfg, err := resolve(t, validArgs()...)
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "31337", cfg.ChainID.String())
	assert.Equal(t, "abc123", cfg.RelayerPrivateKey, "0x prefix must be stripped")
	assert.Equal(t, 3, cfg.MinSignaturesThreshold)
	assert.Equal(t, 24*time.Hour, cfg.MaxProposalAge)
	assert.Equal(t, 5*time.Minute, cfg.SyncStaleness)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 100, cfg.RateLimitMaxRequests)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.False(t, cfg.HasFactory)
	assert.False(t, cfg.Development())
}

func TestFromCLIRequiredValues(t *testing.T) {
	tests := []struct {
		name string
		drop string
	}{
		{"missing database url", "--database-url"},
		{"missing rpc url", "--rpc-url"},
		{"missing chain id", "--chain-id"},
		{"missing private key", "--relayer-private-key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var args []string
			full := validArgs()
			for i := 0; i < len(full); i += 2 {
				if full[i] == tt.drop {
					continue
				}
				args = append(args, full[i], full[i+1])
			}
			_, err := resolve(t, args...)
			assert.Error(t, err)
		})
	}
}

func TestFromCLIFactoryAddress(t *testing.T) {
	cfg, err := resolve(t, append(validArgs(),
		"--factory-address", "0x1111111111111111111111111111111111111111")...)
	require.NoError(t, err)
	assert.True(t, cfg.HasFactory)

	_, err = resolve(t, append(validArgs(), "--factory-address", "not-an-address")...)
	assert.Error(t, err)
}

func TestFromCLIAllowedOrigins(t *testing.T) {
	cfg, err := resolve(t, append(validArgs(),
		"--allowed-origins", "https://app.example.com, https://staging.example.com")...)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://app.example.com", "https://staging.example.com"}, cfg.AllowedOrigins)
}

func TestDevelopmentGate(t *testing.T) {
	cfg, err := resolve(t, append(validArgs(), "--environment", "development")...)
	require.NoError(t, err)
	assert.True(t, cfg.Development())
}
