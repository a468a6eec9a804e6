// internal/config/config_test.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testTreasury = solana.NewWallet().PublicKey().String()
	testOperator = solana.NewWallet().PublicKey().String()
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "Valid config with defaults",
			content: fmt.Sprintf(`{
    "treasury": %q,
    "operator": %q,
    "debug_logging": true
}`, testTreasury, testOperator),
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, testTreasury, cfg.Treasury)
				assert.Equal(t, DefaultGraduationThreshold, cfg.GraduationThreshold)
				assert.Equal(t, uint64(DefaultWrapPerRT), cfg.WrapPerRT)
				assert.Equal(t, DefaultEventBuffer, cfg.EventBuffer)
				assert.Equal(t, DefaultLogFile, cfg.LogFile)
				assert.True(t, cfg.DebugLogging)
				assert.Equal(t, "69000000000000", cfg.Threshold().Dec())
			},
		},
		{
			name: "Explicit values",
			content: fmt.Sprintf(`{
    "treasury": %q,
    "operator": %q,
    "graduation_threshold": "5000",
    "wrap_per_rt": 1000000000000000000,
    "event_buffer": 16,
    "postgres_url": "postgres://launchpad@localhost:5432/launchpad",
    "metrics_addr": ":9090"
}`, testTreasury, testOperator),
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "5000", cfg.Threshold().Dec())
				assert.Equal(t, uint64(1_000_000_000_000_000_000), cfg.WrapPerRT)
				assert.Equal(t, 16, cfg.EventBuffer)
				assert.Equal(t, ":9090", cfg.MetricsAddr)
			},
		},
		{
			name:    "Missing treasury",
			content: fmt.Sprintf(`{"operator": %q}`, testOperator),
			wantErr: "missing treasury",
		},
		{
			name:    "Bad operator",
			content: fmt.Sprintf(`{"treasury": %q, "operator": "not-a-key"}`, testTreasury),
			wantErr: "invalid operator address",
		},
		{
			name: "Negative threshold",
			content: fmt.Sprintf(`{"treasury": %q, "operator": %q, "graduation_threshold": "-1"}`,
				testTreasury, testOperator),
			wantErr: "graduation_threshold",
		},
		{
			name: "Zero wrap ratio",
			content: fmt.Sprintf(`{"treasury": %q, "operator": %q, "wrap_per_rt": 0}`,
				testTreasury, testOperator),
			wantErr: "invalid wrap_per_rt",
		},
		{
			name: "Wrong database scheme",
			content: fmt.Sprintf(`{"treasury": %q, "operator": %q, "postgres_url": "mysql://localhost/db"}`,
				testTreasury, testOperator),
			wantErr: "postgres_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, tt.content))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfigEnvironmentOverride(t *testing.T) {
	path := writeConfig(t, fmt.Sprintf(`{"treasury": %q, "operator": %q}`, testTreasury, testOperator))

	override := solana.NewWallet().PublicKey().String()
	t.Setenv("LAUNCHPAD_TREASURY", override)
	t.Setenv("LAUNCHPAD_GRADUATION_THRESHOLD", "123")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, override, cfg.Treasury)
	assert.Equal(t, "123", cfg.GraduationThreshold)
}

func TestLoadConfigWithoutFile(t *testing.T) {
	t.Setenv("LAUNCHPAD_TREASURY", testTreasury)
	t.Setenv("LAUNCHPAD_OPERATOR", testOperator)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	programID, treasury, operator, err := cfg.Addresses()
	require.NoError(t, err)
	assert.True(t, programID.IsZero())
	assert.Equal(t, testTreasury, treasury.String())
	assert.Equal(t, testOperator, operator.String())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
