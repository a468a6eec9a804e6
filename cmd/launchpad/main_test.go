package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchpad/internal/config"
	"github.com/rovshanmuradov/launchpad/internal/export"
)

const testScenario = `
wallets:
  - name: alice
  - name: bob
    native: "100"
sources:
  - name: song
    owner: alice
    supply: "1000"
tasks:
  - operation: launch
    wallet: alice
    source: song
    amount: "1000"
    name: Song Royalty
    symbol: wSONG
    base_price: "1"
    price_increment: "0.01"
  - task_name: bob buys
    operation: buy
    wallet: bob
    source: song
    amount: "10"
  - operation: sell
    wallet: bob
    source: song
    amount: "2"
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Treasury:            solana.NewWallet().PublicKey().String(),
		Operator:            solana.NewWallet().PublicKey().String(),
		GraduationThreshold: config.DefaultGraduationThreshold,
		// one source unit wraps into one whole token
		WrapPerRT:   1_000_000_000_000_000_000,
		PoolFeeBps:  config.DefaultPoolFeeBps,
		EventBuffer: config.DefaultEventBuffer,
	}
}

func writeScenario(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
	return path
}

func TestQuote(t *testing.T) {
	var out bytes.Buffer
	err := runQuote(&out, &quoteOptions{basePrice: "1", increment: "0.01", sold: "10", amount: "2"})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "price:           1.1\n")
	assert.Contains(t, text, "buy cost:        2.219999999\n")
	assert.Contains(t, text, "buy total:       2.242199998\n")
	assert.Contains(t, text, "price after buy: 1.12\n")
	assert.Contains(t, text, "sell proceeds:   2.179999999\n")
	assert.Contains(t, text, "sell net:        2.1582\n")
}

func TestQuoteNothingSold(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runQuote(&out, &quoteOptions{basePrice: "1", increment: "0", sold: "0", amount: "3"}))
	assert.Contains(t, out.String(), "buy cost:        3\n")
	assert.Contains(t, out.String(), "sell:            amount exceeds curve-circulating supply")
}

func TestQuoteRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		opts quoteOptions
	}{
		{"zero base price", quoteOptions{basePrice: "0", increment: "0", sold: "0", amount: "1"}},
		{"bad increment", quoteOptions{basePrice: "1", increment: "x", sold: "0", amount: "1"}},
		{"negative amount", quoteOptions{basePrice: "1", increment: "0", sold: "0", amount: "-1"}},
		{"zero amount", quoteOptions{basePrice: "1", increment: "0", sold: "0", amount: "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Error(t, runQuote(&out, &tt.opts))
		})
	}
}

func TestSimulate(t *testing.T) {
	dir := t.TempDir()
	tradeLog := filepath.Join(dir, "live.csv")
	exportDir := filepath.Join(dir, "export")

	var out bytes.Buffer
	err := runSimulate(context.Background(), &out, testConfig(t), zaptest.NewLogger(t),
		writeScenario(t, testScenario), &simulateOptions{
			tradeLog:     tradeLog,
			exportDir:    exportDir,
			exportFormat: string(export.FormatCSV),
		})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "bob buys")
	assert.Contains(t, text, "wSONG")
	assert.Contains(t, text, "trades exported to")

	f, err := os.Open(tradeLog)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, export.CSVHeaders(), rows[0])
	assert.Equal(t, "buy", rows[1][3])
	assert.Equal(t, "sell", rows[2][3])

	exported, err := filepath.Glob(filepath.Join(exportDir, "trades_all_*.csv"))
	require.NoError(t, err)
	assert.Len(t, exported, 1)
}

func TestSimulateFailsOnScenarioError(t *testing.T) {
	doc := strings.Replace(testScenario, `amount: "2"`, `amount: "50"`, 1)

	var out bytes.Buffer
	err := runSimulate(context.Background(), &out, testConfig(t), zaptest.NewLogger(t),
		writeScenario(t, doc), &simulateOptions{exportFormat: string(export.FormatCSV)})
	require.Error(t, err)
	// partial results are still printed
	assert.Contains(t, out.String(), "bob buys")
	assert.Contains(t, out.String(), "error:")
}

func TestSimulateRejectsBadOptions(t *testing.T) {
	var out bytes.Buffer
	logger := zaptest.NewLogger(t)

	err := runSimulate(context.Background(), &out, testConfig(t), logger,
		writeScenario(t, testScenario), &simulateOptions{exportFormat: "xml"})
	assert.ErrorContains(t, err, "unsupported export format")

	err = runSimulate(context.Background(), &out, testConfig(t), logger,
		filepath.Join(t.TempDir(), "missing.yaml"), &simulateOptions{exportFormat: string(export.FormatCSV)})
	assert.ErrorContains(t, err, "failed to load scenario")
}

func TestRootCommandRunsQuote(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"quote", "--base-price", "2", "--amount", "1"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "buy cost:        2\n")
	assert.Nil(t, appConfig)
}
