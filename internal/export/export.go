package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/storage/models"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format     ExportFormat
	StartTime  time.Time
	EndTime    time.Time
	SideFilter string // buy | sell
	OutputDir  string
	Now        time.Time // file name stamp; zero means time.Now()
}

// ExportSummary aggregates exported trades. Amounts are whole native units.
type ExportSummary struct {
	Trades        int    `json:"trades"`
	Buys          int    `json:"buys"`
	Sells         int    `json:"sells"`
	BuyVolume     string `json:"buy_volume"`
	SellVolume    string `json:"sell_volume"`
	FeesCollected string `json:"fees_collected"`
}

// TradeExporter handles trade export functionality
type TradeExporter struct {
	logger *zap.Logger
}

// NewTradeExporter creates a new trade exporter
func NewTradeExporter(logger *zap.Logger) *TradeExporter {
	return &TradeExporter{
		logger: logger.Named("export"),
	}
}

// ExportTrades writes the journaled trades matching options and returns the file path.
func (te *TradeExporter) ExportTrades(trades []*models.Trade, options ExportOptions) (string, error) {
	filtered := te.filterTrades(trades, options)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no trades match the export criteria")
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].ExecutedAt.Before(filtered[j].ExecutedAt)
	})

	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(options.OutputDir, te.generateFilename(options))

	var err error
	switch options.Format {
	case FormatCSV:
		err = te.exportToCSV(filtered, outputPath)
	case FormatJSON:
		err = te.exportToJSON(filtered, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	te.logger.Info("Trades exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))

	return outputPath, nil
}

func (te *TradeExporter) filterTrades(trades []*models.Trade, options ExportOptions) []*models.Trade {
	var filtered []*models.Trade
	for _, trade := range trades {
		if !options.StartTime.IsZero() && trade.ExecutedAt.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && trade.ExecutedAt.After(options.EndTime) {
			continue
		}
		if options.SideFilter != "" && trade.Side != options.SideFilter {
			continue
		}
		filtered = append(filtered, trade)
	}
	return filtered
}

func (te *TradeExporter) generateFilename(options ExportOptions) string {
	now := options.Now
	if now.IsZero() {
		now = time.Now()
	}

	prefix := "trades_all"
	if options.SideFilter != "" {
		prefix = fmt.Sprintf("trades_%s", options.SideFilter)
	}
	return fmt.Sprintf("%s_%s.%s", prefix, now.UTC().Format("20060102_150405"), options.Format)
}

// CSVHeaders is the column layout of exported and live trade logs.
func CSVHeaders() []string {
	return []string{"timestamp", "wrapper", "trader", "side", "wrapper_amount", "base_amount", "fee", "price_after", "reserve_after"}
}

func tradeRecord(t *models.Trade) []string {
	return []string{
		t.ExecutedAt.UTC().Format(time.RFC3339),
		t.Wrapper,
		t.Trader,
		t.Side,
		t.WrapperAmount,
		t.BaseAmount,
		t.Fee,
		t.PriceAfter,
		t.ReserveAfter,
	}
}

func (te *TradeExporter) exportToCSV(trades []*models.Trade, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, trade := range trades {
		if err := writer.Write(tradeRecord(trade)); err != nil {
			return fmt.Errorf("failed to write trade: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func (te *TradeExporter) exportToJSON(trades []*models.Trade, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	exportData := struct {
		TradeCount int             `json:"trade_count"`
		Trades     []*models.Trade `json:"trades"`
		Summary    ExportSummary   `json:"summary"`
	}{
		TradeCount: len(trades),
		Trades:     trades,
		Summary:    CalculateSummary(trades),
	}

	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// CalculateSummary totals trade counts, volume and fees. Rows with unparsable
// amounts are counted but add nothing to the totals.
func CalculateSummary(trades []*models.Trade) ExportSummary {
	buyVol, sellVol, fees := new(uint256.Int), new(uint256.Int), new(uint256.Int)
	var summary ExportSummary

	for _, t := range trades {
		summary.Trades++
		base, errBase := uint256.FromDecimal(t.BaseAmount)
		if fee, err := uint256.FromDecimal(t.Fee); err == nil {
			fees.Add(fees, fee)
		}
		switch t.Side {
		case models.SideBuy:
			summary.Buys++
			if errBase == nil {
				buyVol.Add(buyVol, base)
			}
		case models.SideSell:
			summary.Sells++
			if errBase == nil {
				sellVol.Add(sellVol, base)
			}
		}
	}

	summary.BuyVolume = curve.FormatUnits(buyVol, curve.NativeDecimals)
	summary.SellVolume = curve.FormatUnits(sellVol, curve.NativeDecimals)
	summary.FeesCollected = curve.FormatUnits(fees, curve.NativeDecimals)
	return summary
}
