package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/sqlite"

	"github.com/rovshanmuradov/launchpad/internal/config"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/export"
	"github.com/rovshanmuradov/launchpad/internal/launchpad"
	"github.com/rovshanmuradov/launchpad/internal/logger"
	"github.com/rovshanmuradov/launchpad/internal/metrics"
	"github.com/rovshanmuradov/launchpad/internal/storage"
	"github.com/rovshanmuradov/launchpad/internal/storage/models"
	"github.com/rovshanmuradov/launchpad/internal/storage/postgres"
	"github.com/rovshanmuradov/launchpad/internal/task"
)

const (
	busDrainTimeout = 10 * time.Second
	tradeLogFlush   = time.Second
	exportPageSize  = 500
)

type simulateOptions struct {
	tradeLog     string
	exportDir    string
	exportFormat string
	hold         bool
}

func newSimulateCmd() *cobra.Command {
	opts := &simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate [scenario.yaml]",
		Short: "Run a scenario against an in-memory deployment",
		Long: `Runs every task of a YAML scenario against an engine backed by an
in-memory ledger, royalty vault and pool manager. Committed events are
journaled to postgres (postgres_url) or an in-memory sqlite database and
exported as Prometheus metrics on metrics_addr.`,
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{configAnnotation: ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSimulate(ctx, cmd.OutOrStdout(), appConfig, logger.WithComponent(log.Logger, "simulate"), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.tradeLog, "trade-log", "", "append every curve trade to this CSV file")
	cmd.Flags().StringVar(&opts.exportDir, "export-dir", "", "export journaled trades into this directory")
	cmd.Flags().StringVar(&opts.exportFormat, "export-format", string(export.FormatCSV), "export format: csv or json")
	cmd.Flags().BoolVar(&opts.hold, "hold", false, "keep serving metrics after the scenario until interrupted")
	return cmd
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.PostgresURL != "" {
		return postgres.NewStorage(ctx, cfg.PostgresURL, logger)
	}
	logger.Info("No postgres_url configured, journaling to in-memory sqlite")
	// each run gets its own named in-memory database
	dsn := fmt.Sprintf("file:launchpad-%s?mode=memory&cache=shared", uuid.NewString())
	return postgres.NewWithDialector(sqlite.Open(dsn), logger)
}

func runSimulate(ctx context.Context, out io.Writer, cfg *config.Config, logger *zap.Logger, path string, opts *simulateOptions) error {
	if opts.exportFormat != string(export.FormatCSV) && opts.exportFormat != string(export.FormatJSON) {
		return fmt.Errorf("unsupported export format: %s", opts.exportFormat)
	}
	programID, treasury, operator, err := cfg.Addresses()
	if err != nil {
		return err
	}

	scenario, err := task.NewManager(logger).LoadScenario(path)
	if err != nil {
		return fmt.Errorf("failed to load scenario: %w", err)
	}

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Warn("Failed to close storage", zap.Error(cerr))
		}
	}()
	if err := store.RunMigrations(); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(registry, logger)
	if err != nil {
		return err
	}

	bus := events.NewBus(logger, cfg.EventBuffer)
	bus.SubscribeAll(collector)
	bus.SubscribeAll(storage.NewJournal(store, logger))

	var tradeLog *export.TradeLog
	if opts.tradeLog != "" {
		if tradeLog, err = export.NewTradeLog(opts.tradeLog, export.TradeLogOptions{FlushInterval: tradeLogFlush}, logger); err != nil {
			return fmt.Errorf("failed to open trade log: %w", err)
		}
		record := events.On(tradeLog.Record)
		bus.Subscribe(events.TokensBought, record)
		bus.Subscribe(events.TokensSold, record)
	}

	env, err := task.NewEnvironment(task.EnvironmentConfig{
		Engine: launchpad.Config{
			ProgramID:           programID,
			Treasury:            treasury,
			Operator:            operator,
			GraduationThreshold: cfg.Threshold(),
			WrapPerRT:           cfg.WrapPerRT,
		},
		PoolFeeBps: cfg.PoolFeeBps,
		Start:      time.Now().UTC(),
	}, bus, collector, logger)
	if err != nil {
		return err
	}
	runner := task.NewRunner(env, operator, treasury, logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, cfg.MetricsAddr, registry, logger)
		})
	}

	var report *task.Report
	g.Go(func() error {
		if !opts.hold {
			defer cancel()
		} else {
			defer logger.Info("Scenario finished, serving metrics until interrupted")
		}
		var runErr error
		report, runErr = runner.Run(gctx, scenario)
		return runErr
	})
	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) && ctx.Err() == nil {
		runErr = nil
	}

	// every committed event must reach the journal before it is read back
	drainCtx, drainCancel := context.WithTimeout(context.Background(), busDrainTimeout)
	defer drainCancel()
	if err := bus.Shutdown(drainCtx); err != nil {
		logger.Warn("Event bus did not drain", zap.Error(err))
	}
	if tradeLog != nil {
		if err := tradeLog.Close(); err != nil {
			logger.Warn("Failed to close trade log", zap.Error(err))
		}
	}
	stats := bus.Stats()
	logger.Info("Event bus stopped",
		zap.Uint64("delivered", stats.Delivered),
		zap.Uint64("dropped", stats.Dropped),
		zap.Uint64("failed", stats.Failed))

	if report != nil {
		printReport(out, report)
	}
	if runErr != nil {
		return runErr
	}

	if opts.exportDir != "" {
		trades, err := journaledTrades(ctx, store, env)
		if err != nil {
			return err
		}
		if len(trades) == 0 {
			logger.Info("No trades to export")
			return nil
		}
		file, err := export.NewTradeExporter(logger).ExportTrades(trades, export.ExportOptions{
			Format:    export.ExportFormat(opts.exportFormat),
			OutputDir: opts.exportDir,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\ntrades exported to %s\n", file)
	}
	return nil
}

func journaledTrades(ctx context.Context, store storage.Storage, env *task.Environment) ([]*models.Trade, error) {
	var trades []*models.Trade
	for _, wrapper := range env.Engine.GetAllLaunchedTokens(ctx) {
		for offset := 0; ; offset += exportPageSize {
			page, err := store.ListTrades(ctx, wrapper.String(), exportPageSize, offset)
			if err != nil {
				return nil, fmt.Errorf("failed to list trades: %w", err)
			}
			trades = append(trades, page...)
			if len(page) < exportPageSize {
				break
			}
		}
	}
	return trades, nil
}

func printReport(out io.Writer, report *task.Report) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tRESULT")
	for _, r := range report.Results {
		result := r.Detail
		if r.Err != "" {
			result = "error: " + r.Err
		}
		fmt.Fprintf(tw, "%s\t%s\n", r.Task, result)
	}
	_ = tw.Flush()

	if len(report.Tokens) == 0 {
		return
	}
	fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tPRICE\tMARKET CAP\tRESERVE\tON CURVE\tHARVESTED\tGRADUATED\tPOOL")
	for _, t := range report.Tokens {
		pool := t.Pool
		if pool == "" {
			pool = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
			t.Symbol, t.Price, t.MarketCap, t.Reserve, t.CurveLeft, t.Harvested, t.Graduated, pool)
	}
	_ = tw.Flush()
}
