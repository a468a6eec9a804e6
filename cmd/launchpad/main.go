// ====================================
// File: cmd/launchpad/main.go
// ====================================
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/config"
	"github.com/rovshanmuradov/launchpad/internal/logger"
)

const configAnnotation = "needs-config"

var (
	// Global flags
	configPath string
	debug      bool

	appConfig *config.Config
	log       *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "launchpad",
	Short: "Bonding-curve launch engine for wrapped royalty assets",
	Long: `launchpad wraps royalty tokens into tradable assets, prices them on a
linear bonding curve and migrates them into a constant-product pool once the
market cap crosses the graduation threshold.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logCfg := logger.DefaultConfig()
		logCfg.LogFile = ""
		logCfg.Development = debug

		if _, ok := cmd.Annotations[configAnnotation]; ok {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			appConfig = cfg
			logCfg.LogFile = cfg.LogFile
			logCfg.Development = debug || cfg.DebugLogging
		} else {
			// plain output commands only log when asked to
			logCfg.Quiet = !debug
		}

		var err error
		log, err = logger.New(logCfg)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(newSimulateCmd(), newQuoteCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if log != nil {
			log.Error("Command failed", zap.Error(err))
			_ = log.Sync()
		}
		os.Exit(1)
	}
}
