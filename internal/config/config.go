// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/spf13/viper"
)

type Config struct {
	ProgramID           string `mapstructure:"program_id"`
	Treasury            string `mapstructure:"treasury"`
	Operator            string `mapstructure:"operator"`
	GraduationThreshold string `mapstructure:"graduation_threshold"`
	WrapPerRT           uint64 `mapstructure:"wrap_per_rt"`
	PoolFeeBps          uint64 `mapstructure:"pool_fee_bps"`
	EventBuffer         int    `mapstructure:"event_buffer"`
	PostgresURL         string `mapstructure:"postgres_url"`
	MetricsAddr         string `mapstructure:"metrics_addr"`
	LogFile             string `mapstructure:"log_file"`
	DebugLogging        bool   `mapstructure:"debug_logging"`
}

const (
	// 69 000 SOL in lamports
	DefaultGraduationThreshold = "69000000000000"
	DefaultWrapPerRT           = 1_000_000_000_000
	DefaultPoolFeeBps          = 25
	DefaultEventBuffer         = 1024
	DefaultLogFile             = "launchpad.log"

	envPrefix = "LAUNCHPAD"
)

// Keys lists every key the loader understands.
var Keys = []string{
	"program_id", "treasury", "operator", "graduation_threshold", "wrap_per_rt",
	"pool_fee_bps", "event_buffer", "postgres_url", "metrics_addr", "log_file", "debug_logging",
}

// LoadConfig reads path (when non-empty), applies defaults and LAUNCHPAD_*
// environment overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	defaults := map[string]interface{}{
		"graduation_threshold": DefaultGraduationThreshold,
		"wrap_per_rt":          DefaultWrapPerRT,
		"pool_fee_bps":         DefaultPoolFeeBps,
		"event_buffer":         DefaultEventBuffer,
		"log_file":             DefaultLogFile,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about
	for _, key := range Keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.Treasury == "" {
		return errors.New("missing treasury in configuration")
	}
	if _, err := solana.PublicKeyFromBase58(cfg.Treasury); err != nil {
		return errors.New("invalid treasury address")
	}
	if cfg.Operator == "" {
		return errors.New("missing operator in configuration")
	}
	if _, err := solana.PublicKeyFromBase58(cfg.Operator); err != nil {
		return errors.New("invalid operator address")
	}
	if cfg.ProgramID != "" {
		if _, err := solana.PublicKeyFromBase58(cfg.ProgramID); err != nil {
			return errors.New("invalid program_id address")
		}
	}
	if _, err := uint256.FromDecimal(cfg.GraduationThreshold); err != nil {
		return errors.New("graduation_threshold must be a non-negative integer")
	}
	if err := validateNumericParams(cfg); err != nil {
		return err
	}
	if cfg.PostgresURL != "" {
		if err := validateURL(cfg.PostgresURL, "postgres"); err != nil {
			return errors.New("postgres_url must use the postgres scheme")
		}
	}
	return nil
}

func validateNumericParams(cfg *Config) error {
	if cfg.WrapPerRT == 0 {
		return errors.New("invalid wrap_per_rt")
	}
	if cfg.PoolFeeBps >= 10_000 {
		return errors.New("invalid pool_fee_bps")
	}
	if cfg.EventBuffer <= 0 {
		return errors.New("invalid event_buffer")
	}
	return nil
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	return nil
}

// Threshold returns the graduation threshold in native minor units.
func (c *Config) Threshold() *uint256.Int {
	return uint256.MustFromDecimal(c.GraduationThreshold)
}

// Addresses decodes the configured treasury, operator and program id. A missing
// program id is returned as the zero key.
func (c *Config) Addresses() (programID, treasury, operator solana.PublicKey, err error) {
	if c.ProgramID != "" {
		if programID, err = solana.PublicKeyFromBase58(c.ProgramID); err != nil {
			return programID, treasury, operator, fmt.Errorf("program_id: %w", err)
		}
	}
	if treasury, err = solana.PublicKeyFromBase58(c.Treasury); err != nil {
		return programID, treasury, operator, fmt.Errorf("treasury: %w", err)
	}
	if operator, err = solana.PublicKeyFromBase58(c.Operator); err != nil {
		return programID, treasury, operator, fmt.Errorf("operator: %w", err)
	}
	return programID, treasury, operator, nil
}
