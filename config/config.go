package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/chaincore/chaincore/libs/log"
)

const (
	// DefaultEpoch is the genesis of slot zero.
	DefaultEpoch = "2016-05-24T17:00:00Z"
)

// Config defines the top level configuration for a chaincore node.
type Config struct {
	Log             *LogConfig             `mapstructure:"log" toml:"log"`
	Processor       *ProcessorConfig       `mapstructure:"processor" toml:"processor"`
	Sync            *SyncConfig            `mapstructure:"sync" toml:"sync"`
	Instrumentation *InstrumentationConfig `mapstructure:"instrumentation" toml:"instrumentation"`
}

// DefaultConfig returns a default configuration for a chaincore node.
func DefaultConfig() *Config {
	return &Config{
		Log:             DefaultLogConfig(),
		Processor:       DefaultProcessorConfig(),
		Sync:            DefaultSyncConfig(),
		Instrumentation: DefaultInstrumentationConfig(),
	}
}

// TestConfig returns a configuration that can be used for testing.
func TestConfig() *Config {
	return &Config{
		Log:             TestLogConfig(),
		Processor:       TestProcessorConfig(),
		Sync:            TestSyncConfig(),
		Instrumentation: TestInstrumentationConfig(),
	}
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *Config) ValidateBasic() error {
	if err := cfg.Log.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [log] section: %w", err)
	}
	if err := cfg.Processor.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [processor] section: %w", err)
	}
	if err := cfg.Sync.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [sync] section: %w", err)
	}
	if err := cfg.Instrumentation.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [instrumentation] section: %w", err)
	}
	return nil
}

//-----------------------------------------------------------------------------
// LogConfig

// LogConfig selects the output format and verbosity of the default logger.
type LogConfig struct {
	// Output level for logging: debug, info or error
	Level string `mapstructure:"level" toml:"level"`

	// Output format: 'plain' (colored text) or 'json'
	Format string `mapstructure:"format" toml:"format"`
}

func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		Level:  log.LogLevelInfo,
		Format: log.LogFormatPlain,
	}
}

func TestLogConfig() *LogConfig {
	return &LogConfig{
		Level:  log.LogLevelDebug,
		Format: log.LogFormatPlain,
	}
}

// ValidateBasic performs basic validation.
func (cfg *LogConfig) ValidateBasic() error {
	switch cfg.Format {
	case log.LogFormatPlain, log.LogFormatText, log.LogFormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}
	switch cfg.Level {
	case log.LogLevelDebug, log.LogLevelInfo, log.LogLevelWarn, log.LogLevelError:
	default:
		return fmt.Errorf("unknown log level %q", cfg.Level)
	}
	return nil
}

// NewLogger builds the default logger described by cfg.
func (cfg *LogConfig) NewLogger() (log.Logger, error) {
	return log.NewDefaultLogger(cfg.Format, cfg.Level)
}

//-----------------------------------------------------------------------------
// ProcessorConfig

// ProcessorConfig defines the configuration of the block processor.
type ProcessorConfig struct {
	// Keep the block reverted during a tie break in the temp table, so it can be
	// restored by an operator.
	RetainRevertedBlocks bool `mapstructure:"retain_reverted_blocks" toml:"retain_reverted_blocks"`
}

func DefaultProcessorConfig() *ProcessorConfig {
	return &ProcessorConfig{
		RetainRevertedBlocks: false,
	}
}

func TestProcessorConfig() *ProcessorConfig {
	return DefaultProcessorConfig()
}

// ValidateBasic performs basic validation.
func (cfg *ProcessorConfig) ValidateBasic() error {
	return nil
}

//-----------------------------------------------------------------------------
// SyncConfig

// SyncConfig defines the protocol constants of the block synchronization
// mechanism.
type SyncConfig struct {
	// Whether the node reacts to sync requests at all.
	Enable bool `mapstructure:"enable" toml:"enable"`

	// Number of blocks in a consensus round.
	ActiveDelegates int `mapstructure:"active_delegates" toml:"active_delegates"`

	// Duration of a forging slot.
	BlockTime time.Duration `mapstructure:"block_time" toml:"block_time"`

	// Start of slot zero, RFC3339.
	Epoch string `mapstructure:"epoch" toml:"epoch"`

	// Maximum number of block ids sent in a single getHighestCommonBlock request.
	BlocksPerRequestLimit int `mapstructure:"blocks_per_request_limit" toml:"blocks_per_request_limit"`

	// Maximum number of getHighestCommonBlock requests made to one peer.
	CommonBlockRequestLimit int `mapstructure:"common_block_request_limit" toml:"common_block_request_limit"`

	// Number of empty getBlocksFromId responses tolerated before giving up.
	MaxFailedAttempts int `mapstructure:"max_failed_attempts" toml:"max_failed_attempts"`

	// Maximum number of getBlocksFromId requests made in one synchronization,
	// whether or not they return blocks.
	MaxBlockRequests int `mapstructure:"max_block_requests" toml:"max_block_requests"`

	// Penalty applied to a peer that violates the protocol.
	PenaltyScore int `mapstructure:"penalty_score" toml:"penalty_score"`

	// Synchronization is only triggered when the last finalized block is more
	// than this many rounds of slots behind the current slot.
	SyncTriggerRounds int `mapstructure:"sync_trigger_rounds" toml:"sync_trigger_rounds"`

	// Buffer of the reactor's subscription to sync requests.
	SubscriptionBuffer int `mapstructure:"subscription_buffer" toml:"subscription_buffer"`
}

// DefaultSyncConfig returns a default configuration for block synchronization.
func DefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		Enable:                  true,
		ActiveDelegates:         101,
		BlockTime:               10 * time.Second,
		Epoch:                   DefaultEpoch,
		BlocksPerRequestLimit:   10,
		CommonBlockRequestLimit: 10,
		MaxFailedAttempts:       10,
		MaxBlockRequests:        1000,
		PenaltyScore:            100,
		SyncTriggerRounds:       3,
		SubscriptionBuffer:      100,
	}
}

// TestSyncConfig returns a configuration with small rounds, suited to tests.
func TestSyncConfig() *SyncConfig {
	cfg := DefaultSyncConfig()
	cfg.ActiveDelegates = 5
	cfg.MaxFailedAttempts = 3
	cfg.MaxBlockRequests = 20
	cfg.SubscriptionBuffer = 10
	return cfg
}

// EpochTime parses Epoch.
func (cfg *SyncConfig) EpochTime() (time.Time, error) {
	return time.Parse(time.RFC3339, cfg.Epoch)
}

// ValidateBasic performs basic validation.
func (cfg *SyncConfig) ValidateBasic() error {
	if cfg.ActiveDelegates <= 0 {
		return errors.New("active_delegates must be positive")
	}
	if cfg.BlockTime < time.Second {
		return errors.New("block_time can't be less than one second")
	}
	if _, err := cfg.EpochTime(); err != nil {
		return fmt.Errorf("invalid epoch: %w", err)
	}
	if cfg.BlocksPerRequestLimit <= 0 {
		return errors.New("blocks_per_request_limit must be positive")
	}
	if cfg.CommonBlockRequestLimit <= 0 {
		return errors.New("common_block_request_limit must be positive")
	}
	if cfg.MaxFailedAttempts <= 0 {
		return errors.New("max_failed_attempts must be positive")
	}
	if cfg.MaxBlockRequests < cfg.MaxFailedAttempts {
		return errors.New("max_block_requests can't be less than max_failed_attempts")
	}
	if cfg.PenaltyScore < 0 {
		return errors.New("penalty_score can't be negative")
	}
	if cfg.SyncTriggerRounds <= 0 {
		return errors.New("sync_trigger_rounds must be positive")
	}
	if cfg.SubscriptionBuffer < 0 {
		return errors.New("subscription_buffer can't be negative")
	}
	return nil
}

//-----------------------------------------------------------------------------
// InstrumentationConfig

// InstrumentationConfig defines the configuration for metrics reporting.
type InstrumentationConfig struct {
	// When true, Prometheus metrics are served under /metrics on
	// PrometheusListenAddr.
	Prometheus bool `mapstructure:"prometheus" toml:"prometheus"`

	// Address to listen for Prometheus collector(s) connections.
	PrometheusListenAddr string `mapstructure:"prometheus_listen_addr" toml:"prometheus_listen_addr"`

	// Instrumentation namespace.
	Namespace string `mapstructure:"namespace" toml:"namespace"`
}

func DefaultInstrumentationConfig() *InstrumentationConfig {
	return &InstrumentationConfig{
		Prometheus:           false,
		PrometheusListenAddr: ":26660",
		Namespace:            "chaincore",
	}
}

func TestInstrumentationConfig() *InstrumentationConfig {
	return DefaultInstrumentationConfig()
}

// ValidateBasic performs basic validation.
func (cfg *InstrumentationConfig) ValidateBasic() error {
	if cfg.Prometheus && cfg.PrometheusListenAddr == "" {
		return errors.New("prometheus_listen_addr can't be empty when prometheus is enabled")
	}
	return nil
}
