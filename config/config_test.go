package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	assert := assert.New(t)

	cfg := DefaultConfig()
	assert.NotNil(cfg.Log)
	assert.NotNil(cfg.Processor)
	assert.NotNil(cfg.Sync)
	assert.NotNil(cfg.Instrumentation)
	assert.NoError(cfg.ValidateBasic())
	assert.NoError(TestConfig().ValidateBasic())

	epoch, err := cfg.Sync.EpochTime()
	require.NoError(t, err)
	assert.Equal(time.Date(2016, 5, 24, 17, 0, 0, 0, time.UTC), epoch.UTC())
}

func TestSyncConfigValidateBasic(t *testing.T) {
	testCases := []struct {
		name     string
		malleate func(*SyncConfig)
	}{
		{"active_delegates", func(c *SyncConfig) { c.ActiveDelegates = 0 }},
		{"block_time", func(c *SyncConfig) { c.BlockTime = time.Millisecond }},
		{"epoch", func(c *SyncConfig) { c.Epoch = "yesterday" }},
		{"blocks_per_request_limit", func(c *SyncConfig) { c.BlocksPerRequestLimit = 0 }},
		{"common_block_request_limit", func(c *SyncConfig) { c.CommonBlockRequestLimit = -1 }},
		{"max_failed_attempts", func(c *SyncConfig) { c.MaxFailedAttempts = 0 }},
		{"max_block_requests", func(c *SyncConfig) { c.MaxBlockRequests = c.MaxFailedAttempts - 1 }},
		{"penalty_score", func(c *SyncConfig) { c.PenaltyScore = -1 }},
		{"sync_trigger_rounds", func(c *SyncConfig) { c.SyncTriggerRounds = 0 }},
		{"subscription_buffer", func(c *SyncConfig) { c.SubscriptionBuffer = -1 }},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.malleate(cfg.Sync)
			assert.Error(t, cfg.ValidateBasic())
		})
	}
}

func TestLogAndInstrumentationValidateBasic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Format = "xml"
	assert.Error(t, cfg.ValidateBasic())

	cfg = DefaultConfig()
	cfg.Log.Level = "loud"
	assert.Error(t, cfg.ValidateBasic())

	cfg = DefaultConfig()
	cfg.Instrumentation.Prometheus = true
	cfg.Instrumentation.PrometheusListenAddr = ""
	assert.Error(t, cfg.ValidateBasic())
}

func TestWriteAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "config.toml")

	cfg := DefaultConfig()
	cfg.Sync.ActiveDelegates = 7
	cfg.Sync.PenaltyScore = 42
	cfg.Processor.RetainRevertedBlocks = true
	cfg.Log.Format = "json"

	require.NoError(t, WriteConfigFile(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.toml")
	require.NoError(t, os.WriteFile(path, []byte("[sync]\npenalty_score = 5\nblock_time = \"5s\"\n"), 0600))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.Sync.PenaltyScore)
	assert.Equal(t, 5*time.Second, loaded.Sync.BlockTime)
	assert.Equal(t, DefaultSyncConfig().ActiveDelegates, loaded.Sync.ActiveDelegates)
	assert.Equal(t, DefaultLogConfig(), loaded.Log)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[sync]\nactive_delegates = 0\n"), 0600))

	_, err := Load(path)
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
