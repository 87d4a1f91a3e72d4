package pairchat

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.TabID = "tab-1"
	cfg.RoomID = "room-1"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing tab", func(c *Config) { c.TabID = "" }},
		{"missing room", func(c *Config) { c.RoomID = "" }},
		{"low below one", func(c *Config) { c.MsgCountLow = 0 }},
		{"high below low", func(c *Config) { c.MsgCountHigh = 2 }},
		{"zero tick", func(c *Config) { c.WaitTick = 0 }},
		{"bad language", func(c *Config) { c.Language = "!!" }},
		{"slow after max", func(c *Config) { c.MaxWait = time.Second; c.SlowPartnerAfter = 2 * time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"PAIRCHAT_ROOM=room-9\nPAIRCHAT_FIRST_USER=true\nPAIRCHAT_MSG_COUNT_LOW=3\nPAIRCHAT_MAX_WAIT=90s\n"), 0o600))
	for _, k := range []string{"PAIRCHAT_ROOM", "PAIRCHAT_FIRST_USER", "PAIRCHAT_MSG_COUNT_LOW", "PAIRCHAT_MAX_WAIT", "PAIRCHAT_TAB_ID"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := LoadConfig(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "room-9", cfg.RoomID)
	assert.True(t, cfg.FirstUser)
	assert.Equal(t, 3, cfg.MsgCountLow)
	assert.Equal(t, 10, cfg.MsgCountHigh)
	assert.Equal(t, 90*time.Second, cfg.MaxWait)
	assert.NotEmpty(t, cfg.TabID, "tab id is generated")
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigRejectsBadNumber(t *testing.T) {
	t.Setenv("PAIRCHAT_MSG_COUNT_HIGH", "lots")
	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAIRCHAT_MSG_COUNT_HIGH")
}
