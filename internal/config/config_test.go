package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `{"owner_address": "owner", "fee_bps": 5}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "USDT", cfg.StableSymbol)
	assert.Equal(t, int64(30), cfg.RSIOversold)
	assert.Equal(t, int64(70), cfg.RSIOverbought)
	assert.Equal(t, 14, cfg.RSIPeriod)
	assert.Equal(t, uint32(3), cfg.RSIGrids)
	assert.Equal(t, "info", cfg.LogConfig.Level)
	assert.Equal(t, "console", cfg.LogConfig.Output)
}

func TestLoadConfigValidation(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `{"fee_bps": 5}`))
	assert.Error(t, err, "missing owner_address must be rejected")

	_, err = LoadConfig(writeConfig(t, `{"owner_address": "owner", "fee_bps": 10000}`))
	assert.Error(t, err, "fee of 100% or more must be rejected")

	_, err = LoadConfig(writeConfig(t, `{"owner_address": "owner", "rsi_oversold": 80, "rsi_overbought": 70}`))
	assert.Error(t, err, "inverted RSI thresholds must be rejected")
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("SLEEPSWAP_OWNER_ADDRESS", "env-owner")
	t.Setenv("SLEEPSWAP_KEEPER_ADDRESS", "env-keeper")

	cfg, err := LoadConfig(writeConfig(t, `{"owner_address": "file-owner"}`))
	require.NoError(t, err)

	assert.Equal(t, "env-owner", cfg.OwnerAddress)
	assert.Equal(t, "env-keeper", cfg.KeeperAddress)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
