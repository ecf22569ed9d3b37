package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  env: prod\n"))
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ":9992", cfg.App.HTTPAddr)
	assert.InDelta(t, 10000.0, cfg.Sim.InitialCapital, 1e-9)
	assert.InDelta(t, 1.0, cfg.Sim.MaxLeverage, 1e-9)
	assert.Equal(t, 500, cfg.Sim.Ticks)
	assert.Equal(t, 60, cfg.Sim.WarmupBars)
	assert.EqualValues(t, 2, cfg.Sim.MaxConcurrent)
	assert.Equal(t, []string{"NIFTY50", "AAPL"}, cfg.Sim.Symbols)
	assert.Equal(t, "configs/strategies.yaml", cfg.Strategy.PresetsPath)
	assert.Equal(t, "adaptive", cfg.Strategy.Default)
	assert.Equal(t, "data/runs", cfg.Store.RunsDir)
}

func TestLoad_ExplicitValuesWin(t *testing.T) {
	cfg, err := Load(writeConfig(t, `sim:
  initial_capital: 50000
  max_leverage: 5
  ticks: 100
  symbols: [BTCUSDT]
strategy:
  default: rsi_classic
`))
	require.NoError(t, err)

	assert.InDelta(t, 50000.0, cfg.Sim.InitialCapital, 1e-9)
	assert.InDelta(t, 5.0, cfg.Sim.MaxLeverage, 1e-9)
	assert.Equal(t, 100, cfg.Sim.Ticks)
	assert.Equal(t, []string{"BTCUSDT"}, cfg.Sim.Symbols)
	assert.Equal(t, "rsi_classic", cfg.Strategy.Default)
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"negative slippage", "sim:\n  slippage_pct: -0.01\n"},
		{"commission too high", "sim:\n  commission_pct: 0.5\n"},
		{"empty symbol", "sim:\n  symbols: ['']\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	_, err = Load("  ")
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, validate(cfg))
	assert.Equal(t, "dev", cfg.App.Env)
	assert.Equal(t, "data/journal/trades.db", cfg.Store.JournalPath)
}
