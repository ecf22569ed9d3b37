package config

import "strings"

// 默认值常量
const (
	defaultAppEnv         = "dev"
	defaultAppLogLevel    = "info"
	defaultAppHTTPAddr    = ":9992"
	defaultAppLogPath     = "data/logs/quantsim.log"
	defaultAppReportDir   = "data/reports"
	defaultSimCapital     = 10000
	defaultSimLeverage    = 1
	defaultSimTicks       = 500
	defaultSimWarmup      = 60
	defaultSimConcurrent  = 2
	defaultPresetsPath    = "configs/strategies.yaml"
	defaultStrategyName   = "adaptive"
	defaultStoreRunsDir   = "data/runs"
	defaultStoreJournalDB = "data/journal/trades.db"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Sim.applyDefaults(keys)
	c.Strategy.applyDefaults(keys)
	c.Store.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.report_dir", &a.ReportDir, defaultAppReportDir),
	)
}

func (s *SimConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "sim.initial_capital",
			need:  func() bool { return s.InitialCapital <= 0 },
			apply: func() { s.InitialCapital = defaultSimCapital },
		},
		fieldDefault{
			key:   "sim.max_leverage",
			need:  func() bool { return s.MaxLeverage < 1 },
			apply: func() { s.MaxLeverage = defaultSimLeverage },
		},
		fieldDefault{
			key:   "sim.ticks",
			need:  func() bool { return s.Ticks <= 0 },
			apply: func() { s.Ticks = defaultSimTicks },
		},
		fieldDefault{
			key:   "sim.warmup_bars",
			need:  func() bool { return s.WarmupBars <= 0 },
			apply: func() { s.WarmupBars = defaultSimWarmup },
		},
		fieldDefault{
			key:   "sim.max_concurrent",
			need:  func() bool { return s.MaxConcurrent <= 0 },
			apply: func() { s.MaxConcurrent = defaultSimConcurrent },
		},
		fieldDefault{
			key:   "sim.symbols",
			need:  func() bool { return len(s.Symbols) == 0 },
			apply: func() { s.Symbols = []string{"NIFTY50", "AAPL"} },
		},
	)
}

func (s *StrategyConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("strategy.presets_path", &s.PresetsPath, defaultPresetsPath),
		stringFieldDefault("strategy.default", &s.Default, defaultStrategyName),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.runs_dir", &s.RunsDir, defaultStoreRunsDir),
		stringFieldDefault("store.journal_path", &s.JournalPath, defaultStoreJournalDB),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
