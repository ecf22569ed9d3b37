package config

import "strings"

// Config 是 quantsim 的主配置载体。
type Config struct {
	App      AppConfig      `yaml:"app"`
	Sim      SimConfig      `yaml:"sim"`
	Strategy StrategyConfig `yaml:"strategy"`
	Store    StoreConfig    `yaml:"store"`
}

type AppConfig struct {
	Env       string `yaml:"env"`
	LogLevel  string `yaml:"log_level"`
	HTTPAddr  string `yaml:"http_addr"`
	LogPath   string `yaml:"log_path"`
	ReportDir string `yaml:"report_dir"`
}

// SimConfig 控制模拟的默认账户参数与循环长度。
type SimConfig struct {
	InitialCapital float64  `yaml:"initial_capital"`
	MaxLeverage    float64  `yaml:"max_leverage"`
	SlippagePct    float64  `yaml:"slippage_pct"`
	CommissionPct  float64  `yaml:"commission_pct"`
	Ticks          int      `yaml:"ticks"`
	WarmupBars     int      `yaml:"warmup_bars"`
	MaxConcurrent  int64    `yaml:"max_concurrent"`
	Symbols        []string `yaml:"symbols"`
}

type StrategyConfig struct {
	PresetsPath string `yaml:"presets_path"`
	Default     string `yaml:"default"`
}

type StoreConfig struct {
	RunsDir     string `yaml:"runs_dir"`
	JournalPath string `yaml:"journal_path"`
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
