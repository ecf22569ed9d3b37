package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Sim.validate(); err != nil {
		return err
	}
	if err := c.Strategy.validate(); err != nil {
		return err
	}
	return nil
}

func (s *SimConfig) validate() error {
	if s.InitialCapital <= 0 {
		return fmt.Errorf("sim.initial_capital must be > 0")
	}
	if s.MaxLeverage < 1 {
		return fmt.Errorf("sim.max_leverage must be >= 1")
	}
	if s.SlippagePct < 0 || s.SlippagePct > 0.1 {
		return fmt.Errorf("sim.slippage_pct must be within [0, 0.1]")
	}
	if s.CommissionPct < 0 || s.CommissionPct > 0.1 {
		return fmt.Errorf("sim.commission_pct must be within [0, 0.1]")
	}
	if s.Ticks <= 0 {
		return fmt.Errorf("sim.ticks must be > 0")
	}
	for _, sym := range s.Symbols {
		if strings.TrimSpace(sym) == "" {
			return fmt.Errorf("sim.symbols contains empty entry")
		}
	}
	return nil
}

func (s *StrategyConfig) validate() error {
	if strings.TrimSpace(s.PresetsPath) == "" {
		return fmt.Errorf("strategy.presets_path cannot be empty")
	}
	if strings.TrimSpace(s.Default) == "" {
		return fmt.Errorf("strategy.default cannot be empty")
	}
	return nil
}
