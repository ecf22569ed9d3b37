package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"quantsim/internal/analysis/regime"
)

func TestAdaptive_RouteTable(t *testing.T) {
	a := NewAdaptive(AdaptiveParams{})

	cases := []struct {
		name string
		cond regime.Conditions
		want string
	}{
		{"choppy", regime.Conditions{Regime: regime.Sideways, TrendStrength: 15, Sideways: true, Volatility: 25}, "Stochastic_Oscillator"},
		{"weak dx overrides slope", regime.Conditions{Regime: regime.Uptrend, TrendStrength: 15, Sideways: true, Volatility: 10}, "Stochastic_Oscillator"},
		{"calm uptrend", regime.Conditions{Regime: regime.Uptrend, TrendStrength: 30, Trending: true, Volatility: 10}, "EMA_Crossover"},
		{"calm downtrend", regime.Conditions{Regime: regime.Downtrend, TrendStrength: 30, Trending: true, Volatility: 10}, "EMA_Crossover"},
		// DX 落在 20-25 区间：斜率够陡、波动不高时仍走均线
		{"mid dx band trend", regime.Conditions{Regime: regime.Uptrend, TrendStrength: 22, Volatility: 10}, "EMA_Crossover"},
		{"high volatility", regime.Conditions{Regime: regime.Uptrend, TrendStrength: 30, Trending: true, Volatility: 40}, "RSI"},
		{"flat slope mid vol", regime.Conditions{Regime: regime.Sideways, TrendStrength: 30, Trending: true, Volatility: 25}, "Combined_RSI_EMA"},
		{"undefined regime", regime.Conditions{Regime: regime.Undefined, TrendStrength: 22, Volatility: 25}, "Combined_RSI_EMA"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, a.route(tc.cond).Name())
		})
	}
}

func TestAdaptive_InsufficientData(t *testing.T) {
	a := NewAdaptive(AdaptiveParams{Lookback: 60})
	sig := a.GenerateSignal(bars(ramp(100, 1, 30)...), "AAPL", 0)
	assert.Equal(t, SignalHold, sig.Signal)
	assert.Contains(t, sig.Reason, "insufficient data")
}

func TestAdaptive_AnnotatesDelegate(t *testing.T) {
	a := NewAdaptive(AdaptiveParams{Lookback: 20})
	sig := a.GenerateSignal(bars(ramp(100, 1, 40)...), "AAPL", 0)
	// 无论路由到哪个子策略，原因都应带上市场状态标注
	assert.Contains(t, sig.Reason, "via")
	assert.Equal(t, "AAPL", sig.Symbol)
}

func TestAdaptive_Name(t *testing.T) {
	a := NewAdaptive(AdaptiveParams{})
	assert.Equal(t, "Adaptive_Selector", a.Name())
	assert.Equal(t, 60, a.analyzer.Lookback())
}
