package strategy

import (
	"fmt"

	"quantsim/internal/analysis/regime"
	"quantsim/internal/logger"
	"quantsim/internal/market"
)

// AdaptiveParams 自适应策略参数
type AdaptiveParams struct {
	Lookback int `json:"lookback" yaml:"lookback"`
}

// Adaptive re-classifies the market on every call and delegates signal
// generation to the strategy best suited to the current regime.
type Adaptive struct {
	analyzer *regime.Analyzer

	rsi        *RSI
	ema        *EMACrossover
	combined   *Combined
	stochastic *Stochastic

	lastRoute string
}

func NewAdaptive(params AdaptiveParams) *Adaptive {
	if params.Lookback <= 0 {
		params.Lookback = 60
	}
	return &Adaptive{
		analyzer:   regime.NewAnalyzer(params.Lookback),
		rsi:        NewRSI(RSIParams{}),
		ema:        NewEMACrossover(CrossoverParams{}),
		combined:   NewCombined(CombinedParams{}),
		stochastic: NewStochastic(StochasticParams{}),
	}
}

func (a *Adaptive) Name() string { return "Adaptive_Selector" }

// route maps market conditions to a delegate. Kept separate from
// GenerateSignal so the routing table is testable without crafting bar
// series that land in each regime. A directional slope routes to the
// crossover even in the DX 20-25 band; only DX < 20 counts as sideways.
func (a *Adaptive) route(cond regime.Conditions) Strategy {
	trending := cond.Regime == regime.Uptrend || cond.Regime == regime.Downtrend
	switch {
	case cond.Sideways:
		return a.stochastic
	case trending && cond.Volatility < 20:
		return a.ema
	case cond.Volatility > 30:
		return a.rsi
	default:
		return a.combined
	}
}

func (a *Adaptive) GenerateSignal(history []market.Candle, symbol string, positionQty int64) TradeSignal {
	if len(history) < a.analyzer.Lookback() {
		return hold(history, symbol, "insufficient data for regime analysis")
	}
	cond := a.analyzer.Analyze(history)
	delegate := a.route(cond)
	if delegate.Name() != a.lastRoute {
		logger.Debugf("adaptive selector switched to %s (regime=%s adx=%.1f vol=%.1f)",
			delegate.Name(), cond.Regime, cond.TrendStrength, cond.Volatility)
		a.lastRoute = delegate.Name()
	}
	sig := delegate.GenerateSignal(history, symbol, positionQty)
	sig.Reason = fmt.Sprintf("[%s via %s] %s", cond.Regime, delegate.Name(), sig.Reason)
	return sig
}
