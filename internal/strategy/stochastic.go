package strategy

import (
	"fmt"

	"quantsim/internal/market"
)

// StochasticParams 随机指标参数，适合震荡行情。
type StochasticParams struct {
	KPeriod    int     `json:"k_period" yaml:"k_period"`
	DPeriod    int     `json:"d_period" yaml:"d_period"`
	Oversold   float64 `json:"oversold" yaml:"oversold"`
	Overbought float64 `json:"overbought" yaml:"overbought"`
}

// Exit bands are intentionally looser than the entry thresholds so a
// position is not shaken out the moment %K leaves the extreme zone.
const (
	stochExitLong  = 60.0
	stochExitShort = 40.0
)

// Stochastic trades %K/%D crossovers inside the oversold/overbought bands.
type Stochastic struct {
	params StochasticParams
}

func NewStochastic(params StochasticParams) *Stochastic {
	if params.KPeriod <= 0 {
		params.KPeriod = 14
	}
	if params.DPeriod <= 0 {
		params.DPeriod = 3
	}
	if params.Oversold <= 0 {
		params.Oversold = 20
	}
	if params.Overbought <= 0 {
		params.Overbought = 80
	}
	return &Stochastic{params: params}
}

func (s *Stochastic) Name() string { return "Stochastic_Oscillator" }

func (s *Stochastic) GenerateSignal(history []market.Candle, symbol string, positionQty int64) TradeSignal {
	p := s.params
	if len(history) < p.KPeriod+p.DPeriod {
		return hold(history, symbol, "insufficient data for stochastic calculation")
	}
	kValues := stochasticK(market.Highs(history), market.Lows(history), market.Closes(history), p.KPeriod)
	if len(kValues) < p.DPeriod+1 {
		return hold(history, symbol, "insufficient %K values")
	}
	dValues := smaSeries(kValues, p.DPeriod)

	curK := kValues[len(kValues)-1]
	prevK := kValues[len(kValues)-2]
	curD := dValues[len(dValues)-1]
	prevD := dValues[len(dValues)-2]
	if !finite(curD) || !finite(prevD) {
		return hold(history, symbol, "%D value undefined")
	}

	last := lastBar(history)
	sig := TradeSignal{Symbol: symbol, Price: last.Close, Timestamp: last.CloseTime, Strength: 1}

	switch {
	case positionQty == 0:
		if curK < p.Oversold && prevK < prevD && curK > curD {
			sig.Signal = SignalBuy
			sig.Reason = fmt.Sprintf("stochastic oversold crossover: K=%.1f D=%.1f", curK, curD)
			return sig
		}
		if curK > p.Overbought && prevK > prevD && curK < curD {
			sig.Signal = SignalSell
			sig.Reason = fmt.Sprintf("stochastic overbought crossover: K=%.1f D=%.1f", curK, curD)
			return sig
		}
	case positionQty > 0:
		if curK > stochExitLong || (curK < curD && curK > p.Oversold) {
			sig.Signal = SignalClose
			sig.Reason = fmt.Sprintf("exit long: K=%.1f D=%.1f", curK, curD)
			return sig
		}
	default:
		if curK < stochExitShort || (curK > curD && curK < p.Overbought) {
			sig.Signal = SignalClose
			sig.Reason = fmt.Sprintf("exit short: K=%.1f D=%.1f", curK, curD)
			return sig
		}
	}

	sig.Signal = SignalHold
	sig.Strength = 0
	sig.Reason = fmt.Sprintf("stochastic neutral: K=%.1f D=%.1f", curK, curD)
	return sig
}
