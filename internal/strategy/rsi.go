package strategy

import (
	"fmt"

	"quantsim/internal/market"
)

// RSIParams 为 RSI 均值回归策略参数。
type RSIParams struct {
	Period     int     `json:"period" yaml:"period"`
	Oversold   float64 `json:"oversold" yaml:"oversold"`
	Overbought float64 `json:"overbought" yaml:"overbought"`
	Neutral    float64 `json:"neutral" yaml:"neutral"`
}

func (p *RSIParams) applyDefaults() {
	if p.Period <= 0 {
		p.Period = 14
	}
	if p.Oversold <= 0 {
		p.Oversold = 30
	}
	if p.Overbought <= 0 {
		p.Overbought = 70
	}
	if p.Neutral <= 0 {
		p.Neutral = 50
	}
}

// RSI is a mean-reversion strategy: buy oversold, sell overbought, close on
// the swing back through neutral.
type RSI struct {
	params RSIParams
}

func NewRSI(params RSIParams) *RSI {
	params.applyDefaults()
	return &RSI{params: params}
}

func (s *RSI) Name() string { return "RSI" }

func (s *RSI) GenerateSignal(history []market.Candle, symbol string, positionQty int64) TradeSignal {
	p := s.params
	if len(history) < p.Period+1 {
		return hold(history, symbol, "insufficient data for RSI calculation")
	}
	series := rsiSeries(market.Closes(history), p.Period)
	cur := series[len(series)-1]
	if !finite(cur) {
		return hold(history, symbol, "RSI value undefined")
	}
	last := lastBar(history)
	sig := TradeSignal{Symbol: symbol, Price: last.Close, Timestamp: last.CloseTime}

	switch {
	case positionQty == 0:
		if cur < p.Oversold {
			sig.Signal = SignalBuy
			sig.Strength = (p.Oversold - cur) / p.Oversold
			sig.Reason = fmt.Sprintf("RSI oversold: %.2f < %.1f", cur, p.Oversold)
			return sig
		}
		if cur > p.Overbought {
			sig.Signal = SignalSell
			sig.Strength = (cur - p.Overbought) / (100 - p.Overbought)
			sig.Reason = fmt.Sprintf("RSI overbought: %.2f > %.1f", cur, p.Overbought)
			return sig
		}
	case positionQty > 0:
		if cur > p.Neutral || cur > p.Overbought {
			sig.Signal = SignalClose
			sig.Reason = fmt.Sprintf("RSI exit long: %.2f", cur)
			return sig
		}
	default:
		if cur < p.Neutral || cur < p.Oversold {
			sig.Signal = SignalClose
			sig.Reason = fmt.Sprintf("RSI exit short: %.2f", cur)
			return sig
		}
	}

	sig.Signal = SignalHold
	sig.Reason = fmt.Sprintf("RSI neutral: %.2f", cur)
	return sig
}
