package strategy

import (
	"fmt"
	"strings"

	"quantsim/internal/market"
)

// CombinedParams 组合策略参数：RSI 负责入场时机，EMA 负责趋势确认。
type CombinedParams struct {
	RSIPeriod     int     `json:"rsi_period" yaml:"rsi_period"`
	RSIOversold   float64 `json:"rsi_oversold" yaml:"rsi_oversold"`
	RSIOverbought float64 `json:"rsi_overbought" yaml:"rsi_overbought"`
	EMAShort      int     `json:"ema_short" yaml:"ema_short"`
	EMALong       int     `json:"ema_long" yaml:"ema_long"`
	// Confirmation is the minimum number of aligned votes (out of three:
	// RSI signal, EMA trend, EMA crossover) required to open a position.
	Confirmation int `json:"confirmation" yaml:"confirmation"`
}

// Combined runs the RSI and EMA sub-strategies and only trades when enough
// of their votes align.
type Combined struct {
	rsi          *RSI
	ema          *EMACrossover
	confirmation int
}

func NewCombined(params CombinedParams) *Combined {
	if params.Confirmation <= 0 {
		params.Confirmation = 2
	}
	return &Combined{
		rsi: NewRSI(RSIParams{
			Period:     params.RSIPeriod,
			Oversold:   params.RSIOversold,
			Overbought: params.RSIOverbought,
		}),
		ema: NewEMACrossover(CrossoverParams{
			ShortPeriod: params.EMAShort,
			LongPeriod:  params.EMALong,
		}),
		confirmation: params.Confirmation,
	}
}

func (s *Combined) Name() string { return "Combined_RSI_EMA" }

func (s *Combined) GenerateSignal(history []market.Candle, symbol string, positionQty int64) TradeSignal {
	minBars := s.rsi.params.Period
	if s.ema.params.LongPeriod > minBars {
		minBars = s.ema.params.LongPeriod
	}
	if len(history) < minBars+1 {
		return hold(history, symbol, "insufficient data for combined strategy")
	}

	rsiSig := s.rsi.GenerateSignal(history, symbol, positionQty)
	emaSig := s.ema.GenerateSignal(history, symbol, positionQty)
	trendBullish, trendOK := s.ema.TrendBullish(history)
	if !trendOK && rsiSig.Signal == SignalHold && emaSig.Signal == SignalHold {
		// Either indicator may be undefined on a degenerate window.
		if strings.Contains(rsiSig.Reason, "undefined") || strings.Contains(emaSig.Reason, "undefined") {
			return hold(history, symbol, "indicator value undefined")
		}
	}

	bullish, bearish := 0, 0
	var reasons []string
	switch rsiSig.Signal {
	case SignalBuy:
		bullish++
		reasons = append(reasons, "RSI oversold")
	case SignalSell:
		bearish++
		reasons = append(reasons, "RSI overbought")
	}
	if trendOK {
		if trendBullish {
			bullish++
			reasons = append(reasons, "EMA bullish trend")
		} else {
			bearish++
			reasons = append(reasons, "EMA bearish trend")
		}
	}
	switch emaSig.Signal {
	case SignalBuy:
		bullish++
		reasons = append(reasons, "EMA bullish crossover")
	case SignalSell:
		bearish++
		reasons = append(reasons, "EMA bearish crossover")
	}

	last := lastBar(history)
	sig := TradeSignal{Symbol: symbol, Price: last.Close, Timestamp: last.CloseTime}

	switch {
	case positionQty == 0:
		if bullish >= s.confirmation {
			sig.Signal = SignalBuy
			sig.Strength = float64(bullish) / 3
			sig.Reason = fmt.Sprintf("buy confirmed by %d/3 indicators: %s", bullish, strings.Join(reasons, ", "))
			return sig
		}
		if bearish >= s.confirmation {
			sig.Signal = SignalSell
			sig.Strength = float64(bearish) / 3
			sig.Reason = fmt.Sprintf("sell confirmed by %d/3 indicators: %s", bearish, strings.Join(reasons, ", "))
			return sig
		}
	case positionQty > 0:
		if bearish >= 2 || rsiSig.Signal == SignalClose {
			sig.Signal = SignalClose
			sig.Reason = fmt.Sprintf("exit long: %d bearish votes", bearish)
			return sig
		}
	default:
		if bullish >= 2 || rsiSig.Signal == SignalClose {
			sig.Signal = SignalClose
			sig.Reason = fmt.Sprintf("exit short: %d bullish votes", bullish)
			return sig
		}
	}

	sig.Signal = SignalHold
	sig.Reason = fmt.Sprintf("insufficient confirmation (bull %d, bear %d)", bullish, bearish)
	return sig
}
