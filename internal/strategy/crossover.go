package strategy

import (
	"fmt"

	"quantsim/internal/market"
)

// CrossoverParams 同时服务 SMA 与 EMA 交叉策略。
type CrossoverParams struct {
	ShortPeriod int `json:"short_period" yaml:"short_period"`
	LongPeriod  int `json:"long_period" yaml:"long_period"`
}

// MACrossover trades golden/death crosses of two simple moving averages.
type MACrossover struct {
	params CrossoverParams
}

func NewMACrossover(params CrossoverParams) *MACrossover {
	if params.ShortPeriod <= 0 {
		params.ShortPeriod = 20
	}
	if params.LongPeriod <= 0 {
		params.LongPeriod = 50
	}
	return &MACrossover{params: params}
}

func (s *MACrossover) Name() string { return "MA_Crossover" }

func (s *MACrossover) GenerateSignal(history []market.Candle, symbol string, positionQty int64) TradeSignal {
	return crossoverSignal(history, symbol, positionQty, crossoverInput{
		label:       "MA",
		shortPeriod: s.params.ShortPeriod,
		longPeriod:  s.params.LongPeriod,
		series:      smaSeries,
	})
}

// EMACrossover is the faster variant: exponential averages weight recent
// prices more heavily, so crosses fire earlier.
type EMACrossover struct {
	params CrossoverParams
}

func NewEMACrossover(params CrossoverParams) *EMACrossover {
	if params.ShortPeriod <= 0 {
		params.ShortPeriod = 12
	}
	if params.LongPeriod <= 0 {
		params.LongPeriod = 26
	}
	return &EMACrossover{params: params}
}

func (s *EMACrossover) Name() string { return "EMA_Crossover" }

func (s *EMACrossover) GenerateSignal(history []market.Candle, symbol string, positionQty int64) TradeSignal {
	return crossoverSignal(history, symbol, positionQty, crossoverInput{
		label:       "EMA",
		shortPeriod: s.params.ShortPeriod,
		longPeriod:  s.params.LongPeriod,
		series:      emaSeries,
	})
}

// TrendBullish reports whether the short EMA currently sits above the long
// one. Used by the combined strategy as a trend vote.
func (s *EMACrossover) TrendBullish(history []market.Candle) (bullish bool, ok bool) {
	if len(history) < s.params.LongPeriod+1 {
		return false, false
	}
	closes := market.Closes(history)
	short := emaSeries(closes, s.params.ShortPeriod)
	long := emaSeries(closes, s.params.LongPeriod)
	curShort := short[len(short)-1]
	curLong := long[len(long)-1]
	if !finite(curShort) || !finite(curLong) || curShort == curLong {
		return false, false
	}
	return curShort > curLong, true
}

type crossoverInput struct {
	label       string
	shortPeriod int
	longPeriod  int
	series      func(values []float64, period int) []float64
}

// crossoverSignal implements the shared cross detection: compare the sign of
// short−long on the last two bars.
func crossoverSignal(history []market.Candle, symbol string, positionQty int64, in crossoverInput) TradeSignal {
	if len(history) < in.longPeriod+1 {
		return hold(history, symbol, fmt.Sprintf("insufficient data for %s calculation", in.label))
	}
	closes := market.Closes(history)
	short := in.series(closes, in.shortPeriod)
	long := in.series(closes, in.longPeriod)

	prevShort, curShort, okS := lastTwo(short)
	prevLong, curLong, okL := lastTwo(long)
	if !okS || !okL {
		return hold(history, symbol, fmt.Sprintf("%s value undefined", in.label))
	}

	bullishCross := prevShort <= prevLong && curShort > curLong
	bearishCross := prevShort >= prevLong && curShort < curLong
	separation := 0.0
	if curLong != 0 {
		separation = absFloat(curShort-curLong) / curLong
	}

	last := lastBar(history)
	sig := TradeSignal{Symbol: symbol, Price: last.Close, Timestamp: last.CloseTime}

	switch {
	case positionQty == 0:
		if bullishCross {
			sig.Signal = SignalBuy
			sig.Strength = clamp01(separation * 10)
			sig.Reason = fmt.Sprintf("bullish crossover: %s%d crossed above %s%d", in.label, in.shortPeriod, in.label, in.longPeriod)
			return sig
		}
		if bearishCross {
			sig.Signal = SignalSell
			sig.Strength = clamp01(separation * 10)
			sig.Reason = fmt.Sprintf("bearish crossover: %s%d crossed below %s%d", in.label, in.shortPeriod, in.label, in.longPeriod)
			return sig
		}
	case positionQty > 0:
		if bearishCross {
			sig.Signal = SignalClose
			sig.Reason = fmt.Sprintf("exit long: bearish %s crossover", in.label)
			return sig
		}
	default:
		if bullishCross {
			sig.Signal = SignalClose
			sig.Reason = fmt.Sprintf("exit short: bullish %s crossover", in.label)
			return sig
		}
	}

	trend := "bearish"
	if curShort > curLong {
		trend = "bullish"
	}
	sig.Signal = SignalHold
	sig.Reason = fmt.Sprintf("no crossover, trend %s (sep %.4f)", trend, separation)
	return sig
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
