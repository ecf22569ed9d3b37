package strategy

import (
	"math"

	talib "github.com/markcheno/go-talib"
)

// Thin wrappers around go-talib plus the oscillator math talib has no
// matching form for. talib pads the lookback prefix with zeros; callers gate
// on history length so the last two values they read are always past the
// warmup.

func smaSeries(values []float64, period int) []float64 {
	return talib.Sma(values, period)
}

func emaSeries(values []float64, period int) []float64 {
	return talib.Ema(values, period)
}

func rsiSeries(values []float64, period int) []float64 {
	return talib.Rsi(values, period)
}

func lastTwo(series []float64) (prev, cur float64, ok bool) {
	if len(series) < 2 {
		return 0, 0, false
	}
	prev, cur = series[len(series)-2], series[len(series)-1]
	if math.IsNaN(prev) || math.IsNaN(cur) || math.IsInf(prev, 0) || math.IsInf(cur, 0) {
		return 0, 0, false
	}
	return prev, cur, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// stochasticK computes raw %K over every complete window. A flat window
// (highest == lowest) yields the neutral 50 instead of a division blowup.
func stochasticK(highs, lows, closes []float64, kPeriod int) []float64 {
	if len(closes) < kPeriod {
		return nil
	}
	out := make([]float64, 0, len(closes)-kPeriod+1)
	for i := 0; i+kPeriod <= len(closes); i++ {
		highest := highs[i]
		lowest := lows[i]
		for j := i + 1; j < i+kPeriod; j++ {
			if highs[j] > highest {
				highest = highs[j]
			}
			if lows[j] < lowest {
				lowest = lows[j]
			}
		}
		closePrice := closes[i+kPeriod-1]
		if highest == lowest {
			out = append(out, 50)
			continue
		}
		out = append(out, 100*(closePrice-lowest)/(highest-lowest))
	}
	return out
}
