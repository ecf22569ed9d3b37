// Package regime classifies recent market behaviour so the adaptive
// strategy selector can route to a suitable signal generator.
package regime

import (
	"math"

	"github.com/markcheno/go-talib"

	"quantsim/internal/market"
)

type Regime string

const (
	Uptrend   Regime = "UPTREND"
	Downtrend Regime = "DOWNTREND"
	Sideways  Regime = "SIDEWAYS"
	Undefined Regime = "UNDEFINED"
)

// Conditions 当前市场状态快照。趋势方向由回归斜率决定，Trending/Sideways
// 两个布尔位单独由 DX 阈值决定，二者可以不一致（缓慢但干净的单边行情）。
type Conditions struct {
	Regime        Regime  `json:"regime"`
	TrendStrength float64 `json:"trend_strength"` // ADX-style 0-100
	Volatility    float64 `json:"volatility"`     // annualized pct
	Trending      bool    `json:"trending"`       // DX > 25
	Sideways      bool    `json:"sideways"`       // DX < 20
	VolumeActive  bool    `json:"volume_active"`
}

// Analyzer inspects a fixed trailing window of candles.
type Analyzer struct {
	lookback int
}

func NewAnalyzer(lookback int) *Analyzer {
	if lookback <= 0 {
		lookback = 60
	}
	return &Analyzer{lookback: lookback}
}

func (a *Analyzer) Lookback() int { return a.lookback }

// Analyze returns Undefined conditions when fewer than lookback bars exist.
func (a *Analyzer) Analyze(history []market.Candle) Conditions {
	if len(history) < a.lookback {
		return Conditions{Regime: Undefined}
	}
	window := history[len(history)-a.lookback:]
	closes := market.Closes(window)
	highs := market.Highs(window)
	lows := market.Lows(window)

	adx := a.trendStrength(highs, lows, closes)
	vol := a.volatility(closes)
	slope := lastFinite(talib.LinearRegSlope(closes, len(closes)))
	std := lastFinite(talib.StdDev(closes, len(closes), 1))

	cond := Conditions{
		TrendStrength: adx,
		Volatility:    vol,
		Trending:      adx > 25,
		Sideways:      adx < 20,
		VolumeActive:  a.volumeActive(market.Volumes(window)),
	}
	threshold := 0.1 * std
	switch {
	case slope > threshold:
		cond.Regime = Uptrend
	case slope < -threshold:
		cond.Regime = Downtrend
	default:
		cond.Regime = Sideways
	}
	return cond
}

// trendStrength computes a one-shot DX over the whole window. A true
// smoothed ADX needs a much longer warmup than the lookback provides, and
// the router only cares about coarse thresholds.
func (a *Analyzer) trendStrength(highs, lows, closes []float64) float64 {
	var plusDM, minusDM, trSum float64
	for i := 1; i < len(closes); i++ {
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		if up > down && up > 0 {
			plusDM += up
		}
		if down > up && down > 0 {
			minusDM += down
		}
		tr := math.Max(highs[i]-lows[i], math.Max(
			math.Abs(highs[i]-closes[i-1]),
			math.Abs(lows[i]-closes[i-1])))
		trSum += tr
	}
	if trSum == 0 {
		return 0
	}
	plusDI := 100 * plusDM / trSum
	minusDI := 100 * minusDM / trSum
	dx := 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI + 1e-10)
	return dx
}

// volatility is the annualized standard deviation of simple returns, in percent.
func (a *Analyzer) volatility(closes []float64) float64 {
	if len(closes) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, closes[i]/closes[i-1]-1)
	}
	if len(returns) < 2 {
		return 0
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	return math.Sqrt(variance) * math.Sqrt(252) * 100
}

// volumeActive compares the last 5 bars' mean volume against the trailing
// 20-bar mean.
func (a *Analyzer) volumeActive(volumes []float64) bool {
	if len(volumes) < 20 {
		return false
	}
	window := volumes[len(volumes)-20:]
	var avg float64
	for _, v := range window {
		avg += v
	}
	avg /= float64(len(window))
	var recent float64
	for _, v := range window[len(window)-5:] {
		recent += v
	}
	recent /= 5
	return recent > avg*1.2
}

func lastFinite(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		v := series[i]
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v
		}
	}
	return 0
}
