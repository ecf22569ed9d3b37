package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantsim/internal/engine"
)

func TestRiskTracker_Drawdown(t *testing.T) {
	e := engine.New(engine.Config{InitialCapital: 10000, MaxLeverage: 1})
	tr := NewRiskTracker(e)

	fill(t, e, "AAPL", engine.SideBuy, 10, 100)

	tr.Record(1000, map[string]float64{"AAPL": 100}) // 9000
	tr.Record(2000, map[string]float64{"AAPL": 200}) // 10000
	tr.Record(3000, map[string]float64{"AAPL": 150}) // 9500

	curve := tr.EquityCurve()
	require.Len(t, curve, 3)
	assert.InDelta(t, 9000.0, curve[0], 1e-9)
	assert.InDelta(t, 10000.0, curve[1], 1e-9)
	assert.InDelta(t, 9500.0, curve[2], 1e-9)

	// 峰值从初始资金起算：第一笔 9000 就是 $1000（10%）的回撤
	maxDD, maxDDPct := tr.MaxDrawdown()
	assert.InDelta(t, 1000.0, maxDD, 1e-9)
	assert.InDelta(t, 0.10, maxDDPct, 1e-9)

	curDD, curDDPct := tr.CurrentDrawdown()
	assert.InDelta(t, 500.0, curDD, 1e-9)
	assert.InDelta(t, 0.05, curDDPct, 1e-9)
}

// 最大回撤按美元值扫描：峰值翻倍后 $1500 的回撤要胜出，即使它只占
// 峰值的 7.5%，小于早先那笔 10% 的回撤。
func TestRiskTracker_MaxDrawdownByDollars(t *testing.T) {
	e := engine.New(engine.Config{InitialCapital: 10000, MaxLeverage: 1})
	tr := NewRiskTracker(e)

	fill(t, e, "AAPL", engine.SideBuy, 10, 100)

	tr.Record(1000, map[string]float64{"AAPL": 100})  // 9000
	tr.Record(2000, map[string]float64{"AAPL": 1200}) // 20000
	tr.Record(3000, map[string]float64{"AAPL": 1050}) // 18500

	maxDD, maxDDPct := tr.MaxDrawdown()
	assert.InDelta(t, 1500.0, maxDD, 1e-9)
	assert.InDelta(t, 0.075, maxDDPct, 1e-9)
}

func TestRiskTracker_HistoryKeepsTimestamps(t *testing.T) {
	e := engine.New(engine.Config{InitialCapital: 10000, MaxLeverage: 1})
	tr := NewRiskTracker(e)

	tr.Record(1700000000000, nil)
	tr.Record(1700000060000, nil)

	points := tr.History()
	require.Len(t, points, 2)
	assert.Equal(t, int64(1700000000000), points[0].TS)
	assert.Equal(t, int64(1700000060000), points[1].TS)
	assert.InDelta(t, 10000.0, points[0].Equity, 1e-9)

	// 副本，修改不回写
	points[0].Equity = 0
	assert.InDelta(t, 10000.0, tr.History()[0].Equity, 1e-9)
}

func TestRiskTracker_MaxDrawdownMonotone(t *testing.T) {
	e := engine.New(engine.Config{InitialCapital: 10000, MaxLeverage: 1})
	tr := NewRiskTracker(e)

	fill(t, e, "AAPL", engine.SideBuy, 10, 100)
	prev := 0.0
	for i, price := range []float64{110, 90, 120, 80, 150, 70} {
		tr.Record(int64(i)*1000, map[string]float64{"AAPL": price})
		dd, ddPct := tr.MaxDrawdown()
		assert.GreaterOrEqual(t, dd, prev)
		assert.GreaterOrEqual(t, ddPct, 0.0)
		assert.LessOrEqual(t, ddPct, 1.0)
		prev = dd
	}
}

func TestRiskTracker_PeakNonDecreasing(t *testing.T) {
	e := engine.New(engine.Config{InitialCapital: 10000, MaxLeverage: 1})
	tr := NewRiskTracker(e)

	fill(t, e, "AAPL", engine.SideBuy, 10, 100)
	peaks := make([]float64, 0, 4)
	for i, price := range []float64{150, 120, 300, 100} {
		tr.Record(int64(i)*1000, map[string]float64{"AAPL": price})
		s := tr.Summarize(map[string]float64{"AAPL": price})
		peaks = append(peaks, s.Peak)
	}
	for i := 1; i < len(peaks); i++ {
		assert.GreaterOrEqual(t, peaks[i], peaks[i-1])
	}
}

func TestRiskTracker_Summarize(t *testing.T) {
	e := engine.New(engine.Config{InitialCapital: 10000, MaxLeverage: 2})
	tr := NewRiskTracker(e)

	fill(t, e, "AAPL", engine.SideBuy, 50, 100)
	prices := map[string]float64{"AAPL": 110}
	tr.Record(1000, prices)
	s := tr.Summarize(prices)

	// cash = 7500，浮盈 50×10 = 500
	assert.InDelta(t, 8000.0, s.Equity, 1e-9)
	assert.InDelta(t, 2750.0, s.MarginUsed, 1e-9)
	assert.InDelta(t, 5500.0, s.Exposure["AAPL"], 1e-9)
	assert.InDelta(t, 500.0, s.UnrealizedPnL["AAPL"], 1e-9)
	assert.InDelta(t, 2750.0/15000.0, s.MarginUtilization, 1e-9)

	// 权益从 10000 跌到 8000：$2000 / 20%，美元值与比例都要在汇总里
	assert.InDelta(t, 2000.0, s.MaxDrawdown, 1e-9)
	assert.InDelta(t, 0.20, s.MaxDrawdownPct, 1e-9)
	assert.InDelta(t, 2000.0, s.CurrentDrawdown, 1e-9)
	assert.InDelta(t, 0.20, s.CurrentDrawdownPct, 1e-9)
}

func TestRiskTracker_EmptyCurve(t *testing.T) {
	e := engine.New(engine.Config{InitialCapital: 10000, MaxLeverage: 1})
	tr := NewRiskTracker(e)

	dd, ddPct := tr.CurrentDrawdown()
	assert.Zero(t, dd)
	assert.Zero(t, ddPct)
	dd, ddPct = tr.MaxDrawdown()
	assert.Zero(t, dd)
	assert.Zero(t, ddPct)
	assert.Empty(t, tr.DrawdownCurve())
	assert.Empty(t, tr.History())
}
