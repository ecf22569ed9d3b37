package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(capital, leverage float64) *Engine {
	return New(Config{InitialCapital: capital, MaxLeverage: leverage})
}

func mustFill(t *testing.T, e *Engine, symbol string, side Side, qty int64, price float64, ts time.Time) *Order {
	t.Helper()
	o := NewMarketOrder(symbol, side, qty, ts)
	require.True(t, e.SubmitOrder(o))
	require.True(t, e.ExecuteMarketOrder(o, price, map[string]float64{symbol: price}, ts))
	return o
}

func TestEngine_LongRoundTrip(t *testing.T) {
	e := newTestEngine(10000, 1)
	ts := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

	mustFill(t, e, "AAPL", SideBuy, 10, 100, ts)
	assert.InDelta(t, 9000.0, e.Cash(), 1e-9)
	assert.EqualValues(t, 10, e.PositionQuantity("AAPL"))

	mustFill(t, e, "AAPL", SideSell, 10, 110, ts.Add(time.Hour))
	assert.InDelta(t, 10100.0, e.Cash(), 1e-9)
	assert.EqualValues(t, 0, e.PositionQuantity("AAPL"))

	closed := e.ClosedPositions()
	require.Len(t, closed, 1)
	assert.InDelta(t, 100.0, closed[0].RealizedPnL, 1e-9)
	assert.True(t, closed[0].IsProfitable())
	assert.InDelta(t, 100.0, e.TotalRealizedPnL(), 1e-9)
}

func TestEngine_ShortRoundTrip(t *testing.T) {
	e := newTestEngine(10000, 1)
	ts := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

	mustFill(t, e, "AAPL", SideSell, 10, 100, ts)
	// 做空先入金：卖出所得计入现金
	assert.InDelta(t, 11000.0, e.Cash(), 1e-9)
	assert.EqualValues(t, -10, e.PositionQuantity("AAPL"))

	mustFill(t, e, "AAPL", SideBuy, 10, 90, ts.Add(time.Hour))
	assert.InDelta(t, 10100.0, e.Cash(), 1e-9)

	closed := e.ClosedPositions()
	require.Len(t, closed, 1)
	assert.InDelta(t, 100.0, closed[0].RealizedPnL, 1e-9)
	assert.EqualValues(t, -10, closed[0].Quantity)
}

func TestEngine_AddAveragesEntry(t *testing.T) {
	e := newTestEngine(10000, 1)
	ts := time.Now()

	mustFill(t, e, "AAPL", SideBuy, 10, 100, ts)
	mustFill(t, e, "AAPL", SideBuy, 10, 110, ts.Add(time.Minute))

	pos, ok := e.CurrentPosition("AAPL")
	require.True(t, ok)
	assert.EqualValues(t, 20, pos.Quantity)
	assert.InDelta(t, 105.0, pos.EntryPrice, 1e-9)
	assert.InDelta(t, 7900.0, e.Cash(), 1e-9)
}

func TestEngine_PartialCloseAdditivity(t *testing.T) {
	e := newTestEngine(10000, 1)
	ts := time.Now()

	mustFill(t, e, "AAPL", SideBuy, 10, 100, ts)
	mustFill(t, e, "AAPL", SideSell, 4, 120, ts.Add(time.Minute))

	pos, ok := e.CurrentPosition("AAPL")
	require.True(t, ok)
	assert.EqualValues(t, 6, pos.Quantity)
	// 剩余部分的开仓价不变
	assert.InDelta(t, 100.0, pos.EntryPrice, 1e-9)
	assert.InDelta(t, 9480.0, e.Cash(), 1e-9)

	mustFill(t, e, "AAPL", SideSell, 6, 120, ts.Add(2*time.Minute))
	_, stillOpen := e.CurrentPosition("AAPL")
	assert.False(t, stillOpen)

	closed := e.ClosedPositions()
	require.Len(t, closed, 2)
	assert.InDelta(t, 80.0, closed[0].RealizedPnL, 1e-9)
	assert.InDelta(t, 120.0, closed[1].RealizedPnL, 1e-9)
	// 分两次平仓 == 一次全平
	assert.InDelta(t, 200.0, e.TotalRealizedPnL(), 1e-9)
	assert.InDelta(t, 10200.0, e.Cash(), 1e-9)
}

func TestEngine_Reversal(t *testing.T) {
	e := newTestEngine(10000, 1)
	ts := time.Now()

	mustFill(t, e, "AAPL", SideBuy, 10, 100, ts)
	mustFill(t, e, "AAPL", SideSell, 15, 110, ts.Add(time.Minute))

	closed := e.ClosedPositions()
	require.Len(t, closed, 1)
	assert.EqualValues(t, 10, closed[0].Quantity)
	assert.InDelta(t, 100.0, closed[0].RealizedPnL, 1e-9)

	pos, ok := e.CurrentPosition("AAPL")
	require.True(t, ok)
	assert.EqualValues(t, -5, pos.Quantity)
	assert.InDelta(t, 110.0, pos.EntryPrice, 1e-9)
	assert.InDelta(t, 10650.0, e.Cash(), 1e-9)
}

func TestEngine_MarginRejection(t *testing.T) {
	e := newTestEngine(100, 1)
	ts := time.Now()

	o := NewMarketOrder("AAPL", SideBuy, 10, ts)
	require.True(t, e.SubmitOrder(o))
	ok := e.ExecuteMarketOrder(o, 100, map[string]float64{"AAPL": 100}, ts)

	assert.False(t, ok)
	assert.Equal(t, StatusRejected, o.Status)
	// 拒单不得改变任何账户状态
	assert.InDelta(t, 100.0, e.Cash(), 1e-9)
	assert.Empty(t, e.Positions())
	assert.Equal(t, 1, e.OrderCount())
	assert.Equal(t, 0, e.FilledCount())
}

func TestEngine_SlippageAndCommission(t *testing.T) {
	e := New(Config{InitialCapital: 100000, MaxLeverage: 1, SlippagePct: 0.01, CommissionPct: 0.001})
	ts := time.Now()

	o := NewMarketOrder("AAPL", SideBuy, 10, ts)
	require.True(t, e.SubmitOrder(o))
	require.True(t, e.ExecuteMarketOrder(o, 100, map[string]float64{"AAPL": 100}, ts))

	assert.InDelta(t, 101.0, o.FillPrice, 1e-9)
	commission := e.Commission(10, o.FillPrice)
	assert.InDelta(t, 1.01, commission, 1e-9)
	assert.InDelta(t, 100000-(1010+1.01), e.Cash(), 1e-9)

	assert.InDelta(t, 99.0, e.ApplySlippage(100, SideSell), 1e-9)
}

func TestEngine_LeverageMargin(t *testing.T) {
	e := newTestEngine(10000, 5)
	ts := time.Now()

	mustFill(t, e, "AAPL", SideBuy, 100, 100, ts)
	// 5 倍杠杆只占用 1/5 保证金
	assert.InDelta(t, 8000.0, e.Cash(), 1e-9)

	mustFill(t, e, "AAPL", SideSell, 100, 110, ts.Add(time.Minute))
	assert.InDelta(t, 11000.0, e.Cash(), 1e-9)
	assert.InDelta(t, 1000.0, e.TotalRealizedPnL(), 1e-9)
}

func TestEngine_MoneyConservation(t *testing.T) {
	e := newTestEngine(10000, 1)
	ts := time.Now()
	prices := map[string]float64{"AAPL": 100}

	mustFill(t, e, "AAPL", SideBuy, 10, 100, ts)
	// 开仓瞬间无浮动盈亏：组合价值 = 现金
	assert.InDelta(t, 9000.0, e.TotalPortfolioValue(prices), 1e-9)

	prices["AAPL"] = 120
	unrealized := e.TotalUnrealizedPnL(prices)
	assert.InDelta(t, 200.0, unrealized, 1e-9)
	assert.InDelta(t, e.Cash()+unrealized, e.TotalPortfolioValue(prices), 1e-9)

	mustFill(t, e, "AAPL", SideSell, 10, 120, ts.Add(time.Minute))
	// 全平后组合价值 = 初始资金 + 已实现盈亏
	assert.InDelta(t, 10000.0+e.TotalRealizedPnL(), e.TotalPortfolioValue(prices), 1e-9)
}

func TestEngine_AvailableCapital(t *testing.T) {
	e := newTestEngine(10000, 2)
	ts := time.Now()
	prices := map[string]float64{"AAPL": 100}

	assert.InDelta(t, 20000.0, e.AvailableCapital(prices), 1e-9)

	mustFill(t, e, "AAPL", SideBuy, 50, 100, ts)
	// cash = 10000 - 5000/2 = 7500; margin used = 5000/2 = 2500
	assert.InDelta(t, 7500*2-2500, e.AvailableCapital(prices), 1e-9)

	prices["AAPL"] = 0
	delete(prices, "AAPL")
	// 缺价时回退到开仓价估算保证金
	assert.InDelta(t, 7500*2-2500, e.AvailableCapital(prices), 1e-9)
}

func TestEngine_RejectInvalidOrders(t *testing.T) {
	e := newTestEngine(10000, 1)
	ts := time.Now()

	assert.False(t, e.SubmitOrder(nil))
	assert.False(t, e.ExecuteMarketOrder(nil, 100, nil, ts))

	o := NewMarketOrder("AAPL", SideBuy, 0, ts)
	assert.False(t, e.ExecuteMarketOrder(o, 100, nil, ts))
	assert.Equal(t, StatusRejected, o.Status)

	o2 := NewMarketOrder("AAPL", SideBuy, 10, ts)
	assert.False(t, e.ExecuteMarketOrder(o2, 0, nil, ts))
	assert.Equal(t, StatusRejected, o2.Status)
}
