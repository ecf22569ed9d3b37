// Package portfolio aggregates execution engine state into account-level
// summaries and risk metrics.
package portfolio

import (
	"math"

	"quantsim/internal/engine"
)

// PositionView 持仓展示结构
type PositionView struct {
	Symbol           string  `json:"symbol"`
	Quantity         int64   `json:"quantity"`
	EntryPrice       float64 `json:"entry_price"`
	CurrentPrice     float64 `json:"current_price"`
	UnrealizedPnL    float64 `json:"unrealized_pnl"`
	UnrealizedPnLPct float64 `json:"unrealized_pnl_pct"`
	Value            float64 `json:"value"`
	MarginRequired   float64 `json:"margin_required"`
	Leverage         float64 `json:"leverage"`
}

// Summary 账户整体概览
type Summary struct {
	Cash             float64        `json:"cash"`
	TotalValue       float64        `json:"total_value"`
	TotalReturnPct   float64        `json:"total_return_pct"`
	UnrealizedPnL    float64        `json:"unrealized_pnl"`
	RealizedPnL      float64        `json:"realized_pnl"`
	OpenPositions    int            `json:"open_positions"`
	ClosedTrades     int            `json:"closed_trades"`
	WinningTrades    int            `json:"winning_trades"`
	LosingTrades     int            `json:"losing_trades"`
	WinRate          float64        `json:"win_rate"`
	AvgWin           float64        `json:"avg_win"`
	AvgLoss          float64        `json:"avg_loss"`
	ProfitFactor     float64        `json:"profit_factor"`
	Positions        []PositionView `json:"positions"`
}

// Manager reads engine state. It holds no state of its own so it can be
// rebuilt freely.
type Manager struct {
	eng *engine.Engine
}

func NewManager(eng *engine.Engine) *Manager {
	return &Manager{eng: eng}
}

// PositionViews 按最新价格展开所有持仓。
func (m *Manager) PositionViews(prices map[string]float64) []PositionView {
	positions := m.eng.Positions()
	views := make([]PositionView, 0, len(positions))
	for symbol, pos := range positions {
		price, ok := prices[symbol]
		if !ok {
			price = pos.EntryPrice
		}
		views = append(views, PositionView{
			Symbol:           symbol,
			Quantity:         pos.Quantity,
			EntryPrice:       pos.EntryPrice,
			CurrentPrice:     price,
			UnrealizedPnL:    pos.UnrealizedPnL(price),
			UnrealizedPnLPct: pos.UnrealizedPnLPct(price),
			Value:            pos.Value(price),
			MarginRequired:   pos.MarginRequired(price),
			Leverage:         pos.Leverage,
		})
	}
	return views
}

// Summarize computes the full account summary at the given prices.
func (m *Manager) Summarize(prices map[string]float64) Summary {
	closed := m.eng.ClosedPositions()
	var wins, losses int
	var grossProfit, grossLoss float64
	for _, c := range closed {
		if c.IsProfitable() {
			wins++
			grossProfit += c.RealizedPnL
		} else {
			losses++
			grossLoss += math.Abs(c.RealizedPnL)
		}
	}

	s := Summary{
		Cash:          m.eng.Cash(),
		TotalValue:    m.eng.TotalPortfolioValue(prices),
		UnrealizedPnL: m.eng.TotalUnrealizedPnL(prices),
		RealizedPnL:   m.eng.TotalRealizedPnL(),
		OpenPositions: len(m.eng.Positions()),
		ClosedTrades:  len(closed),
		WinningTrades: wins,
		LosingTrades:  losses,
		Positions:     m.PositionViews(prices),
	}
	if init := m.eng.InitialCapital(); init > 0 {
		s.TotalReturnPct = (s.TotalValue - init) / init * 100
	}
	if len(closed) > 0 {
		s.WinRate = float64(wins) / float64(len(closed)) * 100
	}
	if wins > 0 {
		s.AvgWin = grossProfit / float64(wins)
	}
	if losses > 0 {
		s.AvgLoss = grossLoss / float64(losses)
	}
	switch {
	case grossLoss > 0:
		s.ProfitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		// no losing trades yet
		s.ProfitFactor = math.Inf(1)
	}
	return s
}
