package portfolio

import (
	"quantsim/internal/engine"
)

// EquityPoint 净值曲线上的一个采样点（毫秒时间戳）。
type EquityPoint struct {
	TS     int64   `json:"ts"`
	Equity float64 `json:"equity"`
}

// RiskSummary 风险指标汇总。回撤同时给出美元值和占峰值的比例。
type RiskSummary struct {
	Equity             float64            `json:"equity"`
	Peak               float64            `json:"peak"`
	CurrentDrawdown    float64            `json:"current_drawdown"`
	CurrentDrawdownPct float64            `json:"current_drawdown_pct"`
	MaxDrawdown        float64            `json:"max_drawdown"`
	MaxDrawdownPct     float64            `json:"max_drawdown_pct"`
	MarginUsed         float64            `json:"margin_used"`
	MarginAvailable    float64            `json:"margin_available"`
	MarginUtilization  float64            `json:"margin_utilization"`
	Exposure           map[string]float64 `json:"exposure"`
	UnrealizedPnL      map[string]float64 `json:"unrealized_pnl"`
}

// RiskTracker records the equity curve across simulation ticks and derives
// drawdown and margin metrics. Not safe for concurrent use; each run owns
// its own tracker.
type RiskTracker struct {
	eng     *engine.Engine
	history []EquityPoint
	peak    float64
}

func NewRiskTracker(eng *engine.Engine) *RiskTracker {
	return &RiskTracker{
		eng:  eng,
		peak: eng.InitialCapital(),
	}
}

// Record appends the current portfolio value to the equity curve.
func (t *RiskTracker) Record(ts int64, prices map[string]float64) float64 {
	equity := t.eng.TotalPortfolioValue(prices)
	t.history = append(t.history, EquityPoint{TS: ts, Equity: equity})
	if equity > t.peak {
		t.peak = equity
	}
	return equity
}

// History 返回带时间戳的净值序列副本。
func (t *RiskTracker) History() []EquityPoint {
	out := make([]EquityPoint, len(t.history))
	copy(out, t.history)
	return out
}

// EquityCurve 返回历史净值序列副本（仅数值）。
func (t *RiskTracker) EquityCurve() []float64 {
	out := make([]float64, len(t.history))
	for i, p := range t.history {
		out[i] = p.Equity
	}
	return out
}

// MaxDrawdown scans the recorded curve for the largest peak-to-trough dollar
// decline and reports it together with its fraction of the peak at that
// trough. The peak starts at initial capital so a curve that only ever loses
// money still reports a drawdown.
func (t *RiskTracker) MaxDrawdown() (dollars, pct float64) {
	peak := t.eng.InitialCapital()
	for _, p := range t.history {
		if p.Equity > peak {
			peak = p.Equity
		}
		if dd := peak - p.Equity; dd > dollars {
			dollars = dd
			pct = 0
			if peak > 0 {
				pct = dd / peak
			}
		}
	}
	return dollars, pct
}

// CurrentDrawdown 相对历史最高净值的当前回撤（美元值与比例）。
func (t *RiskTracker) CurrentDrawdown() (dollars, pct float64) {
	if len(t.history) == 0 || t.peak <= 0 {
		return 0, 0
	}
	last := t.history[len(t.history)-1].Equity
	if last >= t.peak {
		return 0, 0
	}
	dd := t.peak - last
	return dd, dd / t.peak
}

// DrawdownCurve converts the equity curve into per-tick drawdown fractions.
func (t *RiskTracker) DrawdownCurve() []float64 {
	peak := t.eng.InitialCapital()
	out := make([]float64, len(t.history))
	for i, p := range t.history {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			out[i] = (peak - p.Equity) / peak
		}
	}
	return out
}

// Summarize 计算当前风险快照。
func (t *RiskTracker) Summarize(prices map[string]float64) RiskSummary {
	equity := t.eng.TotalPortfolioValue(prices)

	var marginUsed float64
	exposure := make(map[string]float64)
	unrealized := make(map[string]float64)
	for symbol, pos := range t.eng.Positions() {
		price, ok := prices[symbol]
		if !ok {
			price = pos.EntryPrice
		}
		marginUsed += pos.MarginRequired(price)
		exposure[symbol] = pos.Value(price)
		unrealized[symbol] = pos.UnrealizedPnL(price)
	}

	maxDD, maxDDPct := t.MaxDrawdown()
	curDD, curDDPct := t.CurrentDrawdown()
	s := RiskSummary{
		Equity:             equity,
		Peak:               t.peak,
		CurrentDrawdown:    curDD,
		CurrentDrawdownPct: curDDPct,
		MaxDrawdown:        maxDD,
		MaxDrawdownPct:     maxDDPct,
		MarginUsed:         marginUsed,
		MarginAvailable:    t.eng.AvailableCapital(prices),
		Exposure:           exposure,
		UnrealizedPnL:      unrealized,
	}
	if capacity := t.eng.Cash() * t.eng.MaxLeverage(); capacity > 0 {
		s.MarginUtilization = marginUsed / capacity
	}
	return s
}
