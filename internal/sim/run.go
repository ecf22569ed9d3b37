package sim

import (
	"encoding/json"
	"time"
)

const (
	RunStatusPending = "pending"
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
)

// RunConfig 记录本次模拟的参数快照，便于重放。
type RunConfig struct {
	Symbols        []string `json:"symbols"`
	Strategy       string   `json:"strategy"`
	InitialCapital float64  `json:"initial_capital"`
	Leverage       float64  `json:"leverage"`
	SlippagePct    float64  `json:"slippage_pct"`
	CommissionPct  float64  `json:"commission_pct"`
	Ticks          int      `json:"ticks"`
	WarmupBars     int      `json:"warmup_bars"`
	Seed           int64    `json:"seed,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

// RunStats 汇总收益、风控指标，供前端展示。
type RunStats struct {
	FinalValue        float64   `json:"final_value"`
	Profit            float64   `json:"profit"`
	ReturnPct         float64   `json:"return_pct"`
	WinRate           float64   `json:"win_rate"`
	AvgWin            float64   `json:"avg_win"`
	AvgLoss           float64   `json:"avg_loss"`
	ProfitFactor      float64   `json:"profit_factor"`
	MaxDrawdownPct    float64   `json:"max_drawdown_pct"`
	Orders            int       `json:"orders"`
	FilledOrders      int       `json:"filled_orders"`
	Trades            int       `json:"trades"`
	Wins              int       `json:"wins"`
	Losses            int       `json:"losses"`
	AvgHoldingMinutes float64   `json:"avg_holding_minutes"`
	Snapshots         int       `json:"snapshots"`
	EquityPeak        float64   `json:"equity_peak"`
	EquityValley      float64   `json:"equity_valley"`
	FinishedAt        time.Time `json:"finished_at"`
}

// Run 表示一次模拟任务。
type Run struct {
	ID             string    `json:"id"`
	Strategy       string    `json:"strategy"`
	Status         string    `json:"status"`
	InitialCapital float64   `json:"initial_capital"`
	FinalValue     float64   `json:"final_value"`
	Profit         float64   `json:"profit"`
	ReturnPct      float64   `json:"return_pct"`
	WinRate        float64   `json:"win_rate"`
	MaxDrawdownPct float64   `json:"max_drawdown_pct"`
	Message        string    `json:"message"`
	Config         RunConfig `json:"config"`
	Stats          RunStats  `json:"stats"`
	Orders         int       `json:"orders"`
	Trades         int       `json:"trades"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	CompletedAt    time.Time `json:"completed_at"`
}

// MarshalStats 返回 stats JSON。
func (r Run) MarshalStats() ([]byte, error) {
	return json.Marshal(r.Stats)
}

// MarshalConfig 返回 config JSON。
func (r Run) MarshalConfig() ([]byte, error) {
	return json.Marshal(r.Config)
}

// OrderRecord 记录一次模拟下单行为。
type OrderRecord struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	OrderID    string    `json:"order_id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"` // BUY/SELL
	Status     string    `json:"status"`
	Quantity   int64     `json:"quantity"`
	Price      float64   `json:"price"`
	FillPrice  float64   `json:"fill_price"`
	Commission float64   `json:"commission"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExecutedAt time.Time `json:"executed_at"`
}

// TradeRecord 记录一次完整平仓的盈亏。
type TradeRecord struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"` // long/short
	Quantity   int64     `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	PnL        float64   `json:"pnl"`
	PnLPct     float64   `json:"pnl_pct"`
	HoldingMs  int64     `json:"holding_ms"`
	OpenedAt   time.Time `json:"opened_at"`
	ClosedAt   time.Time `json:"closed_at"`
}

// SnapshotRecord 保存资金曲线。
type SnapshotRecord struct {
	ID       int64   `json:"id"`
	RunID    string  `json:"run_id"`
	Tick     int     `json:"tick"`
	TS       int64   `json:"ts"`
	Equity   float64 `json:"equity"`
	Cash     float64 `json:"cash"`
	Drawdown float64 `json:"drawdown"`
	Exposure float64 `json:"exposure"`
}

// RunRequest 为 HTTP 提交使用。
type RunRequest struct {
	Symbols        []string `json:"symbols" binding:"required"`
	Strategy       string   `json:"strategy" binding:"required"`
	InitialCapital float64  `json:"initial_capital"`
	Leverage       float64  `json:"leverage"`
	SlippagePct    float64  `json:"slippage_pct"`
	CommissionPct  float64  `json:"commission_pct"`
	Ticks          int      `json:"ticks"`
	Seed           int64    `json:"seed"`
}
