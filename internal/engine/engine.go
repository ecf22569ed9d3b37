package engine

import (
	"time"

	"quantsim/internal/logger"
)

// Config 描述撮合引擎的账户参数。
type Config struct {
	InitialCapital float64
	MaxLeverage    float64
	SlippagePct    float64
	CommissionPct  float64
}

// Engine simulates order execution against a margin account. It is the only
// owner of the position book and the cash balance; every mutation goes
// through ExecuteMarketOrder. Not safe for concurrent use.
type Engine struct {
	initialCapital float64
	cash           float64
	maxLeverage    float64
	slippagePct    float64
	commissionPct  float64

	positions map[string]*Position
	closed    []ClosedPosition
	pending   []*Order
	filled    []*Order
	all       []*Order
}

func New(cfg Config) *Engine {
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = 10000
	}
	if cfg.MaxLeverage < 1 {
		cfg.MaxLeverage = 1
	}
	return &Engine{
		initialCapital: cfg.InitialCapital,
		cash:           cfg.InitialCapital,
		maxLeverage:    cfg.MaxLeverage,
		slippagePct:    cfg.SlippagePct,
		commissionPct:  cfg.CommissionPct,
		positions:      make(map[string]*Position),
	}
}

func (e *Engine) Cash() float64           { return e.cash }
func (e *Engine) InitialCapital() float64 { return e.initialCapital }
func (e *Engine) MaxLeverage() float64    { return e.maxLeverage }

// CurrentPosition returns a copy of the open position for the symbol.
func (e *Engine) CurrentPosition(symbol string) (Position, bool) {
	pos, ok := e.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// PositionQuantity returns the signed quantity, zero when flat.
func (e *Engine) PositionQuantity(symbol string) int64 {
	if pos, ok := e.positions[symbol]; ok {
		return pos.Quantity
	}
	return 0
}

// Positions returns a copy of the position book.
func (e *Engine) Positions() map[string]Position {
	out := make(map[string]Position, len(e.positions))
	for sym, pos := range e.positions {
		out[sym] = *pos
	}
	return out
}

// ClosedPositions returns the append-only log of realized trades.
func (e *Engine) ClosedPositions() []ClosedPosition {
	return append([]ClosedPosition(nil), e.closed...)
}

func (e *Engine) OrderCount() int  { return len(e.all) }
func (e *Engine) FilledCount() int { return len(e.filled) }

// SubmitOrder queues an order; execution happens via ExecuteMarketOrder.
func (e *Engine) SubmitOrder(o *Order) bool {
	if o == nil {
		return false
	}
	e.all = append(e.all, o)
	e.pending = append(e.pending, o)
	return true
}

// AvailableCapital is the buying power left for new trades: leveraged cash
// minus the margin tied up by open positions, floored at zero.
func (e *Engine) AvailableCapital(prices map[string]float64) float64 {
	marginUsed := 0.0
	for sym, pos := range e.positions {
		price, ok := prices[sym]
		if !ok {
			price = pos.EntryPrice
		}
		marginUsed += pos.MarginRequired(price)
	}
	available := e.cash*e.maxLeverage - marginUsed
	if available < 0 {
		return 0
	}
	return available
}

// ApplySlippage worsens the price in the direction of the trade. Fill-time
// pricing is deterministic; randomness lives in the price generator.
func (e *Engine) ApplySlippage(price float64, side Side) float64 {
	if side == SideBuy {
		return price * (1 + e.slippagePct)
	}
	return price * (1 - e.slippagePct)
}

// Commission charges a flat percentage of the traded notional.
func (e *Engine) Commission(quantity int64, price float64) float64 {
	return abs64(quantity) * price * e.commissionPct
}

// ExecuteMarketOrder fills the order at the slipped price. Buys pass through
// the margin admission gate first: when the required margin exceeds the
// available capital the order is rejected and nothing is mutated. Returns
// true only on a fill.
func (e *Engine) ExecuteMarketOrder(order *Order, currentPrice float64, prices map[string]float64, ts time.Time) bool {
	if order == nil || order.Quantity <= 0 || currentPrice <= 0 {
		if order != nil {
			order.reject()
		}
		return false
	}

	fillPrice := e.ApplySlippage(currentPrice, order.Side)
	tradeValue := abs64(order.Quantity) * fillPrice
	commission := e.Commission(order.Quantity, fillPrice)

	if order.Side == SideBuy {
		requiredMargin := (tradeValue + commission) / e.maxLeverage
		if available := e.AvailableCapital(prices); requiredMargin > available {
			order.reject()
			logger.Debugf("order %s rejected: margin %.2f exceeds available %.2f", order.ID, requiredMargin, available)
			return false
		}
	}

	order.fill(fillPrice, ts)
	e.filled = append(e.filled, order)
	for i, p := range e.pending {
		if p == order {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			break
		}
	}
	e.applyFill(order, commission)
	return true
}

// applyFill walks the position lifecycle: open, same-sign add, partial close,
// full close, or reversal. Exactly one commission per fill.
func (e *Engine) applyFill(order *Order, commission float64) {
	symbol := order.Symbol
	delta := order.SignedQuantity()
	pos, ok := e.positions[symbol]

	if !ok {
		e.openPosition(symbol, delta, order.FillPrice, order.FillTime, commission)
		return
	}

	sameSign := (pos.Quantity > 0) == (delta > 0)
	if sameSign {
		// Re-average the entry as the quantity-weighted cost of both legs.
		oldCost := abs64(pos.Quantity) * pos.EntryPrice
		newCost := abs64(delta) * order.FillPrice
		totalQty := abs64(pos.Quantity) + abs64(delta)
		pos.EntryPrice = (oldCost + newCost) / totalQty
		pos.Quantity += delta
		e.cash += openCashFlow(delta, order.FillPrice, commission, e.maxLeverage)
		return
	}

	closing := abs64i(delta)
	held := abs64i(pos.Quantity)
	switch {
	case closing < held:
		// Partial close realizes P&L on the closed portion only; the entry
		// price of the remainder is left untouched.
		snap := pos.closePartial(closing, order.FillPrice, order.FillTime)
		e.closed = append(e.closed, snap)
		e.cash += closeCashFlow(snap, commission, e.maxLeverage)
		pos.Quantity += delta
	case closing == held:
		snap := pos.close(order.FillPrice, order.FillTime)
		e.closed = append(e.closed, snap)
		e.cash += closeCashFlow(snap, commission, e.maxLeverage)
		delete(e.positions, symbol)
	default:
		// Reversal: close out in full, then open the remainder in the new
		// direction at the fill price. The commission was charged on the
		// closing leg already.
		snap := pos.close(order.FillPrice, order.FillTime)
		e.closed = append(e.closed, snap)
		e.cash += closeCashFlow(snap, commission, e.maxLeverage)
		delete(e.positions, symbol)
		remainder := pos.Quantity + delta
		e.openPosition(symbol, remainder, order.FillPrice, order.FillTime, 0)
	}
}

func (e *Engine) openPosition(symbol string, quantity int64, price float64, ts time.Time, commission float64) {
	e.positions[symbol] = &Position{
		Symbol:     symbol,
		Quantity:   quantity,
		EntryPrice: price,
		EntryTime:  ts,
		Leverage:   e.maxLeverage,
	}
	e.cash += openCashFlow(quantity, price, commission, e.maxLeverage)
}

// openCashFlow reserves margin for longs and credits the short-sale proceeds
// for shorts, commission included either way.
func openCashFlow(quantity int64, price, commission, leverage float64) float64 {
	value := abs64(quantity) * price
	if quantity > 0 {
		return -(value + commission) / leverage
	}
	return (value - commission) / leverage
}

// closeCashFlow releases the entry-priced margin of the closed portion and
// settles realized P&L net of commission. Shorts unwind the proceeds that
// were credited at open.
func closeCashFlow(snap ClosedPosition, commission, leverage float64) float64 {
	entryValue := abs64(snap.Quantity) * snap.EntryPrice
	if snap.Quantity > 0 {
		return entryValue/leverage + snap.RealizedPnL - commission
	}
	return snap.RealizedPnL - commission - entryValue/leverage
}

// TotalPortfolioValue is cash plus the unrealized P&L of every open position.
func (e *Engine) TotalPortfolioValue(prices map[string]float64) float64 {
	return e.cash + e.TotalUnrealizedPnL(prices)
}

// TotalUnrealizedPnL marks every open position at the supplied prices,
// falling back to the entry price for unknown symbols.
func (e *Engine) TotalUnrealizedPnL(prices map[string]float64) float64 {
	total := 0.0
	for sym, pos := range e.positions {
		price, ok := prices[sym]
		if !ok {
			price = pos.EntryPrice
		}
		total += pos.UnrealizedPnL(price)
	}
	return total
}

// TotalRealizedPnL sums the closed-position log.
func (e *Engine) TotalRealizedPnL() float64 {
	total := 0.0
	for _, cp := range e.closed {
		total += cp.RealizedPnL
	}
	return total
}
