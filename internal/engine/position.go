package engine

import (
	"fmt"
	"time"
)

// Position is an open holding. Quantity carries the direction: positive is
// long, negative is short. A quantity of zero never exists in the book.
type Position struct {
	Symbol     string
	Quantity   int64
	EntryPrice float64
	EntryTime  time.Time
	Leverage   float64
}

func (p *Position) IsLong() bool  { return p.Quantity > 0 }
func (p *Position) IsShort() bool { return p.Quantity < 0 }

// UnrealizedPnL keeps the sign on the quantity, so shorts profit from a
// falling price without a special case.
func (p *Position) UnrealizedPnL(price float64) float64 {
	return (price - p.EntryPrice) * float64(p.Quantity)
}

// UnrealizedPnLPct returns the leveraged percentage move relative to entry,
// sign-flipped for shorts.
func (p *Position) UnrealizedPnLPct(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	pct := (price - p.EntryPrice) / p.EntryPrice * 100
	if p.IsShort() {
		pct = -pct
	}
	return pct * p.Leverage
}

// Value returns the absolute notional at the given price.
func (p *Position) Value(price float64) float64 {
	return abs64(p.Quantity) * price
}

// MarginRequired is the capital reserved against the notional, scaled by
// leverage.
func (p *Position) MarginRequired(price float64) float64 {
	return p.Value(price) / p.Leverage
}

// close snapshots the position as fully closed at the given exit.
func (p *Position) close(exitPrice float64, exitTime time.Time) ClosedPosition {
	return ClosedPosition{
		Symbol:         p.Symbol,
		Quantity:       p.Quantity,
		EntryPrice:     p.EntryPrice,
		ExitPrice:      exitPrice,
		EntryTime:      p.EntryTime,
		ExitTime:       exitTime,
		RealizedPnL:    p.UnrealizedPnL(exitPrice),
		RealizedPnLPct: p.UnrealizedPnLPct(exitPrice),
		Leverage:       p.Leverage,
	}
}

// closePartial snapshots a closed portion. The entry price stays the
// pre-trade value; only the quantity is scaled.
func (p *Position) closePartial(qty int64, exitPrice float64, exitTime time.Time) ClosedPosition {
	if p.IsShort() {
		qty = -abs64i(qty)
	} else {
		qty = abs64i(qty)
	}
	part := Position{
		Symbol:     p.Symbol,
		Quantity:   qty,
		EntryPrice: p.EntryPrice,
		EntryTime:  p.EntryTime,
		Leverage:   p.Leverage,
	}
	return part.close(exitPrice, exitTime)
}

func (p *Position) String() string {
	side := "LONG"
	if p.IsShort() {
		side = "SHORT"
	}
	lev := ""
	if p.Leverage > 1 {
		lev = fmt.Sprintf(" [%gx]", p.Leverage)
	}
	return fmt.Sprintf("%s %d %s @ %.2f%s", side, abs64i(p.Quantity), p.Symbol, p.EntryPrice, lev)
}

// ClosedPosition is an immutable record appended when a position is fully or
// partially closed.
type ClosedPosition struct {
	Symbol         string
	Quantity       int64
	EntryPrice     float64
	ExitPrice      float64
	EntryTime      time.Time
	ExitTime       time.Time
	RealizedPnL    float64
	RealizedPnLPct float64
	Leverage       float64
}

func (c ClosedPosition) IsProfitable() bool { return c.RealizedPnL > 0 }

// HoldDuration returns how long the position was held.
func (c ClosedPosition) HoldDuration() time.Duration {
	return c.ExitTime.Sub(c.EntryTime)
}

func (c ClosedPosition) String() string {
	side := "LONG"
	if c.Quantity < 0 {
		side = "SHORT"
	}
	return fmt.Sprintf("%s %d %s: %.2f -> %.2f | P&L: %.2f (%.2f%%)",
		side, abs64i(c.Quantity), c.Symbol, c.EntryPrice, c.ExitPrice, c.RealizedPnL, c.RealizedPnLPct)
}

func abs64(v int64) float64 {
	if v < 0 {
		return float64(-v)
	}
	return float64(v)
}

func abs64i(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
