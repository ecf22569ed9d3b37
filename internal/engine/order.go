package engine

import (
	"fmt"
	"strings"
	"time"
)

// Side 表示订单方向。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Kind 表示订单类型，撮合目前只支持市价单。
type Kind string

const (
	KindMarket Kind = "MARKET"
	KindLimit  Kind = "LIMIT"
)

// Status 表示订单生命周期状态。
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusFilled    Status = "FILLED"
	StatusCancelled Status = "CANCELLED"
	StatusRejected  Status = "REJECTED"
)

// Order is a trade request. Once submitted to the engine the engine owns it;
// the lifecycle ends at fill, reject or cancel.
type Order struct {
	ID         string
	Symbol     string
	Side       Side
	Quantity   int64
	Kind       Kind
	Timestamp  time.Time
	LimitPrice float64
	Status     Status
	FillPrice  float64
	FillTime   time.Time
}

// NewMarketOrder builds a pending market order. The derived ID truncates to
// microseconds, so two same-symbol same-side orders inside one microsecond
// collide; nothing downstream relies on ID uniqueness.
func NewMarketOrder(symbol string, side Side, quantity int64, ts time.Time) *Order {
	o := &Order{
		Symbol:    strings.ToUpper(symbol),
		Side:      side,
		Quantity:  quantity,
		Kind:      KindMarket,
		Timestamp: ts,
		Status:    StatusPending,
	}
	o.ID = deriveOrderID(o)
	return o
}

func deriveOrderID(o *Order) string {
	return fmt.Sprintf("%s%06d_%s_%s",
		o.Timestamp.Format("20060102150405"), o.Timestamp.Nanosecond()/1000,
		o.Symbol, o.Side)
}

func (o *Order) fill(price float64, ts time.Time) {
	o.FillPrice = price
	o.FillTime = ts
	o.Status = StatusFilled
}

func (o *Order) reject() {
	o.Status = StatusRejected
}

// Cancel marks a still-pending order as cancelled.
func (o *Order) Cancel() {
	if o.Status == StatusPending {
		o.Status = StatusCancelled
	}
}

func (o *Order) String() string {
	if o.Status == StatusFilled {
		return fmt.Sprintf("[%s] %s %d %s @ %.2f", o.Status, o.Side, o.Quantity, o.Symbol, o.FillPrice)
	}
	price := "MARKET"
	if o.LimitPrice > 0 {
		price = fmt.Sprintf("%.2f", o.LimitPrice)
	}
	return fmt.Sprintf("[%s] %s %d %s @ %s", o.Status, o.Side, o.Quantity, o.Symbol, price)
}

// SignedQuantity maps the fill direction onto the position book convention:
// buys are positive, sells negative.
func (o *Order) SignedQuantity() int64 {
	if o.Side == SideBuy {
		return o.Quantity
	}
	return -o.Quantity
}
