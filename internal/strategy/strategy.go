package strategy

import (
	"quantsim/internal/market"
)

// Signal 表示策略给出的动作。
type Signal string

const (
	SignalBuy   Signal = "BUY"
	SignalSell  Signal = "SELL"
	SignalHold  Signal = "HOLD"
	SignalClose Signal = "CLOSE"
)

// TradeSignal carries an action plus the context that produced it. Strength
// is normalized to [0,1]; Reason is human readable and ends up in logs and
// order records.
type TradeSignal struct {
	Signal    Signal  `json:"signal"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
	Strength  float64 `json:"strength"`
	Reason    string  `json:"reason"`
}

// Strategy turns a bar history and the current holding into a trade signal.
// Implementations are stateless between calls: everything they need arrives
// as arguments. Too little history or an undefined indicator value resolves
// to HOLD with a diagnostic reason, never an error.
type Strategy interface {
	Name() string
	GenerateSignal(history []market.Candle, symbol string, positionQty int64) TradeSignal
}

func hold(history []market.Candle, symbol, reason string) TradeSignal {
	sig := TradeSignal{Signal: SignalHold, Symbol: symbol, Reason: reason}
	if len(history) > 0 {
		last := history[len(history)-1]
		sig.Price = last.Close
		sig.Timestamp = last.CloseTime
	}
	return sig
}

func lastBar(history []market.Candle) market.Candle {
	return history[len(history)-1]
}
