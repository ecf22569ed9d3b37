package meta

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Type 区分市场（费用、保证金、货币符号都不同）。
type Type string

const (
	TypeIndian        Type = "INDIAN"
	TypeInternational Type = "INTERNATIONAL"
)

// Service resolves per-symbol market metadata. Pure lookups, no side effects.
type Service interface {
	MarketType(symbol string) Type
	LotSize(symbol string) int64
	CurrencySymbol(symbol string) string
	MarginRequirement(symbol string) float64
	TradingFees(value float64, symbol, side string) float64
	Info(symbol string) Info
}

var indianIndexLots = map[string]int64{
	"NIFTY50": 75, "NIFTY": 75, "BANKNIFTY": 35, "FINNIFTY": 65,
	"SENSEX": 20, "MIDCPNIFTY": 140, "NIFTYNXT50": 25,
}

var indianStockLots = map[string]int64{
	"RELIANCE": 500, "TCS": 150, "INFY": 300, "HDFCBANK": 550,
	"ICICIBANK": 700, "SBIN": 1500, "BHARTIARTL": 475, "ITC": 1600,
}

var indianMargins = map[string]float64{
	"NIFTY": 0.14, "NIFTY50": 0.14, "BANKNIFTY": 0.18,
	"FINNIFTY": 0.16, "SENSEX": 0.14,
}

var usStocks = map[string]string{
	"AAPL": "Apple Inc.", "GOOGL": "Alphabet Inc.",
	"MSFT": "Microsoft Corporation", "AMZN": "Amazon.com Inc.",
	"TSLA": "Tesla Inc.", "META": "Meta Platforms Inc.",
	"NVDA": "NVIDIA Corporation", "JPM": "JPMorgan Chase & Co.",
}

var usIndices = map[string]string{
	"SPY": "S&P 500 ETF", "QQQ": "NASDAQ-100 ETF",
	"DIA": "Dow Jones Industrial Average ETF", "IWM": "Russell 2000 ETF",
}

var euStocks = map[string]string{
	"SAP": "SAP SE", "ASML": "ASML Holding N.V.",
	"NESN": "Nestlé S.A.", "NOVN": "Novartis AG",
}

// Regulatory fee rates. Decimal keeps the tiny statutory percentages exact
// until the final rounding.
var (
	sttFuturesSell = decimal.RequireFromString("0.0002")
	nseTxnCharge   = decimal.RequireFromString("0.0000173")
	sebiTurnover   = decimal.RequireFromString("0.000001")
	stampDutyBuy   = decimal.RequireFromString("0.00002")
	gstRate        = decimal.RequireFromString("0.18")

	secFee        = decimal.RequireFromString("0.0000278")
	intlCommission = decimal.RequireFromString("0.001")
)

const (
	marginDefaultIndian = 0.20
	marginDefaultIntl   = 0.25
	marginETF           = 0.25
)

// Static 为离线模拟提供的固定元数据表。
type Static struct{}

func NewStatic() Static { return Static{} }

func (Static) MarketType(symbol string) Type {
	symbol = strings.ToUpper(symbol)
	if _, ok := indianIndexLots[symbol]; ok {
		return TypeIndian
	}
	if _, ok := indianStockLots[symbol]; ok {
		return TypeIndian
	}
	return TypeInternational
}

// LotSize returns the contract multiplier; international symbols trade in
// single units.
func (s Static) LotSize(symbol string) int64 {
	if s.MarketType(symbol) != TypeIndian {
		return 1
	}
	symbol = strings.ToUpper(symbol)
	if lot, ok := indianIndexLots[symbol]; ok {
		return lot
	}
	if lot, ok := indianStockLots[symbol]; ok {
		return lot
	}
	return 1
}

func (s Static) CurrencySymbol(symbol string) string {
	if s.MarketType(symbol) == TypeIndian {
		return "₹"
	}
	return "$"
}

func (s Static) MarginRequirement(symbol string) float64 {
	symbol = strings.ToUpper(symbol)
	if s.MarketType(symbol) == TypeIndian {
		if m, ok := indianMargins[symbol]; ok {
			return m
		}
		return marginDefaultIndian
	}
	if _, ok := usIndices[symbol]; ok {
		return marginETF
	}
	return marginDefaultIntl
}

// TradingFees computes the statutory charges for a fill of the given notional
// value. Indian futures carry STT (sell side), stamp duty (buy side),
// exchange and SEBI turnover charges plus GST on the latter two; international
// fills carry the SEC fee and a flat commission.
func (s Static) TradingFees(value float64, symbol, side string) float64 {
	v := decimal.NewFromFloat(value)
	if s.MarketType(symbol) == TypeIndian {
		total := decimal.Zero
		switch strings.ToUpper(side) {
		case "SELL":
			total = total.Add(v.Mul(sttFuturesSell))
		case "BUY":
			total = total.Add(v.Mul(stampDutyBuy))
		}
		txn := v.Mul(nseTxnCharge)
		sebi := v.Mul(sebiTurnover)
		gst := txn.Add(sebi).Mul(gstRate)
		total = total.Add(txn).Add(sebi).Add(gst)
		f, _ := total.Round(6).Float64()
		return f
	}
	total := v.Mul(secFee).Add(v.Mul(intlCommission))
	f, _ := total.Round(6).Float64()
	return f
}

// Description returns the human-readable instrument name when known.
func Description(symbol string) string {
	symbol = strings.ToUpper(symbol)
	if d, ok := usStocks[symbol]; ok {
		return d
	}
	if d, ok := usIndices[symbol]; ok {
		return d
	}
	if d, ok := euStocks[symbol]; ok {
		return d
	}
	return ""
}

// SymbolsByCategory lists the built-in symbol catalogue.
func SymbolsByCategory() map[string][]string {
	return map[string][]string{
		"Indian Indices": {"NIFTY50", "SENSEX", "BANKNIFTY", "FINNIFTY"},
		"Indian Stocks":  {"RELIANCE", "TCS", "INFY", "HDFCBANK", "ICICIBANK"},
		"US Indices":     {"SPY", "QQQ", "DIA", "IWM"},
		"US Stocks":      {"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA", "META", "NVDA"},
		"EU Stocks":      {"SAP", "ASML", "NESN", "NOVN"},
	}
}

// Info 汇总单个 symbol 的元数据。
type Info struct {
	Symbol      string  `json:"symbol"`
	MarketType  Type    `json:"market_type"`
	LotSize     int64   `json:"lot_size"`
	Currency    string  `json:"currency"`
	Margin      float64 `json:"margin_requirement"`
	Description string  `json:"description,omitempty"`
}

func (s Static) Info(symbol string) Info {
	symbol = strings.ToUpper(symbol)
	return Info{
		Symbol:      symbol,
		MarketType:  s.MarketType(symbol),
		LotSize:     s.LotSize(symbol),
		Currency:    s.CurrencySymbol(symbol),
		Margin:      s.MarginRequirement(symbol),
		Description: Description(symbol),
	}
}
