package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatic_MarketTypeAndLots(t *testing.T) {
	s := NewStatic()

	assert.Equal(t, TypeIndian, s.MarketType("NIFTY50"))
	assert.Equal(t, TypeIndian, s.MarketType("reliance"))
	assert.Equal(t, TypeInternational, s.MarketType("AAPL"))

	assert.EqualValues(t, 75, s.LotSize("NIFTY50"))
	assert.EqualValues(t, 500, s.LotSize("RELIANCE"))
	assert.EqualValues(t, 1, s.LotSize("AAPL"))

	assert.Equal(t, "₹", s.CurrencySymbol("NIFTY50"))
	assert.Equal(t, "$", s.CurrencySymbol("AAPL"))
}

func TestStatic_MarginRequirement(t *testing.T) {
	s := NewStatic()
	assert.InDelta(t, 0.14, s.MarginRequirement("NIFTY50"), 1e-9)
	assert.InDelta(t, 0.20, s.MarginRequirement("RELIANCE"), 1e-9)
	assert.InDelta(t, 0.25, s.MarginRequirement("SPY"), 1e-9)
	assert.InDelta(t, 0.25, s.MarginRequirement("AAPL"), 1e-9)
}

func TestStatic_TradingFees(t *testing.T) {
	s := NewStatic()

	// 印度市场：卖出含 STT，买入含印花税，卖出端税费更高
	buy := s.TradingFees(1_000_000, "NIFTY50", "BUY")
	sell := s.TradingFees(1_000_000, "NIFTY50", "SELL")
	assert.Greater(t, sell, buy)
	assert.Greater(t, buy, 0.0)

	// 美股：SEC 费 + 固定佣金率
	intl := s.TradingFees(100_000, "AAPL", "BUY")
	assert.InDelta(t, 100_000*(0.0000278+0.001), intl, 1e-6)
}

func TestStatic_Info(t *testing.T) {
	s := NewStatic()
	info := s.Info("aapl")
	assert.Equal(t, "AAPL", info.Symbol)
	assert.Equal(t, TypeInternational, info.MarketType)
	assert.Equal(t, "Apple Inc.", info.Description)

	assert.Equal(t, "", Description("UNKNOWN"))
}

func TestSymbolsByCategory(t *testing.T) {
	cats := SymbolsByCategory()
	assert.Contains(t, cats, "Indian Indices")
	assert.Contains(t, cats["US Stocks"], "AAPL")
}
