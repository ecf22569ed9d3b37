package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantsim/internal/sim"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := New(filepath.Join(t.TempDir(), "journal", "trades.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func sampleTrades(now time.Time) []sim.TradeRecord {
	return []sim.TradeRecord{
		{Symbol: "aapl", Side: "long", Quantity: 10, EntryPrice: 100, ExitPrice: 110, PnL: 100, PnLPct: 10, HoldingMs: 60000, OpenedAt: now, ClosedAt: now.Add(time.Minute)},
		{Symbol: "AAPL", Side: "short", Quantity: 5, EntryPrice: 120, ExitPrice: 125, PnL: -25, PnLPct: -4.2, HoldingMs: 120000, OpenedAt: now, ClosedAt: now.Add(2 * time.Minute)},
		{Symbol: "NIFTY50", Side: "long", Quantity: 75, EntryPrice: 200, ExitPrice: 210, PnL: 750, PnLPct: 5, HoldingMs: 30000, OpenedAt: now, ClosedAt: now.Add(3 * time.Minute)},
	}
}

func TestJournal_RecordAndListBySymbol(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	now := time.Now()

	params := map[string]any{"period": 14}
	require.NoError(t, j.RecordRun(ctx, "run-1", "rsi_classic", params, sampleTrades(now)))

	entries, err := j.ListBySymbol(ctx, "aapl", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// 按 closed_at 倒序
	assert.Equal(t, "short", entries[0].Side)
	assert.Equal(t, "AAPL", entries[0].Symbol)
	assert.Equal(t, "run-1", entries[0].RunID)
	assert.EqualValues(t, 14, entries[0].Params["period"])
}

func TestJournal_ListByStrategy(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, j.RecordRun(ctx, "run-1", "rsi_classic", nil, sampleTrades(now)))
	require.NoError(t, j.RecordRun(ctx, "run-2", "adaptive", nil, sampleTrades(now)[:1]))

	entries, err := j.ListByStrategy(ctx, "adaptive", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "run-2", entries[0].RunID)
}

func TestJournal_StatsBySymbol(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.RecordRun(ctx, "run-1", "rsi_classic", nil, sampleTrades(time.Now())))

	stats, err := j.StatsBySymbol(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	// total_pnl 倒序：NIFTY50 在前
	assert.Equal(t, "NIFTY50", stats[0].Symbol)
	assert.EqualValues(t, 1, stats[0].Trades)
	assert.InDelta(t, 750.0, stats[0].TotalPnL, 1e-9)

	assert.Equal(t, "AAPL", stats[1].Symbol)
	assert.EqualValues(t, 2, stats[1].Trades)
	assert.EqualValues(t, 1, stats[1].Wins)
	assert.InDelta(t, 75.0, stats[1].TotalPnL, 1e-9)
}

func TestJournal_EmptyRunNoop(t *testing.T) {
	j := newTestJournal(t)
	assert.NoError(t, j.RecordRun(context.Background(), "run-1", "rsi", nil, nil))
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New("  ")
	assert.Error(t, err)
}
