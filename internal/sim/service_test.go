package sim

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantsim/internal/market/meta"
	"quantsim/internal/strategy"
)

// memStore 内存版 RunStore，避免测试落盘。
type memStore struct {
	mu        sync.Mutex
	runs      map[string]Run
	orders    map[string][]OrderRecord
	trades    map[string][]TradeRecord
	snapshots map[string][]SnapshotRecord
}

func newMemStore() *memStore {
	return &memStore{
		runs:      make(map[string]Run),
		orders:    make(map[string][]OrderRecord),
		trades:    make(map[string][]TradeRecord),
		snapshots: make(map[string][]SnapshotRecord),
	}
}

func (m *memStore) InsertRun(_ context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *memStore) UpdateRunStatus(_ context.Context, id, status, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run := m.runs[id]
	run.Status = status
	run.Message = message
	m.runs[id] = run
	return nil
}

func (m *memStore) UpdateRunSummary(_ context.Context, id string, status string, stats RunStats, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run := m.runs[id]
	run.Status = status
	run.Message = message
	run.Stats = stats
	run.FinalValue = stats.FinalValue
	run.Trades = stats.Trades
	m.runs[id] = run
	return nil
}

func (m *memStore) InsertOrders(_ context.Context, runID string, orders []OrderRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[runID] = append(m.orders[runID], orders...)
	return nil
}

func (m *memStore) InsertTrades(_ context.Context, runID string, trades []TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades[runID] = append(m.trades[runID], trades...)
	return nil
}

func (m *memStore) InsertSnapshots(_ context.Context, runID string, snaps []SnapshotRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[runID] = append(m.snapshots[runID], snaps...)
	return nil
}

func (m *memStore) ListRuns(_ context.Context, limit int) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) GetRun(_ context.Context, id string) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return Run{}, fmt.Errorf("run %s not found", id)
	}
	return run, nil
}

func (m *memStore) ListOrders(_ context.Context, runID string, limit int) ([]OrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[runID], nil
}

func (m *memStore) ListTrades(_ context.Context, runID string, limit int) ([]TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trades[runID], nil
}

func (m *memStore) ListSnapshots(_ context.Context, runID string, limit int) ([]SnapshotRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshots[runID], nil
}

type memJournal struct {
	mu      sync.Mutex
	runs    []string
	nTrades int
}

func (j *memJournal) RecordRun(_ context.Context, runID, strategy string, params map[string]any, trades []TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs = append(j.runs, runID)
	j.nTrades += len(trades)
	return nil
}

const servicePresets = `strategies:
  rsi_fast:
    kind: rsi
    params:
      period: 7
  adaptive:
    kind: adaptive
    params:
      lookback: 30
`

func newTestService(t *testing.T, store RunStore, journal TradeJournal, reporter Reporter) *Service {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(servicePresets), 0o644))
	registry, err := strategy.NewRegistry(path)
	require.NoError(t, err)

	svc, err := NewService(ServiceConfig{
		Store:         store,
		Journal:       journal,
		Registry:      registry,
		Market:        meta.NewStatic(),
		Reporter:      reporter,
		MaxConcurrent: 2,
		Defaults: RunConfig{
			InitialCapital: 10000,
			Leverage:       1,
			Ticks:          120,
			WarmupBars:     20,
		},
	})
	require.NoError(t, err)
	return svc
}

func waitDone(t *testing.T, svc *Service, id string) Run {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		run, err := svc.GetRun(context.Background(), id)
		require.NoError(t, err)
		if run.Status == RunStatusDone || run.Status == RunStatusFailed {
			return run
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %s did not finish", id)
	return Run{}
}

func TestService_SubmitAndExecute(t *testing.T) {
	store := newMemStore()
	journal := &memJournal{}
	var reported []string
	var mu sync.Mutex
	reporter := func(run Run, snaps []SnapshotRecord) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		reported = append(reported, run.ID)
		return "report.html", nil
	}
	svc := newTestService(t, store, journal, reporter)

	run, err := svc.Submit(RunRequest{Symbols: []string{"AAPL"}, Strategy: "rsi_fast", Seed: 3})
	require.NoError(t, err)
	assert.Equal(t, RunStatusPending, run.Status)
	assert.NotEmpty(t, run.ID)

	final := waitDone(t, svc, run.ID)
	assert.Equal(t, RunStatusDone, final.Status)
	assert.Equal(t, 120, final.Config.Ticks)
	assert.Positive(t, final.Stats.Snapshots)

	// 状态翻转后落库与报表异步进行
	time.Sleep(300 * time.Millisecond)
	snaps, err := svc.ListSnapshots(context.Background(), run.ID, 0)
	require.NoError(t, err)
	assert.Len(t, snaps, 120)
	for _, snap := range snaps {
		assert.Equal(t, run.ID, snap.RunID)
	}

	mu.Lock()
	assert.Equal(t, []string{run.ID}, reported)
	mu.Unlock()

	if final.Stats.Trades > 0 {
		journal.mu.Lock()
		assert.Contains(t, journal.runs, run.ID)
		journal.mu.Unlock()
	}
}

func TestService_SubmitValidation(t *testing.T) {
	svc := newTestService(t, newMemStore(), nil, nil)

	_, err := svc.Submit(RunRequest{Strategy: "rsi_fast"})
	assert.Error(t, err)

	_, err = svc.Submit(RunRequest{Symbols: []string{"AAPL"}, Strategy: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy preset")
}

func TestService_RequestOverridesDefaults(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, nil, nil)

	run, err := svc.Submit(RunRequest{
		Symbols:        []string{"NIFTY50"},
		Strategy:       "rsi_fast",
		InitialCapital: 50000,
		Leverage:       3,
		Ticks:          60,
	})
	require.NoError(t, err)
	assert.InDelta(t, 50000.0, run.InitialCapital, 1e-9)
	assert.InDelta(t, 3.0, run.Config.Leverage, 1e-9)
	assert.Equal(t, 60, run.Config.Ticks)

	final := waitDone(t, svc, run.ID)
	assert.Equal(t, RunStatusDone, final.Status)
}

func TestService_Presets(t *testing.T) {
	svc := newTestService(t, newMemStore(), nil, nil)
	assert.Equal(t, []string{"adaptive", "rsi_fast"}, svc.Presets())
}
