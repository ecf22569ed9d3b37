package sim

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"quantsim/internal/logger"
	"quantsim/internal/market/meta"
	"quantsim/internal/strategy"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// RunStore persists runs and their artifacts. Implemented by runstore.
type RunStore interface {
	InsertRun(ctx context.Context, run Run) error
	UpdateRunStatus(ctx context.Context, id, status, message string) error
	UpdateRunSummary(ctx context.Context, id string, status string, stats RunStats, message string) error
	InsertOrders(ctx context.Context, runID string, orders []OrderRecord) error
	InsertTrades(ctx context.Context, runID string, trades []TradeRecord) error
	InsertSnapshots(ctx context.Context, runID string, snaps []SnapshotRecord) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	GetRun(ctx context.Context, id string) (Run, error)
	ListOrders(ctx context.Context, runID string, limit int) ([]OrderRecord, error)
	ListTrades(ctx context.Context, runID string, limit int) ([]TradeRecord, error)
	ListSnapshots(ctx context.Context, runID string, limit int) ([]SnapshotRecord, error)
}

// TradeJournal keeps the cross-run trade journal. Implemented by journal.
type TradeJournal interface {
	RecordRun(ctx context.Context, runID, strategy string, params map[string]any, trades []TradeRecord) error
}

// Reporter renders a finished run to a report file.
type Reporter func(run Run, snapshots []SnapshotRecord) (string, error)

// ServiceConfig 配置模拟服务。
type ServiceConfig struct {
	Store         RunStore
	Journal       TradeJournal
	Registry      *strategy.Registry
	Market        meta.Service
	Reporter      Reporter
	MaxConcurrent int64
	Defaults      RunConfig
}

// Service 负责管理模拟任务、协调执行与写库。
type Service struct {
	store    RunStore
	journal  TradeJournal
	registry *strategy.Registry
	market   meta.Service
	reporter Reporter
	defaults RunConfig

	sem *semaphore.Weighted

	mu   sync.RWMutex
	runs map[string]*Run

	baseCtx context.Context
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("run store 不能为空")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("strategy registry 不能为空")
	}
	if cfg.Market == nil {
		return nil, fmt.Errorf("market meta 不能为空")
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Service{
		store:    cfg.Store,
		journal:  cfg.Journal,
		registry: cfg.Registry,
		market:   cfg.Market,
		reporter: cfg.Reporter,
		defaults: cfg.Defaults,
		sem:      semaphore.NewWeighted(maxConcurrent),
		runs:     make(map[string]*Run),
		baseCtx:  context.Background(),
	}, nil
}

// SetContext 注入宿主 ctx，用于任务取消。
func (s *Service) SetContext(ctx context.Context) {
	if ctx != nil {
		s.baseCtx = ctx
	}
}

func (s *Service) ctx() context.Context {
	if s.baseCtx == nil {
		return context.Background()
	}
	return s.baseCtx
}

// Submit validates the request, records a pending run, and starts the
// simulation in the background.
func (s *Service) Submit(req RunRequest) (Run, error) {
	if len(req.Symbols) == 0 {
		return Run{}, fmt.Errorf("symbols 不能为空")
	}
	if _, ok := s.registry.Preset(req.Strategy); !ok {
		return Run{}, fmt.Errorf("unknown strategy preset: %s (have %v)", req.Strategy, s.registry.Names())
	}
	cfg := s.defaults
	cfg.Symbols = req.Symbols
	cfg.Strategy = req.Strategy
	if req.InitialCapital > 0 {
		cfg.InitialCapital = req.InitialCapital
	}
	if req.Leverage > 0 {
		cfg.Leverage = req.Leverage
	}
	if req.SlippagePct > 0 {
		cfg.SlippagePct = req.SlippagePct
	}
	if req.CommissionPct > 0 {
		cfg.CommissionPct = req.CommissionPct
	}
	if req.Ticks > 0 {
		cfg.Ticks = req.Ticks
	}
	if req.Seed != 0 {
		cfg.Seed = req.Seed
	}

	now := time.Now().UTC()
	run := &Run{
		ID:             uuid.NewString(),
		Strategy:       cfg.Strategy,
		Status:         RunStatusPending,
		InitialCapital: cfg.InitialCapital,
		Config:         cfg,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.InsertRun(s.ctx(), *run); err != nil {
		return Run{}, fmt.Errorf("persist run: %w", err)
	}
	s.mu.Lock()
	s.runs[run.ID] = run
	s.mu.Unlock()
	logger.Infof("[sim] run %s submitted: strategy=%s symbols=%v ticks=%d", run.ID, cfg.Strategy, cfg.Symbols, cfg.Ticks)

	go s.execute(run.ID, cfg)
	return *run, nil
}

func (s *Service) execute(runID string, cfg RunConfig) {
	ctx := s.ctx()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.fail(runID, fmt.Sprintf("服务已关闭: %v", err))
		return
	}
	defer s.sem.Release(1)

	s.setStatus(runID, RunStatusRunning, "")
	_ = s.store.UpdateRunStatus(ctx, runID, RunStatusRunning, "")

	strat, err := s.registry.Build(cfg.Strategy)
	if err != nil {
		s.fail(runID, err.Error())
		return
	}
	simulator, err := NewSimulator(cfg, strat, s.market)
	if err != nil {
		s.fail(runID, err.Error())
		return
	}
	result, runErr := simulator.Run(ctx)
	result.Stats = sanitizeStats(result.Stats)

	status := RunStatusDone
	message := ""
	if runErr != nil {
		status = RunStatusFailed
		message = runErr.Error()
	}

	s.mu.Lock()
	if run, ok := s.runs[runID]; ok {
		run.Status = status
		run.Message = message
		run.Stats = result.Stats
		run.FinalValue = result.Stats.FinalValue
		run.Profit = result.Stats.Profit
		run.ReturnPct = result.Stats.ReturnPct
		run.WinRate = result.Stats.WinRate
		run.MaxDrawdownPct = result.Stats.MaxDrawdownPct
		run.Orders = result.Stats.Orders
		run.Trades = result.Stats.Trades
		run.UpdatedAt = time.Now().UTC()
		run.CompletedAt = run.UpdatedAt
	}
	runSnapshot, _ := s.snapshotRun(runID)
	s.mu.Unlock()

	if err := s.store.UpdateRunSummary(ctx, runID, status, result.Stats, message); err != nil {
		logger.Errorf("[sim] run %s summary persist failed: %v", runID, err)
	}
	for i := range result.Orders {
		result.Orders[i].RunID = runID
	}
	for i := range result.Trades {
		result.Trades[i].RunID = runID
	}
	for i := range result.Snapshots {
		result.Snapshots[i].RunID = runID
	}
	if err := s.store.InsertOrders(ctx, runID, result.Orders); err != nil {
		logger.Errorf("[sim] run %s orders persist failed: %v", runID, err)
	}
	if err := s.store.InsertTrades(ctx, runID, result.Trades); err != nil {
		logger.Errorf("[sim] run %s trades persist failed: %v", runID, err)
	}
	if err := s.store.InsertSnapshots(ctx, runID, result.Snapshots); err != nil {
		logger.Errorf("[sim] run %s snapshots persist failed: %v", runID, err)
	}
	if s.journal != nil {
		var params map[string]any
		if preset, ok := s.registry.Preset(cfg.Strategy); ok {
			params = preset.Params
		}
		if err := s.journal.RecordRun(ctx, runID, cfg.Strategy, params, result.Trades); err != nil {
			logger.Errorf("[sim] run %s journal persist failed: %v", runID, err)
		}
	}
	if s.reporter != nil && status == RunStatusDone {
		if path, err := s.reporter(runSnapshot, result.Snapshots); err != nil {
			logger.Warnf("[sim] run %s report render failed: %v", runID, err)
		} else {
			logger.Infof("[sim] run %s report written to %s", runID, path)
		}
	}
	logger.Infof("[sim] run %s finished: status=%s trades=%d return=%.2f%%", runID, status, result.Stats.Trades, result.Stats.ReturnPct)
}

func (s *Service) fail(runID, message string) {
	s.setStatus(runID, RunStatusFailed, message)
	_ = s.store.UpdateRunStatus(s.ctx(), runID, RunStatusFailed, message)
	logger.Errorf("[sim] run %s failed: %s", runID, message)
}

func (s *Service) setStatus(runID, status, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[runID]; ok {
		run.Status = status
		run.Message = message
		run.UpdatedAt = time.Now().UTC()
	}
}

// snapshotRun 需要调用方持有读锁或写锁。
func (s *Service) snapshotRun(runID string) (Run, bool) {
	run, ok := s.runs[runID]
	if !ok {
		return Run{}, false
	}
	return *run, true
}

// RunSnapshot 返回内存中的任务副本，落库前的状态也可见。
func (s *Service) RunSnapshot(id string) (Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotRun(id)
}

// GetRun 优先读内存，其次落库记录。
func (s *Service) GetRun(ctx context.Context, id string) (Run, error) {
	if run, ok := s.RunSnapshot(id); ok {
		return run, nil
	}
	return s.store.GetRun(ctx, id)
}

func (s *Service) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	return s.store.ListRuns(ctx, limit)
}

func (s *Service) ListOrders(ctx context.Context, runID string, limit int) ([]OrderRecord, error) {
	return s.store.ListOrders(ctx, runID, limit)
}

func (s *Service) ListTrades(ctx context.Context, runID string, limit int) ([]TradeRecord, error) {
	return s.store.ListTrades(ctx, runID, limit)
}

func (s *Service) ListSnapshots(ctx context.Context, runID string, limit int) ([]SnapshotRecord, error) {
	return s.store.ListSnapshots(ctx, runID, limit)
}

// Presets 暴露当前可用的策略预设名。
func (s *Service) Presets() []string {
	return s.registry.Names()
}

// sanitizeStats caps non-finite metrics. A run with no losing trades has an
// infinite profit factor, which JSON cannot carry.
func sanitizeStats(stats RunStats) RunStats {
	stats.ProfitFactor = finiteOr(stats.ProfitFactor, 9999)
	stats.ReturnPct = finiteOr(stats.ReturnPct, 0)
	stats.AvgWin = finiteOr(stats.AvgWin, 0)
	stats.AvgLoss = finiteOr(stats.AvgLoss, 0)
	return stats
}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
