// Package journal keeps a cross-run trade journal so closed trades can be
// compared across strategies and runs. Backed by Gorm + SQLite.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quantsim/internal/sim"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Entry 一条跨 run 的平仓日志。
type Entry struct {
	ID         int64          `json:"id"`
	RunID      string         `json:"run_id"`
	Strategy   string         `json:"strategy"`
	Symbol     string         `json:"symbol"`
	Side       string         `json:"side"`
	Quantity   int64          `json:"quantity"`
	EntryPrice float64        `json:"entry_price"`
	ExitPrice  float64        `json:"exit_price"`
	PnL        float64        `json:"pnl"`
	PnLPct     float64        `json:"pnl_pct"`
	HoldingMs  int64          `json:"holding_ms"`
	Params     map[string]any `json:"params,omitempty"`
	OpenedAt   time.Time      `json:"opened_at"`
	ClosedAt   time.Time      `json:"closed_at"`
}

// SymbolStats 按 symbol 汇总的历史表现。
type SymbolStats struct {
	Symbol   string  `json:"symbol"`
	Trades   int64   `json:"trades"`
	Wins     int64   `json:"wins"`
	TotalPnL float64 `gorm:"column:total_pnl" json:"total_pnl"`
	AvgPnL   float64 `gorm:"column:avg_pnl" json:"avg_pnl"`
}

type entryModel struct {
	ID         int64          `gorm:"column:id;primaryKey"`
	RunID      string         `gorm:"column:run_id;index"`
	Strategy   string         `gorm:"column:strategy;index"`
	Symbol     string         `gorm:"column:symbol;index"`
	Side       string         `gorm:"column:side"`
	Quantity   int64          `gorm:"column:quantity"`
	EntryPrice float64        `gorm:"column:entry_price"`
	ExitPrice  float64        `gorm:"column:exit_price"`
	PnL        float64        `gorm:"column:pnl"`
	PnLPct     float64        `gorm:"column:pnl_pct"`
	HoldingMs  int64          `gorm:"column:holding_ms"`
	Params     datatypes.JSON `gorm:"column:params_json"`
	OpenedAt   int64          `gorm:"column:opened_at"`
	ClosedAt   int64          `gorm:"column:closed_at;index"`
}

func (entryModel) TableName() string { return "trade_journal" }

// Journal 管理 trade_journal 表。
type Journal struct {
	db *gorm.DB
}

func New(path string) (*Journal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("journal: 路径不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&entryModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordRun 把一次 run 的全部平仓写入日志。
func (j *Journal) RecordRun(ctx context.Context, runID, strategy string, params map[string]any, trades []sim.TradeRecord) error {
	if j == nil || j.db == nil {
		return fmt.Errorf("journal 未初始化")
	}
	if len(trades) == 0 {
		return nil
	}
	paramsJSON, _ := json.Marshal(params)
	models := make([]entryModel, 0, len(trades))
	for _, t := range trades {
		models = append(models, entryModel{
			RunID:      runID,
			Strategy:   strategy,
			Symbol:     strings.ToUpper(strings.TrimSpace(t.Symbol)),
			Side:       t.Side,
			Quantity:   t.Quantity,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			PnL:        t.PnL,
			PnLPct:     t.PnLPct,
			HoldingMs:  t.HoldingMs,
			Params:     datatypes.JSON(paramsJSON),
			OpenedAt:   t.OpenedAt.UnixMilli(),
			ClosedAt:   t.ClosedAt.UnixMilli(),
		})
	}
	return j.db.WithContext(ctx).Create(&models).Error
}

// ListBySymbol 查询某个标的历史平仓。
func (j *Journal) ListBySymbol(ctx context.Context, symbol string, limit int) ([]Entry, error) {
	if j == nil || j.db == nil {
		return nil, fmt.Errorf("journal 未初始化")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var models []entryModel
	if err := j.db.WithContext(ctx).
		Where("symbol = ?", strings.ToUpper(strings.TrimSpace(symbol))).
		Order("closed_at DESC, id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	return toEntries(models), nil
}

// ListByStrategy 查询某个策略的历史平仓。
func (j *Journal) ListByStrategy(ctx context.Context, strategy string, limit int) ([]Entry, error) {
	if j == nil || j.db == nil {
		return nil, fmt.Errorf("journal 未初始化")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var models []entryModel
	if err := j.db.WithContext(ctx).
		Where("strategy = ?", strings.TrimSpace(strategy)).
		Order("closed_at DESC, id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	return toEntries(models), nil
}

// StatsBySymbol 跨 run 聚合每个标的的胜率与盈亏。
func (j *Journal) StatsBySymbol(ctx context.Context) ([]SymbolStats, error) {
	if j == nil || j.db == nil {
		return nil, fmt.Errorf("journal 未初始化")
	}
	var out []SymbolStats
	err := j.db.WithContext(ctx).Model(&entryModel{}).
		Select("symbol, COUNT(*) AS trades, SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END) AS wins, SUM(pnl) AS total_pnl, AVG(pnl) AS avg_pnl").
		Group("symbol").
		Order("total_pnl DESC").
		Scan(&out).Error
	return out, err
}

func toEntries(models []entryModel) []Entry {
	out := make([]Entry, 0, len(models))
	for _, m := range models {
		e := Entry{
			ID:         m.ID,
			RunID:      m.RunID,
			Strategy:   m.Strategy,
			Symbol:     m.Symbol,
			Side:       m.Side,
			Quantity:   m.Quantity,
			EntryPrice: m.EntryPrice,
			ExitPrice:  m.ExitPrice,
			PnL:        m.PnL,
			PnLPct:     m.PnLPct,
			HoldingMs:  m.HoldingMs,
			OpenedAt:   time.UnixMilli(m.OpenedAt),
			ClosedAt:   time.UnixMilli(m.ClosedAt),
		}
		if len(m.Params) > 0 {
			_ = json.Unmarshal(m.Params, &e.Params)
		}
		out = append(out, e)
	}
	return out
}
