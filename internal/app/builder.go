package app

import (
	"context"
	"fmt"

	qcfg "quantsim/internal/config"
	"quantsim/internal/logger"
	"quantsim/internal/market/meta"
	"quantsim/internal/report"
	"quantsim/internal/sim"
	"quantsim/internal/store/journal"
	"quantsim/internal/store/runstore"
	"quantsim/internal/strategy"
	simhttp "quantsim/internal/transport/http"
)

type AppBuilder struct {
	cfg *qcfg.Config

	registryFn func(string) (*strategy.Registry, error)
	runStoreFn func(string) (*runstore.Store, error)
	journalFn  func(string) (*journal.Journal, error)

	marketOverride meta.Service
}

type AppBuilderOption func(*AppBuilder)

type appBuilderDeps interface {
	Build(context.Context) (*App, error)
}

func provideAppFromBuilder(b appBuilderDeps, ctx context.Context) (*App, error) {
	return b.Build(ctx)
}

func provideAppBuilder(cfg *qcfg.Config) *AppBuilder {
	return NewAppBuilder(cfg)
}

// WithMarket 替换默认的静态市场元数据，测试用。
func WithMarket(m meta.Service) AppBuilderOption {
	return func(b *AppBuilder) { b.marketOverride = m }
}

func NewAppBuilder(cfg *qcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		registryFn: strategy.NewRegistry,
		runStoreFn: runstore.New,
		journalFn:  journal.New,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	registry, err := b.registryFn(cfg.Strategy.PresetsPath)
	if err != nil {
		return nil, fmt.Errorf("load strategy presets: %w", err)
	}
	logger.Infof("✓ 已加载 %d 个策略预设: %v", len(registry.Names()), registry.Names())

	runs, err := b.runStoreFn(cfg.Store.RunsDir)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	jnl, err := b.journalFn(cfg.Store.JournalPath)
	if err != nil {
		runs.Close()
		return nil, fmt.Errorf("open trade journal: %w", err)
	}

	marketMeta := b.marketOverride
	if marketMeta == nil {
		marketMeta = meta.NewStatic()
	}

	reportDir := cfg.App.ReportDir
	reporter := func(run sim.Run, snaps []sim.SnapshotRecord) (string, error) {
		return report.Write(reportDir, run, snaps)
	}

	service, err := sim.NewService(sim.ServiceConfig{
		Store:         runs,
		Journal:       jnl,
		Registry:      registry,
		Market:        marketMeta,
		Reporter:      reporter,
		MaxConcurrent: cfg.Sim.MaxConcurrent,
		Defaults: sim.RunConfig{
			Symbols:        cfg.Sim.Symbols,
			Strategy:       cfg.Strategy.Default,
			InitialCapital: cfg.Sim.InitialCapital,
			Leverage:       cfg.Sim.MaxLeverage,
			SlippagePct:    cfg.Sim.SlippagePct,
			CommissionPct:  cfg.Sim.CommissionPct,
			Ticks:          cfg.Sim.Ticks,
			WarmupBars:     cfg.Sim.WarmupBars,
		},
	})
	if err != nil {
		runs.Close()
		jnl.Close()
		return nil, err
	}

	httpServer, err := simhttp.NewServer(simhttp.Config{
		Addr:    cfg.App.HTTPAddr,
		Service: service,
		Journal: jnl,
		Market:  marketMeta,
	})
	if err != nil {
		runs.Close()
		jnl.Close()
		return nil, fmt.Errorf("init http server: %w", err)
	}
	logger.Infof("✓ HTTP 接口监听 %s", cfg.App.HTTPAddr)

	return &App{
		cfg:      cfg,
		registry: registry,
		runs:     runs,
		journal:  jnl,
		service:  service,
		http:     httpServer,
	}, nil
}
