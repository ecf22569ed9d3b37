// Package app wires configuration, stores, strategies, and transports into a
// runnable simulation service.
package app

import (
	"context"
	"fmt"

	qcfg "quantsim/internal/config"
	"quantsim/internal/logger"
	"quantsim/internal/sim"
	"quantsim/internal/store/journal"
	"quantsim/internal/store/runstore"
	"quantsim/internal/strategy"
	simhttp "quantsim/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动模拟服务与 HTTP。
type App struct {
	cfg      *qcfg.Config
	registry *strategy.Registry
	runs     *runstore.Store
	journal  *journal.Journal
	service  *sim.Service
	http     *simhttp.Server
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *qcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Service exposes the simulation service (for CLI one-shot runs and tests).
func (a *App) Service() *sim.Service {
	if a == nil {
		return nil
	}
	return a.service
}

// Run 启动 HTTP 服务并阻塞，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.service == nil {
		return fmt.Errorf("sim service not initialized")
	}
	a.service.SetContext(ctx)

	group, ctx := errgroup.WithContext(ctx)
	if a.http != nil {
		group.Go(func() error {
			if err := a.http.Start(ctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		<-ctx.Done()
		a.Close()
		return nil
	})
	return group.Wait()
}

// Close 释放持有的存储句柄。
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.runs != nil {
		if err := a.runs.Close(); err != nil {
			logger.Warnf("run store close failed: %v", err)
		}
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			logger.Warnf("journal close failed: %v", err)
		}
	}
}
