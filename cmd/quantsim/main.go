package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"quantsim/internal/app"
	qcfg "quantsim/internal/config"
	"quantsim/internal/logger"
	"quantsim/internal/sim"
)

func main() {
	var (
		cfgPath  = flag.String("config", envOr("QUANTSIM_CONFIG", "configs/config.yaml"), "配置文件路径")
		symbols  = flag.String("symbols", "", "逗号分隔的标的列表，覆盖配置文件")
		strat    = flag.String("strategy", "", "策略预设名，覆盖配置文件")
		capital  = flag.Float64("capital", 0, "初始资金，覆盖配置文件")
		leverage = flag.Float64("leverage", 0, "最大杠杆，覆盖配置文件")
		ticks    = flag.Int("ticks", 0, "模拟 tick 数，覆盖配置文件")
		seed     = flag.Int64("seed", 0, "随机种子偏移")
		serve    = flag.Bool("serve", false, "常驻模式：启动 HTTP 服务")
	)
	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("初始化日志文件失败: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ 配置加载成功（环境=%s，presets=%s）", cfg.App.Env, cfg.Strategy.PresetsPath)

	application, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *serve {
		if err := application.Run(ctx); err != nil {
			log.Fatalf("运行失败: %v", err)
		}
		return
	}

	defer application.Close()
	application.Service().SetContext(ctx)
	req := sim.RunRequest{
		Symbols:        cfg.Sim.Symbols,
		Strategy:       cfg.Strategy.Default,
		InitialCapital: *capital,
		Leverage:       *leverage,
		Ticks:          *ticks,
		Seed:           *seed,
	}
	if *symbols != "" {
		req.Symbols = splitSymbols(*symbols)
	}
	if *strat != "" {
		req.Strategy = *strat
	}
	run, err := application.Service().Submit(req)
	if err != nil {
		log.Fatalf("提交模拟失败: %v", err)
	}
	final, err := waitForRun(ctx, application.Service(), run.ID)
	if err != nil {
		log.Fatalf("等待模拟失败: %v", err)
	}
	printSummary(final)
	if final.Status == sim.RunStatusFailed {
		os.Exit(1)
	}
}

func loadConfig(path string) (*qcfg.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Warnf("配置文件 %s 不存在，使用默认配置", path)
		return qcfg.Default(), nil
	}
	return qcfg.Load(path)
}

func waitForRun(ctx context.Context, svc *sim.Service, id string) (sim.Run, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return sim.Run{}, ctx.Err()
		case <-ticker.C:
			run, err := svc.GetRun(ctx, id)
			if err != nil {
				return sim.Run{}, err
			}
			if run.Status == sim.RunStatusDone || run.Status == sim.RunStatusFailed {
				return run, nil
			}
		}
	}
}

func printSummary(run sim.Run) {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s (%s) — %s\n", run.ID, run.Strategy, run.Status)
	fmt.Fprintf(&b, "  initial capital : %.2f\n", run.InitialCapital)
	fmt.Fprintf(&b, "  final value     : %.2f\n", run.FinalValue)
	fmt.Fprintf(&b, "  return          : %.2f%%\n", run.ReturnPct)
	fmt.Fprintf(&b, "  max drawdown    : %.2f%%\n", run.MaxDrawdownPct)
	fmt.Fprintf(&b, "  orders / trades : %d / %d\n", run.Orders, run.Trades)
	fmt.Fprintf(&b, "  win rate        : %.1f%% (%d W / %d L)\n", run.WinRate, run.Stats.Wins, run.Stats.Losses)
	fmt.Fprintf(&b, "  profit factor   : %.2f", run.Stats.ProfitFactor)
	logger.InfoBlock(b.String())
}

func splitSymbols(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
