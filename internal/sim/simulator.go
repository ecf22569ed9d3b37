package sim

import (
	"context"
	"fmt"
	"math"
	"time"

	"quantsim/internal/engine"
	"quantsim/internal/logger"
	"quantsim/internal/market"
	"quantsim/internal/market/meta"
	"quantsim/internal/portfolio"
	"quantsim/internal/strategy"
)

// positionFraction is the share of available margin committed per entry.
const positionFraction = 0.20

// Result bundles everything a finished simulation produced.
type Result struct {
	Stats     RunStats
	Orders    []OrderRecord
	Trades    []TradeRecord
	Snapshots []SnapshotRecord
	Summary   portfolio.Summary
	Risk      portfolio.RiskSummary
}

// Simulator drives one run: synthetic candles in, orders out, equity
// recorded every tick.
type Simulator struct {
	cfg    RunConfig
	eng    *engine.Engine
	strat  strategy.Strategy
	market meta.Service

	manager *portfolio.Manager
	tracker *portfolio.RiskTracker

	generators map[string]*market.Generator
	history    map[string][]market.Candle
	prices     map[string]float64

	orders    []OrderRecord
	snapshots []SnapshotRecord
	clock     time.Time
}

func NewSimulator(cfg RunConfig, strat strategy.Strategy, marketMeta meta.Service) (*Simulator, error) {
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("simulation requires at least one symbol")
	}
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = 10000
	}
	if cfg.Leverage <= 0 {
		cfg.Leverage = 1
	}
	if cfg.Ticks <= 0 {
		cfg.Ticks = 500
	}
	if cfg.WarmupBars <= 0 {
		cfg.WarmupBars = 60
	}
	eng := engine.New(engine.Config{
		InitialCapital: cfg.InitialCapital,
		MaxLeverage:    cfg.Leverage,
		SlippagePct:    cfg.SlippagePct,
		CommissionPct:  cfg.CommissionPct,
	})
	s := &Simulator{
		cfg:        cfg,
		eng:        eng,
		strat:      strat,
		market:     marketMeta,
		manager:    portfolio.NewManager(eng),
		tracker:    portfolio.NewRiskTracker(eng),
		generators: make(map[string]*market.Generator, len(cfg.Symbols)),
		history:    make(map[string][]market.Candle, len(cfg.Symbols)),
		prices:     make(map[string]float64, len(cfg.Symbols)),
		clock:      time.Now().UTC().Truncate(time.Minute),
	}
	for _, symbol := range cfg.Symbols {
		s.generators[symbol] = market.NewSymbolGenerator(symbol, cfg.Seed, 0, 0.02)
	}
	return s, nil
}

// Run executes the full tick loop. Cancellation is checked once per tick;
// a cancelled run returns what was simulated so far along with ctx.Err().
func (s *Simulator) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	var runErr error
	for tick := 0; tick < s.cfg.Ticks; tick++ {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
		default:
		}
		if runErr != nil {
			break
		}
		s.step(tick)
	}
	s.closeAll()
	result := s.collect()
	logger.Infof("Simulation finished: ticks=%d orders=%d trades=%d return=%.2f%% elapsed=%s",
		s.cfg.Ticks, result.Stats.Orders, result.Stats.Trades, result.Stats.ReturnPct, time.Since(start).Round(time.Millisecond))
	return result, runErr
}

func (s *Simulator) step(tick int) {
	s.clock = s.clock.Add(time.Minute)
	for _, symbol := range s.cfg.Symbols {
		candle := s.generators[symbol].NextCandle(s.clock)
		s.history[symbol] = append(s.history[symbol], candle)
		s.prices[symbol] = candle.Close

		if len(s.history[symbol]) < s.cfg.WarmupBars {
			continue
		}
		posQty := s.eng.PositionQuantity(symbol)
		sig := s.strat.GenerateSignal(s.history[symbol], symbol, posQty)
		s.act(symbol, sig, posQty, candle.Close)
	}
	equity := s.tracker.Record(s.clock.UnixMilli(), s.prices)
	var exposure float64
	for sym, pos := range s.eng.Positions() {
		exposure += pos.Value(s.prices[sym])
	}
	_, ddPct := s.tracker.CurrentDrawdown()
	s.snapshots = append(s.snapshots, SnapshotRecord{
		Tick:     tick,
		TS:       s.clock.UnixMilli(),
		Equity:   equity,
		Cash:     s.eng.Cash(),
		Drawdown: ddPct,
		Exposure: exposure,
	})
}

func (s *Simulator) act(symbol string, sig strategy.TradeSignal, posQty int64, price float64) {
	switch sig.Signal {
	case strategy.SignalBuy:
		if posQty > 0 {
			return
		}
		s.submit(symbol, engine.SideBuy, s.sizePosition(symbol, price), price, sig.Reason)
	case strategy.SignalSell:
		if posQty < 0 {
			return
		}
		s.submit(symbol, engine.SideSell, s.sizePosition(symbol, price), price, sig.Reason)
	case strategy.SignalClose:
		if posQty == 0 {
			return
		}
		side := engine.SideSell
		if posQty < 0 {
			side = engine.SideBuy
		}
		s.submit(symbol, side, absQty(posQty), price, sig.Reason)
	}
}

// sizePosition converts a fraction of available margin into whole lots.
// Always at least one lot so a thin account still participates.
func (s *Simulator) sizePosition(symbol string, price float64) int64 {
	lotSize := s.market.LotSize(symbol)
	if lotSize <= 0 {
		lotSize = 1
	}
	available := s.eng.AvailableCapital(s.prices)
	lots := int64(math.Floor(available * positionFraction / (price * float64(lotSize))))
	if lots < 1 {
		lots = 1
	}
	return lots * lotSize
}

func (s *Simulator) submit(symbol string, side engine.Side, quantity int64, price float64, reason string) {
	if quantity <= 0 {
		return
	}
	order := engine.NewMarketOrder(symbol, side, quantity, s.clock)
	s.eng.SubmitOrder(order)
	filled := s.eng.ExecuteMarketOrder(order, price, s.prices, s.clock)
	rec := OrderRecord{
		OrderID:    order.ID,
		Symbol:     symbol,
		Side:       string(side),
		Status:     string(order.Status),
		Quantity:   quantity,
		Price:      price,
		FillPrice:  order.FillPrice,
		Reason:     reason,
		CreatedAt:  order.Timestamp,
		ExecutedAt: order.FillTime,
	}
	if filled {
		rec.Commission = s.eng.Commission(quantity, order.FillPrice)
	}
	s.orders = append(s.orders, rec)
	if !filled {
		logger.Debugf("order rejected: %s %s x%d @%.2f", symbol, side, quantity, price)
	}
}

// closeAll liquidates remaining positions at the last known price so the
// run's realized stats cover every trade it opened.
func (s *Simulator) closeAll() {
	for symbol, pos := range s.eng.Positions() {
		price, ok := s.prices[symbol]
		if !ok {
			price = pos.EntryPrice
		}
		side := engine.SideSell
		if pos.Quantity < 0 {
			side = engine.SideBuy
		}
		s.submit(symbol, side, absQty(pos.Quantity), price, "end of simulation")
	}
	s.tracker.Record(s.clock.UnixMilli(), s.prices)
}

func (s *Simulator) collect() Result {
	summary := s.manager.Summarize(s.prices)
	risk := s.tracker.Summarize(s.prices)

	trades := make([]TradeRecord, 0, len(s.eng.ClosedPositions()))
	var holdMs int64
	for _, c := range s.eng.ClosedPositions() {
		side := "long"
		if c.Quantity < 0 {
			side = "short"
		}
		pnlPct := 0.0
		entryValue := math.Abs(float64(c.Quantity)) * c.EntryPrice
		if entryValue > 0 {
			pnlPct = c.RealizedPnL / entryValue * 100
		}
		trades = append(trades, TradeRecord{
			Symbol:     c.Symbol,
			Side:       side,
			Quantity:   absQty(c.Quantity),
			EntryPrice: c.EntryPrice,
			ExitPrice:  c.ExitPrice,
			PnL:        c.RealizedPnL,
			PnLPct:     pnlPct,
			HoldingMs:  c.HoldDuration().Milliseconds(),
			OpenedAt:   c.EntryTime,
			ClosedAt:   c.ExitTime,
		})
		holdMs += c.HoldDuration().Milliseconds()
	}

	stats := RunStats{
		FinalValue:     summary.TotalValue,
		Profit:         summary.TotalValue - s.cfg.InitialCapital,
		ReturnPct:      summary.TotalReturnPct,
		WinRate:        summary.WinRate,
		AvgWin:         summary.AvgWin,
		AvgLoss:        summary.AvgLoss,
		ProfitFactor:   summary.ProfitFactor,
		MaxDrawdownPct: risk.MaxDrawdownPct * 100,
		Orders:         s.eng.OrderCount(),
		FilledOrders:   s.eng.FilledCount(),
		Trades:         len(trades),
		Wins:           summary.WinningTrades,
		Losses:         summary.LosingTrades,
		Snapshots:      len(s.snapshots),
		FinishedAt:     time.Now().UTC(),
	}
	if len(trades) > 0 {
		stats.AvgHoldingMinutes = float64(holdMs) / float64(len(trades)) / 60000
	}
	curve := s.tracker.EquityCurve()
	if len(curve) > 0 {
		peak, valley := curve[0], curve[0]
		for _, v := range curve {
			if v > peak {
				peak = v
			}
			if v < valley {
				valley = v
			}
		}
		stats.EquityPeak = peak
		stats.EquityValley = valley
	}

	return Result{
		Stats:     stats,
		Orders:    s.orders,
		Trades:    trades,
		Snapshots: s.snapshots,
		Summary:   summary,
		Risk:      risk,
	}
}

// EquityCurve 返回风控跟踪器记录的净值序列。
func (s *Simulator) EquityCurve() []float64 { return s.tracker.EquityCurve() }

// DrawdownCurve 返回每个 tick 的回撤序列。
func (s *Simulator) DrawdownCurve() []float64 { return s.tracker.DrawdownCurve() }

func absQty(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
