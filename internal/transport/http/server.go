// Package http exposes the simulation service over a Gin API.
package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"quantsim/internal/market/meta"
	"quantsim/internal/sim"
	"quantsim/internal/store/journal"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

// Server 提供 Gin 接口，供外部触发模拟/查询结果。
type Server struct {
	addr    string
	svc     *sim.Service
	journal *journal.Journal
	market  meta.Service
	router  *gin.Engine
}

type Config struct {
	Addr    string
	Service *sim.Service
	Journal *journal.Journal
	Market  meta.Service
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("sim service 不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9992"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:    cfg.Addr,
		svc:     cfg.Service,
		journal: cfg.Journal,
		market:  cfg.Market,
		router:  router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api/sim")
	api.POST("/runs", s.handleRunStart)
	api.GET("/runs", s.handleRunList)
	api.GET("/runs/:id", s.handleRunDetail)
	api.GET("/runs/:id/orders", s.handleRunOrders)
	api.GET("/runs/:id/trades", s.handleRunTrades)
	api.GET("/runs/:id/snapshots", s.handleRunSnapshots)
	api.GET("/runs/:id/stats", s.handleRunStats)
	api.GET("/strategies", s.handleStrategies)

	metaGroup := s.router.Group("/api/meta")
	metaGroup.GET("/symbols", s.handleSymbols)

	journalGroup := s.router.Group("/api/journal")
	journalGroup.GET("/symbol/:symbol", s.handleJournalSymbol)
	journalGroup.GET("/stats", s.handleJournalStats)
}

func (s *Server) handleRunStart(c *gin.Context) {
	var req sim.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	run, err := s.svc.Submit(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run": run})
}

func (s *Server) handleRunList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := s.svc.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleRunDetail(c *gin.Context) {
	run, err := s.svc.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

func (s *Server) handleRunOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	orders, err := s.svc.ListOrders(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (s *Server) handleRunTrades(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	trades, err := s.svc.ListTrades(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) handleRunSnapshots(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "1000"))
	snaps, err := s.svc.ListSnapshots(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snaps})
}

// handleRunStats returns the stats blob, optionally narrowed by a gjson path
// query, e.g. /stats?path=win_rate or /stats?path=finished_at.
func (s *Server) handleRunStats(c *gin.Context) {
	run, err := s.svc.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	raw, err := run.MarshalStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	path := c.Query("path")
	if path == "" {
		c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
		return
	}
	value := gjson.GetBytes(raw, path)
	if !value.Exists() {
		c.JSON(http.StatusNotFound, gin.H{"error": "no value at path " + path})
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path, "value": value.Value()})
}

func (s *Server) handleStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": s.svc.Presets()})
}

func (s *Server) handleSymbols(c *gin.Context) {
	if s.market == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "market meta 未启用"})
		return
	}
	out := make(map[string][]meta.Info)
	for category, symbols := range meta.SymbolsByCategory() {
		infos := make([]meta.Info, 0, len(symbols))
		for _, sym := range symbols {
			infos = append(infos, s.market.Info(sym))
		}
		out[category] = infos
	}
	c.JSON(http.StatusOK, gin.H{"symbols": out})
}

func (s *Server) handleJournalSymbol(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal 未启用"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries, err := s.journal.ListBySymbol(c.Request.Context(), c.Param("symbol"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) handleJournalStats(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal 未启用"})
		return
	}
	stats, err := s.journal.StatsBySymbol(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// Router 暴露底层路由，便于测试。
func (s *Server) Router() http.Handler { return s.router }

// Start 启动 HTTP 服务，阻塞直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
