package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"exec-core/internal/account"
	"exec-core/internal/exstate"
	"exec-core/internal/ledger"
	"exec-core/internal/risk"
)

// Meta describes the running configuration exposed on the status endpoint.
type Meta struct {
	Mode     string
	Symbols  []string
	Strategy string
	Version  string
}

// Server exposes the operator HTTP surface: runtime status, the manual kill
// switch and read access to trades and positions.
type Server struct {
	router    *gin.Engine
	guard     *risk.Runtime
	store     ledger.Store
	state     *exstate.Service // nil in simulated modes
	positions func() []account.Position
	meta      Meta
	startedAt time.Time
}

// NewServer wires routes. positions supplies the current open positions for
// whichever environment is active; state may be nil outside testnet/live.
func NewServer(guard *risk.Runtime, store ledger.Store, state *exstate.Service, positions func() []account.Position, meta Meta) *Server {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger())
	r.Use(CORSMiddleware())

	s := &Server{
		router:    r,
		guard:     guard,
		store:     store,
		state:     state,
		positions: positions,
		meta:      meta,
		startedAt: time.Now(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/health", s.health)

	api := s.router.Group("/api")
	{
		api.GET("/status", s.getStatus)
		api.GET("/trades", s.getTrades)
		api.GET("/trades/daily", s.getDailySummary)
		api.GET("/positions", s.getPositions)

		api.POST("/risk/freeze", s.freeze)
		api.POST("/risk/unfreeze", s.unfreeze)

		api.GET("/pnl/daily", s.getDailyPnl)
		api.GET("/fills", s.getFills)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getStatus(c *gin.Context) {
	st := s.guard.State()
	resp := gin.H{
		"mode":       s.meta.Mode,
		"symbols":    s.meta.Symbols,
		"strategy":   s.meta.Strategy,
		"version":    s.meta.Version,
		"uptime_sec": int(time.Since(s.startedAt).Seconds()),
		"risk": gin.H{
			"frozen":           st.IsFrozen,
			"manual_frozen":    st.IsManualFrozen,
			"freeze_reason":    st.FrozenReason,
			"trades_today":     st.TradesToday,
			"consecutive_loss": st.ConsecutiveLossCount,
			"trading_date":     st.TradingDate,
		},
	}
	if s.state != nil {
		resp["exchange_stream"] = s.state.Running()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getTrades(c *gin.Context) {
	trades, err := s.store.GetAllTrades(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

func (s *Server) getDailySummary(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	summary, err := s.store.GetDailySummary(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) getPositions(c *gin.Context) {
	pos := s.positions()
	c.JSON(http.StatusOK, gin.H{"positions": pos, "count": len(pos)})
}

type freezeRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) freeze(c *gin.Context) {
	var req freezeRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "manual freeze"
	}
	s.guard.Freeze(req.Reason)
	c.JSON(http.StatusOK, gin.H{"frozen": true, "reason": req.Reason})
}

func (s *Server) unfreeze(c *gin.Context) {
	s.guard.Unfreeze()
	c.JSON(http.StatusOK, gin.H{"frozen": false})
}

func (s *Server) getDailyPnl(c *gin.Context) {
	if s.state == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not available in simulated modes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": s.state.DailyPnl()})
}

func (s *Server) getFills(c *gin.Context) {
	if s.state == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not available in simulated modes"})
		return
	}
	fills := s.state.RecentFills()
	c.JSON(http.StatusOK, gin.H{"fills": fills, "count": len(fills)})
}

// Handler exposes the router for tests and custom servers.
func (s *Server) Handler() http.Handler { return s.router }

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	return s.router.Run(addr)
}
