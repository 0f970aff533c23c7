// Package gateway exposes the ledger and the quote snapshot over HTTP and
// mounts the market data websocket.
package gateway

import (
	"context"
	"net/http"
	"time"

	"papertrade/config"
	"papertrade/internal/ledger"
	"papertrade/internal/market/memorystore"
	"papertrade/internal/metrics"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Ledger interface {
	Buy(ctx context.Context, userID, symbol string, qty int64, price decimal.Decimal) (ledger.Trade, error)
	Sell(ctx context.Context, userID, symbol string, qty int64, price decimal.Decimal) (ledger.Trade, error)
	SquareOff(ctx context.Context, userID, symbol string) (ledger.Trade, error)
	Holdings(ctx context.Context, userID string) ([]ledger.Holding, error)
	Orders(ctx context.Context, userID string) ([]ledger.Order, error)
}

type QuoteReader interface {
	All() []memorystore.Quote
	Get(symbol string) (memorystore.Quote, bool)
	Len() int
}

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) bool

type Options struct {
	Ledger      Ledger
	Quotes      QuoteReader
	Stream      http.Handler // websocket endpoint, optional
	Subscribers func() int
	Auth        config.AuthConfig
	StaleAfter  time.Duration
	Checks      map[string]HealthCheck
	Logger      *zap.Logger
}

type Server struct {
	router *gin.Engine
	opts   Options
	now    func() time.Time
}

func NewServer(opts Options) *Server {
	s := &Server{
		router: gin.New(),
		opts:   opts,
		now:    time.Now,
	}

	s.router.Use(ginzap.Ginzap(opts.Logger, time.RFC3339, true))
	s.router.Use(ginzap.RecoveryWithZap(opts.Logger, true))
	s.router.Use(metrics.Middleware())
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", userIDHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	s.registerRoutes()
	return s
}

// Router returns the gin engine, for tests and for mounting in http.Server.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.health)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if s.opts.Stream != nil {
		s.router.GET("/ws", gin.WrapH(s.opts.Stream))
	}

	api := s.router.Group("/api/v1")
	{
		api.GET("/snapshot", s.snapshot)
		api.GET("/snapshot/:symbol", s.snapshotSymbol)
	}

	user := api.Group("")
	user.Use(authMiddleware(s.opts.Auth))
	{
		user.POST("/orders/buy", s.buy)
		user.POST("/orders/sell", s.sell)
		user.GET("/orders", s.orders)
		user.GET("/holdings", s.holdings)
		user.POST("/holdings/:symbol/square-off", s.squareOff)
	}
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.opts.Checks))
	for name, check := range s.opts.Checks {
		if check(ctx) {
			checks[name] = "ok"
			continue
		}
		checks[name] = "down"
		status = http.StatusServiceUnavailable
	}

	body := gin.H{
		"status": http.StatusText(status),
		"quotes": s.opts.Quotes.Len(),
		"checks": checks,
	}
	if s.opts.Subscribers != nil {
		body["subscribers"] = s.opts.Subscribers()
	}
	c.JSON(status, body)
}
