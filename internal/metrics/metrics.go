// Package metrics holds the Prometheus collectors shared by the market-data
// engine, the ledger and the HTTP gateway.
package metrics

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SchedulerTicks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_ticks_total",
		Help: "Aggregation ticks by result (ok, empty, panic).",
	}, []string{"result"})
	SchedulerTickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduler_tick_duration_seconds",
		Help:    "Wall time of one aggregation tick.",
		Buckets: prometheus.DefBuckets,
	})
	QuoteFetchFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quote_fetch_failures_total",
		Help: "Per-symbol quote fetches that produced no quote.",
	})
	BroadcastSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "broadcast_subscribers",
		Help: "Currently connected market data subscribers.",
	})
	BroadcastDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_dropped_messages_total",
		Help: "Messages dropped from full subscriber queues.",
	})
	LedgerTrades = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_trades_total",
		Help: "Ledger transitions by side and result.",
	}, []string{"side", "result"})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by route, method and status.",
	}, []string{"path", "method", "status"})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by route and method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method"})
)

func init() {
	prometheus.MustRegister(
		SchedulerTicks,
		SchedulerTickDuration,
		QuoteFetchFailures,
		BroadcastSubscribers,
		BroadcastDropped,
		LedgerTrades,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// Middleware records HTTP request counts and durations.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		status := fmt.Sprintf("%d", c.Writer.Status())

		HTTPRequestsTotal.WithLabelValues(path, method, status).Inc()
		HTTPRequestDuration.WithLabelValues(path, method).Observe(time.Since(start).Seconds())
	}
}
