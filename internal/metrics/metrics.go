// Package metrics provides Prometheus instrumentation for the market engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts executed trades, partitioned by side and
	// pricing model.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openpredict_trades_total",
		Help: "Total number of trades executed",
	}, []string{"side", "model"})

	// TradeLatency tracks trade execution latency.
	TradeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "openpredict_trade_latency_seconds",
		Help:    "Trade execution latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"side"})

	// TradesRejected counts trades rejected before execution.
	TradesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "openpredict_trades_rejected_total",
		Help: "Trades rejected as invalid",
	})

	// DegenerateRenormalizations counts renormalizations that fell back
	// to a uniform split because every non-traded price was zero.
	DegenerateRenormalizations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "openpredict_degenerate_renormalizations_total",
		Help: "Renormalizations that used the uniform-split fallback",
	})

	// ActiveMarkets tracks the number of markets accepting trades.
	ActiveMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "openpredict_active_markets",
		Help: "Number of markets currently trading",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "openpredict_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// MarketVolume tracks cumulative notional volume per market and side.
	MarketVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openpredict_market_volume_total",
		Help: "Cumulative notional trade volume",
	}, []string{"market_id", "side"})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openpredict_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "openpredict_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
