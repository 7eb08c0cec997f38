// Package metrics provides Prometheus instrumentation for the market service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation result labels.
const (
	ResultSuccess    = "success"
	ResultBadRequest = "bad_request"
	ResultError      = "error"
)

var (
	// OperationsTotal counts engine operations by outcome.
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "idm_operations_total",
		Help: "Total listing engine operations",
	}, []string{"operation", "result"})

	OperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "idm_operation_latency_seconds",
		Help:    "Listing engine operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// TradedQuantity tracks items moved from listings to buyers.
	TradedQuantity = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "idm_traded_quantity_total",
		Help: "Cumulative quantity of items purchased",
	}, []string{"category"})

	// SettledProceeds tracks currency paid out to sellers on claim and cancel.
	SettledProceeds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "idm_settled_proceeds_total",
		Help: "Cumulative proceeds credited to sellers",
	}, []string{"currency"})

	IdempotentReplays = promauto.NewCounter(prometheus.CounterOpts{
		Name: "idm_idempotent_replays_total",
		Help: "Purchases answered from a recorded idempotency entry",
	})

	// EventsPublished counts listing events handed to each sink.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "idm_events_published_total",
		Help: "Listing events published by sink",
	}, []string{"sink", "result"})

	// WebSocketClients tracks connected feed clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "idm_websocket_clients",
		Help: "Number of connected WebSocket feed clients",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "idm_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "idm_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// ObserveOperation records one engine call.
func ObserveOperation(operation, result string, started time.Time) {
	OperationsTotal.WithLabelValues(operation, result).Inc()
	OperationLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request metrics. The route pattern is used as the path
// label; unmatched requests share one label.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
