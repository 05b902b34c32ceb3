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

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proposals_http_requests_total",
		Help: "Total HTTP requests processed, by method, route and status.",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "proposals_http_request_duration_seconds",
		Help:    "HTTP request latency, by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// ExtractionRunsTotal counts completed extraction runs by final status.
	ExtractionRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proposals_extraction_runs_total",
		Help: "Total extraction runs, by final status.",
	}, []string{"status"})

	// ExtractionProductsTotal counts products emitted across all runs.
	ExtractionProductsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proposals_extraction_products_total",
		Help: "Total products extracted across all runs.",
	})

	// ExtractionWarningsTotal counts diagnostics emitted across all runs.
	ExtractionWarningsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proposals_extraction_warnings_total",
		Help: "Total extraction diagnostics emitted across all runs.",
	})

	// ExtractionDuration observes wall time per extraction run.
	ExtractionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "proposals_extraction_duration_seconds",
		Help:    "Wall time spent extracting one workbook.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
)

// Middleware records request counts and latency per route
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the Prometheus scrape endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
