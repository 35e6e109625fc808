package prometheus

import (
	"strconv"
	"sync"
	"time"

	"catalog-service/pkg/config"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec
	HttpStatusCategory  *prometheus.CounterVec

	// Database operation metrics
	DbOperationDuration *prometheus.HistogramVec

	// Catalog metrics
	CatalogOperationsCounter *prometheus.CounterVec
	BlobOperationsCounter    *prometheus.CounterVec
	CompensationsCounter     *prometheus.CounterVec

	// Inventory metrics
	LowStockProductsGauge prometheus.Gauge

	once sync.Once
)

// InitMetrics initializes Prometheus metrics with configuration.
// Only the first call registers collectors.
func InitMetrics(cfg *config.Config) {
	once.Do(func() {
		register(cfg.Metrics.Prefix)
	})
}

func register(prefix string) {
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HttpStatusCategory = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_status_category_total",
			Help: "Total number of responses by status category (2xx, 4xx, 5xx)",
		},
		[]string{"category", "method", "path"},
	)

	DbOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation_type"},
	)

	CatalogOperationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_operations_total",
			Help: "Total number of catalog operations",
		},
		[]string{"entity", "operation"},
	)

	BlobOperationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_blob_operations_total",
			Help: "Total number of blob store operations",
		},
		[]string{"operation", "result"},
	)

	CompensationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_compensations_total",
			Help: "Total number of compensating blob deletions after a failed write",
		},
		[]string{"step"},
	)

	LowStockProductsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_low_stock_products",
			Help: "Number of products at or below the low-stock threshold",
		},
	)
}

// MetricsMiddleware records request count, duration and status category
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			if HttpRequestsTotal == nil {
				return err
			}

			method := c.Request().Method
			path := c.Path()
			status := c.Response().Status
			statusStr := strconv.Itoa(status)

			HttpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
			HttpRequestDuration.WithLabelValues(method, path, statusStr).Observe(time.Since(start).Seconds())
			if category := statusCategory(status); category != "" {
				HttpStatusCategory.WithLabelValues(category, method, path).Inc()
			}

			return err
		}
	}
}

func statusCategory(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	}
	return ""
}

// TrackDBOperation returns a function that records the duration of a database operation
func TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		if DbOperationDuration == nil {
			return
		}
		DbOperationDuration.WithLabelValues(operationType).Observe(time.Since(startTime).Seconds())
	}
}

// RecordCatalogOperation increments the counter for a category or product operation
func RecordCatalogOperation(entity, operation string) {
	if CatalogOperationsCounter == nil {
		return
	}
	CatalogOperationsCounter.WithLabelValues(entity, operation).Inc()
}

// RecordBlobOperation counts a blob store call by outcome
func RecordBlobOperation(operation string, err error) {
	if BlobOperationsCounter == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	BlobOperationsCounter.WithLabelValues(operation, result).Inc()
}

// RecordCompensation counts a rollback step taken after a partial failure
func RecordCompensation(step string) {
	if CompensationsCounter == nil {
		return
	}
	CompensationsCounter.WithLabelValues(step).Inc()
}

// SetLowStockProducts updates the low-stock gauge
func SetLowStockProducts(count int) {
	if LowStockProductsGauge == nil {
		return
	}
	LowStockProductsGauge.Set(float64(count))
}
