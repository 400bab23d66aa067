package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Request metrics
	RequestDurationHistogram *prometheus.HistogramVec
	APIRequestCounter        *prometheus.CounterVec
	APIErrorCounter          *prometheus.CounterVec

	// Tenancy metrics
	TenantResolutionCounter *prometheus.CounterVec
	TenantResetFailures     prometheus.Counter
	SchemaOperationCounter  *prometheus.CounterVec
	SchemaOperationDuration *prometheus.HistogramVec

	// Auth metrics
	AuthorizationDenials *prometheus.CounterVec
	TokensIssuedCounter  *prometheus.CounterVec
	TokensRevokedCounter *prometheus.CounterVec

	initOnce sync.Once
)

// InitMetrics registers all collectors under namespace. Calls after the
// first are ignored.
func InitMetrics(namespace string) {
	initOnce.Do(func() {
		RequestDurationHistogram = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		)

		APIRequestCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"method", "path"},
		)

		APIErrorCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Total number of API errors",
			},
			[]string{"method", "path", "status"},
		)

		TenantResolutionCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tenant_resolutions_total",
				Help:      "Tenant resolutions by outcome (tenant, public, fallback, error)",
			},
			[]string{"result"},
		)

		TenantResetFailures = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tenant_reset_failures_total",
			Help:      "Number of failed tenant context resets after a request",
		})

		SchemaOperationCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schema_operations_total",
				Help:      "Schema switch/create/drop directives by result",
			},
			[]string{"op", "result"},
		)

		SchemaOperationDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "schema_operation_duration_seconds",
				Help:      "Duration of schema directives in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		)

		AuthorizationDenials = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "authorization_denials_total",
				Help:      "Requests rejected by role or permission checks",
			},
			[]string{"check"},
		)

		TokensIssuedCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_issued_total",
				Help:      "Total number of tokens issued",
			},
			[]string{"reason"},
		)

		TokensRevokedCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_revoked_total",
				Help:      "Total number of tokens revoked",
			},
			[]string{"reason"},
		)
	})
}

// Middleware tracks request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if APIRequestCounter == nil {
			c.Next()
			return
		}

		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		APIRequestCounter.With(prometheus.Labels{
			"method": c.Request.Method,
			"path":   path,
		}).Inc()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		RequestDurationHistogram.With(prometheus.Labels{
			"method": c.Request.Method,
			"path":   path,
			"status": status,
		}).Observe(time.Since(start).Seconds())

		if c.Writer.Status() >= 400 {
			APIErrorCounter.With(prometheus.Labels{
				"method": c.Request.Method,
				"path":   path,
				"status": status,
			}).Inc()
		}
	}
}

// Handler serves the metrics endpoint.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// TrackSchemaOperation returns a function that records the duration and
// result of a schema directive.
func TrackSchemaOperation(op string) func(err error) {
	start := time.Now()
	return func(err error) {
		if SchemaOperationCounter == nil {
			return
		}
		result := "ok"
		if err != nil {
			result = "error"
		}
		SchemaOperationCounter.WithLabelValues(op, result).Inc()
		SchemaOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

func RecordTenantResolution(result string) {
	if TenantResolutionCounter != nil {
		TenantResolutionCounter.WithLabelValues(result).Inc()
	}
}

func RecordResetFailure() {
	if TenantResetFailures != nil {
		TenantResetFailures.Inc()
	}
}

func RecordDenial(check string) {
	if AuthorizationDenials != nil {
		AuthorizationDenials.WithLabelValues(check).Inc()
	}
}

func RecordTokenIssued(reason string) {
	if TokensIssuedCounter != nil {
		TokensIssuedCounter.WithLabelValues(reason).Inc()
	}
}

func RecordTokenRevoked(reason string) {
	if TokensRevokedCounter != nil {
		TokensRevokedCounter.WithLabelValues(reason).Inc()
	}
}
