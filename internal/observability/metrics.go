package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by API and worker flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDuration      *prometheus.HistogramVec
	notificationsDelivered   *prometheus.CounterVec
	notificationsFailedTotal *prometheus.CounterVec
	deliveryDuration         *prometheus.HistogramVec
	workerInflight           *prometheus.GaugeVec
	retryScheduledTotal      *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "webhook_dispatch",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "webhook_dispatch",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		notificationsDelivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "webhook_dispatch",
				Name:      "notifications_delivered_total",
				Help:      "Total number of notifications delivered successfully, by vendor.",
			},
			[]string{"vendor"},
		),
		notificationsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "webhook_dispatch",
				Name:      "notifications_failed_total",
				Help:      "Total number of notifications that ended in FAILED state, by vendor and reason.",
			},
			[]string{"vendor", "reason"},
		),
		deliveryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "webhook_dispatch",
				Name:      "delivery_duration_seconds",
				Help:      "Vendor adapter delivery duration in seconds, by vendor.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"vendor"},
		),
		workerInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "webhook_dispatch",
				Name:      "worker_inflight",
				Help:      "Current number of in-flight delivery attempts, by vendor.",
			},
			[]string{"vendor"},
		),
		retryScheduledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "webhook_dispatch",
				Name:      "retry_scheduled_total",
				Help:      "Total number of notifications scheduled for retry, by vendor.",
			},
			[]string{"vendor"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.notificationsDelivered,
		m.notificationsFailedTotal,
		m.deliveryDuration,
		m.workerInflight,
		m.retryScheduledTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncNotificationDelivered(vendor string) {
	if m == nil {
		return
	}
	m.notificationsDelivered.WithLabelValues(normalizeVendor(vendor)).Inc()
}

func (m *Metrics) IncNotificationFailed(vendor string, reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.notificationsFailedTotal.WithLabelValues(normalizeVendor(vendor), reasonLabel).Inc()
}

func (m *Metrics) ObserveDeliveryDuration(vendor string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.deliveryDuration.WithLabelValues(normalizeVendor(vendor)).Observe(seconds)
}

func (m *Metrics) IncWorkerInFlight(vendor string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeVendor(vendor)).Inc()
}

func (m *Metrics) DecWorkerInFlight(vendor string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeVendor(vendor)).Dec()
}

func (m *Metrics) IncRetryScheduled(vendor string) {
	if m == nil {
		return
	}
	m.retryScheduledTotal.WithLabelValues(normalizeVendor(vendor)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeVendor(vendor string) string {
	normalized := strings.ToLower(strings.TrimSpace(vendor))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
