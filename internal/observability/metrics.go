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

const namespace = "notice_engine"

// Metrics stores Prometheus collectors used by API and worker flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec
	scrapeAttemptsTotal    *prometheus.CounterVec
	scrapeResultsTotal     *prometheus.CounterVec
	pushDeliveriesTotal    *prometheus.CounterVec
	pushDeliveryDuration   *prometheus.HistogramVec
	pushDeliveriesInflight *prometheus.GaugeVec
	noticeChecksTotal      *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		scrapeAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scrape_attempts_total",
				Help:      "Notice board fetch attempts grouped by transport and outcome.",
			},
			[]string{"transport", "outcome"},
		),
		scrapeResultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scrape_results_total",
				Help:      "Completed scrapes grouped by status and winning parse strategy.",
			},
			[]string{"status", "parser"},
		),
		pushDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "push_deliveries_total",
				Help:      "Push deliveries grouped by relay host and outcome (sent, failed, removed).",
			},
			[]string{"relay", "outcome"},
		),
		pushDeliveryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "push_delivery_duration_seconds",
				Help:      "Push relay round-trip duration in seconds grouped by relay host.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"relay"},
		),
		pushDeliveriesInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "push_deliveries_inflight",
				Help:      "Current number of in-flight push deliveries grouped by relay host.",
			},
			[]string{"relay"},
		),
		noticeChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notice_checks_total",
				Help:      "Check-for-new-notices runs grouped by trigger and result.",
			},
			[]string{"triggered_by", "result"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.scrapeAttemptsTotal,
		m.scrapeResultsTotal,
		m.pushDeliveriesTotal,
		m.pushDeliveryDuration,
		m.pushDeliveriesInflight,
		m.noticeChecksTotal,
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

// IncScrapeAttempt satisfies scraper.AttemptRecorder.
func (m *Metrics) IncScrapeAttempt(transport string, outcome string) {
	if m == nil {
		return
	}
	m.scrapeAttemptsTotal.WithLabelValues(normalizeLabel(transport), normalizeLabel(outcome)).Inc()
}

func (m *Metrics) IncScrapeResult(status string, parser string) {
	if m == nil {
		return
	}
	m.scrapeResultsTotal.WithLabelValues(normalizeLabel(status), normalizeLabel(parser)).Inc()
}

func (m *Metrics) IncPushDelivery(relay string, outcome string) {
	if m == nil {
		return
	}
	m.pushDeliveriesTotal.WithLabelValues(normalizeLabel(relay), normalizeLabel(outcome)).Inc()
}

func (m *Metrics) ObservePushDeliveryDuration(relay string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.pushDeliveryDuration.WithLabelValues(normalizeLabel(relay)).Observe(seconds)
}

func (m *Metrics) IncPushInFlight(relay string) {
	if m == nil {
		return
	}
	m.pushDeliveriesInflight.WithLabelValues(normalizeLabel(relay)).Inc()
}

func (m *Metrics) DecPushInFlight(relay string) {
	if m == nil {
		return
	}
	m.pushDeliveriesInflight.WithLabelValues(normalizeLabel(relay)).Dec()
}

func (m *Metrics) IncNoticeCheck(triggeredBy string, result string) {
	if m == nil {
		return
	}
	m.noticeChecksTotal.WithLabelValues(normalizeLabel(triggeredBy), normalizeLabel(result)).Inc()
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

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
