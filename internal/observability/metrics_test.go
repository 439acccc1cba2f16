package observability

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsDeliveryCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncPushDelivery("FCM.googleapis.com", "sent")
	metrics.IncPushDelivery("fcm.googleapis.com", "removed")
	metrics.ObservePushDeliveryDuration("fcm.googleapis.com", 120*time.Millisecond)
	metrics.IncPushInFlight("fcm.googleapis.com")
	metrics.DecPushInFlight("fcm.googleapis.com")
	metrics.IncNoticeCheck("auto", "")

	if got := testutil.ToFloat64(metrics.pushDeliveriesTotal.WithLabelValues("fcm.googleapis.com", "sent")); got != 1 {
		t.Fatalf("push_deliveries_total{sent} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.pushDeliveriesTotal.WithLabelValues("fcm.googleapis.com", "removed")); got != 1 {
		t.Fatalf("push_deliveries_total{removed} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.pushDeliveriesInflight.WithLabelValues("fcm.googleapis.com")); got != 0 {
		t.Fatalf("push_deliveries_inflight = %v, want 0", got)
	}
	if got := testutil.ToFloat64(metrics.noticeChecksTotal.WithLabelValues("auto", "unknown")); got != 1 {
		t.Fatalf("notice_checks_total = %v, want 1", got)
	}
}

func TestMetricsScrapeCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncScrapeAttempt("direct", "failed")
	metrics.IncScrapeAttempt("allorigins", "success")
	metrics.IncScrapeResult("ok", "table-row")

	if got := testutil.ToFloat64(metrics.scrapeAttemptsTotal.WithLabelValues("direct", "failed")); got != 1 {
		t.Fatalf("scrape_attempts_total{direct,failed} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.scrapeResultsTotal.WithLabelValues("ok", "table-row")); got != 1 {
		t.Fatalf("scrape_results_total = %v, want 1", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	t.Parallel()

	var metrics *Metrics
	metrics.IncScrapeAttempt("direct", "failed")
	metrics.IncPushDelivery("relay", "sent")
	metrics.IncNoticeCheck("manual", "sent")
	if metrics.Handler() == nil {
		t.Fatal("Handler() on nil metrics should fall back to the default handler")
	}
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsErrorStatus(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	_, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}
