package telemetry

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func scrape(t *testing.T, tel *Telemetry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestMiddleware(t *testing.T) {
	tel := New()
	e := echo.New()
	e.Use(tel.Middleware())
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot)
	})

	for _, path := range []string{"/health", "/health", "/boom"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	out := scrape(t, tel)
	for _, want := range []string{
		`djedi_http_requests_total{code="200",method="GET",route="/health"} 2`,
		`djedi_http_requests_total{code="418",method="GET",route="/boom"} 1`,
		`djedi_http_request_duration_seconds_count{route="/health"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("缺少指标 %s\n%s", want, out)
		}
	}
}

func TestObserve(t *testing.T) {
	tel := New()
	tel.ObserveContact(ContactAccepted)
	tel.ObserveContact(ContactThrottled)
	tel.ObserveContact(ContactThrottled)
	tel.ObserveAggregate(map[string]error{"cpu": errors.New("down"), "memory": errors.New("down")})
	tel.ObserveAggregate(nil)

	out := scrape(t, tel)
	for _, want := range []string{
		`djedi_contact_submissions_total{outcome="accepted"} 1`,
		`djedi_contact_submissions_total{outcome="throttled"} 2`,
		`djedi_dashboard_branch_failures_total{branch="cpu"} 1`,
		`djedi_dashboard_branch_failures_total{branch="memory"} 1`,
		`djedi_dashboard_aggregations_total 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("缺少指标 %s", want)
		}
	}
}
