package app

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bluedjedi/djedi/internal/config"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Prometheus.URL = "http://127.0.0.1:1"
	cfg.Contact.FallbackLog = filepath.Join(t.TempDir(), "contact.log")
	cfg.Telegram.BotTokenFile = filepath.Join(t.TempDir(), "token")
	cfg.Telegram.ChatIDFile = filepath.Join(t.TempDir(), "chat")

	a, err := InitializeApp(&cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("InitializeApp() 失败: %v", err)
	}
	return a
}

func TestRoutes(t *testing.T) {
	e := newTestApp(t).Echo()

	want := map[string]bool{
		"GET /health":                 false,
		"POST /contact":               false,
		"GET /api/status":             false,
		"GET /api/metrics":            false,
		"GET /api/system":             false,
		"GET /api/prometheus-test":    false,
		"GET /api/prometheus/*":       false,
		"POST /api/telegram/test":     false,
		"GET /admin/metrics":          false,
		"GET /admin/services/status": false,
	}
	for _, r := range e.Routes() {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, found := range want {
		if !found {
			t.Errorf("缺少路由 %s", route)
		}
	}
}

func TestMiddleware(t *testing.T) {
	e := newTestApp(t).Echo()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(echo.HeaderOrigin, "https://bluedjedi.com")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "healthy") {
		t.Fatalf("%d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Error("缺少请求 ID")
	}
	if rec.Header().Get(echo.HeaderAccessControlAllowOrigin) != "*" {
		t.Errorf("CORS = %q", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	}
}

func TestContactWithoutSecretsFallsBack(t *testing.T) {
	e := newTestApp(t).Echo()

	req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader("message=hello"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"success"`) {
		t.Errorf("%d %s", rec.Code, rec.Body.String())
	}
}
