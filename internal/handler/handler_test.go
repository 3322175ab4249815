package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bluedjedi/djedi/internal/metric"
	"github.com/bluedjedi/djedi/internal/notifier"
	"github.com/bluedjedi/djedi/internal/protocol"
	"github.com/bluedjedi/djedi/internal/service"
	"github.com/bluedjedi/djedi/internal/telemetry"
	"github.com/bluedjedi/djedi/internal/vmclient"

	"github.com/google/go-cmp/cmp"
	"github.com/labstack/echo/v4"
	"github.com/spf13/afero"
	"go.uber.org/zap/zaptest"
)

type staticSampler struct{}

func (staticSampler) Collect(ctx context.Context) metric.SystemSnapshot {
	return metric.SystemSnapshot{
		CPU:          metric.CPUData{Percent: 3.5, Count: 4},
		ProcessCount: 120,
		Uptime:       "1d 2h 3m",
		UptimeShort:  "1d 2h",
		Timestamp:    time.Unix(1705320000, 0),
	}
}

type testEnv struct {
	e            *echo.Echo
	fallbackPath string
	telegramHits atomic.Int32
}

// newTestEnv 组装真实的服务，时序库和 Telegram 使用 httptest 替身
func newTestEnv(t *testing.T, promURL string, secrets map[string]string) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)
	env := &testEnv{}

	tg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.telegramHits.Add(1)
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(tg.Close)

	fs := afero.NewMemMapFs()
	for name, content := range secrets {
		_ = afero.WriteFile(fs, name, []byte(content), 0o600)
	}
	store := notifier.NewSecretStore(logger, fs, "/secrets/token", "/secrets/chat")
	sender := notifier.NewTelegram(logger, store, notifier.TelegramOpts{
		APIURL:     tg.URL,
		MaxRetries: 1,
	})

	env.fallbackPath = filepath.Join(t.TempDir(), "contact_messages.log")
	fallback := notifier.NewFallbackLog(env.fallbackPath)
	t.Cleanup(func() { fallback.Close() })

	client := vmclient.NewVMClient(vmclient.Opts{URL: promURL, Timeout: 2 * time.Second})
	tel := telemetry.New()

	metricHandler := NewMetricHandler(logger, service.NewMetricService(logger, client, staticSampler{}, service.MetricServiceOpts{}), tel)
	contactHandler := NewContactHandler(logger, service.NewContactService(logger, sender, fallback, service.ContactServiceOpts{ThrottleWindow: 30 * time.Second}), tel)
	promHandler := NewPrometheusHandler(logger, client)
	statusHandler := NewStatusHandler("2.0.0", tel)

	e := echo.New()
	e.GET("/health", statusHandler.Health)
	e.GET("/api/status", statusHandler.Status)
	e.GET("/api/metrics", statusHandler.Metrics)
	e.GET("/api/system", metricHandler.GetSystem)
	e.GET("/admin/metrics", metricHandler.GetMetrics)
	e.GET("/admin/services/status", metricHandler.GetServicesStatus)
	e.GET("/api/prometheus-test", promHandler.Test)
	e.GET("/api/prometheus/*", promHandler.Proxy)
	e.POST("/api/telegram/test", contactHandler.TelegramTest)
	e.POST("/contact", contactHandler.Submit)
	env.e = e
	return env
}

func (env *testEnv) do(method, target, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func deadURL(t *testing.T) string {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	return srv.URL
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("解析响应失败: %v\n%s", err, rec.Body.String())
	}
	return v
}

func TestHealthAndStatus(t *testing.T) {
	env := newTestEnv(t, deadURL(t), nil)

	rec := env.do(http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"status":"healthy"}` {
		t.Errorf("health = %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodGet, "/api/status", "", "")
	status := decode[protocol.StatusResponse](t, rec)
	if status.Status != "running" || status.Version != "2.0.0" || status.Timestamp.IsZero() {
		t.Errorf("status = %+v", status)
	}
}

type metricsBody struct {
	Status string `json:"status"`
	Data   struct {
		System struct {
			ProcessCount int `json:"process_count"`
		} `json:"system"`
		CPU struct {
			Current float64   `json:"current"`
			Trend   []float64 `json:"chart_data"`
		} `json:"cpu"`
		Storage struct {
			Used float64 `json:"used"`
			Free float64 `json:"free"`
		} `json:"storage"`
		Services map[string]bool `json:"services"`
	} `json:"data"`
}

func TestGetMetrics_BackendDown(t *testing.T) {
	env := newTestEnv(t, deadURL(t), nil)

	rec := env.do(http.MethodGet, "/admin/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}

	body := decode[metricsBody](t, rec)

	if body.Status != "success" {
		t.Errorf("status = %q", body.Status)
	}
	if body.Data.System.ProcessCount != 120 {
		t.Errorf("本机快照应有效: %+v", body.Data.System)
	}
	if body.Data.CPU.Current != 0 || body.Data.CPU.Trend == nil || len(body.Data.CPU.Trend) != 0 {
		t.Errorf("cpu = %+v", body.Data.CPU)
	}
	if body.Data.Storage.Used != 0 || body.Data.Storage.Free != 100 {
		t.Errorf("storage = %+v", body.Data.Storage)
	}
	if diff := cmp.Diff(map[string]bool(metric.NewServiceStatusMap()), body.Data.Services); diff != "" {
		t.Errorf("services mismatch (-want +got):\n%s", diff)
	}

	// 失败的分支记录到自身指标
	metrics := env.do(http.MethodGet, "/api/metrics", "", "").Body.String()
	if !strings.Contains(metrics, `djedi_dashboard_branch_failures_total{branch="cpu"} 1`) {
		t.Errorf("缺少分支失败指标:\n%s", metrics)
	}
}

func TestGetServicesStatus(t *testing.T) {
	prom := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{"resultType":"vector","result":[
			{"metric":{"job":"prometheus"},"value":[1705320000,"1"]},
			{"metric":{"job":"grafana"},"value":[1705320000,"0"]}]}}`))
	}))
	defer prom.Close()
	env := newTestEnv(t, prom.URL, nil)

	rec := env.do(http.MethodGet, "/admin/services/status", "", "")
	body := decode[protocol.ServicesResponse](t, rec)
	if body.Status != "success" || !body.Services["prometheus"] || body.Services["grafana"] || !body.Services["n8n"] {
		t.Errorf("body = %+v", body)
	}
}

func TestGetSystem(t *testing.T) {
	env := newTestEnv(t, deadURL(t), nil)
	rec := env.do(http.MethodGet, "/api/system", "", "")
	got := decode[metric.SystemSnapshot](t, rec)
	if got.ProcessCount != 120 || got.CPU.Count != 4 || got.Uptime != "1d 2h 3m" {
		t.Errorf("system = %+v", got)
	}
}

func TestPrometheusTest(t *testing.T) {
	prom := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/query" || r.URL.Query().Get("query") != "up" {
			t.Errorf("unexpected request %s", r.URL)
		}
		w.Write([]byte(`{"status":"success","data":{"resultType":"vector","result":[]}}`))
	}))
	defer prom.Close()

	rec := newTestEnv(t, prom.URL, nil).do(http.MethodGet, "/api/prometheus-test", "", "")
	body := decode[protocol.PrometheusTestResponse](t, rec)
	if rec.Code != http.StatusOK || body.Status != "connected" || !strings.Contains(string(body.PrometheusData), `"resultType":"vector"`) {
		t.Errorf("%d %s", rec.Code, rec.Body.String())
	}

	rec = newTestEnv(t, deadURL(t), nil).do(http.MethodGet, "/api/prometheus-test", "", "")
	body = decode[protocol.PrometheusTestResponse](t, rec)
	if rec.Code != http.StatusInternalServerError || body.Status != "failed" || body.Error == "" {
		t.Errorf("%d %s", rec.Code, rec.Body.String())
	}
}

func TestPrometheusProxy(t *testing.T) {
	prom := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/label/job/values" || r.URL.RawQuery != "start=1&end=2" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"status":"success","data":["prometheus"]}`))
	}))
	defer prom.Close()

	rec := newTestEnv(t, prom.URL, nil).do(http.MethodGet, "/api/prometheus/api/v1/label/job/values?start=1&end=2", "", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("code = %d", rec.Code)
	}
	if rec.Body.String() != `{"status":"success","data":["prometheus"]}` {
		t.Errorf("body = %s", rec.Body.String())
	}
	if rec.Header().Get(echo.HeaderAccessControlAllowOrigin) != "*" {
		t.Error("缺少 CORS 头")
	}

	rec = newTestEnv(t, deadURL(t), nil).do(http.MethodGet, "/api/prometheus/api/v1/query?query=up", "", "")
	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), "Prometheus connection failed") {
		t.Errorf("%d %s", rec.Code, rec.Body.String())
	}
}

func contactForm(values map[string]string) string {
	form := url.Values{}
	for k, v := range values {
		form.Set(k, v)
	}
	return form.Encode()
}

func TestContact_RelayedToTelegram(t *testing.T) {
	env := newTestEnv(t, deadURL(t), map[string]string{"/secrets/token": "123:abc", "/secrets/chat": "42"})

	rec := env.do(http.MethodPost, "/contact", echo.MIMEApplicationForm, contactForm(map[string]string{
		"name": "Obi", "message": "hello",
	}))
	body := decode[protocol.MessageResponse](t, rec)
	if rec.Code != http.StatusOK || body.Status != "success" || body.Message != protocol.ContactAccepted {
		t.Errorf("%d %+v", rec.Code, body)
	}
	if env.telegramHits.Load() != 1 {
		t.Errorf("telegramHits = %d", env.telegramHits.Load())
	}
	if _, err := os.Stat(env.fallbackPath); err == nil {
		t.Error("发送成功时不应写备份日志")
	}
}

func TestContact_FallbackWhenSecretsMissing(t *testing.T) {
	env := newTestEnv(t, deadURL(t), nil)

	rec := env.do(http.MethodPost, "/contact", echo.MIMEApplicationJSON, `{"email":"obi@temple.org","message":"hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d %s", rec.Code, rec.Body.String())
	}

	data, err := os.ReadFile(env.fallbackPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"NAME: ANONYMOUS", "EMAIL: obi@temple.org", "MESSAGE: hello"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("备份日志缺少 %q:\n%s", want, data)
		}
	}
}

func TestContact_ValidationAndThrottle(t *testing.T) {
	env := newTestEnv(t, deadURL(t), map[string]string{"/secrets/token": "123:abc", "/secrets/chat": "42"})

	rec := env.do(http.MethodPost, "/contact", echo.MIMEApplicationForm, contactForm(map[string]string{
		"email": "nope", "message": "  ",
	}))
	body := decode[protocol.MessageResponse](t, rec)
	if rec.Code != http.StatusBadRequest || body.Status != "error" {
		t.Fatalf("%d %+v", rec.Code, body)
	}
	if body.Errors["email"] == "" || body.Errors["message"] == "" {
		t.Errorf("errors = %v", body.Errors)
	}

	form := contactForm(map[string]string{"message": "hello"})
	if rec := env.do(http.MethodPost, "/contact", echo.MIMEApplicationForm, form); rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	rec = env.do(http.MethodPost, "/contact", echo.MIMEApplicationForm, form)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("第二次提交应被限流: %d", rec.Code)
	}
}

func TestTelegramTest(t *testing.T) {
	env := newTestEnv(t, deadURL(t), nil)
	rec := env.do(http.MethodPost, "/api/telegram/test", "", "")
	body := decode[protocol.MessageResponse](t, rec)
	if rec.Code != http.StatusInternalServerError || body.Message != protocol.TelegramNotConfigured {
		t.Errorf("%d %+v", rec.Code, body)
	}

	env = newTestEnv(t, deadURL(t), map[string]string{"/secrets/token": "123:abc", "/secrets/chat": "42"})
	rec = env.do(http.MethodPost, "/api/telegram/test", "", "")
	body = decode[protocol.MessageResponse](t, rec)
	if rec.Code != http.StatusOK || body.Message != protocol.TelegramTestSent || env.telegramHits.Load() != 1 {
		t.Errorf("%d %+v hits=%d", rec.Code, body, env.telegramHits.Load())
	}
}
