package telemetry

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "djedi"

// 联系表单处理结果
const (
	ContactAccepted  = "accepted"
	ContactInvalid   = "invalid"
	ContactThrottled = "throttled"
	ContactFailed    = "failed"
)

// Telemetry 服务自身的指标，通过 /api/metrics 暴露给 Prometheus 抓取
type Telemetry struct {
	registry       *prometheus.Registry
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	contacts       *prometheus.CounterVec
	branchFailures *prometheus.CounterVec
	aggregations   prometheus.Counter
}

// New 创建独立的 registry，避免污染全局默认 registry
func New() *Telemetry {
	t := &Telemetry{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		contacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contact_submissions_total",
			Help:      "Contact form submissions by outcome",
		}, []string{"outcome"}),
		branchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboard_branch_failures_total",
			Help:      "Dashboard aggregation branches that fell back to zero values",
		}, []string{"branch"}),
		aggregations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboard_aggregations_total",
			Help:      "Dashboard snapshots assembled",
		}),
	}

	t.registry.MustRegister(
		t.requests,
		t.duration,
		t.contacts,
		t.branchFailures,
		t.aggregations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return t
}

// Handler Prometheus 文本格式的指标
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// Middleware 统计请求数和耗时，route 使用路由模板而不是实际路径
func (t *Telemetry) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			code := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				code = he.Code
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			t.requests.WithLabelValues(c.Request().Method, route, strconv.Itoa(code)).Inc()
			t.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// ObserveContact 记录一次联系表单提交
func (t *Telemetry) ObserveContact(outcome string) {
	t.contacts.WithLabelValues(outcome).Inc()
}

// ObserveAggregate 记录一次仪表盘聚合以及失败的分支
func (t *Telemetry) ObserveAggregate(errs map[string]error) {
	t.aggregations.Inc()
	for branch := range errs {
		t.branchFailures.WithLabelValues(branch).Inc()
	}
}
