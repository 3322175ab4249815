package app

import (
	"github.com/bluedjedi/djedi/internal/config"
	"github.com/bluedjedi/djedi/internal/handler"
	"github.com/bluedjedi/djedi/internal/telemetry"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Handlers 所有 HTTP 处理器
type Handlers struct {
	Metric     *handler.MetricHandler
	Contact    *handler.ContactHandler
	Prometheus *handler.PrometheusHandler
	Status     *handler.StatusHandler
}

// NewEcho 创建 echo 实例，注册中间件和路由
func NewEcho(cfg *config.AppConfig, logger *zap.Logger, tel *telemetry.Telemetry, h *Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	origins := cfg.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
	}))
	e.Use(tel.Middleware())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("requestID", v.RequestID),
				zap.String("remoteIP", v.RemoteIP),
			}
			if v.Error != nil {
				logger.Warn("请求处理失败", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Debug("请求", fields...)
			return nil
		},
	}))

	RegisterRoutes(e, h)
	return e
}

// RegisterRoutes 注册路由
func RegisterRoutes(e *echo.Echo, h *Handlers) {
	e.GET("/health", h.Status.Health)
	e.POST("/contact", h.Contact.Submit)

	api := e.Group("/api")
	api.GET("/status", h.Status.Status)
	api.GET("/metrics", h.Status.Metrics)
	api.GET("/system", h.Metric.GetSystem)
	api.GET("/prometheus-test", h.Prometheus.Test)
	api.GET("/prometheus/*", h.Prometheus.Proxy)
	api.POST("/telegram/test", h.Contact.TelegramTest)

	admin := e.Group("/admin")
	admin.GET("/metrics", h.Metric.GetMetrics)
	admin.GET("/services/status", h.Metric.GetServicesStatus)
}
