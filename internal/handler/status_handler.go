package handler

import (
	"net/http"
	"time"

	"github.com/bluedjedi/djedi/internal/protocol"
	"github.com/bluedjedi/djedi/internal/telemetry"

	"github.com/labstack/echo/v4"
)

// StatusHandler 健康检查和运行状态
type StatusHandler struct {
	version   string
	telemetry *telemetry.Telemetry
	now       func() time.Time
}

// NewStatusHandler 创建处理器
func NewStatusHandler(version string, telemetry *telemetry.Telemetry) *StatusHandler {
	return &StatusHandler{
		version:   version,
		telemetry: telemetry,
		now:       time.Now,
	}
}

// Health 健康检查
// GET /health
func (h *StatusHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, protocol.HealthResponse{Status: protocol.StatusHealthy})
}

// Status 运行状态
// GET /api/status
func (h *StatusHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, protocol.StatusResponse{
		Status:    protocol.StatusRunning,
		Version:   h.version,
		Timestamp: h.now().UTC(),
	})
}

// Metrics 服务自身指标
// GET /api/metrics
func (h *StatusHandler) Metrics(c echo.Context) error {
	h.telemetry.Handler().ServeHTTP(c.Response(), c.Request())
	return nil
}
