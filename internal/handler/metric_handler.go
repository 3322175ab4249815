package handler

import (
	"net/http"

	"github.com/bluedjedi/djedi/internal/protocol"
	"github.com/bluedjedi/djedi/internal/service"
	"github.com/bluedjedi/djedi/internal/telemetry"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// MetricHandler 仪表盘指标处理器
type MetricHandler struct {
	logger    *zap.Logger
	service   *service.MetricService
	telemetry *telemetry.Telemetry
}

// NewMetricHandler 创建处理器
func NewMetricHandler(logger *zap.Logger, service *service.MetricService, telemetry *telemetry.Telemetry) *MetricHandler {
	return &MetricHandler{
		logger:    logger,
		service:   service,
		telemetry: telemetry,
	}
}

// GetMetrics 获取仪表盘快照，部分数据源不可用时对应字段为零值
// GET /admin/metrics
func (h *MetricHandler) GetMetrics(c echo.Context) error {
	report := h.service.Aggregate(c.Request().Context())
	h.telemetry.ObserveAggregate(report.Errors)

	return c.JSON(http.StatusOK, protocol.MetricsResponse{
		Status: protocol.StatusSuccess,
		Data:   report.Snapshot,
	})
}

// GetServicesStatus 获取服务在线状态
// GET /admin/services/status
func (h *MetricHandler) GetServicesStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, protocol.ServicesResponse{
		Status:   protocol.StatusSuccess,
		Services: h.service.GetServiceStatus(c.Request().Context()),
	})
}

// GetSystem 获取本机资源信息
// GET /api/system
func (h *MetricHandler) GetSystem(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.GetSystemSnapshot(c.Request().Context()))
}
