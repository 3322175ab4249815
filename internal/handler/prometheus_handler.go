package handler

import (
	"encoding/json"
	"net/http"

	"github.com/bluedjedi/djedi/internal/protocol"
	"github.com/bluedjedi/djedi/internal/vmclient"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// PrometheusHandler 时序库连通性检查和只读代理
type PrometheusHandler struct {
	logger   *zap.Logger
	vmClient *vmclient.VMClient
}

// NewPrometheusHandler 创建处理器
func NewPrometheusHandler(logger *zap.Logger, vmClient *vmclient.VMClient) *PrometheusHandler {
	return &PrometheusHandler{
		logger:   logger,
		vmClient: vmClient,
	}
}

// Test 执行 up 查询，原样返回时序库的响应
// GET /api/prometheus-test
func (h *PrometheusHandler) Test(c echo.Context) error {
	_, body, err := h.vmClient.Proxy(c.Request().Context(), "api/v1/query", "query=up")
	if err == nil && !json.Valid(body) {
		err = vmclient.ErrMalformedResponse
	}
	if err != nil {
		h.logger.Error("时序库连通性检查失败", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, protocol.PrometheusTestResponse{
			Status: protocol.StatusFailed,
			Error:  err.Error(),
		})
	}

	return c.JSON(http.StatusOK, protocol.PrometheusTestResponse{
		Status:         protocol.StatusConnected,
		PrometheusData: body,
	})
}

// Proxy 把 GET 请求转发到时序库，保留状态码和响应体
// GET /api/prometheus/*
func (h *PrometheusHandler) Proxy(c echo.Context) error {
	path := c.Param("*")
	status, body, err := h.vmClient.Proxy(c.Request().Context(), path, c.QueryString())
	if err != nil {
		h.logger.Error("时序库代理请求失败", zap.String("path", path), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Prometheus connection failed: " + err.Error(),
		})
	}

	c.Response().Header().Set(echo.HeaderAccessControlAllowOrigin, "*")
	return c.Blob(status, echo.MIMEApplicationJSON, body)
}
