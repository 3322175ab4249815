package protocol

import (
	"encoding/json"
	"time"

	"github.com/bluedjedi/djedi/internal/metric"
)

// 响应中的 status 字段
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusHealthy   = "healthy"
	StatusRunning   = "running"
	StatusConnected = "connected"
	StatusFailed    = "failed"
)

// MetricsResponse 仪表盘指标
type MetricsResponse struct {
	Status string                 `json:"status"`
	Data   metric.MetricsSnapshot `json:"data"`
}

// ServicesResponse 服务在线状态
type ServicesResponse struct {
	Status   string                  `json:"status"`
	Services metric.ServiceStatusMap `json:"services"`
}

// HealthResponse 健康检查
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse 运行状态
type StatusResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// PrometheusTestResponse 时序库连通性检查
type PrometheusTestResponse struct {
	Status         string          `json:"status"`
	PrometheusData json.RawMessage `json:"prometheus_data,omitempty"` // 原样返回 up 查询的响应
	Error          string          `json:"error,omitempty"`
}
