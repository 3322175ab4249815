package metric

import "time"

// 服务目录
const (
	ServiceAmnezia    = "amnezia"
	ServiceGrafana    = "grafana"
	ServicePrometheus = "prometheus"
	ServicePortainer  = "portainer"
	ServiceTelegram   = "telegram"
	ServiceLibreChat  = "librechat"
	ServiceN8N        = "n8n"
)

// ServiceCatalog 固定的服务列表，顺序即展示顺序
var ServiceCatalog = []string{
	ServiceAmnezia,
	ServiceGrafana,
	ServicePrometheus,
	ServicePortainer,
	ServiceTelegram,
	ServiceLibreChat,
	ServiceN8N,
}

// ServiceStatusMap 服务名 -> 是否在线。目录中的每个服务都必定存在
type ServiceStatusMap map[string]bool

// NewServiceStatusMap 所有服务初始化为 false
func NewServiceStatusMap() ServiceStatusMap {
	m := make(ServiceStatusMap, len(ServiceCatalog))
	for _, name := range ServiceCatalog {
		m[name] = false
	}
	return m
}

// MetricsSnapshot 仪表盘每次刷新返回的完整快照，不持久化
type MetricsSnapshot struct {
	System    SystemSnapshot   `json:"system" yaml:"system"`
	CPU       DashboardSeries  `json:"cpu" yaml:"cpu"`
	Memory    DashboardSeries  `json:"memory" yaml:"memory"`
	Storage   StorageSeries    `json:"storage" yaml:"storage"`
	Network   DashboardSeries  `json:"network" yaml:"network"`
	Services  ServiceStatusMap `json:"services" yaml:"services"`
	CreatedAt time.Time        `json:"created_at" yaml:"created_at"`
}
