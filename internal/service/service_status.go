package service

import (
	"strings"

	"github.com/bluedjedi/djedi/internal/metric"
	"github.com/bluedjedi/djedi/internal/vmclient"
)

// directSignals job 标签子串 -> 服务名。只有这些服务有直接的 up 信号
var directSignals = []struct {
	substr  string
	service string
}{
	{"prometheus", metric.ServicePrometheus},
	{"grafana", metric.ServiceGrafana},
}

// derivedServices 没有直接信号的服务
var derivedServices = []string{
	metric.ServiceAmnezia,
	metric.ServicePortainer,
	metric.ServiceTelegram,
	metric.ServiceLibreChat,
	metric.ServiceN8N,
}

// ResolveServiceStatus 将 up 查询结果映射到服务目录
//
// 派生在线策略（derived-liveness propagation）：prometheus 在线时，没有直接信号的
// 服务一律视为在线。这是推断而不是测量；已有直接信号的服务不受影响。
// 查询失败时所有服务为 false。
func ResolveServiceStatus(result *vmclient.QueryResult, err error) metric.ServiceStatusMap {
	statuses := metric.NewServiceStatusMap()
	if err != nil || result == nil {
		return statuses
	}

	direct := make(map[string]bool, len(directSignals))
	for _, series := range result.Series {
		if len(series.Samples) == 0 {
			continue
		}
		job := series.Label("job")
		up := series.Samples[len(series.Samples)-1].Value == 1

		for _, sig := range directSignals {
			if strings.Contains(job, sig.substr) {
				statuses[sig.service] = up
				direct[sig.service] = true
				break
			}
		}
	}

	if statuses[metric.ServicePrometheus] {
		for _, name := range derivedServices {
			if !direct[name] {
				statuses[name] = true
			}
		}
	}

	return statuses
}
