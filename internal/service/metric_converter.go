package service

import (
	"math"

	"github.com/bluedjedi/djedi/internal/metric"
	"github.com/bluedjedi/djedi/internal/vmclient"
)

// 仪表盘使用的 PromQL
const (
	QueryCPU     = `100 - (avg(rate(node_cpu_seconds_total{mode="idle"}[5m])) * 100)`
	QueryMemory  = `(1 - (node_memory_MemAvailable_bytes / node_memory_MemTotal_bytes)) * 100`
	QueryStorage = `(1 - (node_filesystem_avail_bytes{fstype!="tmpfs"} / node_filesystem_size_bytes{fstype!="tmpfs"})) * 100`
	QueryNetwork = `sum(rate(node_network_receive_bytes_total{device!="lo"}[5m]) + rate(node_network_transmit_bytes_total{device!="lo"}[5m]))`
	QueryUp      = `up`
)

const bytesPerMB = 1024 * 1024

// seriesTransform 单个指标的转换规则
type seriesTransform struct {
	unit      string
	divisor   float64 // 趋势和当前值都除以它，0 表示不缩放
	precision int     // 当前值保留的小数位
}

var (
	cpuTransform     = seriesTransform{unit: metric.UnitPercent, precision: 1}
	memoryTransform  = seriesTransform{unit: metric.UnitPercent, precision: 1}
	networkTransform = seriesTransform{unit: metric.UnitMBps, divisor: bytesPerMB, precision: 2}
)

// NormalizeCPU CPU 使用率：最近 20 个点，当前值保留 1 位小数
func NormalizeCPU(result *vmclient.QueryResult, err error) metric.DashboardSeries {
	return normalizeTrend(result, err, cpuTransform)
}

// NormalizeMemory 内存使用率，规则同 CPU
func NormalizeMemory(result *vmclient.QueryResult, err error) metric.DashboardSeries {
	return normalizeTrend(result, err, memoryTransform)
}

// NormalizeNetwork 网络流量：字节/秒换算为 MB/s，当前值保留 2 位小数
func NormalizeNetwork(result *vmclient.QueryResult, err error) metric.DashboardSeries {
	return normalizeTrend(result, err, networkTransform)
}

// NormalizeStorage 存储使用率（即时查询）。失败时 used=0, free=100
func NormalizeStorage(result *vmclient.QueryResult, err error) metric.StorageSeries {
	if err != nil {
		return metric.EmptyStorage()
	}
	series, ok := result.First()
	if !ok || len(series.Samples) == 0 {
		return metric.EmptyStorage()
	}

	value := series.Samples[len(series.Samples)-1].Value
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return metric.EmptyStorage()
	}
	used := math.Min(math.Max(value, 0), 100)

	storage := metric.EmptyStorage()
	storage.Current = round(used, 1)
	storage.Used = used
	storage.Free = 100 - used
	return storage
}

// normalizeTrend 取第一条序列的最近 TrendPoints 个点。任何异常都收敛为零值
func normalizeTrend(result *vmclient.QueryResult, err error, t seriesTransform) metric.DashboardSeries {
	if err != nil {
		return metric.EmptySeries(t.unit)
	}
	series, ok := result.First()
	if !ok {
		return metric.EmptySeries(t.unit)
	}

	trend := make([]float64, 0, metric.TrendPoints)
	for _, v := range lastN(series.Values(), metric.TrendPoints) {
		// NaN/Inf 无法序列化为 JSON
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if t.divisor > 0 {
			v = v / t.divisor
		}
		trend = append(trend, v)
	}
	if len(trend) == 0 {
		return metric.EmptySeries(t.unit)
	}

	return metric.DashboardSeries{
		Current: round(trend[len(trend)-1], t.precision),
		Trend:   trend,
		Unit:    t.unit,
	}
}

// lastN 保留最后 n 个元素，顺序不变
func lastN(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

func round(v float64, precision int) float64 {
	p := math.Pow10(precision)
	return math.Round(v*p) / p
}
