package metric

import "time"

// CPUData CPU 信息
type CPUData struct {
	Percent float64 `json:"percent" yaml:"percent"`
	Count   int     `json:"count" yaml:"count"` // 逻辑核心数
}

// MemoryData 内存信息
type MemoryData struct {
	Total       uint64  `json:"total" yaml:"total"`
	Available   uint64  `json:"available" yaml:"available"`
	Used        uint64  `json:"used" yaml:"used"`
	Percent     float64 `json:"percent" yaml:"percent"`
	TotalGB     float64 `json:"total_gb" yaml:"total_gb"`
	UsedGB      float64 `json:"used_gb" yaml:"used_gb"`
	AvailableGB float64 `json:"available_gb" yaml:"available_gb"`
	Human       string  `json:"human" yaml:"human"` // 例如 "3.2 GiB / 7.8 GiB"
}

// DiskData 根分区信息
type DiskData struct {
	Total   uint64  `json:"total" yaml:"total"`
	Used    uint64  `json:"used" yaml:"used"`
	Free    uint64  `json:"free" yaml:"free"`
	Percent float64 `json:"percent" yaml:"percent"`
	TotalGB float64 `json:"total_gb" yaml:"total_gb"`
	UsedGB  float64 `json:"used_gb" yaml:"used_gb"`
	FreeGB  float64 `json:"free_gb" yaml:"free_gb"`
	Human   string  `json:"human" yaml:"human"`
}

// NetworkData 网卡累计计数（所有网卡合计）
type NetworkData struct {
	BytesSent   uint64 `json:"bytes_sent" yaml:"bytes_sent"`
	BytesRecv   uint64 `json:"bytes_recv" yaml:"bytes_recv"`
	PacketsSent uint64 `json:"packets_sent" yaml:"packets_sent"`
	PacketsRecv uint64 `json:"packets_recv" yaml:"packets_recv"`
}

// SystemSnapshot 本机资源快照，每次调用重新采集，构造后不再修改
// Error 非空表示采集失败，此时其余字段为零值
type SystemSnapshot struct {
	CPU           CPUData     `json:"cpu" yaml:"cpu"`
	Memory        MemoryData  `json:"memory" yaml:"memory"`
	Disk          DiskData    `json:"disk" yaml:"disk"`
	Network       NetworkData `json:"network" yaml:"network"`
	Uptime        string      `json:"uptime" yaml:"uptime"`
	UptimeShort   string      `json:"uptime_short" yaml:"uptime_short"`
	UptimeSeconds int64       `json:"uptime_seconds" yaml:"uptime_seconds"`
	ProcessCount  int         `json:"process_count" yaml:"process_count"`
	Timestamp     time.Time   `json:"timestamp" yaml:"timestamp"`
	Error         string      `json:"error,omitempty" yaml:"error,omitempty"`
}

// Unavailable 采集失败
func (s SystemSnapshot) Unavailable() bool {
	return s.Error != ""
}

// FailedSnapshot 带错误标记的快照
func FailedSnapshot(err error, ts time.Time) SystemSnapshot {
	msg := "system metrics unavailable"
	if err != nil {
		msg = err.Error()
	}
	return SystemSnapshot{Error: msg, Timestamp: ts}
}
