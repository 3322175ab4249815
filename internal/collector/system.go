package collector

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/bluedjedi/djedi/internal/metric"

	"github.com/dustin/go-humanize"
	goerrors "github.com/go-errors/errors"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// DefaultSampleInterval CPU 使用率的采样窗口，采集会阻塞这么久
const DefaultSampleInterval = time.Second

const gib = 1 << 30

// HostReader 读取本机计数器的只读接口
type HostReader interface {
	CPUPercent(ctx context.Context, interval time.Duration) (float64, error)
	CPUCount(ctx context.Context) (int, error)
	VirtualMemory(ctx context.Context) (*mem.VirtualMemoryStat, error)
	DiskUsage(ctx context.Context, path string) (*disk.UsageStat, error)
	NetIOCounters(ctx context.Context) (*net.IOCountersStat, error)
	ProcessCount(ctx context.Context) (int, error)
	BootTime(ctx context.Context) (uint64, error)
}

// SystemCollector 本机资源采集器，不做缓存
type SystemCollector struct {
	logger   *zap.Logger
	reader   HostReader
	interval time.Duration
	rootPath string
	now      func() time.Time
}

// NewSystemCollector 创建基于 gopsutil 的采集器
func NewSystemCollector(logger *zap.Logger) *SystemCollector {
	return NewSystemCollectorWithReader(logger, gopsutilReader{})
}

// NewSystemCollectorWithReader 使用自定义 HostReader 创建采集器
func NewSystemCollectorWithReader(logger *zap.Logger, reader HostReader) *SystemCollector {
	return &SystemCollector{
		logger:   logger,
		reader:   reader,
		interval: DefaultSampleInterval,
		rootPath: "/",
		now:      time.Now,
	}
}

// Collect 采集一次系统快照。失败时不返回错误，而是返回带 Error 标记的快照
func (c *SystemCollector) Collect(ctx context.Context) metric.SystemSnapshot {
	snapshot, err := c.collect(ctx)
	if err != nil {
		wrapped := goerrors.Wrap(err, 1)
		c.logger.Error("采集系统信息失败",
			zap.Error(err),
			zap.String("stack", string(wrapped.Stack())))
		return metric.FailedSnapshot(err, c.now())
	}
	return snapshot
}

func (c *SystemCollector) collect(ctx context.Context) (metric.SystemSnapshot, error) {
	var snapshot metric.SystemSnapshot

	cpuPercent, err := c.reader.CPUPercent(ctx, c.interval)
	if err != nil {
		return snapshot, fmt.Errorf("cpu percent: %w", err)
	}
	cpuCount, err := c.reader.CPUCount(ctx)
	if err != nil {
		return snapshot, fmt.Errorf("cpu count: %w", err)
	}

	vm, err := c.reader.VirtualMemory(ctx)
	if err != nil {
		return snapshot, fmt.Errorf("virtual memory: %w", err)
	}

	du, err := c.reader.DiskUsage(ctx, c.rootPath)
	if err != nil {
		return snapshot, fmt.Errorf("disk usage: %w", err)
	}

	netIO, err := c.reader.NetIOCounters(ctx)
	if err != nil {
		return snapshot, fmt.Errorf("net io counters: %w", err)
	}

	procs, err := c.reader.ProcessCount(ctx)
	if err != nil {
		return snapshot, fmt.Errorf("process count: %w", err)
	}

	bootTime, err := c.reader.BootTime(ctx)
	if err != nil {
		return snapshot, fmt.Errorf("boot time: %w", err)
	}

	now := c.now()
	uptimeSeconds := now.Unix() - int64(bootTime)
	if uptimeSeconds < 0 {
		uptimeSeconds = 0
	}
	uptime, uptimeShort := FormatUptime(uptimeSeconds)

	snapshot = metric.SystemSnapshot{
		CPU: metric.CPUData{
			Percent: cpuPercent,
			Count:   cpuCount,
		},
		Memory: metric.MemoryData{
			Total:       vm.Total,
			Available:   vm.Available,
			Used:        vm.Used,
			Percent:     vm.UsedPercent,
			TotalGB:     toGB(vm.Total),
			UsedGB:      toGB(vm.Used),
			AvailableGB: toGB(vm.Available),
			Human:       FormatBytes(vm.Used) + " / " + FormatBytes(vm.Total),
		},
		Disk: metric.DiskData{
			Total:   du.Total,
			Used:    du.Used,
			Free:    du.Free,
			Percent: du.UsedPercent,
			TotalGB: toGB(du.Total),
			UsedGB:  toGB(du.Used),
			FreeGB:  toGB(du.Free),
			Human:   FormatBytes(du.Used) + " / " + FormatBytes(du.Total),
		},
		Network: metric.NetworkData{
			BytesSent:   netIO.BytesSent,
			BytesRecv:   netIO.BytesRecv,
			PacketsSent: netIO.PacketsSent,
			PacketsRecv: netIO.PacketsRecv,
		},
		Uptime:        uptime,
		UptimeShort:   uptimeShort,
		UptimeSeconds: uptimeSeconds,
		ProcessCount:  procs,
		Timestamp:     now,
	}
	return snapshot, nil
}

// FormatUptime 返回 "3d 4h 5m" 形式的完整字符串和 "3d 4h" 形式的短字符串
func FormatUptime(seconds int64) (string, string) {
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes), fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		s := fmt.Sprintf("%dh %dm", hours, minutes)
		return s, s
	default:
		s := fmt.Sprintf("%dm", minutes)
		return s, s
	}
}

// FormatBytes 人类可读的字节数（1024 进制）
func FormatBytes(n uint64) string {
	return humanize.IBytes(n)
}

func toGB(n uint64) float64 {
	return math.Round(float64(n)/gib*100) / 100
}

// gopsutilReader 基于 gopsutil 的 HostReader 实现
type gopsutilReader struct{}

func (gopsutilReader) CPUPercent(ctx context.Context, interval time.Duration) (float64, error) {
	percents, err := cpu.PercentWithContext(ctx, interval, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, fmt.Errorf("no cpu percent returned")
	}
	return percents[0], nil
}

func (gopsutilReader) CPUCount(ctx context.Context) (int, error) {
	return cpu.CountsWithContext(ctx, true)
}

func (gopsutilReader) VirtualMemory(ctx context.Context) (*mem.VirtualMemoryStat, error) {
	return mem.VirtualMemoryWithContext(ctx)
}

func (gopsutilReader) DiskUsage(ctx context.Context, path string) (*disk.UsageStat, error) {
	return disk.UsageWithContext(ctx, path)
}

func (gopsutilReader) NetIOCounters(ctx context.Context) (*net.IOCountersStat, error) {
	counters, err := net.IOCountersWithContext(ctx, false)
	if err != nil {
		return nil, err
	}
	if len(counters) == 0 {
		return nil, fmt.Errorf("no network counters returned")
	}
	return &counters[0], nil
}

func (gopsutilReader) ProcessCount(ctx context.Context) (int, error) {
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return len(pids), nil
}

func (gopsutilReader) BootTime(ctx context.Context) (uint64, error) {
	return host.BootTimeWithContext(ctx)
}
