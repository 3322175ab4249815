package service

import (
	"context"
	"errors"
	"time"

	"github.com/bluedjedi/djedi/internal/metric"
	"github.com/bluedjedi/djedi/internal/vmclient"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

// 分支名称
const (
	BranchSystem   = "system"
	BranchCPU      = "cpu"
	BranchMemory   = "memory"
	BranchStorage  = "storage"
	BranchNetwork  = "network"
	BranchServices = "services"
)

// TimeSeriesQuerier 时序库查询接口，由 vmclient.VMClient 实现
type TimeSeriesQuerier interface {
	Query(ctx context.Context, query string) (*vmclient.QueryResult, error)
	QueryRecent(ctx context.Context, query string, duration, step time.Duration) (*vmclient.QueryResult, error)
}

// SystemSampler 本机资源采集接口，由 collector.SystemCollector 实现
type SystemSampler interface {
	Collect(ctx context.Context) metric.SystemSnapshot
}

// MetricServiceOpts 聚合参数
type MetricServiceOpts struct {
	RangeDuration time.Duration // 趋势窗口
	RangeStep     time.Duration // 趋势步长
	BranchTimeout time.Duration // 单个分支的超时
}

// AggregateReport 一次聚合的快照，以及各分支的错误（仅用于日志和测试）
type AggregateReport struct {
	Snapshot metric.MetricsSnapshot
	Errors   map[string]error
}

// MetricService 指标聚合服务：并发查询时序库和本机采集器，组装仪表盘快照
// 无状态，每次调用都重新查询，不做缓存
type MetricService struct {
	logger   *zap.Logger
	vmClient TimeSeriesQuerier
	sampler  SystemSampler
	opts     MetricServiceOpts
	now      func() time.Time
}

// NewMetricService 创建指标聚合服务
func NewMetricService(logger *zap.Logger, vmClient TimeSeriesQuerier, sampler SystemSampler, opts MetricServiceOpts) *MetricService {
	if opts.RangeDuration <= 0 {
		opts.RangeDuration = vmclient.DefaultRangeDuration
	}
	if opts.RangeStep <= 0 {
		opts.RangeStep = vmclient.DefaultRangeStep
	}
	if opts.BranchTimeout <= 0 {
		opts.BranchTimeout = vmclient.DefaultTimeout
	}
	return &MetricService{
		logger:   logger,
		vmClient: vmClient,
		sampler:  sampler,
		opts:     opts,
		now:      time.Now,
	}
}

// GetDashboardMetrics 获取仪表盘快照，不会失败
func (s *MetricService) GetDashboardMetrics(ctx context.Context) metric.MetricsSnapshot {
	return s.Aggregate(ctx).Snapshot
}

// Aggregate 并发执行 6 个相互独立的分支。每个分支在自己的边界内处理错误和 panic，
// 失败只会让该分支退化为零值
func (s *MetricService) Aggregate(ctx context.Context) *AggregateReport {
	var (
		wg       conc.WaitGroup
		system   metric.Result[metric.SystemSnapshot]
		cpu      metric.Result[metric.DashboardSeries]
		memory   metric.Result[metric.DashboardSeries]
		storage  metric.Result[metric.StorageSeries]
		network  metric.Result[metric.DashboardSeries]
		services metric.Result[metric.ServiceStatusMap]
	)

	runBranch(s, &wg, ctx, BranchSystem, &system, metric.FailedSnapshot(nil, s.now()), s.systemBranch)
	runBranch(s, &wg, ctx, BranchCPU, &cpu, metric.EmptySeries(metric.UnitPercent), s.trendBranch(QueryCPU, NormalizeCPU))
	runBranch(s, &wg, ctx, BranchMemory, &memory, metric.EmptySeries(metric.UnitPercent), s.trendBranch(QueryMemory, NormalizeMemory))
	runBranch(s, &wg, ctx, BranchStorage, &storage, metric.EmptyStorage(), s.storageBranch)
	runBranch(s, &wg, ctx, BranchNetwork, &network, metric.EmptySeries(metric.UnitMBps), s.trendBranch(QueryNetwork, NormalizeNetwork))
	runBranch(s, &wg, ctx, BranchServices, &services, metric.NewServiceStatusMap(), s.servicesBranch)

	wg.Wait()

	report := &AggregateReport{
		Snapshot: metric.MetricsSnapshot{
			System:    system.Value,
			CPU:       cpu.Value,
			Memory:    memory.Value,
			Storage:   storage.Value,
			Network:   network.Value,
			Services:  services.Value,
			CreatedAt: s.now(),
		},
		Errors: make(map[string]error),
	}
	for name, err := range map[string]error{
		BranchSystem:   system.Err,
		BranchCPU:      cpu.Err,
		BranchMemory:   memory.Err,
		BranchStorage:  storage.Err,
		BranchNetwork:  network.Err,
		BranchServices: services.Err,
	} {
		if err != nil {
			report.Errors[name] = err
		}
	}

	if len(report.Errors) > 0 {
		s.logger.Debug("仪表盘快照部分数据不可用", zap.Int("failedBranches", len(report.Errors)))
	}
	return report
}

// GetServiceStatus 只查询服务状态
func (s *MetricService) GetServiceStatus(ctx context.Context) metric.ServiceStatusMap {
	var (
		wg       conc.WaitGroup
		services metric.Result[metric.ServiceStatusMap]
	)
	runBranch(s, &wg, ctx, BranchServices, &services, metric.NewServiceStatusMap(), s.servicesBranch)
	wg.Wait()
	return services.Value
}

// GetSystemSnapshot 只采集本机信息
func (s *MetricService) GetSystemSnapshot(ctx context.Context) metric.SystemSnapshot {
	return s.sampler.Collect(ctx)
}

func (s *MetricService) systemBranch(ctx context.Context) (metric.SystemSnapshot, error) {
	snapshot := s.sampler.Collect(ctx)
	if snapshot.Unavailable() {
		// 保留带错误标记的快照，而不是替换成零值
		return snapshot, errors.New(snapshot.Error)
	}
	return snapshot, nil
}

func (s *MetricService) trendBranch(query string, normalize func(*vmclient.QueryResult, error) metric.DashboardSeries) func(context.Context) (metric.DashboardSeries, error) {
	return func(ctx context.Context) (metric.DashboardSeries, error) {
		result, err := s.vmClient.QueryRecent(ctx, query, s.opts.RangeDuration, s.opts.RangeStep)
		return normalize(result, err), err
	}
}

func (s *MetricService) storageBranch(ctx context.Context) (metric.StorageSeries, error) {
	result, err := s.vmClient.Query(ctx, QueryStorage)
	return NormalizeStorage(result, err), err
}

func (s *MetricService) servicesBranch(ctx context.Context) (metric.ServiceStatusMap, error) {
	result, err := s.vmClient.Query(ctx, QueryUp)
	return ResolveServiceStatus(result, err), err
}

// runBranch 在独立的 goroutine 中执行分支，结果只写入自己的 slot
// fn 返回错误时仍使用它返回的值（已由归一化收敛为零值）；panic 时使用 zero
func runBranch[T any](s *MetricService, wg *conc.WaitGroup, ctx context.Context, name string, slot *metric.Result[T], zero T, fn func(context.Context) (T, error)) {
	wg.Go(func() {
		branchCtx, cancel := context.WithTimeout(ctx, s.opts.BranchTimeout)
		defer cancel()

		var pc panics.Catcher
		pc.Try(func() {
			value, err := fn(branchCtx)
			if err != nil {
				*slot = metric.Fail(value, err)
				return
			}
			*slot = metric.OK(value)
		})

		if r := pc.Recovered(); r != nil {
			*slot = metric.Fail(zero, r.AsError())
			s.logger.Error("指标分支发生panic",
				zap.String("branch", name),
				zap.String("panic", r.String()))
			return
		}

		if slot.Err != nil {
			s.logger.Warn("指标分支查询失败，使用零值",
				zap.String("branch", name),
				zap.Error(slot.Err))
		}
	})
}
