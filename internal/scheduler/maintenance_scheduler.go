package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bluedjedi/djedi/internal/vmclient"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// 任务名称
const (
	TaskRotateFallbackLog = "rotate-fallback-log"
	TaskProbeBackend      = "probe-backend"
)

// LogRotator 由 notifier.FallbackLog 实现
type LogRotator interface {
	Rotate() error
}

// BackendProber 由 vmclient.VMClient 实现
type BackendProber interface {
	Ping(ctx context.Context) (*vmclient.QueryResult, error)
}

// MaintenanceTask 调度任务
type MaintenanceTask struct {
	Name    string
	Spec    string
	EntryID cron.EntryID // cron 任务的 ID
	run     func()
}

// TaskStatus 任务状态
type TaskStatus struct {
	Name        string    `json:"name"`
	Spec        string    `json:"spec"`
	NextRunTime time.Time `json:"nextRunTime"`
}

// MaintenanceScheduler 维护任务调度器：轮转联系表单备份日志、探测时序库
type MaintenanceScheduler struct {
	mu      sync.RWMutex
	cron    *cron.Cron
	tasks   map[string]*MaintenanceTask // name -> task
	rotator LogRotator
	prober  BackendProber
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewMaintenanceScheduler 创建维护任务调度器
func NewMaintenanceScheduler(rotator LogRotator, prober BackendProber, logger *zap.Logger) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		// 上一次执行未结束时跳过本次
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		tasks:   make(map[string]*MaintenanceTask),
		rotator: rotator,
		prober:  prober,
		logger:  logger,
		ctx:     context.Background(),
	}
}

// Start 注册任务并启动调度器，spec 为空的任务不注册
func (s *MaintenanceScheduler) Start(ctx context.Context, rotateSpec, probeSpec string) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.logger.Info("启动维护任务调度器")

	if rotateSpec != "" {
		if err := s.AddTask(TaskRotateFallbackLog, rotateSpec, s.rotateFallbackLog); err != nil {
			return err
		}
	}
	if probeSpec != "" {
		if err := s.AddTask(TaskProbeBackend, probeSpec, s.probeBackend); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop 停止调度器，等待正在执行的任务结束
func (s *MaintenanceScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.logger.Info("维护任务调度器已停止")
}

// AddTask 添加任务，同名任务会被替换
func (s *MaintenanceScheduler) AddTask(name, spec string, run func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task, exists := s.tasks[name]; exists {
		s.cron.Remove(task.EntryID)
		delete(s.tasks, name)
	}

	entryID, err := s.cron.AddFunc(spec, run)
	if err != nil {
		return fmt.Errorf("添加 cron 任务 %s 失败: %w", name, err)
	}

	s.tasks[name] = &MaintenanceTask{
		Name:    name,
		Spec:    spec,
		EntryID: entryID,
		run:     run,
	}

	s.logger.Info("添加维护任务",
		zap.String("task", name),
		zap.String("spec", spec))
	return nil
}

// RunTask 立即执行一次任务
func (s *MaintenanceScheduler) RunTask(name string) error {
	s.mu.RLock()
	task, exists := s.tasks[name]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("维护任务不存在: %s", name)
	}
	task.run()
	return nil
}

// GetTaskStatus 获取任务状态，按名称排序
func (s *MaintenanceScheduler) GetTaskStatus() []TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]TaskStatus, 0, len(s.tasks))
	for _, task := range s.tasks {
		status := TaskStatus{Name: task.Name, Spec: task.Spec}
		// 从 cron entry 获取下次执行时间
		if entry := s.cron.Entry(task.EntryID); entry.Valid() {
			status.NextRunTime = entry.Next
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Name < statuses[j].Name
	})
	return statuses
}

func (s *MaintenanceScheduler) rotateFallbackLog() {
	if err := s.rotator.Rotate(); err != nil {
		s.logger.Error("轮转联系表单备份日志失败", zap.Error(err))
		return
	}
	s.logger.Info("联系表单备份日志已轮转")
}

func (s *MaintenanceScheduler) probeBackend() {
	ctx, cancel := context.WithTimeout(s.ctx, vmclient.DefaultTimeout)
	defer cancel()

	result, err := s.prober.Ping(ctx)
	if err != nil {
		s.logger.Warn("时序库不可用", zap.Error(err))
		return
	}
	s.logger.Debug("时序库连通性正常", zap.Int("series", len(result.Series)))
}
