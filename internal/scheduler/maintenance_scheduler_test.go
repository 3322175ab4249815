package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bluedjedi/djedi/internal/vmclient"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeRotator struct {
	calls atomic.Int32
	err   error
}

func (f *fakeRotator) Rotate() error {
	f.calls.Add(1)
	return f.err
}

type fakeProber struct {
	calls atomic.Int32
	err   error
}

func (f *fakeProber) Ping(ctx context.Context) (*vmclient.QueryResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &vmclient.QueryResult{ResultType: "vector"}, nil
}

func TestMaintenanceScheduler_RunTask(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rotator := &fakeRotator{}
	prober := &fakeProber{err: vmclient.ErrConnectionFailed}
	s := NewMaintenanceScheduler(rotator, prober, zap.New(core))

	if err := s.Start(context.Background(), "@daily", "@every 5m"); err != nil {
		t.Fatalf("Start() 失败: %v", err)
	}
	defer s.Stop()

	if err := s.RunTask(TaskRotateFallbackLog); err != nil {
		t.Fatal(err)
	}
	if err := s.RunTask(TaskProbeBackend); err != nil {
		t.Fatal(err)
	}
	if err := s.RunTask("missing"); err == nil {
		t.Error("不存在的任务应返回错误")
	}

	if rotator.calls.Load() != 1 || prober.calls.Load() != 1 {
		t.Errorf("rotate=%d probe=%d", rotator.calls.Load(), prober.calls.Load())
	}
	if logs.FilterMessage("时序库不可用").Len() != 1 {
		t.Error("探测失败应记录 warn 日志")
	}
}

func TestMaintenanceScheduler_TaskStatus(t *testing.T) {
	s := NewMaintenanceScheduler(&fakeRotator{}, &fakeProber{}, zap.NewNop())
	if err := s.Start(context.Background(), "@daily", ""); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	statuses := s.GetTaskStatus()
	if len(statuses) != 1 || statuses[0].Name != TaskRotateFallbackLog || statuses[0].Spec != "@daily" {
		t.Fatalf("statuses = %+v", statuses)
	}
	if !statuses[0].NextRunTime.After(time.Now()) {
		t.Errorf("NextRunTime = %s", statuses[0].NextRunTime)
	}
}

func TestMaintenanceScheduler_InvalidSpec(t *testing.T) {
	s := NewMaintenanceScheduler(&fakeRotator{}, &fakeProber{}, zap.NewNop())
	err := s.Start(context.Background(), "not a spec", "")
	if err == nil {
		t.Fatal("非法的 cron 表达式应返回错误")
	}
	s.Stop()
}

func TestMaintenanceScheduler_RunsOnSchedule(t *testing.T) {
	prober := &fakeProber{}
	s := NewMaintenanceScheduler(&fakeRotator{err: errors.New("unused")}, prober, zap.NewNop())
	if err := s.Start(context.Background(), "", "@every 1s"); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for prober.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	s.Stop()

	if prober.calls.Load() == 0 {
		t.Error("探测任务应按计划执行")
	}
}
