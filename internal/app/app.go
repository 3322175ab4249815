package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bluedjedi/djedi/internal/config"
	"github.com/bluedjedi/djedi/internal/notifier"
	"github.com/bluedjedi/djedi/internal/scheduler"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Version 版本号，构建时可以通过 -ldflags 覆盖
var Version = "2.0.0"

const shutdownTimeout = 10 * time.Second

// App 服务端：HTTP 接口、维护任务、密钥文件监控
type App struct {
	cfg       *config.AppConfig
	logger    *zap.Logger
	echo      *echo.Echo
	scheduler *scheduler.MaintenanceScheduler
	secrets   *notifier.SecretStore
	fallback  *notifier.FallbackLog
}

// NewApp 创建服务端
func NewApp(cfg *config.AppConfig, logger *zap.Logger, e *echo.Echo, sched *scheduler.MaintenanceScheduler, secrets *notifier.SecretStore, fallback *notifier.FallbackLog) *App {
	return &App{
		cfg:       cfg,
		logger:    logger,
		echo:      e,
		scheduler: sched,
		secrets:   secrets,
		fallback:  fallback,
	}
}

// Echo 返回 echo 实例
func (a *App) Echo() *echo.Echo {
	return a.echo
}

// Run 启动服务，ctx 结束后优雅退出
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Telegram.WatchSecrets {
		if err := a.secrets.Watch(ctx); err != nil {
			// 密钥目录不存在时联系表单会写入备份日志，不影响启动
			a.logger.Warn("无法监控密钥文件", zap.Error(err))
		}
	}

	if err := a.scheduler.Start(ctx, a.cfg.Scheduler.RotateSpec, a.cfg.Scheduler.ProbeSpec); err != nil {
		return err
	}
	defer a.scheduler.Stop()
	defer a.fallback.Close()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP 服务启动",
			zap.String("addr", a.cfg.Server.Addr),
			zap.String("version", Version),
			zap.String("prometheus", a.cfg.Prometheus.URL))
		if err := a.echo.Start(a.cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("正在关闭 HTTP 服务")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.echo.Shutdown(shutdownCtx)
}
