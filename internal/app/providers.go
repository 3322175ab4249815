package app

import (
	"time"

	"github.com/bluedjedi/djedi/internal/collector"
	"github.com/bluedjedi/djedi/internal/config"
	"github.com/bluedjedi/djedi/internal/handler"
	"github.com/bluedjedi/djedi/internal/notifier"
	"github.com/bluedjedi/djedi/internal/scheduler"
	"github.com/bluedjedi/djedi/internal/service"
	"github.com/bluedjedi/djedi/internal/telemetry"
	"github.com/bluedjedi/djedi/internal/vmclient"

	"github.com/google/wire"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ProviderSet 服务端依赖
var ProviderSet = wire.NewSet(
	ProvideVMClient,
	ProvideSystemCollector,
	ProvideMetricService,
	ProvideSecretStore,
	ProvideTelegram,
	ProvideFallbackLog,
	ProvideContactService,
	ProvideScheduler,
	ProvideStatusHandler,
	telemetry.New,
	handler.NewMetricHandler,
	handler.NewContactHandler,
	handler.NewPrometheusHandler,
	wire.Struct(new(Handlers), "*"),
	NewEcho,
	NewApp,
)

// ProvideVMClient 时序库客户端
func ProvideVMClient(cfg *config.AppConfig) *vmclient.VMClient {
	return vmclient.NewVMClient(vmclient.Opts{
		URL:      cfg.Prometheus.URL,
		Timeout:  cfg.Prometheus.Timeout,
		Username: cfg.Prometheus.Username,
		Password: cfg.Prometheus.Password,
	})
}

// ProvideSystemCollector 本机采集器
func ProvideSystemCollector(logger *zap.Logger) *collector.SystemCollector {
	return collector.NewSystemCollector(logger.Named("collector"))
}

// ProvideMetricService 指标聚合服务
func ProvideMetricService(cfg *config.AppConfig, logger *zap.Logger, client *vmclient.VMClient, sampler *collector.SystemCollector) *service.MetricService {
	return service.NewMetricService(logger.Named("metric"), client, sampler, service.MetricServiceOpts{
		RangeDuration: cfg.Prometheus.RangeDuration,
		RangeStep:     cfg.Prometheus.RangeStep,
		BranchTimeout: cfg.Prometheus.Timeout,
	})
}

// ProvideSecretStore Telegram 凭据
func ProvideSecretStore(cfg *config.AppConfig, logger *zap.Logger) *notifier.SecretStore {
	return notifier.NewSecretStore(logger.Named("secrets"), afero.NewOsFs(), cfg.Telegram.BotTokenFile, cfg.Telegram.ChatIDFile)
}

// ProvideTelegram Telegram 客户端
func ProvideTelegram(cfg *config.AppConfig, logger *zap.Logger, secrets *notifier.SecretStore) *notifier.Telegram {
	return notifier.NewTelegram(logger.Named("telegram"), secrets, notifier.TelegramOpts{
		APIURL:     cfg.Telegram.APIURL,
		Timeout:    cfg.Telegram.Timeout,
		MaxRetries: cfg.Telegram.MaxRetries,
	})
}

// ProvideFallbackLog 联系表单备份日志
func ProvideFallbackLog(cfg *config.AppConfig) *notifier.FallbackLog {
	return notifier.NewFallbackLog(cfg.Contact.FallbackLog)
}

// ProvideContactService 联系表单服务
func ProvideContactService(cfg *config.AppConfig, logger *zap.Logger, sender *notifier.Telegram, fallback *notifier.FallbackLog) *service.ContactService {
	return service.NewContactService(logger.Named("contact"), sender, fallback, service.ContactServiceOpts{
		ThrottleWindow: time.Duration(cfg.Contact.ThrottleSeconds) * time.Second,
	})
}

// ProvideScheduler 维护任务调度器
func ProvideScheduler(logger *zap.Logger, fallback *notifier.FallbackLog, client *vmclient.VMClient) *scheduler.MaintenanceScheduler {
	return scheduler.NewMaintenanceScheduler(fallback, client, logger.Named("scheduler"))
}

// ProvideStatusHandler 状态处理器
func ProvideStatusHandler(tel *telemetry.Telemetry) *handler.StatusHandler {
	return handler.NewStatusHandler(Version, tel)
}
