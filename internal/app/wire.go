//go:build wireinject
// +build wireinject

package app

import (
	"github.com/bluedjedi/djedi/internal/config"
	"github.com/bluedjedi/djedi/internal/service"

	"github.com/google/wire"
	"go.uber.org/zap"
)

// InitializeApp 组装服务端
func InitializeApp(cfg *config.AppConfig, logger *zap.Logger) (*App, error) {
	wire.Build(ProviderSet)
	return nil, nil
}

// InitializeMetricService 只组装指标聚合服务，供命令行快照使用
func InitializeMetricService(cfg *config.AppConfig, logger *zap.Logger) *service.MetricService {
	wire.Build(ProvideVMClient, ProvideSystemCollector, ProvideMetricService)
	return nil
}

// InitializeContactService 只组装联系表单服务，供命令行测试消息使用
func InitializeContactService(cfg *config.AppConfig, logger *zap.Logger) *service.ContactService {
	wire.Build(ProvideSecretStore, ProvideTelegram, ProvideFallbackLog, ProvideContactService)
	return nil
}
