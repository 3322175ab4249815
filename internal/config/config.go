package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/bluedjedi/djedi/internal/logger"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix 环境变量前缀，DJEDI_PROMETHEUS__URL 对应 prometheus.url
const EnvPrefix = "DJEDI_"

// AppConfig 应用配置。加载后只读，通过构造函数传入各组件
type AppConfig struct {
	Server     ServerConfig     `koanf:"server"`
	Prometheus PrometheusConfig `koanf:"prometheus"`
	Telegram   TelegramConfig   `koanf:"telegram"`
	Contact    ContactConfig    `koanf:"contact"`
	Log        logger.LogConfig `koanf:"log"`
	Scheduler  SchedulerConfig  `koanf:"scheduler"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr        string   `koanf:"addr"`
	CORSOrigins []string `koanf:"cors_origins"` // 为空则允许所有来源
}

// PrometheusConfig 时序库配置
type PrometheusConfig struct {
	URL           string        `koanf:"url"`
	Username      string        `koanf:"username"`
	Password      string        `koanf:"password"`
	Timeout       time.Duration `koanf:"timeout"`        // 单次查询超时
	RangeDuration time.Duration `koanf:"range_duration"` // 趋势窗口
	RangeStep     time.Duration `koanf:"range_step"`     // 趋势步长
}

// TelegramConfig Telegram 通知配置（密钥从文件读取，例如 Docker secrets）
type TelegramConfig struct {
	APIURL       string        `koanf:"api_url"`
	BotTokenFile string        `koanf:"bot_token_file"`
	ChatIDFile   string        `koanf:"chat_id_file"`
	Timeout      time.Duration `koanf:"timeout"`
	MaxRetries   int           `koanf:"max_retries"`
	WatchSecrets bool          `koanf:"watch_secrets"` // 密钥文件变化时自动重新加载
}

// ContactConfig 联系表单配置
type ContactConfig struct {
	FallbackLog     string `koanf:"fallback_log"`     // Telegram 不可用时写入的文件
	ThrottleSeconds int    `koanf:"throttle_seconds"` // 同一客户端两次提交的最小间隔
}

// SchedulerConfig 定时任务配置
type SchedulerConfig struct {
	RotateSpec string `koanf:"rotate_spec"` // 轮转联系表单备份日志
	ProbeSpec  string `koanf:"probe_spec"`  // 探测时序库连通性
}

// Default 默认配置
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Addr: ":5000",
		},
		Prometheus: PrometheusConfig{
			URL:           "http://vps-prometheus:9090",
			Timeout:       10 * time.Second,
			RangeDuration: 600 * time.Second,
			RangeStep:     30 * time.Second,
		},
		Telegram: TelegramConfig{
			APIURL:       "https://api.telegram.org",
			BotTokenFile: "/run/secrets/telegram_bot_token",
			ChatIDFile:   "/run/secrets/telegram_user_id",
			Timeout:      10 * time.Second,
			MaxRetries:   3,
			WatchSecrets: true,
		},
		Contact: ContactConfig{
			FallbackLog:     "/tmp/contact_messages.log",
			ThrottleSeconds: 30,
		},
		Log: logger.LogConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
		},
		Scheduler: SchedulerConfig{
			RotateSpec: "@daily",
			ProbeSpec:  "@every 5m",
		},
	}
}

// Load 依次加载：默认值 -> YAML 配置文件（可选）-> 环境变量
func Load(path string) (*AppConfig, error) {
	ko := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := ko.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	err := ko.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("加载环境变量失败: %w", err)
	}

	cfg := Default()
	if err := ko.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置
func (c *AppConfig) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr 不能为空"))
	}

	u, err := url.Parse(c.Prometheus.URL)
	if c.Prometheus.URL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("prometheus.url 无效: %q", c.Prometheus.URL))
	}
	if c.Prometheus.Timeout <= 0 {
		errs = append(errs, errors.New("prometheus.timeout 必须大于 0"))
	}
	if c.Prometheus.RangeDuration <= 0 || c.Prometheus.RangeStep <= 0 {
		errs = append(errs, errors.New("prometheus.range_duration 和 range_step 必须大于 0"))
	}
	if c.Prometheus.RangeStep > c.Prometheus.RangeDuration {
		errs = append(errs, errors.New("prometheus.range_step 不能大于 range_duration"))
	}
	if c.Telegram.Timeout <= 0 {
		errs = append(errs, errors.New("telegram.timeout 必须大于 0"))
	}
	if c.Telegram.MaxRetries < 1 {
		errs = append(errs, errors.New("telegram.max_retries 至少为 1"))
	}
	if c.Contact.ThrottleSeconds < 0 {
		errs = append(errs, errors.New("contact.throttle_seconds 不能为负数"))
	}

	return errors.Join(errs...)
}
