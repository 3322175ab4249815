package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() 失败: %v", err)
	}
	if diff := cmp.Diff(Default(), *cfg); diff != "" {
		t.Errorf("默认配置不一致 (-want +got):\n%s", diff)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "djedi.yaml")
	content := `
server:
  addr: ":8080"
prometheus:
  url: "http://prom.local:9090"
  timeout: 5s
telegram:
  max_retries: 2
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DJEDI_PROMETHEUS__RANGE_STEP", "15s")
	t.Setenv("DJEDI_CONTACT__FALLBACK_LOG", "/var/log/contact.log")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() 失败: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Prometheus.URL != "http://prom.local:9090" || cfg.Prometheus.Timeout != 5*time.Second {
		t.Errorf("Prometheus = %+v", cfg.Prometheus)
	}
	if cfg.Prometheus.RangeStep != 15*time.Second {
		t.Errorf("环境变量未生效: RangeStep = %s", cfg.Prometheus.RangeStep)
	}
	if cfg.Prometheus.RangeDuration != 600*time.Second {
		t.Errorf("未设置的字段应保留默认值: RangeDuration = %s", cfg.Prometheus.RangeDuration)
	}
	if cfg.Telegram.MaxRetries != 2 || cfg.Telegram.BotTokenFile != "/run/secrets/telegram_bot_token" {
		t.Errorf("Telegram = %+v", cfg.Telegram)
	}
	if cfg.Contact.FallbackLog != "/var/log/contact.log" {
		t.Errorf("FallbackLog = %q", cfg.Contact.FallbackLog)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("配置文件不存在时应返回错误")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"empty prometheus url", func(c *AppConfig) { c.Prometheus.URL = "" }},
		{"relative prometheus url", func(c *AppConfig) { c.Prometheus.URL = "vps-prometheus:9090/x" }},
		{"zero timeout", func(c *AppConfig) { c.Prometheus.Timeout = 0 }},
		{"step larger than window", func(c *AppConfig) { c.Prometheus.RangeStep = time.Hour }},
		{"no retries", func(c *AppConfig) { c.Telegram.MaxRetries = 0 }},
		{"empty addr", func(c *AppConfig) { c.Server.Addr = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("应返回校验错误")
			}
		})
	}

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("默认配置应合法: %v", err)
	}
}
