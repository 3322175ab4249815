package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"
)

const (
	DefaultAPIURL     = "https://api.telegram.org"
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 3

	// ParseModeHTML Telegram 的 HTML 格式
	ParseModeHTML = "HTML"
)

// TestMessage 管理面板发送的测试消息
const TestMessage = "🔷 Test message from Blue Djedi Admin Dashboard"

// CredentialSource 凭据来源，由 SecretStore 实现
type CredentialSource interface {
	Credentials() (Credentials, error)
}

// APIError Telegram 返回的非 2xx 响应
type APIError struct {
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("telegram api error: %d", e.StatusCode)
	}
	return fmt.Sprintf("telegram api error: %d %s", e.StatusCode, e.Description)
}

// Retryable 429 和 5xx 可以重试，其余 4xx 重试也不会成功
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// TelegramOpts 发送参数
type TelegramOpts struct {
	APIURL     string
	Timeout    time.Duration // 单次请求超时
	MaxRetries int           // 最多尝试次数
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// Telegram 通过 Bot API 发送消息
type Telegram struct {
	logger     *zap.Logger
	secrets    CredentialSource
	httpClient *http.Client
	opts       TelegramOpts
}

// NewTelegram 创建 Telegram 客户端
func NewTelegram(logger *zap.Logger, secrets CredentialSource, opts TelegramOpts) *Telegram {
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	opts.APIURL = strings.TrimSuffix(opts.APIURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 5 * time.Second
	}
	return &Telegram{
		logger:     logger,
		secrets:    secrets,
		httpClient: &http.Client{Timeout: opts.Timeout},
		opts:       opts,
	}
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send 发送消息，失败时按指数退避重试。凭据缺失时直接返回 ErrSecretsMissing
func (t *Telegram) Send(ctx context.Context, text, parseMode string) error {
	creds, err := t.secrets.Credentials()
	if err != nil {
		return err
	}

	b := &backoff.Backoff{
		Min:    t.opts.MinBackoff,
		Max:    t.opts.MaxBackoff,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 1; attempt <= t.opts.MaxRetries; attempt++ {
		lastErr = t.sendOnce(ctx, creds, text, parseMode)
		if lastErr == nil {
			if attempt > 1 {
				t.logger.Info("Telegram 消息重试后发送成功", zap.Int("attempt", attempt))
			}
			return nil
		}

		var apiErr *APIError
		if errors.As(lastErr, &apiErr) && !apiErr.Retryable() {
			break
		}
		if attempt == t.opts.MaxRetries {
			break
		}

		wait := b.Duration()
		t.logger.Warn("Telegram 消息发送失败，稍后重试",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(lastErr))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("telegram 消息发送失败: %w", lastErr)
}

// SendTest 发送测试消息
func (t *Telegram) SendTest(ctx context.Context) error {
	return t.Send(ctx, TestMessage, "")
}

func (t *Telegram) sendOnce(ctx context.Context, creds Credentials, text, parseMode string) error {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                creds.ChatID,
		Text:                  text,
		ParseMode:             parseMode,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return err
	}

	u := fmt.Sprintf("%s/bot%s/sendMessage", t.opts.APIURL, creds.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		// url.Error 会带上包含 token 的地址
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("请求 Telegram 失败: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var r sendMessageResponse
		if json.Unmarshal(body, &r) == nil {
			apiErr.Description = r.Description
		}
		return apiErr
	}
	return nil
}
