package service

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bluedjedi/djedi/internal/notifier"
	"github.com/bluedjedi/djedi/internal/protocol"

	"github.com/go-orz/cache"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/valyala/fasttemplate"
	"go.uber.org/zap"
)

const (
	DefaultContactName  = "ANONYMOUS"
	DefaultContactEmail = "NO EMAIL PROVIDED"
)

// ErrThrottled 同一客户端提交过于频繁
var ErrThrottled = errors.New("contact form throttled")

// ValidationError 表单校验失败，Fields 为字段名到错误描述的映射
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid contact form: " + strings.Join(parts, "; ")
}

// MessageSender 消息发送接口，由 notifier.Telegram 实现
type MessageSender interface {
	Send(ctx context.Context, text, parseMode string) error
	SendTest(ctx context.Context) error
}

// FallbackWriter 发送失败时的本地备份，由 notifier.FallbackLog 实现
type FallbackWriter interface {
	Write(entry notifier.ContactEntry) error
}

const contactTemplate = `🔷 NEW CONTACT FROM BLUEDJEDI.COM

📅 TIME: {{time}}
👤 NAME: {{name}}
📧 EMAIL: {{email}}
💬 MESSAGE:
{{message}}

---
SENT FROM THE TEMPLE OF THE BLUE DJEDI`

// 命中只记录日志，不拒绝
var spamPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)viagra`),
	regexp.MustCompile(`(?i)casino`),
	regexp.MustCompile(`(?i)winner.*prize`),
	regexp.MustCompile(`(?i)click.*here.*now`),
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// ContactServiceOpts 联系表单参数
type ContactServiceOpts struct {
	ThrottleWindow time.Duration // 同一客户端两次提交的最小间隔，0 表示不限制
}

// ContactService 联系表单：校验、限流、转发到 Telegram，失败时写入本地备份
type ContactService struct {
	logger   *zap.Logger
	sender   MessageSender
	fallback FallbackWriter
	opts     ContactServiceOpts

	validate *validator.Validate
	trans    ut.Translator
	tpl      *fasttemplate.Template

	mu       sync.Mutex
	throttle cache.Cache[string, time.Time]

	now func() time.Time
}

// NewContactService 创建联系表单服务
func NewContactService(logger *zap.Logger, sender MessageSender, fallback FallbackWriter, opts ContactServiceOpts) *ContactService {
	validate := validator.New()
	// 错误信息中使用 json 字段名
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		logger.Warn("注册校验翻译失败", zap.Error(err))
	}

	ttl := opts.ThrottleWindow
	if ttl <= 0 {
		ttl = time.Minute
	}

	return &ContactService{
		logger:   logger,
		sender:   sender,
		fallback: fallback,
		opts:     opts,
		validate: validate,
		trans:    trans,
		tpl:      fasttemplate.New(contactTemplate, "{{", "}}"),
		throttle: cache.New[string, time.Time](ttl),
		now:      time.Now,
	}
}

// Validate 去掉首尾空白后校验表单，返回规范化后的表单
func (s *ContactService) Validate(req protocol.ContactRequest) (protocol.ContactRequest, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Message = strings.TrimSpace(req.Message)

	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return req, err
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Translate(s.trans)
		}
		return req, &ValidationError{Fields: fields}
	}
	return req, nil
}

// Submit 处理一次提交。只有校验失败和限流会返回错误，转发失败会写入备份日志
func (s *ContactService) Submit(ctx context.Context, clientIP string, req protocol.ContactRequest) error {
	req, err := s.Validate(req)
	if err != nil {
		return err
	}

	if matched := DetectSpam(req.Message); len(matched) > 0 {
		s.logger.Warn("疑似垃圾消息",
			zap.String("clientIP", clientIP),
			zap.Strings("patterns", matched))
	}

	if !s.allow(clientIP) {
		s.logger.Info("联系表单提交过于频繁", zap.String("clientIP", clientIP))
		return ErrThrottled
	}

	entry := notifier.ContactEntry{
		Name:      withDefault(Sanitize(req.Name), DefaultContactName),
		Email:     withDefault(Sanitize(req.Email), DefaultContactEmail),
		Message:   Sanitize(req.Message),
		Timestamp: s.now(),
	}
	s.relay(ctx, entry)
	return nil
}

// SendTestMessage 发送 Telegram 测试消息
func (s *ContactService) SendTestMessage(ctx context.Context) error {
	return s.sender.SendTest(ctx)
}

// FormatMessage 生成发往 Telegram 的文本
func (s *ContactService) FormatMessage(entry notifier.ContactEntry) string {
	return s.tpl.ExecuteString(map[string]interface{}{
		"time":    entry.Timestamp.Format(time.DateTime),
		"name":    entry.Name,
		"email":   entry.Email,
		"message": entry.Message,
	})
}

func (s *ContactService) relay(ctx context.Context, entry notifier.ContactEntry) {
	err := s.sender.Send(ctx, s.FormatMessage(entry), notifier.ParseModeHTML)
	if err == nil {
		s.logger.Info("联系表单消息已发送到 Telegram")
		return
	}

	if errors.Is(err, notifier.ErrSecretsMissing) {
		s.logger.Warn("未配置 Telegram 凭据，写入备份日志", zap.Error(err))
	} else {
		s.logger.Error("发送到 Telegram 失败，写入备份日志", zap.Error(err))
	}

	if err := s.fallback.Write(entry); err != nil {
		s.logger.Error("写入备份日志失败", zap.Error(err))
	}
}

// allow 记录本次提交并判断是否在限流窗口内
func (s *ContactService) allow(clientIP string) bool {
	if s.opts.ThrottleWindow <= 0 || clientIP == "" {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.throttle.Get(clientIP); ok && s.now().Sub(last) < s.opts.ThrottleWindow {
		return false
	}
	s.throttle.Set(clientIP, s.now(), s.opts.ThrottleWindow)
	return true
}

// Sanitize 转义 HTML 特殊字符并去掉首尾空白
func Sanitize(text string) string {
	return strings.TrimSpace(htmlEscaper.Replace(text))
}

// DetectSpam 返回命中的垃圾消息规则
func DetectSpam(message string) []string {
	var matched []string
	for _, p := range spamPatterns {
		if p.MatchString(message) {
			matched = append(matched, p.String())
		}
	}
	return matched
}

func withDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
