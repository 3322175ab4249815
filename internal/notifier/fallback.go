package notifier

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ContactEntry 一条联系表单消息
type ContactEntry struct {
	Name      string
	Email     string
	Message   string
	Timestamp time.Time
}

// FallbackLog Telegram 不可用时把联系表单消息追加到本地文件，按大小和定时任务轮转
type FallbackLog struct {
	mu     sync.Mutex
	writer *lumberjack.Logger
}

// NewFallbackLog 创建备份日志
func NewFallbackLog(path string) *FallbackLog {
	return &FallbackLog{
		writer: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // MB
			MaxBackups: 10,
			MaxAge:     90, // 天
		},
	}
}

// Path 日志文件路径
func (f *FallbackLog) Path() string {
	return f.writer.Filename
}

// Write 追加一条记录
func (f *FallbackLog) Write(entry ContactEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, err := f.writer.Write([]byte(FormatEntry(entry)))
	if err != nil {
		return fmt.Errorf("写入备份日志失败: %w", err)
	}
	return nil
}

// Rotate 立即轮转
func (f *FallbackLog) Rotate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writer.Rotate()
}

// Close 关闭文件
func (f *FallbackLog) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writer.Close()
}

// FormatEntry 备份日志中的记录格式
func FormatEntry(entry ContactEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] CONTACT FORM:\n", entry.Timestamp.Format(time.DateTime))
	fmt.Fprintf(&b, "NAME: %s\n", entry.Name)
	fmt.Fprintf(&b, "EMAIL: %s\n", entry.Email)
	fmt.Fprintf(&b, "MESSAGE: %s\n", entry.Message)
	b.WriteString(strings.Repeat("-", 50))
	b.WriteString("\n")
	return b.String()
}
