package notifier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ErrSecretsMissing 密钥文件不存在或内容为空
var ErrSecretsMissing = errors.New("telegram credentials not configured")

// Credentials Telegram 机器人凭据
type Credentials struct {
	BotToken string
	ChatID   string
}

// SecretStore 从文件（Docker secrets）读取 Telegram 凭据，读取成功后缓存
// 文件变化时由 Watch 使缓存失效
type SecretStore struct {
	logger     *zap.Logger
	fs         afero.Fs
	tokenFile  string
	chatIDFile string

	mu     sync.RWMutex
	cached *Credentials
}

// NewSecretStore 创建密钥读取器，fs 为 nil 时使用操作系统文件系统
func NewSecretStore(logger *zap.Logger, fs afero.Fs, tokenFile, chatIDFile string) *SecretStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &SecretStore{
		logger:     logger,
		fs:         fs,
		tokenFile:  tokenFile,
		chatIDFile: chatIDFile,
	}
}

// Credentials 返回凭据，缓存为空时重新读取文件
func (s *SecretStore) Credentials() (Credentials, error) {
	s.mu.RLock()
	cached := s.cached
	s.mu.RUnlock()
	if cached != nil {
		return *cached, nil
	}

	creds, err := s.load()
	if err != nil {
		return Credentials{}, err
	}

	s.mu.Lock()
	s.cached = &creds
	s.mu.Unlock()
	return creds, nil
}

// Invalidate 清除缓存，下次读取时重新加载文件
func (s *SecretStore) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

func (s *SecretStore) load() (Credentials, error) {
	token, err := s.readSecret(s.tokenFile)
	if err != nil {
		return Credentials{}, err
	}
	chatID, err := s.readSecret(s.chatIDFile)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{BotToken: token, ChatID: chatID}, nil
}

func (s *SecretStore) readSecret(path string) (string, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrSecretsMissing, path)
		}
		return "", fmt.Errorf("读取密钥文件失败 %s: %w", path, err)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", fmt.Errorf("%w: %s 为空", ErrSecretsMissing, path)
	}
	return value, nil
}

// Watch 监控密钥文件所在目录，任何变化都会使缓存失效。ctx 结束时退出
// 只对操作系统文件系统有效
func (s *SecretStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件监控器失败: %w", err)
	}

	dirs := map[string]struct{}{
		filepath.Dir(s.tokenFile):  {},
		filepath.Dir(s.chatIDFile): {},
	}
	added := 0
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			s.logger.Warn("添加密钥目录监控失败", zap.String("dir", dir), zap.Error(err))
			continue
		}
		added++
	}
	if added == 0 {
		_ = watcher.Close()
		return fmt.Errorf("没有可监控的密钥目录")
	}

	go s.watchLoop(ctx, watcher)
	s.logger.Info("密钥文件监控已启动",
		zap.String("tokenFile", s.tokenFile),
		zap.String("chatIDFile", s.chatIDFile))
	return nil
}

func (s *SecretStore) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			// 目录下的其他文件与凭据无关
			name := filepath.Clean(event.Name)
			if name != filepath.Clean(s.tokenFile) && name != filepath.Clean(s.chatIDFile) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				s.Invalidate()
				s.logger.Info("密钥文件已变化，重新加载", zap.String("file", event.Name))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("密钥文件监控错误", zap.Error(err))
		}
	}
}
