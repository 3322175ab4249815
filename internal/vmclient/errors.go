package vmclient

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionFailed 后端不可达或超时
	ErrConnectionFailed = errors.New("vmclient: connection failed")
	// ErrMalformedResponse 响应无法解析
	ErrMalformedResponse = errors.New("vmclient: malformed response")
)

// BackendError 后端可达，但返回非 2xx 或 status 不为 success
type BackendError struct {
	Code      int
	ErrorType string
	Message   string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("vmclient: backend error (code %d)", e.Code)
	}
	return fmt.Sprintf("vmclient: backend error (code %d): %s: %s", e.Code, e.ErrorType, e.Message)
}

// IsBackendError 判断 err 是否为 BackendError，并返回其状态码
func IsBackendError(err error) (int, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Code, true
	}
	return 0, false
}
