package vmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultTimeout       = 10 * time.Second
	DefaultRangeDuration = 600 * time.Second
	DefaultRangeStep     = 30 * time.Second

	maxBodyBytes = 32 << 20
)

// Opts 客户端配置
type Opts struct {
	URL      string        // 后端地址，例如 http://vps-prometheus:9090
	Timeout  time.Duration // 单次请求超时
	Username string
	Password string
}

// VMClient Prometheus 兼容时序库的只读查询客户端。不做重试，失败立即返回
type VMClient struct {
	baseURL    string
	opts       Opts
	httpClient *http.Client
	now        func() time.Time
}

// NewVMClient 创建查询客户端
func NewVMClient(opts Opts) *VMClient {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &VMClient{
		baseURL: strings.TrimRight(opts.URL, "/"),
		opts:    opts,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		now: time.Now,
	}
}

// BaseURL 后端地址
func (c *VMClient) BaseURL() string {
	return c.baseURL
}

// Query 即时查询
func (c *VMClient) Query(ctx context.Context, query string) (*QueryResult, error) {
	params := url.Values{}
	params.Set("query", query)
	return c.do(ctx, "/api/v1/query", params)
}

// QueryRange 范围查询，时间窗口为 [start, end]
func (c *VMClient) QueryRange(ctx context.Context, query string, start, end time.Time, step time.Duration) (*QueryResult, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("start", strconv.FormatInt(start.Unix(), 10))
	params.Set("end", strconv.FormatInt(end.Unix(), 10))
	if step > 0 {
		params.Set("step", strconv.FormatInt(int64(step/time.Second), 10))
	}
	return c.do(ctx, "/api/v1/query_range", params)
}

// QueryRecent 以当前时间为终点、向前 duration 的范围查询
// duration 或 step 为 0 时使用默认窗口 600s / 30s
func (c *VMClient) QueryRecent(ctx context.Context, query string, duration, step time.Duration) (*QueryResult, error) {
	if duration <= 0 {
		duration = DefaultRangeDuration
	}
	if step <= 0 {
		step = DefaultRangeStep
	}
	end := c.now()
	return c.QueryRange(ctx, query, end.Add(-duration), end, step)
}

// Ping 通过 up 查询检查后端连通性
func (c *VMClient) Ping(ctx context.Context) (*QueryResult, error) {
	return c.Query(ctx, "up")
}

// Proxy 将只读 GET 请求原样转发到后端，返回状态码和响应体
func (c *VMClient) Proxy(ctx context.Context, path, rawQuery string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	target := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if rawQuery != "" {
		target += "?" + rawQuery
	}

	req, err := c.newRequest(ctx, target)
	if err != nil {
		return 0, nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read body: %v", ErrConnectionFailed, err)
	}
	return resp.StatusCode, body, nil
}

func (c *VMClient) newRequest(ctx context.Context, target string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	if c.opts.Username != "" && c.opts.Password != "" {
		req.SetBasicAuth(c.opts.Username, c.opts.Password)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *VMClient) do(ctx context.Context, path string, params url.Values) (*QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := c.newRequest(ctx, c.baseURL+path+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrConnectionFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		backendErr := &BackendError{Code: resp.StatusCode}
		// Prometheus 在 4xx/5xx 时通常也会返回 JSON 错误体
		var errResp apiResponse
		if json.Unmarshal(body, &errResp) == nil {
			backendErr.ErrorType = errResp.ErrorType
			backendErr.Message = errResp.Error
		}
		return nil, backendErr
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if apiResp.Status != "success" {
		return nil, &BackendError{
			Code:      resp.StatusCode,
			ErrorType: apiResp.ErrorType,
			Message:   apiResp.Error,
		}
	}

	return apiResp.Data.toQueryResult()
}
