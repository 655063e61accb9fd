package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"mailmirror/backend/internal/config"
)

const userAgent = "mailmirror REST client v1.0"

// HTTPDoer 执行 HTTP 请求，便于在测试中替换
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Observer 观察每次远端调用，status 为 0 表示通信失败
type Observer interface {
	ObserveCall(method string, status int, duration time.Duration)
}

// Connection 远端 REST API 的连接
//
// Connection 不做重试，重试策略由调用方决定。
type Connection struct {
	baseURL  *url.URL
	username string
	password string
	client   HTTPDoer
	limiter  *rate.Limiter
	observer Observer
	logger   *zap.Logger
}

// NewConnection 根据配置创建连接
func NewConnection(cfg *config.CoreConfig, logger *zap.Logger) (*Connection, error) {
	if (cfg.Username == "") != (cfg.Password == "") {
		return nil, errors.New("username and password must be given together")
	}

	raw := cfg.BaseURL
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Connection{
		baseURL:  base,
		username: cfg.Username,
		password: cfg.Password,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.Named("core"),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

// SetHTTPClient 替换底层 HTTP 客户端
func (c *Connection) SetHTTPClient(client HTTPDoer) {
	c.client = client
}

// SetObserver 设置调用观察者
func (c *Connection) SetObserver(o Observer) {
	c.observer = o
}

// BaseURL 返回 API 根地址（以 / 结尾）
func (c *Connection) BaseURL() string {
	return c.baseURL.String()
}

// AbsoluteURL 把相对路径拼接到 API 根地址上，绝对地址原样返回
func (c *Connection) AbsoluteURL(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return c.baseURL.String() + strings.TrimPrefix(path, "/")
	}
	return c.baseURL.ResolveReference(ref).String()
}

// PartialPath 把远端返回的绝对地址转换为相对 API 根的路径
func (c *Connection) PartialPath(raw string) string {
	if raw == "" {
		return ""
	}
	base := c.baseURL.String()
	if strings.HasPrefix(raw, base) {
		return strings.Trim(strings.TrimPrefix(raw, base), "/")
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return strings.Trim(raw, "/")
	}
	// 主机不同（例如经过代理）时按路径前缀截取
	p := strings.TrimPrefix(u.Path, c.baseURL.Path)
	return strings.Trim(p, "/")
}

// Call 调用远端 API
//
// method 为空时：没有 data 使用 GET，有 data 使用 POST。
// data 以 application/x-www-form-urlencoded 编码，nil 值被忽略。
// 非 2xx 返回 *HTTPError，通信失败返回 *ConnectionError。
func (c *Connection) Call(ctx context.Context, path string, data map[string]any, method string) (*Response, error) {
	if method == "" {
		method = http.MethodGet
		if data != nil {
			method = http.MethodPost
		}
	}
	method = strings.ToUpper(method)
	target := c.AbsoluteURL(path)

	var body io.Reader
	if data != nil {
		body = strings.NewReader(EncodeForm(data).Encode())
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &ConnectionError{Method: method, URL: target, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, target, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if data != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.observe(method, 0, start)
		c.logger.Warn("remote call failed",
			zap.String("method", method),
			zap.String("url", target),
			zap.Error(err),
		)
		return nil, &ConnectionError{Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	c.observe(method, resp.StatusCode, start)
	if err != nil {
		return nil, &ConnectionError{Method: method, URL: target, Err: err}
	}

	c.logger.Debug("remote call",
		zap.String("method", method),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{
			Method: method,
			URL:    target,
			Status: resp.StatusCode,
			Body:   string(bytes.TrimSpace(raw)),
		}
	}

	out := &Response{
		Status:   resp.StatusCode,
		Header:   resp.Header,
		Location: resp.Header.Get("Location"),
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &out.Body); err != nil {
			return nil, fmt.Errorf("decode response from %s: %w", target, err)
		}
	}
	return out, nil
}

// System 读取远端系统信息，用于健康检查
func (c *Connection) System(ctx context.Context) (map[string]any, error) {
	resp, err := c.Call(ctx, "system/versions", nil, http.MethodGet)
	if err != nil {
		return nil, err
	}
	return resp.Object(), nil
}

func (c *Connection) observe(method string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveCall(method, status, time.Since(start))
	}
}

// EncodeForm 把参数编码为表单，切片重复键，nil 值忽略
func EncodeForm(data map[string]any) url.Values {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	form := url.Values{}
	for _, k := range keys {
		switch v := data[k].(type) {
		case nil:
		case []string:
			for _, item := range v {
				form.Add(k, item)
			}
		case []any:
			for _, item := range v {
				if item != nil {
					form.Add(k, formValue(item))
				}
			}
		default:
			if s, ok := formScalar(v); ok {
				form.Set(k, s)
			}
		}
	}
	return form
}

func formScalar(v any) (string, bool) {
	switch t := v.(type) {
	case *string:
		if t == nil {
			return "", false
		}
		return *t, true
	case *bool:
		if t == nil {
			return "", false
		}
		return strconv.FormatBool(*t), true
	case *time.Time:
		if t == nil {
			return "", false
		}
		return t.UTC().Format(time.RFC3339), true
	}
	return formValue(v), true
}

func formValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}
