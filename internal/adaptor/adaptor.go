// Package adaptor 把远端 REST 资源包装为惰性加载的对象。
//
// 适配器在首次读取字段前不发起任何请求，加载后的 JSON 缓存在实例内，
// 实例不在 goroutine 之间共享。
package adaptor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"mailmirror/backend/internal/core"
	"mailmirror/backend/internal/domain"
)

var (
	ErrNotMember      = errors.New("address is not a member of the list")
	ErrUnknownAction  = errors.New("unknown moderation action")
	ErrUnexpectedBody = errors.New("unexpected response body")
)

// Caller 执行远端调用，由 *core.Connection 实现
type Caller interface {
	Call(ctx context.Context, path string, data map[string]any, method string) (*core.Response, error)
}

// Resource 任意远端资源
type Resource interface {
	URL() string
	Info(ctx context.Context) (map[string]any, error)
}

type resource struct {
	conn Caller
	url  string
	info map[string]any
}

func newResource(conn Caller, url string, info map[string]any) resource {
	return resource{conn: conn, url: strings.TrimSuffix(url, "/"), info: info}
}

// URL 返回资源地址
func (r *resource) URL() string { return r.url }

// Loaded 判断是否已经加载过远端数据
func (r *resource) Loaded() bool { return r.info != nil }

// Info 返回资源的 JSON 对象，首次调用时加载
func (r *resource) Info(ctx context.Context) (map[string]any, error) {
	if r.info != nil {
		return r.info, nil
	}
	resp, err := r.conn.Call(ctx, r.url, nil, http.MethodGet)
	if err != nil {
		return nil, err
	}
	info := resp.Object()
	if info == nil {
		return nil, fmt.Errorf("%w from %s", ErrUnexpectedBody, r.url)
	}
	r.info = info
	return info, nil
}

// Refresh 丢弃缓存，下次读取时重新加载
func (r *resource) Refresh() { r.info = nil }

func (r *resource) str(ctx context.Context, key string) (string, error) {
	info, err := r.Info(ctx)
	if err != nil {
		return "", err
	}
	return str(info, key), nil
}

func (r *resource) num(ctx context.Context, key string) (int, error) {
	info, err := r.Info(ctx)
	if err != nil {
		return 0, err
	}
	return num(info, key), nil
}

// SelfLink 返回资源自身的绝对地址
func (r *resource) SelfLink(ctx context.Context) (string, error) {
	return r.str(ctx, "self_link")
}

func (r *resource) sub(path string) string {
	return r.url + "/" + strings.TrimPrefix(path, "/")
}

// Wrap 按资源类型包装地址
func Wrap(conn Caller, kind domain.Kind, url string) (Resource, error) {
	switch kind {
	case domain.KindDomain:
		return NewDomain(conn, url), nil
	case domain.KindMailingList:
		return NewList(conn, url), nil
	case domain.KindSettings:
		return NewSettings(conn, url), nil
	case domain.KindUser:
		return NewUser(conn, url), nil
	case domain.KindEmail:
		return NewAddress(conn, url), nil
	case domain.KindMembership:
		return NewMember(conn, url), nil
	case domain.KindPreferences:
		return NewPreferences(conn, url), nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
}

// Preload 用集合条目构造资源，避免再次请求
func Preload(conn Caller, kind domain.Kind, entry map[string]any) (Resource, error) {
	res, err := Wrap(conn, kind, str(entry, "self_link"))
	if err != nil {
		return nil, err
	}
	if p, ok := res.(interface{ preload(map[string]any) }); ok {
		p.preload(entry)
	}
	return res, nil
}

func (r *resource) preload(info map[string]any) { r.info = info }

func str(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func num(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func withQuery(path string, params map[string]string) string {
	if len(params) == 0 {
		return path
	}
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	return path + "?" + q.Encode()
}

// fetchEntries 读取集合，返回远端顺序的条目
func fetchEntries(ctx context.Context, conn Caller, path string) ([]map[string]any, error) {
	resp, err := conn.Call(ctx, path, nil, http.MethodGet)
	if err != nil {
		return nil, err
	}
	return resp.Entries(), nil
}

func sortEntries(entries []map[string]any, key string) {
	sort.SliceStable(entries, func(i, j int) bool {
		return str(entries[i], key) < str(entries[j], key)
	})
}
