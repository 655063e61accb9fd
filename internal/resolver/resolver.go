package resolver

import (
	"context"
	"fmt"
	"net/http"

	"mailmirror/backend/internal/adaptor"
	"mailmirror/backend/internal/core"
	"mailmirror/backend/internal/domain"
)

// Conn 解析器依赖的连接能力，由 *core.Connection 实现
type Conn interface {
	adaptor.Caller
	AbsoluteURL(path string) string
	PartialPath(rawURL string) string
}

// Resolver 把资源类型与查找键转换为远端调用
type Resolver struct {
	conn Conn
}

// New 创建解析器
func New(conn Conn) *Resolver {
	return &Resolver{conn: conn}
}

// AbsoluteURL 返回路径对应的完整地址
func (r *Resolver) AbsoluteURL(path string) string { return r.conn.AbsoluteURL(path) }

// PartialPath 返回相对于服务根的路径
func (r *Resolver) PartialPath(rawURL string) string { return r.conn.PartialPath(rawURL) }

// Get 按查找键读取资源
//
// 远端返回 404 或查询无结果时 found 为 false，err 为 nil。
// 成员资格没有自然的单资源地址，按 (list_id, subscriber, role) 查询。
func (r *Resolver) Get(ctx context.Context, kind domain.Kind, lookup Params) (adaptor.Resource, bool, error) {
	if kind == domain.KindMembership && lookup.Get("member_id") == "" {
		entries, err := r.List(ctx, kind, lookup)
		if err != nil {
			if core.IsNotFound(err) {
				return nil, false, nil
			}
			return nil, false, err
		}
		for _, entry := range entries {
			if matches(entry, lookup, "list_id", "role") && sameAddress(entry, lookup.Get("subscriber")) {
				res, err := adaptor.Preload(r.conn, kind, entry)
				return res, err == nil, err
			}
		}
		return nil, false, nil
	}

	path, err := EndpointFor(kind, lookup)
	if err != nil {
		return nil, false, err
	}
	res, err := adaptor.Wrap(r.conn, kind, path)
	if err != nil {
		return nil, false, err
	}
	if _, err := res.Info(ctx); err != nil {
		if core.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return res, true, nil
}

func matches(entry map[string]any, lookup Params, keys ...string) bool {
	for _, key := range keys {
		want := lookup.Get(key)
		if want == "" {
			continue
		}
		if got, _ := entry[key].(string); got != want {
			return false
		}
	}
	return true
}

func sameAddress(entry map[string]any, subscriber string) bool {
	if subscriber == "" {
		return true
	}
	got, _ := entry["address"].(string)
	return domain.NormalizeAddress(got) == domain.NormalizeAddress(subscriber)
}

// FromURL 按地址包装资源，不发起请求
func (r *Resolver) FromURL(kind domain.Kind, rawURL string) (adaptor.Resource, error) {
	return adaptor.Wrap(r.conn, kind, r.conn.PartialPath(rawURL))
}

// Create 创建远端资源，返回新资源的相对路径
func (r *Resolver) Create(ctx context.Context, kind domain.Kind, params Params) (string, error) {
	target, err := CreateEndpoint(kind, params)
	if err != nil {
		return "", err
	}
	resp, err := r.conn.Call(ctx, target, Writable(kind, OpCreate, params), http.MethodPost)
	if err != nil {
		return "", err
	}
	location := resp.Location
	if location == "" {
		if obj := resp.Object(); obj != nil {
			location, _ = obj["self_link"].(string)
		}
	}
	if location == "" {
		return "", fmt.Errorf("create %s at %s: %w", kind, target, adaptor.ErrUnexpectedBody)
	}
	return r.conn.PartialPath(location), nil
}

// Update 提交可写字段，偏好使用 PUT，其余使用 PATCH
//
// 没有可写字段时不发起请求，返回 false。
func (r *Resolver) Update(ctx context.Context, kind domain.Kind, path string, params Params) (bool, error) {
	data := Writable(kind, OpUpdate, params)
	if len(data) == 0 && kind != domain.KindPreferences {
		return false, nil
	}
	method := http.MethodPatch
	if kind == domain.KindPreferences {
		method = http.MethodPut
	}
	if _, err := r.conn.Call(ctx, path, data, method); err != nil {
		return false, err
	}
	return true, nil
}

// Delete 删除远端资源
func (r *Resolver) Delete(ctx context.Context, path string) error {
	_, err := r.conn.Call(ctx, path, nil, http.MethodDelete)
	return err
}

// List 读取集合，条目保持远端顺序
func (r *Resolver) List(ctx context.Context, kind domain.Kind, params Params) ([]map[string]any, error) {
	path, query, err := CollectionFor(kind, params)
	if err != nil {
		return nil, err
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	resp, err := r.conn.Call(ctx, path, nil, http.MethodGet)
	if err != nil {
		return nil, err
	}
	return resp.Entries(), nil
}
