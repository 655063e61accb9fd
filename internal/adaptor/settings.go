package adaptor

import (
	"context"
	"net/http"
	"sort"

	"mailmirror/backend/internal/domain"
)

// Settings 列表配置，按键读写
type Settings struct {
	resource
}

// NewSettings 创建惰性加载的列表配置
func NewSettings(conn Caller, url string) *Settings {
	return &Settings{resource: newResource(conn, url, nil)}
}

// Get 读取配置项
func (s *Settings) Get(ctx context.Context, key string) (any, bool, error) {
	info, err := s.Info(ctx)
	if err != nil {
		return nil, false, err
	}
	v, ok := info[key]
	return v, ok, nil
}

// Set 修改配置项，Save 时提交
func (s *Settings) Set(ctx context.Context, key string, value any) error {
	info, err := s.Info(ctx)
	if err != nil {
		return err
	}
	info[key] = value
	return nil
}

// Keys 返回全部配置键，按字母排序
func (s *Settings) Keys(ctx context.Context) ([]string, error) {
	info, err := s.Info(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Save 以 PATCH 提交全部可写配置，只读属性不会被发送
func (s *Settings) Save(ctx context.Context) error {
	info, err := s.Info(ctx)
	if err != nil {
		return err
	}
	data := make(map[string]any, len(info))
	for k, v := range info {
		if k == "self_link" || k == "http_etag" || domain.IsListReadOnly(k) {
			continue
		}
		data[k] = v
	}
	_, err = s.conn.Call(ctx, s.url, data, http.MethodPatch)
	return err
}

// Preferences 用户、地址或成员的投递偏好
type Preferences struct {
	resource
}

// NewPreferences 创建惰性加载的偏好
func NewPreferences(conn Caller, url string) *Preferences {
	return &Preferences{resource: newResource(conn, url, nil)}
}

// Get 读取偏好，未设置时返回 nil
func (p *Preferences) Get(ctx context.Context, key string) (any, error) {
	info, err := p.Info(ctx)
	if err != nil {
		return nil, err
	}
	return info[key], nil
}

// Set 修改偏好，nil 表示清除
func (p *Preferences) Set(ctx context.Context, key string, value any) error {
	info, err := p.Info(ctx)
	if err != nil {
		return err
	}
	if value == nil {
		delete(info, key)
		return nil
	}
	info[key] = value
	return nil
}

// Keys 返回可设置的偏好键
func (p *Preferences) Keys() []string {
	return append([]string(nil), domain.PreferenceKeys...)
}

// Save 以 PUT 整体替换偏好，只发送已设置的键
func (p *Preferences) Save(ctx context.Context) error {
	info, err := p.Info(ctx)
	if err != nil {
		return err
	}
	data := make(map[string]any)
	for _, key := range domain.PreferenceKeys {
		if v, ok := info[key]; ok && v != nil {
			data[key] = v
		}
	}
	_, err = p.conn.Call(ctx, p.url, data, http.MethodPut)
	return err
}
