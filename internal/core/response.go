package core

import "net/http"

// Response 一次远端调用的结果
type Response struct {
	Status   int
	Header   http.Header
	Location string
	// Body 为解码后的 JSON，空响应体时为 nil
	Body any
}

// Object 以对象形式返回响应体，非对象时返回 nil
func (r *Response) Object() map[string]any {
	if r == nil {
		return nil
	}
	obj, _ := r.Body.(map[string]any)
	return obj
}

// Entries 返回集合响应中的 entries 列表，没有时返回空切片
func (r *Response) Entries() []map[string]any {
	return Entries(r.Object())
}

// TotalSize 返回集合响应中的 total_size
func (r *Response) TotalSize() int {
	obj := r.Object()
	if obj == nil {
		return 0
	}
	if n, ok := obj["total_size"].(float64); ok {
		return int(n)
	}
	return len(r.Entries())
}

// Entries 从集合对象中取出 entries
func Entries(obj map[string]any) []map[string]any {
	raw, _ := obj["entries"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if entry, ok := item.(map[string]any); ok {
			out = append(out, entry)
		}
	}
	return out
}
