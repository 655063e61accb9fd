package core

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError 远端返回非 2xx 状态
type HTTPError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.Status, e.Body)
}

// ConnectionError 无法与远端通信（DNS、拒绝连接、超时等），与 HTTP 状态无关
type ConnectionError struct {
	Method string
	URL    string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("could not connect to %s (%s): %v", e.URL, e.Method, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsNotFound 判断是否为 404
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// IsConflict 判断是否为资源已存在类错误（400 或 409）
func IsConflict(err error) bool {
	status := StatusOf(err)
	return status == http.StatusConflict || status == http.StatusBadRequest
}

// IsConnectionError 判断是否为通信失败
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// StatusOf 返回错误携带的 HTTP 状态，非 HTTPError 时返回 0
func StatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}
