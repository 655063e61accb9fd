package core

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailmirror/backend/internal/config"
)

type recordedRequest struct {
	Method      string
	Path        string
	ContentType string
	Body        string
	User        string
	Pass        string
	HasAuth     bool
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var seen []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		user, pass, ok := r.BasicAuth()
		mu.Lock()
		seen = append(seen, recordedRequest{
			Method:      r.Method,
			Path:        r.URL.Path,
			ContentType: r.Header.Get("Content-Type"),
			Body:        string(body),
			User:        user,
			Pass:        pass,
			HasAuth:     ok,
		})
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func newConn(t *testing.T, baseURL, user, pass string) *Connection {
	t.Helper()
	conn, err := NewConnection(&config.CoreConfig{
		BaseURL:  baseURL,
		Username: user,
		Password: pass,
		Timeout:  2 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	return conn
}

func TestNewConnection(t *testing.T) {
	t.Run("用户名缺少密码", func(t *testing.T) {
		_, err := NewConnection(&config.CoreConfig{BaseURL: "http://localhost:8001/3.0", Username: "a"}, nil)
		assert.Error(t, err)
	})

	t.Run("密码缺少用户名", func(t *testing.T) {
		_, err := NewConnection(&config.CoreConfig{BaseURL: "http://localhost:8001/3.0", Password: "a"}, nil)
		assert.Error(t, err)
	})

	t.Run("无效地址", func(t *testing.T) {
		_, err := NewConnection(&config.CoreConfig{BaseURL: "localhost"}, nil)
		assert.Error(t, err)
	})

	t.Run("补全结尾斜杠", func(t *testing.T) {
		conn, err := NewConnection(&config.CoreConfig{BaseURL: "http://localhost:8001/3.0"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8001/3.0/", conn.BaseURL())
	})
}

func TestConnectionURLs(t *testing.T) {
	conn := newConn(t, "http://localhost:8001/3.0/", "", "")

	assert.Equal(t, "http://localhost:8001/3.0/lists/foo@bar.com", conn.AbsoluteURL("lists/foo@bar.com"))
	assert.Equal(t, "http://localhost:8001/3.0/domains", conn.AbsoluteURL("/domains"))
	assert.Equal(t, "http://other/3.0/users/1", conn.AbsoluteURL("http://other/3.0/users/1"))

	assert.Equal(t, "lists/foo.bar.com", conn.PartialPath("http://localhost:8001/3.0/lists/foo.bar.com"))
	assert.Equal(t, "users/7", conn.PartialPath("http://proxy.internal/3.0/users/7/"))
	assert.Equal(t, "domains/bar.com", conn.PartialPath("domains/bar.com"))
	assert.Equal(t, "", conn.PartialPath(""))
}

func TestConnectionCall(t *testing.T) {
	t.Run("GET 解码 JSON 并携带 Basic Auth", func(t *testing.T) {
		srv, seen := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"mail_host": "bar.com", "self_link": "x"}`))
		})
		conn := newConn(t, srv.URL+"/3.0/", "restadmin", "restpass")

		resp, err := conn.Call(context.Background(), "domains/bar.com", nil, "")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Equal(t, "bar.com", resp.Object()["mail_host"])

		require.Len(t, *seen, 1)
		req := (*seen)[0]
		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, "/3.0/domains/bar.com", req.Path)
		assert.True(t, req.HasAuth)
		assert.Equal(t, "restadmin", req.User)
		assert.Equal(t, "restpass", req.Pass)
	})

	t.Run("有数据时默认 POST 表单并返回 Location", func(t *testing.T) {
		srv, seen := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Location", "http://localhost/3.0/lists/foo.bar.com")
			w.WriteHeader(http.StatusCreated)
		})
		conn := newConn(t, srv.URL+"/3.0/", "", "")

		resp, err := conn.Call(context.Background(), "lists", map[string]any{
			"fqdn_listname": "foo@bar.com",
			"advertised":    true,
			"skip":          nil,
		}, "")
		require.NoError(t, err)
		assert.Nil(t, resp.Body)
		assert.Equal(t, "http://localhost/3.0/lists/foo.bar.com", resp.Location)

		req := (*seen)[0]
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", req.ContentType)
		assert.Equal(t, "advertised=true&fqdn_listname=foo%40bar.com", req.Body)
		assert.False(t, req.HasAuth)
	})

	t.Run("显式方法覆盖默认值", func(t *testing.T) {
		srv, seen := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		conn := newConn(t, srv.URL+"/3.0/", "", "")

		_, err := conn.Call(context.Background(), "lists/foo@bar.com/config", map[string]any{"description": "d"}, "patch")
		require.NoError(t, err)
		assert.Equal(t, http.MethodPatch, (*seen)[0].Method)
	})

	t.Run("非 2xx 返回 HTTPError", func(t *testing.T) {
		srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "404 Not Found", http.StatusNotFound)
		})
		conn := newConn(t, srv.URL+"/3.0/", "", "")

		_, err := conn.Call(context.Background(), "domains/missing.com", nil, "")
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
		assert.False(t, IsConnectionError(err))

		var he *HTTPError
		require.True(t, errors.As(err, &he))
		assert.Equal(t, http.StatusNotFound, he.Status)
		assert.Contains(t, he.URL, "/3.0/domains/missing.com")
		assert.Equal(t, "404 Not Found", he.Body)
	})

	t.Run("无法连接返回 ConnectionError", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		addr := srv.URL
		srv.Close()

		conn := newConn(t, addr+"/3.0/", "", "")
		_, err := conn.Call(context.Background(), "domains", nil, "")
		require.Error(t, err)
		assert.True(t, IsConnectionError(err))
		assert.Equal(t, 0, StatusOf(err))
	})

	t.Run("非 JSON 响应体报错", func(t *testing.T) {
		srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		})
		conn := newConn(t, srv.URL+"/3.0/", "", "")

		_, err := conn.Call(context.Background(), "domains", nil, "")
		require.Error(t, err)
		assert.False(t, IsConnectionError(err))
	})
}

type countingObserver struct {
	mu       sync.Mutex
	statuses []int
}

func (o *countingObserver) ObserveCall(method string, status int, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, status)
}

func TestConnectionObserver(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})
	conn := newConn(t, srv.URL+"/3.0/", "", "")
	obs := &countingObserver{}
	conn.SetObserver(obs)

	_, err := conn.Call(context.Background(), "members", map[string]any{"subscriber": "a@b.com"}, "")
	assert.True(t, IsConflict(err))
	assert.Equal(t, []int{http.StatusConflict}, obs.statuses)
}

func TestResponseEntries(t *testing.T) {
	resp := &Response{Body: map[string]any{
		"total_size": float64(2),
		"entries": []any{
			map[string]any{"address": "a@example.com"},
			map[string]any{"address": "b@example.com"},
		},
	}}
	assert.Equal(t, 2, resp.TotalSize())
	require.Len(t, resp.Entries(), 2)
	assert.Equal(t, "b@example.com", resp.Entries()[1]["address"])

	empty := &Response{}
	assert.Empty(t, empty.Entries())
	assert.Equal(t, 0, empty.TotalSize())
}

func TestEncodeForm(t *testing.T) {
	yes := true
	form := EncodeForm(map[string]any{
		"role":         "member",
		"pre_verified": &yes,
		"threshold":    30.5,
		"owners":       []string{"a@x.com", "b@x.com"},
		"missing":      (*string)(nil),
	})
	assert.Equal(t, "member", form.Get("role"))
	assert.Equal(t, "true", form.Get("pre_verified"))
	assert.Equal(t, "30.5", form.Get("threshold"))
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, form["owners"])
	_, ok := form["missing"]
	assert.False(t, ok)
}
