package adaptor

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailmirror/backend/internal/core"
	"mailmirror/backend/internal/domain"
)

type call struct {
	Method string
	Path   string
	Data   map[string]any
}

// fakeCaller 按 "METHOD path" 返回预置响应
type fakeCaller struct {
	responses map[string]*core.Response
	errs      map[string]error
	calls     []call
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{responses: map[string]*core.Response{}, errs: map[string]error{}}
}

func (f *fakeCaller) on(method, path string, body any) {
	f.responses[method+" "+path] = &core.Response{Status: http.StatusOK, Body: body}
}

func (f *fakeCaller) Call(_ context.Context, path string, data map[string]any, method string) (*core.Response, error) {
	if method == "" {
		method = http.MethodGet
		if data != nil {
			method = http.MethodPost
		}
	}
	f.calls = append(f.calls, call{Method: method, Path: path, Data: data})
	key := method + " " + path
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	if resp, ok := f.responses[key]; ok {
		return resp, nil
	}
	return &core.Response{Status: http.StatusNoContent}, nil
}

func (f *fakeCaller) count(method, path string) int {
	n := 0
	for _, c := range f.calls {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

func entries(items ...map[string]any) map[string]any {
	raw := make([]any, 0, len(items))
	for _, item := range items {
		raw = append(raw, item)
	}
	return map[string]any{"entries": raw, "total_size": float64(len(items))}
}

func TestResourceLazyLoad(t *testing.T) {
	ctx := context.Background()
	conn := newFakeCaller()
	conn.on(http.MethodGet, "domains/example.com", map[string]any{
		"mail_host": "example.com",
		"url_host":  "example.com",
		"self_link": "http://localhost:8001/3.1/domains/example.com",
	})

	d := NewDomain(conn, "domains/example.com/")
	assert.Equal(t, "domains/example.com", d.URL())
	assert.False(t, d.Loaded())
	assert.Empty(t, conn.calls)

	host, err := d.MailHost(ctx)
	require.NoError(t, err)
	assert.Equal(t, "example.com", host)
	_, err = d.URLHost(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, conn.count(http.MethodGet, "domains/example.com"))

	d.Refresh()
	_, err = d.Description(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, conn.count(http.MethodGet, "domains/example.com"))
}

func TestWrap(t *testing.T) {
	conn := newFakeCaller()
	for _, kind := range domain.Kinds() {
		res, err := Wrap(conn, kind, "x/1")
		require.NoError(t, err, kind)
		assert.Equal(t, "x/1", res.URL())
	}

	_, err := Wrap(conn, domain.Kind("bogus"), "x")
	assert.ErrorIs(t, err, domain.ErrUnknownKind)
}

func TestPreload(t *testing.T) {
	conn := newFakeCaller()
	res, err := Preload(conn, domain.KindMailingList, map[string]any{
		"self_link":     "lists/foo.example.com",
		"fqdn_listname": "foo@example.com",
	})
	require.NoError(t, err)

	info, err := res.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "foo@example.com", info["fqdn_listname"])
	assert.Empty(t, conn.calls)
}

func TestDomainLists(t *testing.T) {
	ctx := context.Background()
	conn := newFakeCaller()
	conn.on(http.MethodGet, "domains/example.com/lists", entries(
		map[string]any{"fqdn_listname": "zeta@example.com", "self_link": "lists/zeta.example.com"},
		map[string]any{"fqdn_listname": "alpha@example.com", "self_link": "lists/alpha.example.com"},
	))

	lists, err := NewDomain(conn, "domains/example.com").Lists(ctx)
	require.NoError(t, err)
	require.Len(t, lists, 2)
	name, _ := lists[0].FQDNListname(ctx)
	assert.Equal(t, "alpha@example.com", name)
	assert.True(t, lists[1].Loaded())
}

func TestGetOrCreateList(t *testing.T) {
	ctx := context.Background()

	t.Run("已存在", func(t *testing.T) {
		conn := newFakeCaller()
		conn.on(http.MethodGet, "domains/example.com", map[string]any{"mail_host": "example.com"})
		conn.on(http.MethodGet, "lists/foo@example.com", map[string]any{"fqdn_listname": "foo@example.com"})

		l, err := NewDomain(conn, "domains/example.com").GetOrCreateList(ctx, "foo")
		require.NoError(t, err)
		assert.Equal(t, "lists/foo@example.com", l.URL())
		assert.Zero(t, conn.count(http.MethodPost, "lists"))
	})

	t.Run("不存在时创建", func(t *testing.T) {
		conn := newFakeCaller()
		conn.on(http.MethodGet, "domains/example.com", map[string]any{"mail_host": "example.com"})
		conn.errs["GET lists/foo@example.com"] = &core.HTTPError{Status: http.StatusNotFound}
		conn.responses["POST lists"] = &core.Response{Status: http.StatusCreated, Location: "lists/foo.example.com"}

		l, err := NewDomain(conn, "domains/example.com").GetOrCreateList(ctx, "foo")
		require.NoError(t, err)
		assert.Equal(t, "lists/foo.example.com", l.URL())
		last := conn.calls[len(conn.calls)-1]
		assert.Equal(t, "foo@example.com", last.Data["fqdn_listname"])
	})
}

func TestListRoster(t *testing.T) {
	ctx := context.Background()
	conn := newFakeCaller()
	conn.on(http.MethodGet, "lists/foo.example.com", map[string]any{
		"list_id":       "foo.example.com",
		"fqdn_listname": "foo@example.com",
	})
	conn.on(http.MethodGet, "lists/foo.example.com/roster/owner", entries(
		map[string]any{"address": "b@example.com"},
		map[string]any{"address": "a@example.com"},
	))

	l := NewList(conn, "lists/foo.example.com")
	owners, err := l.Owners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, owners)

	t.Run("添加角色", func(t *testing.T) {
		require.NoError(t, l.AddModerator(ctx, "mod@example.com"))
		last := conn.calls[len(conn.calls)-1]
		assert.Equal(t, "members", last.Path)
		assert.Equal(t, "moderator", last.Data["role"])
		assert.Equal(t, "foo.example.com", last.Data["list_id"])
	})

	t.Run("移除角色", func(t *testing.T) {
		require.NoError(t, l.RemoveOwner(ctx, "a@example.com"))
		assert.Equal(t, 1, conn.count(http.MethodDelete, "lists/foo@example.com/owner/a@example.com"))
	})

	t.Run("移除版主", func(t *testing.T) {
		require.NoError(t, l.RemoveModerator(ctx, "mod@example.com"))
		assert.Equal(t, 1, conn.count(http.MethodDelete, "lists/foo@example.com/moderator/mod@example.com"))
	})

	t.Run("非法角色", func(t *testing.T) {
		assert.ErrorIs(t, l.AddRole(ctx, domain.Role("admin"), "x@example.com"), domain.ErrInvalidRole)
	})
}

func TestListSubscribe(t *testing.T) {
	ctx := context.Background()
	conn := newFakeCaller()
	conn.on(http.MethodGet, "lists/foo.example.com", map[string]any{"list_id": "foo.example.com"})
	conn.responses["POST members"] = &core.Response{Status: http.StatusCreated, Location: "members/7"}

	l := NewList(conn, "lists/foo.example.com")
	m, err := l.Subscribe(ctx, "anne@example.com", "Anne")
	require.NoError(t, err)
	assert.Equal(t, "members/7", m.URL())

	last := conn.calls[len(conn.calls)-1]
	assert.Equal(t, true, last.Data["pre_verified"])
	assert.Equal(t, true, last.Data["pre_confirmed"])
	assert.Equal(t, true, last.Data["pre_approved"])
	assert.Equal(t, "Anne", last.Data["display_name"])

	t.Run("退订不存在的成员", func(t *testing.T) {
		conn.errs["DELETE lists/foo.example.com/member/nobody@example.com"] = &core.HTTPError{Status: http.StatusNotFound}
		assert.ErrorIs(t, l.Unsubscribe(ctx, "nobody@example.com"), ErrNotMember)
	})
}

func TestModerateMessage(t *testing.T) {
	ctx := context.Background()
	conn := newFakeCaller()
	l := NewList(conn, "lists/foo.example.com")

	_, err := l.AcceptMessage(ctx, 12)
	require.NoError(t, err)
	last := conn.calls[len(conn.calls)-1]
	assert.Equal(t, "lists/foo.example.com/held/12", last.Path)
	assert.Equal(t, "accept", last.Data["action"])

	t.Run("快捷操作", func(t *testing.T) {
		shortcuts := map[string]func(context.Context, int) (*core.Response, error){
			"discard": l.DiscardMessage,
			"reject":  l.RejectMessage,
			"defer":   l.DeferMessage,
		}
		for action, fn := range shortcuts {
			_, err := fn(ctx, 13)
			require.NoError(t, err)
			last := conn.calls[len(conn.calls)-1]
			assert.Equal(t, "lists/foo.example.com/held/13", last.Path)
			assert.Equal(t, action, last.Data["action"])
		}
	})

	_, err = l.ModerateMessage(ctx, 12, ModerationAction("shred"))
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestSettingsSaveSkipsReadOnly(t *testing.T) {
	ctx := context.Background()
	conn := newFakeCaller()
	conn.on(http.MethodGet, "lists/foo.example.com/config", map[string]any{
		"self_link":     "lists/foo.example.com/config",
		"http_etag":     "\"abc\"",
		"description":   "old",
		"fqdn_listname": "foo@example.com",
		"list_name":     "foo",
		"volume":        float64(1),
	})

	s := NewList(conn, "lists/foo.example.com").Settings()
	require.NoError(t, s.Set(ctx, "description", "new"))
	require.NoError(t, s.Save(ctx))

	last := conn.calls[len(conn.calls)-1]
	assert.Equal(t, http.MethodPatch, last.Method)
	assert.Equal(t, "new", last.Data["description"])
	assert.NotContains(t, last.Data, "self_link")
	assert.NotContains(t, last.Data, "http_etag")
	assert.NotContains(t, last.Data, "fqdn_listname")
	assert.NotContains(t, last.Data, "volume")
	assert.NotContains(t, last.Data, "list_name")
}

func TestPreferencesSave(t *testing.T) {
	ctx := context.Background()
	conn := newFakeCaller()
	conn.on(http.MethodGet, "members/7/preferences", map[string]any{
		"self_link":            "members/7/preferences",
		"delivery_mode":        "regular",
		"receive_own_postings": true,
	})

	p := NewMember(conn, "members/7").Preferences()
	require.NoError(t, p.Set(ctx, "delivery_mode", "plaintext_digests"))
	require.NoError(t, p.Set(ctx, "receive_own_postings", nil))
	require.NoError(t, p.Save(ctx))

	last := conn.calls[len(conn.calls)-1]
	assert.Equal(t, http.MethodPut, last.Method)
	assert.Equal(t, map[string]any{"delivery_mode": "plaintext_digests"}, last.Data)
}

func TestUserSave(t *testing.T) {
	ctx := context.Background()
	conn := newFakeCaller()
	conn.on(http.MethodGet, "users/1", map[string]any{"display_name": "Old"})

	u := NewUser(conn, "users/1")
	u.SetDisplayName("New")
	u.SetPassword("s3cret-pass")
	require.NoError(t, u.Save(ctx))

	last := conn.calls[len(conn.calls)-1]
	assert.Equal(t, http.MethodPatch, last.Method)
	assert.Equal(t, "New", last.Data["display_name"])
	assert.Equal(t, "s3cret-pass", last.Data["cleartext_password"])
	assert.Zero(t, conn.count(http.MethodGet, "users/1"))
}

func TestUserSubscriptions(t *testing.T) {
	ctx := context.Background()
	conn := newFakeCaller()
	conn.on(http.MethodGet, "users/1/addresses", entries(
		map[string]any{"email": "b@example.com", "self_link": "addresses/b@example.com"},
		map[string]any{"email": "a@example.com", "self_link": "addresses/a@example.com"},
	))
	conn.on(http.MethodGet, "members/find?subscriber=a%40example.com", entries(
		map[string]any{"address": "a@example.com", "list_id": "foo.example.com", "self_link": "members/1"},
	))
	conn.on(http.MethodGet, "members/find?subscriber=b%40example.com", entries(
		map[string]any{"address": "b@example.com", "list_id": "foo.example.com", "self_link": "members/2"},
		map[string]any{"address": "b@example.com", "list_id": "bar.example.com", "self_link": "members/3"},
	))

	ids, err := NewUser(conn, "users/1").SubscriptionListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bar.example.com", "foo.example.com"}, ids)
}

func TestAddressVerify(t *testing.T) {
	ctx := context.Background()
	conn := newFakeCaller()
	conn.on(http.MethodGet, "addresses/a@example.com", map[string]any{"verified_on": "2024-01-01T00:00:00"})

	a := NewAddress(conn, "addresses/a@example.com")
	ok, err := a.Verified(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, a.Unverify(ctx))
	assert.Equal(t, 1, conn.count(http.MethodPost, "addresses/a@example.com/unverify"))
	assert.False(t, a.Loaded())
}

func TestPage(t *testing.T) {
	ctx := context.Background()
	conn := newFakeCaller()
	conn.on(http.MethodGet, "lists/foo.example.com/roster/member?count=2&page=1", map[string]any{
		"entries": []any{
			map[string]any{"address": "a@example.com", "self_link": "members/1"},
			map[string]any{"address": "b@example.com", "self_link": "members/2"},
		},
		"total_size": float64(3),
	})
	conn.on(http.MethodGet, "lists/foo.example.com/roster/member?count=2&page=2", map[string]any{
		"entries": []any{
			map[string]any{"address": "c@example.com", "self_link": "members/3"},
		},
		"total_size": float64(3),
	})

	p, err := NewList(conn, "lists/foo.example.com").MemberPage(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Total())
	assert.True(t, p.HasNext())
	assert.False(t, p.HasPrevious())
	assert.Len(t, p.Members(), 2)

	next, err := p.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, next.Number())
	assert.False(t, next.HasNext())
	_, err = next.Next(ctx)
	assert.ErrorIs(t, err, ErrNoPage)
}

func TestCollections(t *testing.T) {
	ctx := context.Background()
	conn := newFakeCaller()
	conn.on(http.MethodGet, "domains", entries(
		map[string]any{"url_host": "z.example.com", "self_link": "domains/z"},
		map[string]any{"url_host": "a.example.com", "self_link": "domains/a"},
	))

	domains, err := Domains(ctx, conn)
	require.NoError(t, err)
	require.Len(t, domains, 2)
	assert.Equal(t, "domains/a", domains[0].URL())

	_, err = Lists(ctx, conn, true)
	require.NoError(t, err)
	assert.Equal(t, 1, conn.count(http.MethodGet, "lists/find?advertised=true"))

	t.Run("列表携带成员数", func(t *testing.T) {
		conn.on(http.MethodGet, "lists", entries(
			map[string]any{"fqdn_listname": "foo@example.com", "self_link": "lists/foo.example.com", "member_count": float64(3)},
		))
		lists, err := Lists(ctx, conn, false)
		require.NoError(t, err)
		require.Len(t, lists, 1)
		n, err := lists[0].MemberCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Zero(t, conn.count(http.MethodGet, "lists/foo.example.com"))
	})

	t.Run("用户按链接排序", func(t *testing.T) {
		conn.on(http.MethodGet, "users", entries(
			map[string]any{"self_link": "users/2", "user_id": "2"},
			map[string]any{"self_link": "users/1", "user_id": "1"},
		))
		users, err := Users(ctx, conn)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "users/1", users[0].URL())
		assert.Equal(t, "users/2", users[1].URL())
	})

	t.Run("成员按地址排序", func(t *testing.T) {
		conn.on(http.MethodGet, "members", entries(
			map[string]any{"self_link": "members/9", "member_id": "9", "address": "zed@example.com"},
			map[string]any{"self_link": "members/4", "member_id": "4", "address": "anne@example.com"},
		))
		members, err := Members(ctx, conn)
		require.NoError(t, err)
		require.Len(t, members, 2)
		id, err := members[0].MemberID(ctx)
		require.NoError(t, err)
		assert.Equal(t, "4", id)
		assert.Equal(t, "members/9", members[1].URL())
	})
}
