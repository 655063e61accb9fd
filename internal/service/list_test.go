package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailmirror/backend/internal/adaptor"
	"mailmirror/backend/internal/domain"
	"mailmirror/backend/internal/storage/storagetest"
)

func TestListService_CreateList(t *testing.T) {
	ctx := context.Background()

	t.Run("派生地址使用列表名与邮件主机", func(t *testing.T) {
		env := newTestEnv(t)
		list := env.newList(t, "foo")

		assert.Equal(t, "foo@bar.com", list.FQDNListname)
		assert.Equal(t, "foo.bar.com", list.ListID)
		assert.Equal(t, "Foo", list.DisplayName)
		assert.Equal(t, "lists/foo.bar.com", list.PartialURL)

		settings, err := env.lists.Settings(list.ID)
		require.NoError(t, err)
		assert.Equal(t, "foo-join@bar.com", settings.JoinAddress)
		assert.Equal(t, "foo-bounces@bar.com", settings.BouncesAddress)
		assert.Equal(t, "foo-leave@bar.com", settings.LeaveAddress)
		assert.Equal(t, "foo-owner@bar.com", settings.OwnerAddress)
		assert.Equal(t, "foo-request@bar.com", settings.RequestAddress)
		assert.Equal(t, "noreply@bar.com", settings.NoReplyAddress)
		assert.Equal(t, "lists/foo.bar.com/config", settings.PartialURL)
	})

	t.Run("邮件域不存在", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.lists.CreateList(ctx, 7, CreateListInput{ListName: "foo"})
		assert.ErrorIs(t, err, ErrDomainNotFound)
	})

	t.Run("列表名非法", func(t *testing.T) {
		env := newTestEnv(t)
		d, err := env.domains.Create(ctx, CreateDomainInput{MailHost: "bar.com"})
		require.NoError(t, err)

		_, err = env.lists.CreateList(ctx, d.ID, CreateListInput{ListName: "foo bar"})
		assert.ErrorIs(t, err, domain.ErrInvalidListName)
	})

	t.Run("只列出公开列表", func(t *testing.T) {
		env := newTestEnv(t)
		public := env.newList(t, "public")
		hidden := false
		_, err := env.lists.CreateList(ctx, public.DomainID, CreateListInput{ListName: "private", Advertised: &hidden})
		require.NoError(t, err)

		all, err := env.lists.List(ctx, ListFilter{DomainID: public.DomainID})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		advertised, err := env.lists.List(ctx, ListFilter{DomainID: public.DomainID, OnlyAdvertised: true})
		require.NoError(t, err)
		require.Len(t, advertised, 1)
		assert.Equal(t, "public@bar.com", advertised[0].FQDNListname)
	})
}

func TestListService_Subscribe(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	list := env.newList(t, "foo")

	t.Run("新地址自动创建用户", func(t *testing.T) {
		m, err := env.lists.AddMember(ctx, list.ID, "Anne@Example.com")
		require.NoError(t, err)
		assert.Equal(t, "anne@example.com", m.Address)
		assert.Equal(t, domain.RoleMember, m.Role)
		assert.Equal(t, "members/1", m.PartialURL)

		email, err := env.users.GetEmail(ctx, "anne@example.com")
		require.NoError(t, err)
		assert.Equal(t, email.UserID, m.UserID)
		assert.Equal(t, "addresses/anne@example.com", email.PartialURL)
	})

	t.Run("同一角色不能重复订阅", func(t *testing.T) {
		_, err := env.lists.AddMember(ctx, list.ID, "anne@example.com")
		assert.ErrorIs(t, err, ErrAlreadySubscribed)
	})

	t.Run("同一地址可以持有多个角色", func(t *testing.T) {
		_, err := env.lists.AddOwner(ctx, list.ID, "anne@example.com")
		require.NoError(t, err)

		owners, err := env.lists.Owners(ctx, list.ID)
		require.NoError(t, err)
		require.Len(t, owners, 1)
		assert.Equal(t, "anne@example.com", owners[0].Address)

		all, err := env.lists.AllSubscribers(ctx, list.ID)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		isOwner, err := env.lists.IsOwner(ctx, list.ID, "anne@example.com")
		require.NoError(t, err)
		assert.True(t, isOwner)
		isMember, err := env.lists.IsMember(ctx, list.ID, "ANNE@example.com")
		require.NoError(t, err)
		assert.True(t, isMember)
	})

	t.Run("非法角色与地址", func(t *testing.T) {
		_, err := env.lists.Subscribe(ctx, list.ID, "anne@example.com", domain.Role("admin"))
		assert.ErrorIs(t, err, domain.ErrInvalidRole)

		_, err = env.lists.AddModerator(ctx, list.ID, "not-an-address")
		assert.ErrorIs(t, err, domain.ErrInvalidEmail)
	})

	t.Run("取消订阅同时删除远端成员资格", func(t *testing.T) {
		m, err := env.lists.AddModerator(ctx, list.ID, "mod@example.com")
		require.NoError(t, err)
		require.NotEmpty(t, m.PartialURL)

		require.NoError(t, env.lists.Unsubscribe(ctx, list.ID, "mod@example.com", domain.RoleModerator))
		assert.Equal(t, 1, env.srv.Count(http.MethodDelete, m.PartialURL))

		isModerator, err := env.lists.IsModerator(ctx, list.ID, "mod@example.com")
		require.NoError(t, err)
		assert.False(t, isModerator)

		err = env.lists.Unsubscribe(ctx, list.ID, "mod@example.com", domain.RoleModerator)
		assert.ErrorIs(t, err, ErrNotSubscribed)
	})
}

func TestListService_PullRoster(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.srv.AddList("ops@bar.com")
	env.srv.AddMember("ops.bar.com", "bob@bar.com", "owner")

	list, err := env.lists.GetByFQDN(ctx, "ops@bar.com")
	require.NoError(t, err)
	assert.Equal(t, "lists/ops.bar.com", list.PartialURL)

	owners, err := env.lists.Owners(ctx, list.ID)
	require.NoError(t, err)
	require.Len(t, owners, 1)
	assert.Equal(t, "bob@bar.com", owners[0].Address)
	assert.NotZero(t, owners[0].UserID)

	d, err := env.domains.Get(list.DomainID)
	require.NoError(t, err)
	assert.Equal(t, "bar.com", d.MailHost)

	_, err = env.lists.GetByFQDN(ctx, "missing@bar.com")
	assert.ErrorIs(t, err, ErrListNotFound)
}

func TestListService_RemoteSettings(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.srv.AddList("foo@bar.com")
	env.srv.SetConfig("foo.bar.com", map[string]any{
		"description":    "remote desc",
		"advertised":     false,
		"subject_prefix": "[remote] ",
	})

	list, err := env.lists.GetByFQDN(ctx, "foo@bar.com")
	require.NoError(t, err)

	t.Run("拉取列表时读取远端配置", func(t *testing.T) {
		settings, err := env.lists.Settings(list.ID)
		require.NoError(t, err)
		assert.Equal(t, "lists/foo.bar.com/config", settings.PartialURL)
		assert.Equal(t, "remote desc", settings.Description)
		assert.False(t, settings.Advertised)
		assert.Equal(t, "[remote] ", settings.SubjectPrefix)
	})

	t.Run("只推送修改的字段", func(t *testing.T) {
		env.srv.Reset()
		_, err := env.lists.UpdateSettings(ctx, list.ID, map[string]any{"reply_goes_to_list": "point_to_list"})
		require.NoError(t, err)

		var form map[string][]string
		for _, r := range env.srv.Requests() {
			if r.Method == http.MethodPatch && r.Path == "lists/foo.bar.com/config" {
				form = r.Form
			}
		}
		require.NotNil(t, form)
		assert.Len(t, form, 1)

		remote := env.srv.Config("foo.bar.com")
		assert.Equal(t, "point_to_list", remote["reply_goes_to_list"])
		assert.Equal(t, "remote desc", remote["description"])
		assert.Equal(t, false, remote["advertised"])
		assert.Equal(t, "[remote] ", remote["subject_prefix"])
	})

	t.Run("公开列表以远端配置为准", func(t *testing.T) {
		public, err := env.lists.List(ctx, ListFilter{OnlyAdvertised: true})
		require.NoError(t, err)
		assert.Empty(t, public)
	})
}

func TestListService_Settings(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	list := env.newList(t, "foo")

	t.Run("修改可写字段并推送", func(t *testing.T) {
		settings, err := env.lists.UpdateSettings(ctx, list.ID, map[string]any{
			"description":    "开发讨论",
			"subject_prefix": "[foo] ",
			"advertised":     false,
		})
		require.NoError(t, err)
		assert.Equal(t, "开发讨论", settings.Description)
		assert.False(t, settings.Advertised)

		remote := env.srv.Config("foo.bar.com")
		assert.Equal(t, "开发讨论", remote["description"])
		assert.Equal(t, false, remote["advertised"])
	})

	t.Run("只读字段整体拒绝", func(t *testing.T) {
		_, err := env.lists.UpdateSettings(ctx, list.ID, map[string]any{
			"description":  "不会写入",
			"join_address": "x@bar.com",
		})
		assert.ErrorIs(t, err, ErrReadOnlySetting)

		settings, err := env.lists.Settings(list.ID)
		require.NoError(t, err)
		assert.Equal(t, "开发讨论", settings.Description)
		assert.Equal(t, "foo-join@bar.com", settings.JoinAddress)
	})

	t.Run("未知字段", func(t *testing.T) {
		_, err := env.lists.UpdateSettings(ctx, list.ID, map[string]any{"no_such_option": 1})
		assert.ErrorIs(t, err, domain.ErrUnknownField)
	})
}

func TestListService_Moderation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	list := env.newList(t, "foo")
	env.srv.AddHeld("foo.bar.com", 7, "spam@evil.org", "buy now")

	t.Run("读取并处理待审消息", func(t *testing.T) {
		held, err := env.lists.Held(ctx, list.ID)
		require.NoError(t, err)
		require.Len(t, held, 1)
		assert.Equal(t, 7, held[0].RequestID)
		assert.Equal(t, "spam@evil.org", held[0].Sender)

		require.NoError(t, env.lists.ModerateMessage(ctx, list.ID, 7, adaptor.ActionDiscard))

		held, err = env.lists.Held(ctx, list.ID)
		require.NoError(t, err)
		assert.Empty(t, held)
	})

	t.Run("未知操作", func(t *testing.T) {
		err := env.lists.ModerateMessage(ctx, list.ID, 7, adaptor.ModerationAction("approve"))
		assert.ErrorIs(t, err, adaptor.ErrUnknownAction)
	})

	t.Run("订阅请求为空", func(t *testing.T) {
		requests, err := env.lists.Requests(ctx, list.ID)
		require.NoError(t, err)
		assert.Empty(t, requests)
	})

	t.Run("未绑定的列表不能访问远端", func(t *testing.T) {
		_, local, _, _ := storagetest.Seed(t, env.store)
		_, err := env.lists.Held(ctx, local.ID)
		assert.ErrorIs(t, err, ErrNotSynced)
	})
}

func TestListService_Delete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	list := env.newList(t, "foo")
	_, err := env.lists.AddMember(ctx, list.ID, "anne@example.com")
	require.NoError(t, err)

	require.NoError(t, env.lists.Delete(ctx, list.ID))
	assert.Equal(t, 1, env.srv.Count(http.MethodDelete, "lists/foo.bar.com"))

	_, err = env.lists.Get(list.ID)
	assert.ErrorIs(t, err, ErrListNotFound)
	rows, err := env.store.FilterMemberships(domain.Filter{"mailing_list_id": list.ID})
	require.NoError(t, err)
	assert.Empty(t, rows)
}
