package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailmirror/backend/internal/domain"
	"mailmirror/backend/internal/storage/memory"
	"mailmirror/backend/internal/storage/storagetest"
)

func TestAccessPolicy(t *testing.T) {
	store := memory.NewStore()
	_, list, user, email := storagetest.Seed(t, store)
	require.NoError(t, store.CreateMembership(&domain.Membership{
		UserID:        user.ID,
		MailingListID: list.ID,
		Address:       email.Address,
		Role:          domain.RoleModerator,
	}, nil))

	other, err := domain.NewMailingList(&domain.Domain{ID: list.DomainID, MailHost: list.MailHost}, "other", "")
	require.NoError(t, err)
	require.NoError(t, store.CreateMailingList(other, domain.NewListSettings(other)))

	policy := NewAccessPolicy(store)

	t.Run("按角色判断", func(t *testing.T) {
		ok, err := policy.HasRole(user, domain.RoleModerator)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = policy.HasRole(user, domain.RoleOwner)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = policy.HasRole(nil, domain.RoleModerator)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("列表管理人员", func(t *testing.T) {
		ok, err := policy.IsListStaff(user, list.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = policy.IsListStaff(user, other.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("只读方法总是放行", func(t *testing.T) {
		for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
			ok, err := policy.Allow(method, nil, domain.RoleOwner)
			require.NoError(t, err)
			assert.True(t, ok, method)
		}
	})

	t.Run("写方法需要角色或超级用户", func(t *testing.T) {
		ok, err := policy.Allow(http.MethodPost, nil, domain.RoleOwner)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = policy.Allow(http.MethodPatch, user, domain.RoleOwner)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = policy.Allow(http.MethodPatch, user, domain.RoleOwner, domain.RoleModerator)
		require.NoError(t, err)
		assert.True(t, ok)

		admin := &domain.User{ID: 999, IsSuperuser: true}
		ok, err = policy.Allow(http.MethodDelete, admin)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestAccessPolicy_PulledStaff(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.srv.AddList("ops@bar.com")
	env.srv.AddMember("ops.bar.com", "bob@bar.com", "owner")

	list, err := env.lists.GetByFQDN(ctx, "ops@bar.com")
	require.NoError(t, err)
	owners, err := env.lists.Owners(ctx, list.ID)
	require.NoError(t, err)
	require.Len(t, owners, 1)

	// 拉取用户的邮箱之后才能按地址匹配
	emails, err := env.users.Emails(ctx, owners[0].UserID)
	require.NoError(t, err)
	require.Len(t, emails, 1)

	user, err := env.users.Get(owners[0].UserID)
	require.NoError(t, err)
	ok, err := NewAccessPolicy(env.store).IsListStaff(user, list.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}
