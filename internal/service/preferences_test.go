package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailmirror/backend/internal/adaptor"
	"mailmirror/backend/internal/domain"
)

func TestPreferencesService(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	list := env.newList(t, "foo")
	m, err := env.lists.AddMember(ctx, list.ID, "anne@example.com")
	require.NoError(t, err)
	owner := Owner{Kind: domain.KindMembership, ID: m.ID}

	t.Run("整体写入后远端一致", func(t *testing.T) {
		prefs, err := env.prefs.Replace(ctx, owner, map[string]any{
			"delivery_mode":     "plaintext_digests",
			"receive_list_copy": true,
		})
		require.NoError(t, err)
		assert.Equal(t, "members/1/preferences", prefs.PartialURL)

		remote := env.srv.Preferences("members/1")
		assert.Equal(t, "plaintext_digests", remote["delivery_mode"])
		assert.Equal(t, true, remote["receive_list_copy"])

		// 经适配器读回
		mode, err := adaptor.NewPreferences(env.conn, prefs.PartialURL).Get(ctx, "delivery_mode")
		require.NoError(t, err)
		assert.Equal(t, "plaintext_digests", mode)
	})

	t.Run("局部修改保留其余键", func(t *testing.T) {
		prefs, err := env.prefs.Patch(ctx, owner, map[string]any{
			"hide_address":  true,
			"delivery_mode": nil,
		})
		require.NoError(t, err)
		require.NotNil(t, prefs.DeliveryMode)
		assert.Equal(t, "plaintext_digests", *prefs.DeliveryMode)

		remote := env.srv.Preferences("members/1")
		assert.Equal(t, "plaintext_digests", remote["delivery_mode"])
		assert.Equal(t, true, remote["hide_address"])
		assert.Equal(t, true, remote["receive_list_copy"])
	})

	t.Run("整体写入时 nil 清除该键", func(t *testing.T) {
		prefs, err := env.prefs.Replace(ctx, owner, map[string]any{"delivery_mode": nil})
		require.NoError(t, err)
		assert.Nil(t, prefs.DeliveryMode)
		assert.NotNil(t, prefs.HideAddress)

		remote := env.srv.Preferences("members/1")
		assert.NotContains(t, remote, "delivery_mode")
		assert.Equal(t, true, remote["hide_address"])
	})

	t.Run("未知键", func(t *testing.T) {
		_, err := env.prefs.Patch(ctx, owner, map[string]any{"favourite_colour": "blue"})
		assert.ErrorIs(t, err, domain.ErrUnknownField)
	})

	t.Run("非法归属", func(t *testing.T) {
		_, err := env.prefs.Get(Owner{Kind: domain.KindDomain, ID: list.DomainID})
		assert.ErrorIs(t, err, ErrInvalidOwner)
	})
}
