package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailmirror/backend/internal/domain"
	"mailmirror/backend/internal/storage"
	"mailmirror/backend/internal/storage/storagetest"
)

func TestMemoryStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return NewStore() })
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewStore()
	d := &domain.Domain{MailHost: "example.com"}
	require.NoError(t, store.CreateDomain(d))

	t.Run("修改入参不影响已保存记录", func(t *testing.T) {
		d.Description = "local only"
		got, err := store.GetDomain(d.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Description)
	})

	t.Run("修改返回值不影响已保存记录", func(t *testing.T) {
		got, err := store.GetDomain(d.ID)
		require.NoError(t, err)
		got.MailHost = "changed.org"

		again, err := store.GetDomainByMailHost("example.com")
		require.NoError(t, err)
		assert.Equal(t, d.ID, again.ID)
	})
}

func TestMemoryStore_IDsIncrease(t *testing.T) {
	store := NewStore()
	first := &domain.Domain{MailHost: "a.org"}
	second := &domain.Domain{MailHost: "b.org"}
	require.NoError(t, store.CreateDomain(first))
	require.NoError(t, store.CreateDomain(second))
	require.NoError(t, store.DeleteDomain(first.ID))

	third := &domain.Domain{MailHost: "c.org"}
	require.NoError(t, store.CreateDomain(third))
	assert.Greater(t, third.ID, second.ID)

	rows, err := store.FilterDomains(domain.Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b.org", rows[0].MailHost)
	assert.Equal(t, "c.org", rows[1].MailHost)
	assert.NoError(t, store.Health())
}
