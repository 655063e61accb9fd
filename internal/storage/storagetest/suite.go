// Package storagetest 为各个 storage.Store 实现提供同一组行为测试。
package storagetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailmirror/backend/internal/domain"
	"mailmirror/backend/internal/storage"
)

// Run 对 newStore 创建的存储执行全部行为测试，每个子测试使用新实例
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("邮件域增删改查", func(t *testing.T) { testDomains(t, newStore(t)) })
	t.Run("列表与配置同时创建", func(t *testing.T) { testLists(t, newStore(t)) })
	t.Run("删除域级联删除列表", func(t *testing.T) { testDomainCascade(t, newStore(t)) })
	t.Run("用户与偏好", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("首选邮箱重新分配", func(t *testing.T) { testPreferredEmail(t, newStore(t)) })
	t.Run("用户与首选邮箱同时创建", func(t *testing.T) { testUserWithEmail(t, newStore(t)) })
	t.Run("成员资格唯一", func(t *testing.T) { testMemberships(t, newStore(t)) })
	t.Run("删除用户级联", func(t *testing.T) { testUserCascade(t, newStore(t)) })
	t.Run("按远端路径查找", func(t *testing.T) { testRecords(t, newStore(t)) })
}

// Seed 创建一个域、一个列表和一个带邮箱的用户
func Seed(t *testing.T, store storage.Store) (*domain.Domain, *domain.MailingList, *domain.User, *domain.Email) {
	t.Helper()

	d := &domain.Domain{MailHost: "example.com", BaseURL: "http://example.com"}
	require.NoError(t, store.CreateDomain(d))

	list, err := domain.NewMailingList(d, "dev", "")
	require.NoError(t, err)
	require.NoError(t, store.CreateMailingList(list, domain.NewListSettings(list)))

	name := "Anne"
	user := &domain.User{DisplayName: &name}
	require.NoError(t, store.CreateUser(user, nil))

	email := &domain.Email{UserID: user.ID, Address: "anne@example.com"}
	require.NoError(t, store.CreateEmail(email, nil))
	return d, list, user, email
}

func testDomains(t *testing.T, store storage.Store) {
	d := &domain.Domain{MailHost: "example.com", Description: "demo"}
	require.NoError(t, store.CreateDomain(d))
	assert.NotZero(t, d.ID)
	assert.False(t, d.CreatedAt.IsZero())

	got, err := store.GetDomainByMailHost("example.com")
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, "demo", got.Description)

	err = store.CreateDomain(&domain.Domain{MailHost: "example.com"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	got.Description = "changed"
	got.PartialURL = "domains/example.com"
	require.NoError(t, store.UpdateDomain(got))

	rows, err := store.FilterDomains(domain.Filter{"partial_url": "domains/example.com"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "changed", rows[0].Description)

	require.NoError(t, store.DeleteDomain(d.ID))
	_, err = store.GetDomain(d.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, store.DeleteDomain(d.ID), storage.ErrNotFound)
}

func testLists(t *testing.T, store storage.Store) {
	d := &domain.Domain{MailHost: "example.com"}
	require.NoError(t, store.CreateDomain(d))

	list, err := domain.NewMailingList(d, "dev", "")
	require.NoError(t, err)
	settings := domain.NewListSettings(list)
	require.NoError(t, store.CreateMailingList(list, settings))
	assert.NotZero(t, list.ID)
	assert.Equal(t, list.ID, settings.MailingListID)

	got, err := store.GetMailingListByFQDN("dev@example.com")
	require.NoError(t, err)
	assert.Equal(t, "dev.example.com", got.ListID)

	cfg, err := store.GetListSettings(list.ID)
	require.NoError(t, err)
	assert.Equal(t, "dev-join@example.com", cfg.JoinAddress)
	assert.True(t, cfg.Advertised)

	cfg.Advertised = false
	cfg.SubjectPrefix = "[dev] "
	require.NoError(t, store.UpdateListSettings(cfg))

	byID, err := store.GetListSettingsByID(cfg.ID)
	require.NoError(t, err)
	assert.False(t, byID.Advertised)
	assert.Equal(t, "[dev] ", byID.SubjectPrefix)

	again, err := domain.NewMailingList(d, "dev", "")
	require.NoError(t, err)
	err = store.CreateMailingList(again, domain.NewListSettings(again))
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	got.FQDNListname = "other@example.com"
	assert.ErrorIs(t, store.UpdateMailingList(got), domain.ErrFQDNMismatch)
}

func testDomainCascade(t *testing.T, store storage.Store) {
	d, list, user, email := Seed(t, store)
	m := &domain.Membership{UserID: user.ID, MailingListID: list.ID, Address: email.Address, Role: domain.RoleMember}
	require.NoError(t, store.CreateMembership(m, nil))

	require.NoError(t, store.DeleteDomain(d.ID))

	_, err := store.GetMailingList(list.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetListSettings(list.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetMembership(m.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetPreferences(domain.KindMembership, m.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.GetUser(user.ID)
	assert.NoError(t, err)
}

func testUsers(t *testing.T, store storage.Store) {
	name := "Bart"
	user := &domain.User{DisplayName: &name}
	require.NoError(t, store.CreateUser(user, nil))
	assert.False(t, user.CreatedOn.IsZero())

	prefs, err := store.GetPreferences(domain.KindUser, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, prefs.OwnerID)
	assert.Empty(t, prefs.Values())

	require.NoError(t, prefs.Set("delivery_mode", "plaintext_digests"))
	require.NoError(t, store.UpdatePreferences(prefs))
	prefs, err = store.GetPreferencesByID(prefs.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"delivery_mode": "plaintext_digests"}, prefs.Values())

	same := "Bart"
	err = store.CreateUser(&domain.User{DisplayName: &same}, nil)
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	// 未设置显示名的用户可以有多个
	require.NoError(t, store.CreateUser(&domain.User{}, nil))
	require.NoError(t, store.CreateUser(&domain.User{}, nil))
}

func testPreferredEmail(t *testing.T, store storage.Store) {
	_, _, user, first := Seed(t, store)
	second := &domain.Email{UserID: user.ID, Address: "Anne.Other@Example.com"}
	require.NoError(t, store.CreateEmail(second, nil))
	assert.Equal(t, "anne.other@example.com", second.Address)

	got, err := store.GetEmailByAddress("ANNE.OTHER@example.com")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	user.PreferredEmailID = &second.ID
	require.NoError(t, store.UpdateUser(user))

	require.NoError(t, store.DeleteEmail(second.ID))
	user, err = store.GetUser(user.ID)
	require.NoError(t, err)
	require.NotNil(t, user.PreferredEmailID)
	assert.Equal(t, first.ID, *user.PreferredEmailID)

	assert.ErrorIs(t, store.DeleteEmail(first.ID), domain.ErrLastEmail)

	other := &domain.User{}
	require.NoError(t, store.CreateUser(other, nil))
	other.PreferredEmailID = &first.ID
	assert.ErrorIs(t, store.UpdateUser(other), domain.ErrPreferredNotOwned)

	err = store.CreateEmail(&domain.Email{UserID: other.ID, Address: "anne@example.com"}, nil)
	assert.ErrorIs(t, err, storage.ErrDuplicate)
}

func testUserWithEmail(t *testing.T, store storage.Store) {
	name := "Cleo"
	user := &domain.User{DisplayName: &name}
	email := &domain.Email{Address: "Cleo@Example.com"}
	require.NoError(t, store.CreateUserWithEmail(user, email))

	assert.Equal(t, user.ID, email.UserID)
	assert.Equal(t, "cleo@example.com", email.Address)
	stored, err := store.GetUser(user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PreferredEmailID)
	assert.Equal(t, email.ID, *stored.PreferredEmailID)

	_, err = store.GetPreferences(domain.KindUser, user.ID)
	require.NoError(t, err)
	_, err = store.GetPreferences(domain.KindEmail, email.ID)
	require.NoError(t, err)

	// 地址冲突时用户也不会留下
	err = store.CreateUserWithEmail(&domain.User{}, &domain.Email{Address: "cleo@example.com"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)
	users, err := store.FilterUsers(nil)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func testMemberships(t *testing.T, store storage.Store) {
	_, list, user, email := Seed(t, store)

	member := &domain.Membership{UserID: user.ID, MailingListID: list.ID, Address: email.Address, Role: domain.RoleMember}
	require.NoError(t, store.CreateMembership(member, nil))

	dup := &domain.Membership{UserID: user.ID, MailingListID: list.ID, Address: email.Address, Role: domain.RoleMember}
	assert.ErrorIs(t, store.CreateMembership(dup, nil), storage.ErrDuplicate)

	owner := &domain.Membership{UserID: user.ID, MailingListID: list.ID, Address: email.Address, Role: domain.RoleOwner}
	require.NoError(t, store.CreateMembership(owner, nil))

	bad := &domain.Membership{UserID: user.ID, MailingListID: list.ID, Address: email.Address, Role: "admin"}
	assert.ErrorIs(t, store.CreateMembership(bad, nil), domain.ErrInvalidRole)

	rows, err := store.FilterMemberships(domain.Filter{"mailing_list_id": list.ID})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, member.ID, rows[0].ID)
	assert.Equal(t, owner.ID, rows[1].ID)

	rows, err = store.FilterMemberships(domain.Filter{"role": "owner"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	require.NoError(t, store.DeleteMembership(owner.ID))
	_, err = store.GetPreferences(domain.KindMembership, owner.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testUserCascade(t *testing.T, store storage.Store) {
	_, list, user, email := Seed(t, store)
	user.PreferredEmailID = &email.ID
	require.NoError(t, store.UpdateUser(user))

	m := &domain.Membership{UserID: user.ID, MailingListID: list.ID, Address: email.Address, Role: domain.RoleMember}
	require.NoError(t, store.CreateMembership(m, nil))

	require.NoError(t, store.DeleteUser(user.ID))

	_, err := store.GetEmail(email.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetMembership(m.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetPreferences(domain.KindUser, user.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetPreferences(domain.KindEmail, email.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetMailingList(list.ID)
	assert.NoError(t, err)
}

func testRecords(t *testing.T, store storage.Store) {
	records := storage.NewRecords(store)

	d := &domain.Domain{MailHost: "example.com", PartialURL: "domains/example.com"}
	require.NoError(t, records.Materialize(d))

	list, err := domain.NewMailingList(d, "dev", "")
	require.NoError(t, err)
	list.PartialURL = "lists/dev.example.com"
	require.NoError(t, records.Materialize(list))

	cfg, err := store.GetListSettings(list.ID)
	require.NoError(t, err)
	assert.Equal(t, "lists/dev.example.com/config", cfg.PartialURL)

	rec, err := records.FindByPeer(domain.KindMailingList, "lists/dev.example.com")
	require.NoError(t, err)
	assert.Equal(t, list.ID, rec.PK())

	_, err = records.FindByPeer(domain.KindDomain, "domains/missing.org")
	assert.True(t, storage.IsNotFound(err))

	got, err := records.Get(domain.KindSettings, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.KindSettings, got.Kind())

	_, err = records.Get(domain.KindUser, 42)
	assert.True(t, storage.IsNotFound(err))

	rec, err = records.FindOne(domain.KindDomain, "mail_host", "example.com")
	require.NoError(t, err)
	require.NoError(t, rec.SetField("description", "saved"))
	require.NoError(t, records.Save(rec))
	d2, err := store.GetDomain(d.ID)
	require.NoError(t, err)
	assert.Equal(t, "saved", d2.Description)

	_, err = records.Find(domain.KindPreferences, domain.Filter{})
	assert.ErrorIs(t, err, storage.ErrNotMaterializable)
}
