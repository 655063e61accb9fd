package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMailingList(t *testing.T) {
	d := &Domain{ID: 7, MailHost: "bar.com"}

	t.Run("派生 fqdn 与 list_id", func(t *testing.T) {
		list, err := NewMailingList(d, "Foo", "")
		require.NoError(t, err)
		assert.Equal(t, "foo", list.ListName)
		assert.Equal(t, "foo@bar.com", list.FQDNListname)
		assert.Equal(t, "foo.bar.com", list.ListID)
		assert.Equal(t, "Foo", list.DisplayName)
		assert.Equal(t, uint64(7), list.DomainID)
		assert.NoError(t, list.Validate())
	})

	t.Run("缺少列表名", func(t *testing.T) {
		_, err := NewMailingList(d, "  ", "")
		assert.ErrorIs(t, err, ErrMissingListName)
	})

	t.Run("fqdn 不一致", func(t *testing.T) {
		list := &MailingList{ListName: "foo", MailHost: "bar.com", FQDNListname: "foo@baz.com"}
		assert.ErrorIs(t, list.Validate(), ErrFQDNMismatch)
	})
}

func TestNewListSettingsDerivedDefaults(t *testing.T) {
	list, err := NewMailingList(&Domain{ID: 1, MailHost: "bar.com"}, "foo", "Foo")
	require.NoError(t, err)

	s := NewListSettings(list)
	assert.Equal(t, "foo-join@bar.com", s.JoinAddress)
	assert.Equal(t, "foo-bounces@bar.com", s.BouncesAddress)
	assert.Equal(t, "foo-leave@bar.com", s.LeaveAddress)
	assert.Equal(t, "foo-owner@bar.com", s.OwnerAddress)
	assert.Equal(t, "foo-request@bar.com", s.RequestAddress)
	assert.Equal(t, "noreply@bar.com", s.NoReplyAddress)
	assert.Equal(t, "foo@bar.com", s.FQDNListname)
	assert.Equal(t, "bar.com", s.MailHost)
	assert.Equal(t, "Foo", s.DisplayName)
	assert.Equal(t, "public", s.ArchivePolicy)
	assert.Equal(t, "defer", s.DefaultMemberAction)
	assert.Equal(t, "hold", s.DefaultNonmemberAction)
	assert.Equal(t, 30.0, s.DigestSizeThreshold)
	assert.True(t, s.AdminImmedNotify)
	assert.False(t, s.AnonymousList)

	t.Run("已设置的字段不被覆盖", func(t *testing.T) {
		s := &ListSettings{JoinAddress: "custom@bar.com"}
		s.ApplyDerivedDefaults(list)
		assert.Equal(t, "custom@bar.com", s.JoinAddress)
		assert.Equal(t, "foo-leave@bar.com", s.LeaveAddress)
	})
}

func TestListSettingsFieldTable(t *testing.T) {
	s := &ListSettings{}
	for _, col := range SettingsColumns() {
		_, ok := s.Field(col)
		assert.True(t, ok, col)
	}
	assert.Len(t, FieldTable(KindSettings), len(SettingsColumns()))

	require.NoError(t, s.SetField("digest_size_threshold", 12.5))
	require.NoError(t, s.SetField("advertised", "false"))
	require.NoError(t, s.SetField("last_post_at", "2015-03-19T17:30:07.613052"))
	require.NoError(t, s.SetField("volume", float64(3)))
	assert.Equal(t, 12.5, s.DigestSizeThreshold)
	assert.False(t, s.Advertised)
	require.NotNil(t, s.LastPostAt)
	assert.Equal(t, 2015, s.LastPostAt.Year())
	assert.Equal(t, 3, s.Volume)

	assert.ErrorIs(t, s.SetField("nope", 1), ErrUnknownField)
}

func TestReassignPreferred(t *testing.T) {
	a := &Email{ID: 1, Address: "a@example.com"}
	b := &Email{ID: 2, Address: "b@example.com"}
	c := &Email{ID: 3, Address: "c@example.com"}
	id := func(v uint64) *uint64 { return &v }

	t.Run("唯一邮箱不可删除", func(t *testing.T) {
		_, err := ReassignPreferred([]*Email{a}, id(1), 1)
		assert.ErrorIs(t, err, ErrLastEmail)
	})

	t.Run("删除首选邮箱时改为其余邮箱", func(t *testing.T) {
		next, err := ReassignPreferred([]*Email{c, a, b}, id(1), 1)
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, uint64(2), *next)
	})

	t.Run("删除非首选邮箱时保持不变", func(t *testing.T) {
		next, err := ReassignPreferred([]*Email{a, b}, id(1), 2)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), *next)
	})
}

func TestFilter(t *testing.T) {
	m := &Membership{ID: 4, MailingListID: 9, Address: "a@example.com", Role: RoleMember}

	assert.True(t, Filter{"mailing_list_id": 9, "role": "member"}.Matches(m))
	assert.True(t, Filter{"role": RoleMember}.Matches(m))
	assert.False(t, Filter{"role": "owner"}.Matches(m))
	assert.False(t, Filter{"unknown": 1}.Matches(m))

	u := &User{ID: 1}
	assert.True(t, Filter{"preferred_email_id": nil}.Matches(u))

	assert.Equal(t, "mailing_list_id=9&role=member", Filter{"role": RoleMember, "mailing_list_id": uint64(9)}.Key())
	assert.Equal(t, Filter{"role": "member"}.Key(), Filter{"role": RoleMember}.Key())
}

func TestPreferencesMapping(t *testing.T) {
	p := NewPreferences(&Membership{ID: 3})
	assert.Equal(t, KindMembership, p.OwnerKind)
	assert.Equal(t, uint64(3), p.OwnerID)
	assert.Empty(t, p.Values())

	require.NoError(t, p.Set("delivery_mode", "plaintext_digests"))
	require.NoError(t, p.Set("receive_own_postings", false))
	v, ok := p.Get("receive_own_postings")
	assert.True(t, ok)
	assert.Equal(t, false, v)
	assert.Equal(t, map[string]any{
		"delivery_mode":        "plaintext_digests",
		"receive_own_postings": false,
	}, p.Values())

	require.NoError(t, p.Set("delivery_mode", nil))
	assert.Nil(t, p.DeliveryMode)
	assert.ErrorIs(t, p.Set("color", "blue"), ErrUnknownField)
}

func TestBind(t *testing.T) {
	d := &Domain{ID: 1}
	require.NoError(t, Bind(d, "domains/bar.com"))
	require.NoError(t, Bind(d, "domains/bar.com"))
	assert.ErrorIs(t, Bind(d, "domains/other.com"), ErrPeerAlreadyBound)
	assert.Equal(t, "domains/bar.com", d.PeerPath())
}

func TestSetFieldCoercion(t *testing.T) {
	u := &User{}
	require.NoError(t, u.SetField("created_on", "2015-03-19T17:30:07"))
	assert.Equal(t, time.Date(2015, 3, 19, 17, 30, 7, 0, time.UTC), u.CreatedOn)
	require.NoError(t, u.SetField("display_name", ""))
	assert.Nil(t, u.DisplayName)

	e := &Email{}
	require.NoError(t, e.SetField("user_id", float64(12)))
	assert.Equal(t, uint64(12), e.UserID)

	m := &Membership{}
	assert.ErrorIs(t, m.SetField("role", "admin"), ErrInvalidRole)
}
