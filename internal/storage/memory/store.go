package memory

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"mailmirror/backend/internal/domain"
	"mailmirror/backend/internal/storage"
)

// Store 使用内存保存本地镜像，主要用于开发验证与测试。
type Store struct {
	mu          sync.RWMutex
	domains     *table[domain.Domain, *domain.Domain]
	lists       *table[domain.MailingList, *domain.MailingList]
	settings    *table[domain.ListSettings, *domain.ListSettings]
	users       *table[domain.User, *domain.User]
	emails      *table[domain.Email, *domain.Email]
	memberships *table[domain.Membership, *domain.Membership]
	prefs       *table[domain.Preferences, *domain.Preferences]
}

var _ storage.Store = (*Store)(nil)

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		domains:     newTable[domain.Domain](),
		lists:       newTable[domain.MailingList](),
		settings:    newTable[domain.ListSettings](),
		users:       newTable[domain.User](),
		emails:      newTable[domain.Email](),
		memberships: newTable[domain.Membership](),
		prefs:       newTable[domain.Preferences](),
	}
}

func notFound(kind domain.Kind, key any) error {
	return fmt.Errorf("%w: %s %v", storage.ErrNotFound, kind, key)
}

func duplicate(kind domain.Kind, key any) error {
	return fmt.Errorf("%w: %s %v", storage.ErrDuplicate, kind, key)
}

// ---- 邮件域 ----

// CreateDomain 保存邮件域，mail_host 唯一。
func (s *Store) CreateDomain(d *domain.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.domains.exists(0, func(x *domain.Domain) bool { return x.MailHost == d.MailHost }) {
		return duplicate(domain.KindDomain, d.MailHost)
	}
	s.domains.insert(d)
	return nil
}

// GetDomain 根据 ID 获取邮件域。
func (s *Store) GetDomain(id uint64) (*domain.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.domains.get(id)
	if !ok {
		return nil, notFound(domain.KindDomain, id)
	}
	return d, nil
}

// GetDomainByMailHost 根据 mail_host 获取邮件域。
func (s *Store) GetDomainByMailHost(mailHost string) (*domain.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.domains.first(func(x *domain.Domain) bool { return x.MailHost == mailHost })
	if !ok {
		return nil, notFound(domain.KindDomain, mailHost)
	}
	return d, nil
}

func (s *Store) FilterDomains(f domain.Filter) ([]*domain.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.domains.filter(f), nil
}

func (s *Store) UpdateDomain(d *domain.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.domains.exists(d.ID, func(x *domain.Domain) bool { return x.MailHost == d.MailHost }) {
		return duplicate(domain.KindDomain, d.MailHost)
	}
	if !s.domains.put(d) {
		return notFound(domain.KindDomain, d.ID)
	}
	return nil
}

// DeleteDomain 删除邮件域及其全部列表。
func (s *Store) DeleteDomain(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.domains.get(id); !ok {
		return notFound(domain.KindDomain, id)
	}
	for _, l := range s.lists.filter(domain.Filter{"domain_id": id}) {
		s.deleteListLocked(l.ID)
	}
	s.domains.remove(id)
	return nil
}

// ---- 邮件列表 ----

// CreateMailingList 保存列表及其配置。
func (s *Store) CreateMailingList(list *domain.MailingList, settings *domain.ListSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := list.Validate(); err != nil {
		return err
	}
	if s.lists.exists(0, func(x *domain.MailingList) bool { return x.FQDNListname == list.FQDNListname }) {
		return duplicate(domain.KindMailingList, list.FQDNListname)
	}
	s.lists.insert(list)
	settings.MailingListID = list.ID
	s.settings.insert(settings)
	return nil
}

func (s *Store) GetMailingList(id uint64) (*domain.MailingList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lists.get(id)
	if !ok {
		return nil, notFound(domain.KindMailingList, id)
	}
	return l, nil
}

func (s *Store) GetMailingListByFQDN(fqdn string) (*domain.MailingList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lists.first(func(x *domain.MailingList) bool { return x.FQDNListname == fqdn })
	if !ok {
		return nil, notFound(domain.KindMailingList, fqdn)
	}
	return l, nil
}

func (s *Store) FilterMailingLists(f domain.Filter) ([]*domain.MailingList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lists.filter(f), nil
}

func (s *Store) UpdateMailingList(list *domain.MailingList) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := list.Validate(); err != nil {
		return err
	}
	if s.lists.exists(list.ID, func(x *domain.MailingList) bool { return x.FQDNListname == list.FQDNListname }) {
		return duplicate(domain.KindMailingList, list.FQDNListname)
	}
	if !s.lists.put(list) {
		return notFound(domain.KindMailingList, list.ID)
	}
	return nil
}

// DeleteMailingList 删除列表、配置与成员资格。
func (s *Store) DeleteMailingList(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lists.get(id); !ok {
		return notFound(domain.KindMailingList, id)
	}
	s.deleteListLocked(id)
	return nil
}

func (s *Store) deleteListLocked(id uint64) {
	for _, m := range s.memberships.filter(domain.Filter{"mailing_list_id": id}) {
		s.deleteMembershipLocked(m.ID)
	}
	if cfg, ok := s.settings.first(func(x *domain.ListSettings) bool { return x.MailingListID == id }); ok {
		s.settings.remove(cfg.ID)
	}
	s.lists.remove(id)
}

// GetListSettings 获取列表配置。
func (s *Store) GetListSettings(listID uint64) (*domain.ListSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.settings.first(func(x *domain.ListSettings) bool { return x.MailingListID == listID })
	if !ok {
		return nil, notFound(domain.KindSettings, listID)
	}
	return cfg, nil
}

func (s *Store) GetListSettingsByID(id uint64) (*domain.ListSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.settings.get(id)
	if !ok {
		return nil, notFound(domain.KindSettings, id)
	}
	return cfg, nil
}

func (s *Store) UpdateListSettings(settings *domain.ListSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.settings.put(settings) {
		return notFound(domain.KindSettings, settings.ID)
	}
	return nil
}

// ---- 用户 ----

// CreateUser 保存用户及其偏好，display_name 设置时唯一。
func (s *Store) CreateUser(user *domain.User, prefs *domain.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUserLocked(user); err != nil {
		return err
	}
	if user.CreatedOn.IsZero() {
		user.CreatedOn = time.Now().UTC()
	}
	s.users.insert(user)
	s.insertPrefsLocked(user, prefs)
	return nil
}

// CreateUserWithEmail 写入用户及其首选邮箱，地址已存在时不写入任何记录
func (s *Store) CreateUserWithEmail(user *domain.User, email *domain.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.PreferredEmailID = nil
	if err := s.checkUserLocked(user); err != nil {
		return err
	}
	email.Address = domain.NormalizeAddress(email.Address)
	if s.emails.exists(0, func(x *domain.Email) bool { return x.Address == email.Address }) {
		return duplicate(domain.KindEmail, email.Address)
	}
	if user.CreatedOn.IsZero() {
		user.CreatedOn = time.Now().UTC()
	}

	s.users.insert(user)
	s.insertPrefsLocked(user, nil)
	email.UserID = user.ID
	s.emails.insert(email)
	s.insertPrefsLocked(email, nil)

	preferred := email.ID
	user.PreferredEmailID = &preferred
	s.users.put(user)
	return nil
}

func (s *Store) checkUserLocked(user *domain.User) error {
	if user.DisplayName != nil && s.users.exists(user.ID, func(x *domain.User) bool {
		return x.DisplayName != nil && *x.DisplayName == *user.DisplayName
	}) {
		return duplicate(domain.KindUser, *user.DisplayName)
	}
	if user.PreferredEmailID != nil && user.ID != 0 {
		e, ok := s.emails.get(*user.PreferredEmailID)
		if !ok || e.UserID != user.ID {
			return fmt.Errorf("%w: email %d", domain.ErrPreferredNotOwned, *user.PreferredEmailID)
		}
	}
	return nil
}

func (s *Store) insertPrefsLocked(owner domain.Record, prefs *domain.Preferences) {
	if prefs == nil {
		prefs = domain.NewPreferences(owner)
	}
	prefs.OwnerKind = owner.Kind()
	prefs.OwnerID = owner.PK()
	s.prefs.insert(prefs)
}

func (s *Store) GetUser(id uint64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users.get(id)
	if !ok {
		return nil, notFound(domain.KindUser, id)
	}
	return u, nil
}

func (s *Store) FilterUsers(f domain.Filter) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users.filter(f), nil
}

// UpdateUser 更新用户，首选邮箱必须属于该用户。
func (s *Store) UpdateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUserLocked(user); err != nil {
		return err
	}
	if !s.users.put(user) {
		return notFound(domain.KindUser, user.ID)
	}
	return nil
}

// DeleteUser 清空首选邮箱后删除用户的成员资格、邮箱与偏好。
func (s *Store) DeleteUser(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users.get(id)
	if !ok {
		return notFound(domain.KindUser, id)
	}
	u.PreferredEmailID = nil
	s.users.put(u)

	for _, m := range s.memberships.filter(domain.Filter{"user_id": id}) {
		s.deleteMembershipLocked(m.ID)
	}
	for _, e := range s.emails.filter(domain.Filter{"user_id": id}) {
		s.deletePrefsLocked(domain.KindEmail, e.ID)
		s.emails.remove(e.ID)
	}
	s.deletePrefsLocked(domain.KindUser, id)
	s.users.remove(id)
	return nil
}

// ---- 邮箱 ----

// CreateEmail 保存邮箱及其偏好，地址唯一。
func (s *Store) CreateEmail(email *domain.Email, prefs *domain.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email.Address = domain.NormalizeAddress(email.Address)
	if s.emails.exists(0, func(x *domain.Email) bool { return x.Address == email.Address }) {
		return duplicate(domain.KindEmail, email.Address)
	}
	if _, ok := s.users.get(email.UserID); !ok {
		return notFound(domain.KindUser, email.UserID)
	}
	s.emails.insert(email)
	s.insertPrefsLocked(email, prefs)
	return nil
}

func (s *Store) GetEmail(id uint64) (*domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.emails.get(id)
	if !ok {
		return nil, notFound(domain.KindEmail, id)
	}
	return e, nil
}

func (s *Store) GetEmailByAddress(address string) (*domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	address = domain.NormalizeAddress(address)
	e, ok := s.emails.first(func(x *domain.Email) bool { return strings.EqualFold(x.Address, address) })
	if !ok {
		return nil, notFound(domain.KindEmail, address)
	}
	return e, nil
}

func (s *Store) FilterEmails(f domain.Filter) ([]*domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emails.filter(f), nil
}

func (s *Store) UpdateEmail(email *domain.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emails.exists(email.ID, func(x *domain.Email) bool { return x.Address == email.Address }) {
		return duplicate(domain.KindEmail, email.Address)
	}
	if !s.emails.put(email) {
		return notFound(domain.KindEmail, email.ID)
	}
	return nil
}

// DeleteEmail 删除邮箱；删除首选邮箱时改用剩余邮箱中 ID 最小者，
// 用户的最后一个邮箱不可删除。
func (s *Store) DeleteEmail(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.emails.get(id)
	if !ok {
		return notFound(domain.KindEmail, id)
	}
	u, ok := s.users.get(e.UserID)
	if ok {
		next, err := domain.ReassignPreferred(s.emails.filter(domain.Filter{"user_id": u.ID}), u.PreferredEmailID, id)
		if err != nil {
			return err
		}
		u.PreferredEmailID = next
		s.users.put(u)
	}
	s.deletePrefsLocked(domain.KindEmail, id)
	s.emails.remove(id)
	return nil
}

// ---- 成员资格 ----

// CreateMembership 保存成员资格及其偏好，(列表, 地址, 角色) 唯一。
func (s *Store) CreateMembership(m *domain.Membership, prefs *domain.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !m.Role.Valid() {
		return domain.ErrInvalidRole
	}
	m.Address = domain.NormalizeAddress(m.Address)
	if s.memberships.exists(0, func(x *domain.Membership) bool {
		return x.MailingListID == m.MailingListID && x.Address == m.Address && x.Role == m.Role
	}) {
		return duplicate(domain.KindMembership, m.Address)
	}
	if _, ok := s.lists.get(m.MailingListID); !ok {
		return notFound(domain.KindMailingList, m.MailingListID)
	}
	s.memberships.insert(m)
	s.insertPrefsLocked(m, prefs)
	return nil
}

func (s *Store) GetMembership(id uint64) (*domain.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.memberships.get(id)
	if !ok {
		return nil, notFound(domain.KindMembership, id)
	}
	return m, nil
}

func (s *Store) FilterMemberships(f domain.Filter) ([]*domain.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memberships.filter(f), nil
}

func (s *Store) UpdateMembership(m *domain.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.memberships.exists(m.ID, func(x *domain.Membership) bool {
		return x.MailingListID == m.MailingListID && x.Address == m.Address && x.Role == m.Role
	}) {
		return duplicate(domain.KindMembership, m.Address)
	}
	if !s.memberships.put(m) {
		return notFound(domain.KindMembership, m.ID)
	}
	return nil
}

func (s *Store) DeleteMembership(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.memberships.get(id); !ok {
		return notFound(domain.KindMembership, id)
	}
	s.deleteMembershipLocked(id)
	return nil
}

func (s *Store) deleteMembershipLocked(id uint64) {
	s.deletePrefsLocked(domain.KindMembership, id)
	s.memberships.remove(id)
}

// ---- 偏好 ----

func (s *Store) GetPreferences(ownerKind domain.Kind, ownerID uint64) (*domain.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prefs.first(func(x *domain.Preferences) bool {
		return x.OwnerKind == ownerKind && x.OwnerID == ownerID
	})
	if !ok {
		return nil, notFound(domain.KindPreferences, fmt.Sprintf("%s/%d", ownerKind, ownerID))
	}
	return p, nil
}

func (s *Store) GetPreferencesByID(id uint64) (*domain.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prefs.get(id)
	if !ok {
		return nil, notFound(domain.KindPreferences, id)
	}
	return p, nil
}

func (s *Store) UpdatePreferences(prefs *domain.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.prefs.put(prefs) {
		return notFound(domain.KindPreferences, prefs.ID)
	}
	return nil
}

func (s *Store) deletePrefsLocked(ownerKind domain.Kind, ownerID uint64) {
	if p, ok := s.prefs.first(func(x *domain.Preferences) bool {
		return x.OwnerKind == ownerKind && x.OwnerID == ownerID
	}); ok {
		s.prefs.remove(p.ID)
	}
}

// Close 关闭存储（内存实现无需操作）。
func (s *Store) Close() error { return nil }

// Health 检查存储健康状态。
func (s *Store) Health() error { return nil }
