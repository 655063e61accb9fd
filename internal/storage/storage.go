package storage

import (
	"errors"

	"mailmirror/backend/internal/domain"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate 违反唯一约束
	ErrDuplicate = errors.New("record already exists")
	// ErrNotMaterializable 该类记录只能随归属记录一同创建
	ErrNotMaterializable = errors.New("record kind is created with its owner")
)

// DomainRepository 定义邮件域数据存取操作。
type DomainRepository interface {
	CreateDomain(d *domain.Domain) error
	GetDomain(id uint64) (*domain.Domain, error)
	GetDomainByMailHost(mailHost string) (*domain.Domain, error)
	FilterDomains(f domain.Filter) ([]*domain.Domain, error)
	UpdateDomain(d *domain.Domain) error
	DeleteDomain(id uint64) error // 级联删除列表
}

// MailingListRepository 定义邮件列表与列表配置的存取操作。
type MailingListRepository interface {
	CreateMailingList(list *domain.MailingList, settings *domain.ListSettings) error // 同一事务写入
	GetMailingList(id uint64) (*domain.MailingList, error)
	GetMailingListByFQDN(fqdn string) (*domain.MailingList, error)
	FilterMailingLists(f domain.Filter) ([]*domain.MailingList, error)
	UpdateMailingList(list *domain.MailingList) error
	DeleteMailingList(id uint64) error // 级联删除配置与成员资格
	GetListSettings(listID uint64) (*domain.ListSettings, error)
	GetListSettingsByID(id uint64) (*domain.ListSettings, error)
	UpdateListSettings(settings *domain.ListSettings) error
}

// UserRepository 定义用户数据存取操作。
type UserRepository interface {
	CreateUser(user *domain.User, prefs *domain.Preferences) error
	CreateUserWithEmail(user *domain.User, email *domain.Email) error // 同一事务写入用户、首选邮箱与二者的偏好
	GetUser(id uint64) (*domain.User, error)
	FilterUsers(f domain.Filter) ([]*domain.User, error)
	UpdateUser(user *domain.User) error
	DeleteUser(id uint64) error // 先清空首选邮箱，再级联删除
}

// EmailRepository 定义邮箱地址数据存取操作。
type EmailRepository interface {
	CreateEmail(email *domain.Email, prefs *domain.Preferences) error
	GetEmail(id uint64) (*domain.Email, error)
	GetEmailByAddress(address string) (*domain.Email, error)
	FilterEmails(f domain.Filter) ([]*domain.Email, error)
	UpdateEmail(email *domain.Email) error
	DeleteEmail(id uint64) error // 维护首选邮箱不变式
}

// MembershipRepository 定义成员资格数据存取操作。
type MembershipRepository interface {
	CreateMembership(m *domain.Membership, prefs *domain.Preferences) error
	GetMembership(id uint64) (*domain.Membership, error)
	FilterMemberships(f domain.Filter) ([]*domain.Membership, error)
	UpdateMembership(m *domain.Membership) error
	DeleteMembership(id uint64) error
}

// PreferencesRepository 定义偏好数据存取操作。
type PreferencesRepository interface {
	GetPreferences(ownerKind domain.Kind, ownerID uint64) (*domain.Preferences, error)
	GetPreferencesByID(id uint64) (*domain.Preferences, error)
	UpdatePreferences(prefs *domain.Preferences) error
}

// Store 定义完整的存储接口。
type Store interface {
	DomainRepository
	MailingListRepository
	UserRepository
	EmailRepository
	MembershipRepository
	PreferencesRepository

	// 工具方法
	Close() error
	Health() error
}
