package storage

import (
	"errors"
	"fmt"
	"strings"

	"mailmirror/backend/internal/domain"
)

// Records 按资源类型统一访问 Store，供同步层遍历字段表时使用
type Records struct {
	store Store
}

// NewRecords 包装 Store
func NewRecords(store Store) *Records {
	return &Records{store: store}
}

// Store 返回底层存储
func (r *Records) Store() Store { return r.store }

// Get 按类型与 ID 读取记录
func (r *Records) Get(kind domain.Kind, id uint64) (domain.Record, error) {
	switch kind {
	case domain.KindDomain:
		return one(r.store.GetDomain(id))
	case domain.KindMailingList:
		return one(r.store.GetMailingList(id))
	case domain.KindSettings:
		return one(r.store.GetListSettingsByID(id))
	case domain.KindUser:
		return one(r.store.GetUser(id))
	case domain.KindEmail:
		return one(r.store.GetEmail(id))
	case domain.KindMembership:
		return one(r.store.GetMembership(id))
	case domain.KindPreferences:
		return one(r.store.GetPreferencesByID(id))
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
}

// Find 按条件查询记录，结果按 ID 升序
func (r *Records) Find(kind domain.Kind, f domain.Filter) ([]domain.Record, error) {
	switch kind {
	case domain.KindDomain:
		rows, err := r.store.FilterDomains(f)
		return toRecords(rows), err
	case domain.KindMailingList:
		rows, err := r.store.FilterMailingLists(f)
		return toRecords(rows), err
	case domain.KindUser:
		rows, err := r.store.FilterUsers(f)
		return toRecords(rows), err
	case domain.KindEmail:
		rows, err := r.store.FilterEmails(f)
		return toRecords(rows), err
	case domain.KindMembership:
		rows, err := r.store.FilterMemberships(f)
		return toRecords(rows), err
	case domain.KindSettings, domain.KindPreferences:
		return nil, fmt.Errorf("%w: %s", ErrNotMaterializable, kind)
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
}

// one 避免把 nil 指针装进非 nil 接口
func one[T domain.Record](v T, err error) (domain.Record, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}

func toRecords[T domain.Record](rows []T) []domain.Record {
	out := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, row)
	}
	return out
}

// FindByPeer 按远端路径查找记录，不存在时返回 ErrNotFound
func (r *Records) FindByPeer(kind domain.Kind, path string) (domain.Record, error) {
	rows, err := r.Find(kind, domain.Filter{"partial_url": path})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// FindOne 按单个列值查找记录
func (r *Records) FindOne(kind domain.Kind, column string, value any) (domain.Record, error) {
	rows, err := r.Find(kind, domain.Filter{column: value})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// Save 写回已存在的记录
func (r *Records) Save(rec domain.Record) error {
	switch v := rec.(type) {
	case *domain.Domain:
		return r.store.UpdateDomain(v)
	case *domain.MailingList:
		return r.store.UpdateMailingList(v)
	case *domain.ListSettings:
		return r.store.UpdateListSettings(v)
	case *domain.User:
		return r.store.UpdateUser(v)
	case *domain.Email:
		return r.store.UpdateEmail(v)
	case *domain.Membership:
		return r.store.UpdateMembership(v)
	case *domain.Preferences:
		return r.store.UpdatePreferences(v)
	}
	return fmt.Errorf("%w: %T", domain.ErrUnknownKind, rec)
}

// Delete 按类型删除记录，级联规则由 Store 实现
func (r *Records) Delete(rec domain.Record) error {
	switch rec.Kind() {
	case domain.KindDomain:
		return r.store.DeleteDomain(rec.PK())
	case domain.KindMailingList:
		return r.store.DeleteMailingList(rec.PK())
	case domain.KindUser:
		return r.store.DeleteUser(rec.PK())
	case domain.KindEmail:
		return r.store.DeleteEmail(rec.PK())
	case domain.KindMembership:
		return r.store.DeleteMembership(rec.PK())
	case domain.KindSettings, domain.KindPreferences:
		return fmt.Errorf("%w: %s", ErrNotMaterializable, rec.Kind())
	}
	return fmt.Errorf("%w: %q", domain.ErrUnknownKind, rec.Kind())
}

// Materialize 创建记录及其附属记录
//
// 列表附带 ListSettings，用户、邮箱与成员资格附带 Preferences。
// 记录已绑定远端时，附属记录的远端路径由归属路径推出。
func (r *Records) Materialize(rec domain.Record) error {
	switch v := rec.(type) {
	case *domain.Domain:
		return r.store.CreateDomain(v)
	case *domain.MailingList:
		settings := domain.NewListSettings(v)
		settings.PartialURL = CompanionPath(v)
		return r.store.CreateMailingList(v, settings)
	case *domain.User:
		return r.store.CreateUser(v, companionPrefs(v))
	case *domain.Email:
		return r.store.CreateEmail(v, companionPrefs(v))
	case *domain.Membership:
		return r.store.CreateMembership(v, companionPrefs(v))
	case *domain.ListSettings, *domain.Preferences:
		return fmt.Errorf("%w: %s", ErrNotMaterializable, rec.Kind())
	}
	return fmt.Errorf("%w: %T", domain.ErrUnknownKind, rec)
}

func companionPrefs(owner domain.Record) *domain.Preferences {
	prefs := domain.NewPreferences(owner)
	prefs.PartialURL = CompanionPath(owner)
	return prefs
}

// CompanionPath 返回附属记录的远端路径，归属未绑定时为空
func CompanionPath(owner domain.Record) string {
	path := strings.TrimSuffix(owner.PeerPath(), "/")
	if path == "" {
		return ""
	}
	if owner.Kind() == domain.KindMailingList {
		return path + "/config"
	}
	return path + "/preferences"
}

// IsNotFound 判断是否为记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicate 判断是否违反唯一约束
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
