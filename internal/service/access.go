package service

import (
	"net/http"

	"mailmirror/backend/internal/domain"
	"mailmirror/backend/internal/storage"
)

// AccessPolicy 基于成员资格的权限判断，只读取本地数据
type AccessPolicy struct {
	store storage.Store
}

// NewAccessPolicy 创建权限判断
func NewAccessPolicy(store storage.Store) *AccessPolicy {
	return &AccessPolicy{store: store}
}

// IsSafeMethod 判断是否为只读请求方法
func IsSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// HasRole 判断用户在任一列表中是否持有该角色
func (p *AccessPolicy) HasRole(user *domain.User, role domain.Role) (bool, error) {
	if user == nil {
		return false, nil
	}
	rows, err := p.store.FilterMemberships(domain.Filter{"user_id": user.ID, "role": role})
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// IsListStaff 判断用户的某个邮箱是否为列表的所有者或审核员
func (p *AccessPolicy) IsListStaff(user *domain.User, listID uint64) (bool, error) {
	if user == nil {
		return false, nil
	}
	emails, err := p.store.FilterEmails(domain.Filter{"user_id": user.ID})
	if err != nil {
		return false, err
	}
	owned := make(map[string]bool, len(emails))
	for _, e := range emails {
		owned[e.Address] = true
	}

	for _, role := range []domain.Role{domain.RoleOwner, domain.RoleModerator} {
		staff, err := p.store.FilterMemberships(domain.Filter{"mailing_list_id": listID, "role": role})
		if err != nil {
			return false, err
		}
		for _, m := range staff {
			if owned[m.Address] {
				return true, nil
			}
		}
	}
	return false, nil
}

// Allow 判断请求是否放行
//
// 只读方法总是放行；其余方法要求用户为超级用户或持有 roles 中任一角色。
// roles 为空时只有超级用户可以写。
func (p *AccessPolicy) Allow(method string, user *domain.User, roles ...domain.Role) (bool, error) {
	if IsSafeMethod(method) {
		return true, nil
	}
	if user == nil {
		return false, nil
	}
	if user.IsSuperuser {
		return true, nil
	}
	for _, role := range roles {
		ok, err := p.HasRole(user, role)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}
