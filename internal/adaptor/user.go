package adaptor

import (
	"context"
	"net/http"
	"sort"
)

// User 远端用户
//
// SetDisplayName/SetPassword 只修改本地状态，Save 时一并提交。
type User struct {
	resource
	displayName *string
	password    string
}

// NewUser 创建惰性加载的用户
func NewUser(conn Caller, url string) *User {
	return &User{resource: newResource(conn, url, nil)}
}

func (u *User) UserID(ctx context.Context) (string, error)    { return u.str(ctx, "user_id") }
func (u *User) CreatedOn(ctx context.Context) (string, error) { return u.str(ctx, "created_on") }
func (u *User) Password(ctx context.Context) (string, error)  { return u.str(ctx, "password") }

// DisplayName 返回显示名，包含未保存的修改
func (u *User) DisplayName(ctx context.Context) (string, error) {
	if u.displayName != nil {
		return *u.displayName, nil
	}
	return u.str(ctx, "display_name")
}

func (u *User) SetDisplayName(name string) { u.displayName = &name }

// SetPassword 设置明文密码，Save 时以 cleartext_password 提交
func (u *User) SetPassword(password string) { u.password = password }

// Save 以 PATCH 提交显示名与密码
func (u *User) Save(ctx context.Context) error {
	name, err := u.DisplayName(ctx)
	if err != nil {
		return err
	}
	data := map[string]any{"display_name": name}
	if u.password != "" {
		data["cleartext_password"] = u.password
	}
	if _, err := u.conn.Call(ctx, u.url, data, http.MethodPatch); err != nil {
		return err
	}
	u.password = ""
	if u.info != nil {
		u.info["display_name"] = name
	}
	return nil
}

// Addresses 返回用户的全部地址，按地址排序
func (u *User) Addresses(ctx context.Context) ([]*Address, error) {
	entries, err := fetchEntries(ctx, u.conn, u.sub("addresses"))
	if err != nil {
		return nil, err
	}
	sortEntries(entries, "email")
	out := make([]*Address, 0, len(entries))
	for _, entry := range entries {
		a := NewAddress(u.conn, str(entry, "self_link"))
		a.preload(entry)
		out = append(out, a)
	}
	return out, nil
}

// Subscriptions 返回用户全部地址的成员资格
func (u *User) Subscriptions(ctx context.Context) ([]*Member, error) {
	addresses, err := u.Addresses(ctx)
	if err != nil {
		return nil, err
	}
	var all []map[string]any
	for _, a := range addresses {
		email, err := a.Email(ctx)
		if err != nil {
			return nil, err
		}
		entries, err := fetchEntries(ctx, u.conn, withQuery("members/find", map[string]string{"subscriber": email}))
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return membersFrom(u.conn, all), nil
}

// SubscriptionListIDs 返回用户订阅的列表 ID，去重并排序
func (u *User) SubscriptionListIDs(ctx context.Context) ([]string, error) {
	members, err := u.Subscriptions(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, m := range members {
		id, err := m.ListID(ctx)
		if err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Preferences 返回用户偏好
func (u *User) Preferences() *Preferences {
	return NewPreferences(u.conn, u.sub("preferences"))
}

// Delete 删除用户
func (u *User) Delete(ctx context.Context) error {
	_, err := u.conn.Call(ctx, u.url, nil, http.MethodDelete)
	return err
}

// Address 远端邮箱地址
type Address struct {
	resource
}

// NewAddress 创建惰性加载的地址
func NewAddress(conn Caller, url string) *Address {
	return &Address{resource: newResource(conn, url, nil)}
}

func (a *Address) Email(ctx context.Context) (string, error)       { return a.str(ctx, "email") }
func (a *Address) DisplayName(ctx context.Context) (string, error) { return a.str(ctx, "display_name") }
func (a *Address) VerifiedOn(ctx context.Context) (string, error)  { return a.str(ctx, "verified_on") }
func (a *Address) UserURL(ctx context.Context) (string, error)     { return a.str(ctx, "user") }

// Verified 判断地址是否已验证
func (a *Address) Verified(ctx context.Context) (bool, error) {
	on, err := a.VerifiedOn(ctx)
	return on != "", err
}

// Verify 标记地址为已验证
func (a *Address) Verify(ctx context.Context) error {
	_, err := a.conn.Call(ctx, a.sub("verify"), map[string]any{}, http.MethodPost)
	a.Refresh()
	return err
}

// Unverify 取消地址验证
func (a *Address) Unverify(ctx context.Context) error {
	_, err := a.conn.Call(ctx, a.sub("unverify"), map[string]any{}, http.MethodPost)
	a.Refresh()
	return err
}

// Preferences 返回地址偏好
func (a *Address) Preferences() *Preferences {
	return NewPreferences(a.conn, a.sub("preferences"))
}
