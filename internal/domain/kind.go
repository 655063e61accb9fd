package domain

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Kind 远端资源类型（封闭集合）
type Kind string

const (
	KindDomain      Kind = "domain"
	KindMailingList Kind = "mailinglist"
	KindSettings    Kind = "listsettings"
	KindUser        Kind = "user"
	KindEmail       Kind = "email"
	KindMembership  Kind = "membership"
	KindPreferences Kind = "preferences"
)

// Kinds 返回全部资源类型
func Kinds() []Kind {
	return []Kind{
		KindDomain,
		KindMailingList,
		KindSettings,
		KindUser,
		KindEmail,
		KindMembership,
		KindPreferences,
	}
}

// ParseKind 将字符串解析为资源类型
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Role 成员角色
type Role string

const (
	RoleOwner     Role = "owner"
	RoleModerator Role = "moderator"
	RoleMember    Role = "member"
)

// Valid 判断角色是否合法
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleModerator, RoleMember:
		return true
	}
	return false
}

var (
	ErrUnknownKind        = errors.New("unknown resource kind")
	ErrUnknownField       = errors.New("unknown field")
	ErrInvalidValue       = errors.New("invalid field value")
	ErrInvalidRole        = errors.New("invalid membership role")
	ErrLastEmail          = errors.New("cannot delete the only email of a user")
	ErrPreferredNotOwned  = errors.New("preferred email does not belong to user")
	ErrFQDNMismatch       = errors.New("fqdn_listname does not match list_name and mail_host")
	ErrPeerAlreadyBound   = errors.New("record is already bound to a remote peer")
	ErrMissingListName    = errors.New("list name is required")
	ErrMissingMailHost    = errors.New("mail host is required")
	ErrDisplayNameInvalid = errors.New("display name must not be blank")
)

// Record 是可与远端资源绑定的本地记录
//
// PeerPath 为空表示尚未绑定；一旦绑定便不再改变。
// Field/SetField 以本地列名读写字段，供同步层按字段表遍历。
type Record interface {
	Kind() Kind
	PK() uint64
	PeerPath() string
	SetPeerPath(path string)
	Field(name string) (any, bool)
	SetField(name string, value any) error
}

// Bind 为记录设置远端路径，已绑定到其他路径时返回错误
func Bind(r Record, path string) error {
	current := r.PeerPath()
	if current != "" && current != path {
		return fmt.Errorf("%w: %s %d already at %s", ErrPeerAlreadyBound, r.Kind(), r.PK(), current)
	}
	r.SetPeerPath(path)
	return nil
}

// Filter 本地查询条件，键为本地列名，值做等值匹配
type Filter map[string]any

// Matches 判断记录是否满足全部条件
func (f Filter) Matches(r Record) bool {
	for name, want := range f {
		got, ok := r.Field(name)
		if !ok {
			return false
		}
		if normalize(got) != normalize(want) {
			return false
		}
	}
	return true
}

// Key 返回条件的规范化字符串表示，键按字典序排列
func (f Filter) Key() string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		fmt.Fprintf(&b, "%s=%v", name, normalize(f[name]))
	}
	return b.String()
}

// Clone 返回条件的浅拷贝
func (f Filter) Clone() Filter {
	out := make(Filter, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// normalize 把指针、具名字符串与各类整数统一为可比较的基础值
func normalize(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	}
	return rv.Interface()
}
