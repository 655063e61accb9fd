package adaptor

import (
	"context"
	"net/http"

	"mailmirror/backend/internal/domain"
)

// Member 远端成员资格
type Member struct {
	resource
}

// NewMember 创建惰性加载的成员资格
func NewMember(conn Caller, url string) *Member {
	return &Member{resource: newResource(conn, url, nil)}
}

func (m *Member) Address(ctx context.Context) (string, error)      { return m.str(ctx, "address") }
func (m *Member) ListID(ctx context.Context) (string, error)       { return m.str(ctx, "list_id") }
func (m *Member) MemberID(ctx context.Context) (string, error)     { return m.str(ctx, "member_id") }
func (m *Member) DeliveryMode(ctx context.Context) (string, error) { return m.str(ctx, "delivery_mode") }

// UserURL 返回成员所属用户的地址
func (m *Member) UserURL(ctx context.Context) (string, error) { return m.str(ctx, "user") }

// Role 返回成员角色
func (m *Member) Role(ctx context.Context) (domain.Role, error) {
	s, err := m.str(ctx, "role")
	return domain.Role(s), err
}

// List 返回成员所在的列表
func (m *Member) List(ctx context.Context) (*List, error) {
	listID, err := m.ListID(ctx)
	if err != nil {
		return nil, err
	}
	return NewList(m.conn, "lists/"+listID), nil
}

// User 返回成员所属的用户
func (m *Member) User(ctx context.Context) (*User, error) {
	link, err := m.UserURL(ctx)
	if err != nil {
		return nil, err
	}
	return NewUser(m.conn, link), nil
}

// Preferences 返回成员偏好
func (m *Member) Preferences() *Preferences {
	return NewPreferences(m.conn, m.sub("preferences"))
}

// Unsubscribe 删除该成员资格
func (m *Member) Unsubscribe(ctx context.Context) error {
	_, err := m.conn.Call(ctx, m.url, nil, http.MethodDelete)
	return err
}
