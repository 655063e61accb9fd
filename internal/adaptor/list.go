package adaptor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"mailmirror/backend/internal/core"
	"mailmirror/backend/internal/domain"
)

// ModerationAction 待审消息的处理动作
type ModerationAction string

const (
	ActionDiscard ModerationAction = "discard"
	ActionReject  ModerationAction = "reject"
	ActionDefer   ModerationAction = "defer"
	ActionAccept  ModerationAction = "accept"
)

// Valid 判断动作是否合法
func (a ModerationAction) Valid() bool {
	switch a {
	case ActionDiscard, ActionReject, ActionDefer, ActionAccept:
		return true
	}
	return false
}

// HeldMessage 待审核的消息
type HeldMessage struct {
	HoldDate  string `json:"hold_date"`
	Msg       string `json:"msg"`
	Reason    string `json:"reason"`
	Sender    string `json:"sender"`
	RequestID int    `json:"request_id"`
	Subject   string `json:"subject"`
}

// SubscriptionRequest 待处理的订阅请求
type SubscriptionRequest struct {
	Address      string `json:"address"`
	DeliveryMode string `json:"delivery_mode"`
	DisplayName  string `json:"display_name"`
	Language     string `json:"language"`
	Password     string `json:"password"`
	RequestID    string `json:"request_id"`
	RequestDate  string `json:"request_date"`
	Type         string `json:"type"`
}

// List 远端邮件列表
type List struct {
	resource
}

// NewList 创建惰性加载的列表
func NewList(conn Caller, url string) *List {
	return &List{resource: newResource(conn, url, nil)}
}

func (l *List) FQDNListname(ctx context.Context) (string, error) { return l.str(ctx, "fqdn_listname") }
func (l *List) ListID(ctx context.Context) (string, error)       { return l.str(ctx, "list_id") }
func (l *List) ListName(ctx context.Context) (string, error)     { return l.str(ctx, "list_name") }
func (l *List) MailHost(ctx context.Context) (string, error)     { return l.str(ctx, "mail_host") }
func (l *List) DisplayName(ctx context.Context) (string, error)  { return l.str(ctx, "display_name") }
func (l *List) MemberCount(ctx context.Context) (int, error)     { return l.num(ctx, "member_count") }

// Owners 返回所有者地址，按地址排序
func (l *List) Owners(ctx context.Context) ([]string, error) {
	return l.rosterAddresses(ctx, domain.RoleOwner)
}

// Moderators 返回版主地址，按地址排序
func (l *List) Moderators(ctx context.Context) ([]string, error) {
	return l.rosterAddresses(ctx, domain.RoleModerator)
}

func (l *List) rosterAddresses(ctx context.Context, role domain.Role) ([]string, error) {
	entries, err := fetchEntries(ctx, l.conn, l.sub("roster/"+string(role)))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, str(entry, "address"))
	}
	sort.Strings(out)
	return out, nil
}

// Members 返回普通成员，按地址排序
func (l *List) Members(ctx context.Context) ([]*Member, error) {
	entries, err := fetchEntries(ctx, l.conn, l.sub("roster/member"))
	if err != nil {
		return nil, err
	}
	return membersFrom(l.conn, entries), nil
}

// MemberPage 分页读取成员
func (l *List) MemberPage(ctx context.Context, count, page int) (*Page, error) {
	p := &Page{conn: l.conn, path: l.sub("roster/member"), count: count, page: page}
	if err := p.load(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Settings 返回列表配置，首次读取时加载
func (l *List) Settings() *Settings {
	return NewSettings(l.conn, l.sub("config"))
}

// Held 返回待审核消息
func (l *List) Held(ctx context.Context) ([]HeldMessage, error) {
	entries, err := fetchEntries(ctx, l.conn, l.sub("held"))
	if err != nil {
		return nil, err
	}
	out := make([]HeldMessage, 0, len(entries))
	for _, e := range entries {
		out = append(out, HeldMessage{
			HoldDate:  str(e, "hold_date"),
			Msg:       str(e, "msg"),
			Reason:    str(e, "reason"),
			Sender:    str(e, "sender"),
			RequestID: num(e, "request_id"),
			Subject:   str(e, "subject"),
		})
	}
	return out, nil
}

// Requests 返回待处理的订阅请求
func (l *List) Requests(ctx context.Context) ([]SubscriptionRequest, error) {
	entries, err := fetchEntries(ctx, l.conn, l.sub("requests"))
	if err != nil {
		return nil, err
	}
	out := make([]SubscriptionRequest, 0, len(entries))
	for _, e := range entries {
		out = append(out, SubscriptionRequest{
			Address:      first(e, "address", "email"),
			DeliveryMode: str(e, "delivery_mode"),
			DisplayName:  str(e, "display_name"),
			Language:     str(e, "language"),
			Password:     str(e, "password"),
			RequestID:    first(e, "request_id", "token"),
			RequestDate:  str(e, "when"),
			Type:         first(e, "type", "token_owner"),
		})
	}
	return out, nil
}

// AddRole 以指定角色加入地址
func (l *List) AddRole(ctx context.Context, role domain.Role, address string) error {
	if !role.Valid() {
		return domain.ErrInvalidRole
	}
	listID, err := l.ListID(ctx)
	if err != nil {
		return err
	}
	_, err = l.conn.Call(ctx, "members", map[string]any{
		"list_id":    listID,
		"subscriber": address,
		"role":       string(role),
	}, http.MethodPost)
	return err
}

func (l *List) AddOwner(ctx context.Context, address string) error {
	return l.AddRole(ctx, domain.RoleOwner, address)
}

func (l *List) AddModerator(ctx context.Context, address string) error {
	return l.AddRole(ctx, domain.RoleModerator, address)
}

// RemoveRole 移除地址的指定角色
func (l *List) RemoveRole(ctx context.Context, role domain.Role, address string) error {
	if !role.Valid() {
		return domain.ErrInvalidRole
	}
	fqdn, err := l.FQDNListname(ctx)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("lists/%s/%s/%s", fqdn, role, url.PathEscape(address))
	_, err = l.conn.Call(ctx, path, nil, http.MethodDelete)
	return err
}

func (l *List) RemoveOwner(ctx context.Context, address string) error {
	return l.RemoveRole(ctx, domain.RoleOwner, address)
}

func (l *List) RemoveModerator(ctx context.Context, address string) error {
	return l.RemoveRole(ctx, domain.RoleModerator, address)
}

// ModerateMessage 处理待审核消息
func (l *List) ModerateMessage(ctx context.Context, requestID int, action ModerationAction) (*core.Response, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	return l.conn.Call(ctx, l.sub(fmt.Sprintf("held/%d", requestID)), map[string]any{
		"action": string(action),
	}, http.MethodPost)
}

func (l *List) DiscardMessage(ctx context.Context, requestID int) (*core.Response, error) {
	return l.ModerateMessage(ctx, requestID, ActionDiscard)
}

func (l *List) RejectMessage(ctx context.Context, requestID int) (*core.Response, error) {
	return l.ModerateMessage(ctx, requestID, ActionReject)
}

func (l *List) DeferMessage(ctx context.Context, requestID int) (*core.Response, error) {
	return l.ModerateMessage(ctx, requestID, ActionDefer)
}

func (l *List) AcceptMessage(ctx context.Context, requestID int) (*core.Response, error) {
	return l.ModerateMessage(ctx, requestID, ActionAccept)
}

// GetMember 读取某个地址的成员资格
func (l *List) GetMember(ctx context.Context, address string) (*Member, error) {
	m := NewMember(l.conn, l.sub("member/"+url.PathEscape(address)))
	if _, err := m.Info(ctx); err != nil {
		if core.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotMember, address)
		}
		return nil, err
	}
	return m, nil
}

// Subscribe 订阅地址，跳过确认与审核
func (l *List) Subscribe(ctx context.Context, address, displayName string) (*Member, error) {
	listID, err := l.ListID(ctx)
	if err != nil {
		return nil, err
	}
	data := map[string]any{
		"list_id":       listID,
		"subscriber":    address,
		"pre_verified":  true,
		"pre_confirmed": true,
		"pre_approved":  true,
	}
	if displayName != "" {
		data["display_name"] = displayName
	}
	resp, err := l.conn.Call(ctx, "members", data, http.MethodPost)
	if err != nil {
		return nil, err
	}
	return NewMember(l.conn, resp.Location), nil
}

// Unsubscribe 退订地址
func (l *List) Unsubscribe(ctx context.Context, address string) error {
	_, err := l.conn.Call(ctx, l.sub("member/"+url.PathEscape(address)), nil, http.MethodDelete)
	if core.IsNotFound(err) {
		return fmt.Errorf("%w: %s", ErrNotMember, address)
	}
	return err
}

// Delete 删除列表
func (l *List) Delete(ctx context.Context) error {
	_, err := l.conn.Call(ctx, l.url, nil, http.MethodDelete)
	return err
}

// first 返回第一个非空字段，兼容不同版本的字段名
func first(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v := str(m, key); v != "" {
			return v
		}
	}
	return ""
}

func membersFrom(conn Caller, entries []map[string]any) []*Member {
	sortEntries(entries, "address")
	out := make([]*Member, 0, len(entries))
	for _, entry := range entries {
		m := NewMember(conn, str(entry, "self_link"))
		m.preload(entry)
		out = append(out, m)
	}
	return out
}
