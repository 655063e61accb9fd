package adaptor

import (
	"context"
	"net/http"

	"mailmirror/backend/internal/core"
	"mailmirror/backend/internal/domain"
)

// Domain 远端邮件域
type Domain struct {
	resource
}

// NewDomain 创建惰性加载的邮件域
func NewDomain(conn Caller, url string) *Domain {
	return &Domain{resource: newResource(conn, url, nil)}
}

func (d *Domain) MailHost(ctx context.Context) (string, error) { return d.str(ctx, "mail_host") }
func (d *Domain) BaseURL(ctx context.Context) (string, error)  { return d.str(ctx, "base_url") }
func (d *Domain) URLHost(ctx context.Context) (string, error)  { return d.str(ctx, "url_host") }
func (d *Domain) Description(ctx context.Context) (string, error) {
	return d.str(ctx, "description")
}
func (d *Domain) ContactAddress(ctx context.Context) (string, error) {
	return d.str(ctx, "contact_address")
}

// Lists 返回该域下的列表，按 fqdn_listname 排序
func (d *Domain) Lists(ctx context.Context) ([]*List, error) {
	entries, err := fetchEntries(ctx, d.conn, d.sub("lists"))
	if err != nil {
		return nil, err
	}
	sortEntries(entries, "fqdn_listname")
	lists := make([]*List, 0, len(entries))
	for _, entry := range entries {
		l := NewList(d.conn, str(entry, "self_link"))
		l.preload(entry)
		lists = append(lists, l)
	}
	return lists, nil
}

// CreateList 在该域下创建列表
func (d *Domain) CreateList(ctx context.Context, listName string) (*List, error) {
	host, err := d.MailHost(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := d.conn.Call(ctx, "lists", map[string]any{
		"fqdn_listname": domain.FQDN(listName, host),
	}, http.MethodPost)
	if err != nil {
		return nil, err
	}
	return NewList(d.conn, resp.Location), nil
}

// GetOrCreateList 返回已有列表，不存在时创建
func (d *Domain) GetOrCreateList(ctx context.Context, listName string) (*List, error) {
	host, err := d.MailHost(ctx)
	if err != nil {
		return nil, err
	}
	list := NewList(d.conn, "lists/"+domain.FQDN(listName, host))
	if _, err := list.Info(ctx); err == nil {
		return list, nil
	} else if !core.IsNotFound(err) {
		return nil, err
	}
	return d.CreateList(ctx, listName)
}
