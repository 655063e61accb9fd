package adaptor

import "context"

// Domains 返回全部邮件域，按 url_host 排序
func Domains(ctx context.Context, conn Caller) ([]*Domain, error) {
	entries, err := fetchEntries(ctx, conn, "domains")
	if err != nil {
		return nil, err
	}
	sortEntries(entries, "url_host")
	out := make([]*Domain, 0, len(entries))
	for _, entry := range entries {
		d := NewDomain(conn, str(entry, "self_link"))
		d.preload(entry)
		out = append(out, d)
	}
	return out, nil
}

// Lists 返回全部列表，按 fqdn_listname 排序；onlyAdvertised 时只返回公开列表
func Lists(ctx context.Context, conn Caller, onlyAdvertised bool) ([]*List, error) {
	path := "lists"
	if onlyAdvertised {
		path = "lists/find?advertised=true"
	}
	entries, err := fetchEntries(ctx, conn, path)
	if err != nil {
		return nil, err
	}
	sortEntries(entries, "fqdn_listname")
	out := make([]*List, 0, len(entries))
	for _, entry := range entries {
		l := NewList(conn, str(entry, "self_link"))
		l.preload(entry)
		out = append(out, l)
	}
	return out, nil
}

// Users 返回全部用户，按 self_link 排序
func Users(ctx context.Context, conn Caller) ([]*User, error) {
	entries, err := fetchEntries(ctx, conn, "users")
	if err != nil {
		return nil, err
	}
	sortEntries(entries, "self_link")
	out := make([]*User, 0, len(entries))
	for _, entry := range entries {
		u := NewUser(conn, str(entry, "self_link"))
		u.preload(entry)
		out = append(out, u)
	}
	return out, nil
}

// Members 返回全部成员资格，按地址排序
func Members(ctx context.Context, conn Caller) ([]*Member, error) {
	entries, err := fetchEntries(ctx, conn, "members")
	if err != nil {
		return nil, err
	}
	return membersFrom(conn, entries), nil
}
