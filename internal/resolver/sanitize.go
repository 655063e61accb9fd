package resolver

import (
	"strings"

	"mailmirror/backend/internal/domain"
)

// renames 本地查询词汇到远端参数名的映射
var renames = map[domain.Kind]map[string]string{
	domain.KindMembership: {
		"address":         "subscriber",
		"mailing_list_id": "list_id",
		"user_id":         "user",
	},
	domain.KindEmail: {
		"address": "email",
		"user_id": "user",
	},
	domain.KindMailingList: {
		"domain_id": "mail_host",
	},
}

// Sanitize 把本地查询条件转换为远端参数
//
// 去掉 __exact/__iexact 后缀，丢弃其他运算符条件；按类型重命名字段；
// 列表地址转换为 list_id（foo.bar.com），邮件域地址转换为 mail_host。
func Sanitize(kind domain.Kind, raw map[string]any) Params {
	out := make(Params, len(raw))
	for key, value := range raw {
		name := key
		if i := strings.Index(key, "__"); i >= 0 {
			switch key[i+2:] {
			case "exact", "iexact":
				name = key[:i]
			default:
				continue
			}
		}
		if to, ok := renames[kind][name]; ok {
			name = to
		}
		switch name {
		case "list_id", "list":
			if s, ok := value.(string); ok && strings.Contains(s, "/") {
				value = domain.ListIDFor(lastSegment(s))
			}
			name = "list_id"
		case "mail_host", "domain":
			if s, ok := value.(string); ok && strings.Contains(s, "/") {
				value = lastSegment(s)
			}
			name = "mail_host"
		}
		out[name] = value
	}
	return out
}

func lastSegment(s string) string {
	s = strings.TrimSuffix(s, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// createFields 每类资源创建时允许提交的字段
var createFields = map[domain.Kind][]string{
	domain.KindDomain:      {"mail_host", "base_url", "contact_address", "description"},
	domain.KindMailingList: {"fqdn_listname", "style_name"},
	domain.KindUser:        {"email", "display_name", "password"},
	domain.KindEmail:       {"email", "display_name"},
	domain.KindMembership: {
		"list_id", "subscriber", "role", "display_name", "delivery_mode",
		"pre_verified", "pre_confirmed", "pre_approved",
	},
}

// updateFields 每类资源更新时允许提交的字段；列表配置与偏好单独处理
var updateFields = map[domain.Kind][]string{
	domain.KindDomain: {"base_url", "contact_address", "description"},
	domain.KindUser:   {"display_name", "cleartext_password"},
}

// Writable 返回某个写操作允许提交的参数
//
// 创建成员资格时默认跳过确认与审核。列表配置更新排除全部只读属性，
// 偏好更新只保留已设置的键。
func Writable(kind domain.Kind, op Op, params Params) Params {
	out := make(Params)
	switch {
	case op == OpUpdate && kind == domain.KindSettings:
		for k, v := range params {
			if k == "self_link" || domain.IsListReadOnly(k) {
				continue
			}
			out[k] = v
		}
		return out
	case kind == domain.KindPreferences:
		for _, k := range domain.PreferenceKeys {
			if v, ok := params[k]; ok && v != nil {
				out[k] = v
			}
		}
		return out
	}

	allowed := createFields[kind]
	if op == OpUpdate {
		allowed = updateFields[kind]
	}
	for _, k := range allowed {
		if v, ok := params[k]; ok && v != nil {
			out[k] = v
		}
	}
	if op == OpCreate && kind == domain.KindMembership {
		for _, k := range []string{"pre_verified", "pre_confirmed", "pre_approved"} {
			if _, ok := out[k]; !ok {
				out[k] = true
			}
		}
	}
	return out
}
