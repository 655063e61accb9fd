// Package resolver 计算远端资源的地址与请求参数。
//
// 本文件中的函数均为纯函数，不发起网络请求。
package resolver

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"mailmirror/backend/internal/domain"
)

var (
	ErrMissingLookup = errors.New("lookup key is required")
	ErrNoCollection  = errors.New("kind has no remote collection")
	ErrNotCreatable  = errors.New("kind cannot be created remotely")
)

// Params 远端字段名到值的映射
type Params map[string]any

// Op 写操作类型
type Op int

const (
	OpCreate Op = iota
	OpUpdate
)

func (op Op) String() string {
	if op == OpCreate {
		return "create"
	}
	return "update"
}

// Get 以字符串读取参数，缺失时返回空串
func (p Params) Get(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case *string:
		if v == nil {
			return ""
		}
		return *v
	default:
		return fmt.Sprint(v)
	}
}

// EndpointFor 返回单个资源的路径
func EndpointFor(kind domain.Kind, lookup Params) (string, error) {
	switch kind {
	case domain.KindDomain:
		return item("domains", lookup, "mail_host")
	case domain.KindMailingList:
		return item("lists", lookup, "fqdn_listname", "list_id")
	case domain.KindSettings:
		p, err := item("lists", lookup, "fqdn_listname", "list_id")
		if err != nil {
			return "", err
		}
		return p + "/config", nil
	case domain.KindUser:
		return item("users", lookup, "address", "email", "user_id")
	case domain.KindEmail:
		return item("addresses", lookup, "address", "email")
	case domain.KindMembership:
		return item("members", lookup, "member_id")
	case domain.KindPreferences:
		owner := strings.TrimSuffix(lookup.Get("owner"), "/")
		if owner == "" {
			return "", fmt.Errorf("%w: %s needs owner", ErrMissingLookup, kind)
		}
		return owner + "/preferences", nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
}

func item(collection string, lookup Params, keys ...string) (string, error) {
	for _, key := range keys {
		if v := lookup.Get(key); v != "" {
			return collection + "/" + url.PathEscape(v), nil
		}
	}
	return "", fmt.Errorf("%w: %s needs one of %s", ErrMissingLookup, collection, strings.Join(keys, ", "))
}

// CollectionFor 返回集合路径与查询参数
//
// params 需已经过 Sanitize。远端集合不支持的条件不会出现在查询中，
// 由调用方在物化后再做本地过滤。
func CollectionFor(kind domain.Kind, params Params) (string, url.Values, error) {
	switch kind {
	case domain.KindDomain:
		return "domains", nil, nil
	case domain.KindMailingList:
		if host := params.Get("mail_host"); host != "" {
			return "domains/" + url.PathEscape(host) + "/lists", nil, nil
		}
		return "lists", nil, nil
	case domain.KindUser:
		return "users", nil, nil
	case domain.KindEmail:
		if user := strings.TrimSuffix(params.Get("user"), "/"); user != "" {
			return user + "/addresses", nil, nil
		}
		return "addresses", nil, nil
	case domain.KindMembership:
		listID, role := params.Get("list_id"), params.Get("role")
		subscriber := params.Get("subscriber")
		if listID != "" && role != "" && subscriber == "" {
			return "lists/" + url.PathEscape(listID) + "/roster/" + url.PathEscape(role), nil, nil
		}
		q := url.Values{}
		for _, key := range []string{"list_id", "subscriber", "role"} {
			if v := params.Get(key); v != "" {
				q.Set(key, v)
			}
		}
		if len(q) == 0 {
			return "members", nil, nil
		}
		return "members/find", q, nil
	case domain.KindSettings, domain.KindPreferences:
		return "", nil, fmt.Errorf("%w: %s", ErrNoCollection, kind)
	}
	return "", nil, fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
}

// CreateEndpoint 返回创建资源的 POST 目标
func CreateEndpoint(kind domain.Kind, params Params) (string, error) {
	switch kind {
	case domain.KindDomain:
		return "domains", nil
	case domain.KindMailingList:
		return "lists", nil
	case domain.KindUser:
		return "users", nil
	case domain.KindEmail:
		user := strings.TrimSuffix(params.Get("user"), "/")
		if user == "" {
			return "", fmt.Errorf("%w: email needs owning user", ErrMissingLookup)
		}
		return user + "/addresses", nil
	case domain.KindMembership:
		return "members", nil
	case domain.KindSettings, domain.KindPreferences:
		return "", fmt.Errorf("%w: %s", ErrNotCreatable, kind)
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
}
