package domain

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Direction 字段同步方向
type Direction int

const (
	Both     Direction = iota // 推送与拉取
	PushOnly                  // 仅写往远端
	PullOnly                  // 仅从远端读取
)

// Pushes 判断字段是否写往远端
func (d Direction) Pushes() bool { return d != PullOnly }

// Pulls 判断字段是否从远端读取
func (d Direction) Pulls() bool { return d != PushOnly }

// FieldSpec 描述一个本地列与远端字段的对应关系
type FieldSpec struct {
	Local  string
	Remote string
	Dir    Direction

	// Ref 非空表示该列保存另一类记录的本地 ID
	Ref Kind
	// RefKey 非空时远端以关联记录该列的值表示关联，否则使用关联记录的绝对 URL
	RefKey string
	// Loose 表示推送时关联记录无需已绑定远端
	Loose bool
	// Fetch 表示拉取时本地缺失的关联记录可以从远端补建
	Fetch bool
	// Decode 在写入本地前转换远端值
	Decode func(any) any
}

// IsRef 判断是否为关联字段
func (s FieldSpec) IsRef() bool { return s.Ref != "" }

var fieldTables = map[Kind][]FieldSpec{
	KindDomain: {
		{Local: "mail_host", Remote: "mail_host"},
		{Local: "base_url", Remote: "base_url"},
		{Local: "contact_address", Remote: "contact_address"},
		{Local: "description", Remote: "description"},
	},
	KindMailingList: {
		{Local: "fqdn_listname", Remote: "fqdn_listname"},
		{Local: "list_name", Remote: "list_name"},
		{Local: "mail_host", Remote: "mail_host"},
		{Local: "list_id", Remote: "list_id"},
		{Local: "display_name", Remote: "display_name"},
		{Local: "domain_id", Remote: "mail_host", Ref: KindDomain, RefKey: "mail_host", Fetch: true},
	},
	KindUser: {
		{Local: "display_name", Remote: "display_name"},
		{Local: "created_on", Remote: "created_on", Dir: PullOnly},
		{Local: "preferred_email_id", Remote: "email", Dir: PushOnly, Ref: KindEmail, RefKey: "address", Loose: true},
	},
	KindEmail: {
		{Local: "address", Remote: "email"},
		{Local: "verified", Remote: "verified_on", Dir: PullOnly, Decode: present},
		{Local: "user_id", Remote: "user", Ref: KindUser, Fetch: true},
	},
	KindMembership: {
		{Local: "address", Remote: "address"},
		{Local: "role", Remote: "role"},
		{Local: "mailing_list_id", Remote: "list_id", Ref: KindMailingList, RefKey: "list_id", Fetch: true},
		{Local: "user_id", Remote: "user", Dir: PullOnly, Ref: KindUser, Fetch: true},
	},
}

func init() {
	prefs := make([]FieldSpec, 0, len(PreferenceKeys))
	for _, key := range PreferenceKeys {
		prefs = append(prefs, FieldSpec{Local: key, Remote: key})
	}
	fieldTables[KindPreferences] = prefs

	settings := make([]FieldSpec, 0, len(settingsColumns))
	for _, col := range settingsColumns {
		settings = append(settings, FieldSpec{Local: col, Remote: col})
	}
	fieldTables[KindSettings] = settings
}

// FieldTable 返回某类记录的字段对应表
func FieldTable(kind Kind) []FieldSpec {
	return fieldTables[kind]
}

// ListReadOnlyAttrs 列表配置中远端只读的字段，PATCH 时必须排除
var ListReadOnlyAttrs = []string{
	"bounces_address",
	"created_at",
	"digest_last_sent_at",
	"fqdn_listname",
	"http_etag",
	"mail_host",
	"join_address",
	"last_post_at",
	"leave_address",
	"list_id",
	"list_name",
	"next_digest_number",
	"no_reply_address",
	"owner_address",
	"post_id",
	"posting_address",
	"request_address",
	"scheme",
	"volume",
	"web_host",
}

// IsListReadOnly 判断列表配置字段是否只读
func IsListReadOnly(name string) bool {
	for _, attr := range ListReadOnlyAttrs {
		if attr == name {
			return true
		}
	}
	return false
}

func present(v any) any {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	return true
}

func invalid(name string, v any) error {
	return fmt.Errorf("%w: %s=%v (%T)", ErrInvalidValue, name, v, v)
}

func unknown(kind Kind, name string) error {
	return fmt.Errorf("%w: %s.%s", ErrUnknownField, kind, name)
}

func asString(name string, v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case *string:
		if t == nil {
			return "", nil
		}
		return *t, nil
	case fmt.Stringer:
		return t.String(), nil
	case float64, int, int64, uint64, bool:
		return fmt.Sprint(t), nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
		return rv.String(), nil
	}
	return "", invalid(name, v)
}

func asStringPtr(name string, v any) (*string, error) {
	if v == nil {
		return nil, nil
	}
	if p, ok := v.(*string); ok {
		return p, nil
	}
	s, err := asString(name, v)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func asBool(name string, v any) (bool, error) {
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case *bool:
		return t != nil && *t, nil
	case string:
		b, err := strconv.ParseBool(strings.ToLower(t))
		if err != nil {
			return false, invalid(name, v)
		}
		return b, nil
	}
	return false, invalid(name, v)
}

func asBoolPtr(name string, v any) (*bool, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case *bool:
		return t, nil
	}
	b, err := asBool(name, v)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func asInt64(name string, v any) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case uint:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint64:
		return int64(t), nil
	case float64:
		return int64(t), nil
	case json.Number:
		return t.Int64()
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, invalid(name, v)
		}
		return n, nil
	}
	return 0, invalid(name, v)
}

func asInt(name string, v any) (int, error) {
	n, err := asInt64(name, v)
	return int(n), err
}

func asUint64(name string, v any) (uint64, error) {
	n, err := asInt64(name, v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, invalid(name, v)
	}
	return uint64(n), nil
}

func asUint64Ptr(name string, v any) (*uint64, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case *uint64:
		return t, nil
	}
	n, err := asUint64(name, v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func asFloat(name string, v any) (float64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, invalid(name, v)
		}
		return f, nil
	}
	return 0, invalid(name, v)
}

// 远端时间戳通常不带时区
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func asTime(name string, v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return t, nil
	case *time.Time:
		if t == nil {
			return time.Time{}, nil
		}
		return *t, nil
	case string:
		if t == "" {
			return time.Time{}, nil
		}
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC(), nil
			}
		}
	}
	return time.Time{}, invalid(name, v)
}

func asTimePtr(name string, v any) (*time.Time, error) {
	if v == nil {
		return nil, nil
	}
	if p, ok := v.(*time.Time); ok {
		return p, nil
	}
	t, err := asTime(name, v)
	if err != nil || t.IsZero() {
		return nil, err
	}
	return &t, nil
}
