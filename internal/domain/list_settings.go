package domain

import (
	"fmt"
	"time"
)

// ListSettings 列表配置，与 MailingList 一一对应
type ListSettings struct {
	ID            uint64 `json:"id" gorm:"primaryKey;autoIncrement"`
	PartialURL    string `json:"partialUrl" gorm:"column:partial_url;type:varchar(255);index"`
	MailingListID uint64 `json:"mailingListId" gorm:"column:mailing_list_id;uniqueIndex;not null"`

	// 策略
	AdminImmedNotify         bool   `json:"admin_immed_notify" gorm:"column:admin_immed_notify"`
	AdminNotifyMchanges      bool   `json:"admin_notify_mchanges" gorm:"column:admin_notify_mchanges"`
	ArchivePolicy            string `json:"archive_policy" gorm:"column:archive_policy;type:varchar(50)"`
	Administrivia            bool   `json:"administrivia" gorm:"column:administrivia"`
	Advertised               bool   `json:"advertised" gorm:"column:advertised"`
	AllowListPosts           bool   `json:"allow_list_posts" gorm:"column:allow_list_posts"`
	AnonymousList            bool   `json:"anonymous_list" gorm:"column:anonymous_list"`
	AutorespondOwner         string `json:"autorespond_owner" gorm:"column:autorespond_owner;type:varchar(50)"`
	AutoresponseOwnerText    string `json:"autoresponse_owner_text" gorm:"column:autoresponse_owner_text;type:text"`
	AutorespondPostings      string `json:"autorespond_postings" gorm:"column:autorespond_postings;type:varchar(50)"`
	AutoresponsePostingsText string `json:"autoresponse_postings_text" gorm:"column:autoresponse_postings_text;type:text"`
	AutorespondRequests      string `json:"autorespond_requests" gorm:"column:autorespond_requests;type:varchar(50)"`
	AutoresponseRequestText  string `json:"autoresponse_request_text" gorm:"column:autoresponse_request_text;type:text"`
	CollapseAlternatives     bool   `json:"collapse_alternatives" gorm:"column:collapse_alternatives"`
	ConvertHTMLToPlaintext   bool   `json:"convert_html_to_plaintext" gorm:"column:convert_html_to_plaintext"`
	FilterContent            bool   `json:"filter_content" gorm:"column:filter_content"`
	FirstStripReplyTo        bool   `json:"first_strip_reply_to" gorm:"column:first_strip_reply_to"`
	IncludeRFC2369Headers    bool   `json:"include_rfc2369_headers" gorm:"column:include_rfc2369_headers"`
	ReplyGoesToList          string `json:"reply_goes_to_list" gorm:"column:reply_goes_to_list;type:varchar(50)"`
	SendWelcomeMessage       bool   `json:"send_welcome_message" gorm:"column:send_welcome_message"`
	DisplayName              string `json:"display_name" gorm:"column:display_name;type:varchar(255)"`

	// 运行
	BouncesAddress         string     `json:"bounces_address" gorm:"column:bounces_address;type:varchar(255)"`
	DefaultMemberAction    string     `json:"default_member_action" gorm:"column:default_member_action;type:varchar(50)"`
	DefaultNonmemberAction string     `json:"default_nonmember_action" gorm:"column:default_nonmember_action;type:varchar(50)"`
	Description            string     `json:"description" gorm:"column:description;type:text"`
	DigestSizeThreshold    float64    `json:"digest_size_threshold" gorm:"column:digest_size_threshold"`
	DigestLastSentAt       *time.Time `json:"digest_last_sent_at" gorm:"column:digest_last_sent_at"`
	FQDNListname           string     `json:"fqdn_listname" gorm:"column:fqdn_listname;type:varchar(255)"`
	HTTPEtag               string     `json:"http_etag" gorm:"column:http_etag;type:varchar(255)"`
	JoinAddress            string     `json:"join_address" gorm:"column:join_address;type:varchar(255)"`
	LastPostAt             *time.Time `json:"last_post_at" gorm:"column:last_post_at"`
	LeaveAddress           string     `json:"leave_address" gorm:"column:leave_address;type:varchar(255)"`
	MailHost               string     `json:"mail_host" gorm:"column:mail_host;type:varchar(255)"`
	NextDigestNumber       int        `json:"next_digest_number" gorm:"column:next_digest_number"`
	NoReplyAddress         string     `json:"no_reply_address" gorm:"column:no_reply_address;type:varchar(255)"`
	OwnerAddress           string     `json:"owner_address" gorm:"column:owner_address;type:varchar(255)"`
	PostID                 int        `json:"post_id" gorm:"column:post_id"`
	PostingAddress         string     `json:"posting_address" gorm:"column:posting_address;type:varchar(255)"`
	PostingPipeline        string     `json:"posting_pipeline" gorm:"column:posting_pipeline;type:varchar(255)"`
	ReplyToAddress         string     `json:"reply_to_address" gorm:"column:reply_to_address;type:varchar(255)"`
	RequestAddress         string     `json:"request_address" gorm:"column:request_address;type:varchar(255)"`
	Scheme                 string     `json:"scheme" gorm:"column:scheme;type:varchar(50)"`
	Volume                 int        `json:"volume" gorm:"column:volume"`
	SubjectPrefix          string     `json:"subject_prefix" gorm:"column:subject_prefix;type:varchar(255)"`
	WebHost                string     `json:"web_host" gorm:"column:web_host;type:varchar(255)"`
	WelcomeMessageURI      string     `json:"welcome_message_uri" gorm:"column:welcome_message_uri;type:varchar(255)"`
}

// TableName 指定表名
func (ListSettings) TableName() string { return "list_settings" }

func (s *ListSettings) Kind() Kind              { return KindSettings }
func (s *ListSettings) PK() uint64              { return s.ID }
func (s *ListSettings) PeerPath() string        { return s.PartialURL }
func (s *ListSettings) SetPeerPath(path string) { s.PartialURL = path }

// NewListSettings 返回带默认值的列表配置，并为列表计算派生地址
func NewListSettings(list *MailingList) *ListSettings {
	s := &ListSettings{
		MailingListID:          list.ID,
		AdminImmedNotify:       true,
		ArchivePolicy:          "public",
		Administrivia:          true,
		Advertised:             true,
		AllowListPosts:         true,
		AutorespondOwner:       "none",
		AutorespondPostings:    "none",
		AutorespondRequests:    "none",
		CollapseAlternatives:   true,
		IncludeRFC2369Headers:  true,
		ReplyGoesToList:        "no_munging",
		SendWelcomeMessage:     true,
		DefaultMemberAction:    "defer",
		DefaultNonmemberAction: "hold",
		DigestSizeThreshold:    30.0,
		NextDigestNumber:       1,
		PostID:                 1,
		PostingPipeline:        "default-posting-pipeline",
		Volume:                 1,
		WelcomeMessageURI:      "mailman:///welcome.txt",
	}
	s.ApplyDerivedDefaults(list)
	return s
}

// ApplyDerivedDefaults 填充未设置的派生地址字段，已设置的字段保持不变
func (s *ListSettings) ApplyDerivedDefaults(list *MailingList) {
	name, host := list.ListName, list.MailHost
	fill := func(field *string, value string) {
		if *field == "" {
			*field = value
		}
	}
	fill(&s.JoinAddress, fmt.Sprintf("%s-join@%s", name, host))
	fill(&s.BouncesAddress, fmt.Sprintf("%s-bounces@%s", name, host))
	fill(&s.LeaveAddress, fmt.Sprintf("%s-leave@%s", name, host))
	fill(&s.OwnerAddress, fmt.Sprintf("%s-owner@%s", name, host))
	fill(&s.RequestAddress, fmt.Sprintf("%s-request@%s", name, host))
	fill(&s.NoReplyAddress, fmt.Sprintf("noreply@%s", host))
	fill(&s.FQDNListname, FQDN(name, host))
	fill(&s.PostingAddress, FQDN(name, host))
	fill(&s.MailHost, host)
	fill(&s.DisplayName, list.DisplayName)
}

type settingsAccessor struct {
	get func(*ListSettings) any
	set func(*ListSettings, any) error
}

func boolField(p func(*ListSettings) *bool) settingsAccessor {
	return settingsAccessor{
		get: func(s *ListSettings) any { return *p(s) },
		set: func(s *ListSettings, v any) (err error) { *p(s), err = asBool("bool", v); return },
	}
}

func stringField(p func(*ListSettings) *string) settingsAccessor {
	return settingsAccessor{
		get: func(s *ListSettings) any { return *p(s) },
		set: func(s *ListSettings, v any) (err error) { *p(s), err = asString("string", v); return },
	}
}

func intField(p func(*ListSettings) *int) settingsAccessor {
	return settingsAccessor{
		get: func(s *ListSettings) any { return *p(s) },
		set: func(s *ListSettings, v any) (err error) { *p(s), err = asInt("int", v); return },
	}
}

func timeField(p func(*ListSettings) **time.Time) settingsAccessor {
	return settingsAccessor{
		get: func(s *ListSettings) any {
			if t := *p(s); t != nil {
				return *t
			}
			return nil
		},
		set: func(s *ListSettings, v any) (err error) { *p(s), err = asTimePtr("time", v); return },
	}
}

// settingsColumns 与远端配置字段同名，顺序即推送顺序
var settingsColumns = []string{
	"admin_immed_notify", "admin_notify_mchanges", "archive_policy", "administrivia",
	"advertised", "allow_list_posts", "anonymous_list", "autorespond_owner",
	"autoresponse_owner_text", "autorespond_postings", "autoresponse_postings_text",
	"autorespond_requests", "autoresponse_request_text", "collapse_alternatives",
	"convert_html_to_plaintext", "filter_content", "first_strip_reply_to",
	"include_rfc2369_headers", "reply_goes_to_list", "send_welcome_message", "display_name",
	"bounces_address", "default_member_action", "default_nonmember_action", "description",
	"digest_size_threshold", "digest_last_sent_at", "fqdn_listname", "http_etag",
	"join_address", "last_post_at", "leave_address", "mail_host", "next_digest_number",
	"no_reply_address", "owner_address", "post_id", "posting_address", "posting_pipeline",
	"reply_to_address", "request_address", "scheme", "volume", "subject_prefix", "web_host",
	"welcome_message_uri",
}

var settingsAccessors = map[string]settingsAccessor{
	"admin_immed_notify":         boolField(func(s *ListSettings) *bool { return &s.AdminImmedNotify }),
	"admin_notify_mchanges":      boolField(func(s *ListSettings) *bool { return &s.AdminNotifyMchanges }),
	"archive_policy":             stringField(func(s *ListSettings) *string { return &s.ArchivePolicy }),
	"administrivia":              boolField(func(s *ListSettings) *bool { return &s.Administrivia }),
	"advertised":                 boolField(func(s *ListSettings) *bool { return &s.Advertised }),
	"allow_list_posts":           boolField(func(s *ListSettings) *bool { return &s.AllowListPosts }),
	"anonymous_list":             boolField(func(s *ListSettings) *bool { return &s.AnonymousList }),
	"autorespond_owner":          stringField(func(s *ListSettings) *string { return &s.AutorespondOwner }),
	"autoresponse_owner_text":    stringField(func(s *ListSettings) *string { return &s.AutoresponseOwnerText }),
	"autorespond_postings":       stringField(func(s *ListSettings) *string { return &s.AutorespondPostings }),
	"autoresponse_postings_text": stringField(func(s *ListSettings) *string { return &s.AutoresponsePostingsText }),
	"autorespond_requests":       stringField(func(s *ListSettings) *string { return &s.AutorespondRequests }),
	"autoresponse_request_text":  stringField(func(s *ListSettings) *string { return &s.AutoresponseRequestText }),
	"collapse_alternatives":      boolField(func(s *ListSettings) *bool { return &s.CollapseAlternatives }),
	"convert_html_to_plaintext":  boolField(func(s *ListSettings) *bool { return &s.ConvertHTMLToPlaintext }),
	"filter_content":             boolField(func(s *ListSettings) *bool { return &s.FilterContent }),
	"first_strip_reply_to":       boolField(func(s *ListSettings) *bool { return &s.FirstStripReplyTo }),
	"include_rfc2369_headers":    boolField(func(s *ListSettings) *bool { return &s.IncludeRFC2369Headers }),
	"reply_goes_to_list":         stringField(func(s *ListSettings) *string { return &s.ReplyGoesToList }),
	"send_welcome_message":       boolField(func(s *ListSettings) *bool { return &s.SendWelcomeMessage }),
	"display_name":               stringField(func(s *ListSettings) *string { return &s.DisplayName }),
	"bounces_address":            stringField(func(s *ListSettings) *string { return &s.BouncesAddress }),
	"default_member_action":      stringField(func(s *ListSettings) *string { return &s.DefaultMemberAction }),
	"default_nonmember_action":   stringField(func(s *ListSettings) *string { return &s.DefaultNonmemberAction }),
	"description":                stringField(func(s *ListSettings) *string { return &s.Description }),
	"digest_size_threshold": {
		get: func(s *ListSettings) any { return s.DigestSizeThreshold },
		set: func(s *ListSettings, v any) (err error) {
			s.DigestSizeThreshold, err = asFloat("digest_size_threshold", v)
			return
		},
	},
	"digest_last_sent_at": timeField(func(s *ListSettings) **time.Time { return &s.DigestLastSentAt }),
	"fqdn_listname":       stringField(func(s *ListSettings) *string { return &s.FQDNListname }),
	"http_etag":           stringField(func(s *ListSettings) *string { return &s.HTTPEtag }),
	"join_address":        stringField(func(s *ListSettings) *string { return &s.JoinAddress }),
	"last_post_at":        timeField(func(s *ListSettings) **time.Time { return &s.LastPostAt }),
	"leave_address":       stringField(func(s *ListSettings) *string { return &s.LeaveAddress }),
	"mail_host":           stringField(func(s *ListSettings) *string { return &s.MailHost }),
	"next_digest_number":  intField(func(s *ListSettings) *int { return &s.NextDigestNumber }),
	"no_reply_address":    stringField(func(s *ListSettings) *string { return &s.NoReplyAddress }),
	"owner_address":       stringField(func(s *ListSettings) *string { return &s.OwnerAddress }),
	"post_id":             intField(func(s *ListSettings) *int { return &s.PostID }),
	"posting_address":     stringField(func(s *ListSettings) *string { return &s.PostingAddress }),
	"posting_pipeline":    stringField(func(s *ListSettings) *string { return &s.PostingPipeline }),
	"reply_to_address":    stringField(func(s *ListSettings) *string { return &s.ReplyToAddress }),
	"request_address":     stringField(func(s *ListSettings) *string { return &s.RequestAddress }),
	"scheme":              stringField(func(s *ListSettings) *string { return &s.Scheme }),
	"volume":              intField(func(s *ListSettings) *int { return &s.Volume }),
	"subject_prefix":      stringField(func(s *ListSettings) *string { return &s.SubjectPrefix }),
	"web_host":            stringField(func(s *ListSettings) *string { return &s.WebHost }),
	"welcome_message_uri": stringField(func(s *ListSettings) *string { return &s.WelcomeMessageURI }),
}

// SettingsColumns 返回全部配置字段名
func SettingsColumns() []string {
	out := make([]string, len(settingsColumns))
	copy(out, settingsColumns)
	return out
}

func (s *ListSettings) Field(name string) (any, bool) {
	switch name {
	case "id":
		return s.ID, true
	case "partial_url":
		return s.PartialURL, true
	case "mailing_list_id":
		return s.MailingListID, true
	}
	acc, ok := settingsAccessors[name]
	if !ok {
		return nil, false
	}
	return acc.get(s), true
}

func (s *ListSettings) SetField(name string, value any) (err error) {
	switch name {
	case "id":
		s.ID, err = asUint64(name, value)
		return err
	case "partial_url":
		s.PartialURL, err = asString(name, value)
		return err
	case "mailing_list_id":
		s.MailingListID, err = asUint64(name, value)
		return err
	}
	acc, ok := settingsAccessors[name]
	if !ok {
		return unknown(KindSettings, name)
	}
	if err := acc.set(s, value); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
