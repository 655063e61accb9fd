package domain

import (
	"fmt"
	"strings"
	"time"
)

// MailingList 邮件列表
//
// FQDNListname 固定为 list_name@mail_host，ListID 为远端使用的 list_name.mail_host。
// 每个列表在同一事务中创建且仅创建一个 ListSettings。
type MailingList struct {
	ID           uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	PartialURL   string    `json:"partialUrl" gorm:"column:partial_url;type:varchar(255);index"`
	DomainID     uint64    `json:"domainId" gorm:"column:domain_id;index;not null"`
	ListName     string    `json:"listName" gorm:"column:list_name;type:varchar(255);not null"`
	MailHost     string    `json:"mailHost" gorm:"column:mail_host;type:varchar(255);not null"`
	FQDNListname string    `json:"fqdnListname" gorm:"column:fqdn_listname;type:varchar(255);uniqueIndex;not null"`
	ListID       string    `json:"listId" gorm:"column:list_id;type:varchar(255);index"`
	DisplayName  string    `json:"displayName" gorm:"column:display_name;type:varchar(255)"`
	CreatedAt    time.Time `json:"createdAt" gorm:"column:created_at"`
}

// TableName 指定表名
func (MailingList) TableName() string { return "mailing_lists" }

func (l *MailingList) Kind() Kind              { return KindMailingList }
func (l *MailingList) PK() uint64              { return l.ID }
func (l *MailingList) PeerPath() string        { return l.PartialURL }
func (l *MailingList) SetPeerPath(path string) { l.PartialURL = path }

// FQDN 拼接完整列表地址
func FQDN(listName, mailHost string) string {
	return fmt.Sprintf("%s@%s", listName, mailHost)
}

// ListIDFor 把 foo@bar.com 形式转换为远端 list_id（foo.bar.com）
func ListIDFor(fqdn string) string {
	return strings.Replace(fqdn, "@", ".", 1)
}

// NewMailingList 根据列表名与域创建列表，派生 fqdn_listname 与 list_id
func NewMailingList(d *Domain, listName, displayName string) (*MailingList, error) {
	listName = strings.ToLower(strings.TrimSpace(listName))
	if listName == "" {
		return nil, ErrMissingListName
	}
	if d.MailHost == "" {
		return nil, ErrMissingMailHost
	}
	if displayName == "" {
		displayName = strings.ToUpper(listName[:1]) + listName[1:]
	}
	fqdn := FQDN(listName, d.MailHost)
	return &MailingList{
		DomainID:     d.ID,
		ListName:     listName,
		MailHost:     d.MailHost,
		FQDNListname: fqdn,
		ListID:       ListIDFor(fqdn),
		DisplayName:  displayName,
	}, nil
}

// Validate 检查 fqdn_listname 与各组成部分一致
func (l *MailingList) Validate() error {
	if l.ListName == "" {
		return ErrMissingListName
	}
	if l.MailHost == "" {
		return ErrMissingMailHost
	}
	if l.FQDNListname != FQDN(l.ListName, l.MailHost) {
		return fmt.Errorf("%w: %s", ErrFQDNMismatch, l.FQDNListname)
	}
	return nil
}

// SplitFQDN 把 fqdn_listname 拆为列表名与邮件域
func SplitFQDN(fqdn string) (listName, mailHost string, ok bool) {
	i := strings.LastIndex(fqdn, "@")
	if i <= 0 || i == len(fqdn)-1 {
		return "", "", false
	}
	return fqdn[:i], fqdn[i+1:], true
}

func (l *MailingList) Field(name string) (any, bool) {
	switch name {
	case "id":
		return l.ID, true
	case "partial_url":
		return l.PartialURL, true
	case "domain_id":
		return l.DomainID, true
	case "list_name":
		return l.ListName, true
	case "mail_host":
		return l.MailHost, true
	case "fqdn_listname":
		return l.FQDNListname, true
	case "list_id":
		return l.ListID, true
	case "display_name":
		return l.DisplayName, true
	case "created_at":
		return l.CreatedAt, true
	}
	return nil, false
}

func (l *MailingList) SetField(name string, value any) (err error) {
	switch name {
	case "id":
		l.ID, err = asUint64(name, value)
	case "partial_url":
		l.PartialURL, err = asString(name, value)
	case "domain_id":
		l.DomainID, err = asUint64(name, value)
	case "list_name":
		l.ListName, err = asString(name, value)
	case "mail_host":
		l.MailHost, err = asString(name, value)
	case "fqdn_listname":
		l.FQDNListname, err = asString(name, value)
	case "list_id":
		l.ListID, err = asString(name, value)
	case "display_name":
		l.DisplayName, err = asString(name, value)
	case "created_at":
		l.CreatedAt, err = asTime(name, value)
	default:
		err = unknown(KindMailingList, name)
	}
	return err
}
