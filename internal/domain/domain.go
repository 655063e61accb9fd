package domain

import (
	"strings"
	"time"
)

// Domain 邮件域，拥有多个邮件列表
type Domain struct {
	ID             uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	PartialURL     string    `json:"partialUrl" gorm:"column:partial_url;type:varchar(255);index"`
	MailHost       string    `json:"mailHost" gorm:"column:mail_host;type:varchar(255);uniqueIndex;not null"`
	BaseURL        string    `json:"baseUrl" gorm:"column:base_url;type:varchar(255)"`
	ContactAddress string    `json:"contactAddress" gorm:"column:contact_address;type:varchar(255)"`
	Description    string    `json:"description" gorm:"column:description;type:text"`
	CreatedAt      time.Time `json:"createdAt" gorm:"column:created_at"`
}

// TableName 指定表名
func (Domain) TableName() string { return "domains" }

func (d *Domain) Kind() Kind              { return KindDomain }
func (d *Domain) PK() uint64              { return d.ID }
func (d *Domain) PeerPath() string        { return d.PartialURL }
func (d *Domain) SetPeerPath(path string) { d.PartialURL = path }

// URLHost 返回 base_url 中的主机名
func (d *Domain) URLHost() string {
	host := d.BaseURL
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/:"); i >= 0 {
		host = host[:i]
	}
	return host
}

func (d *Domain) Field(name string) (any, bool) {
	switch name {
	case "id":
		return d.ID, true
	case "partial_url":
		return d.PartialURL, true
	case "mail_host":
		return d.MailHost, true
	case "base_url":
		return d.BaseURL, true
	case "contact_address":
		return d.ContactAddress, true
	case "description":
		return d.Description, true
	case "created_at":
		return d.CreatedAt, true
	}
	return nil, false
}

func (d *Domain) SetField(name string, value any) (err error) {
	switch name {
	case "id":
		d.ID, err = asUint64(name, value)
	case "partial_url":
		d.PartialURL, err = asString(name, value)
	case "mail_host":
		d.MailHost, err = asString(name, value)
	case "base_url":
		d.BaseURL, err = asString(name, value)
	case "contact_address":
		d.ContactAddress, err = asString(name, value)
	case "description":
		d.Description, err = asString(name, value)
	case "created_at":
		d.CreatedAt, err = asTime(name, value)
	default:
		err = unknown(KindDomain, name)
	}
	return err
}
