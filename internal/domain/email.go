package domain

import (
	"sort"
	"time"
)

// Email 用户名下的邮箱地址
type Email struct {
	ID         uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	PartialURL string    `json:"partialUrl" gorm:"column:partial_url;type:varchar(255);index"`
	UserID     uint64    `json:"userId" gorm:"column:user_id;index;not null"`
	Address    string    `json:"address" gorm:"column:address;type:varchar(255);uniqueIndex;not null"`
	Verified   bool      `json:"verified" gorm:"column:verified"`
	CreatedAt  time.Time `json:"createdAt" gorm:"column:created_at"`
}

// TableName 指定表名
func (Email) TableName() string { return "emails" }

func (e *Email) Kind() Kind              { return KindEmail }
func (e *Email) PK() uint64              { return e.ID }
func (e *Email) PeerPath() string        { return e.PartialURL }
func (e *Email) SetPeerPath(path string) { e.PartialURL = path }

func (e *Email) Field(name string) (any, bool) {
	switch name {
	case "id":
		return e.ID, true
	case "partial_url":
		return e.PartialURL, true
	case "user_id":
		return e.UserID, true
	case "address":
		return e.Address, true
	case "verified":
		return e.Verified, true
	case "created_at":
		return e.CreatedAt, true
	}
	return nil, false
}

func (e *Email) SetField(name string, value any) (err error) {
	switch name {
	case "id":
		e.ID, err = asUint64(name, value)
	case "partial_url":
		e.PartialURL, err = asString(name, value)
	case "user_id":
		e.UserID, err = asUint64(name, value)
	case "address":
		e.Address, err = asString(name, value)
	case "verified":
		e.Verified, err = asBool(name, value)
	case "created_at":
		e.CreatedAt, err = asTime(name, value)
	default:
		err = unknown(KindEmail, name)
	}
	return err
}

// ReassignPreferred 计算删除某个邮箱后用户的首选邮箱
//
// emails 为该用户当前全部邮箱。仅剩一个邮箱时返回 ErrLastEmail；
// 被删除的不是首选邮箱时原样返回 preferred；否则返回 ID 最小的其余邮箱。
func ReassignPreferred(emails []*Email, preferred *uint64, deleting uint64) (*uint64, error) {
	others := make([]*Email, 0, len(emails))
	for _, e := range emails {
		if e.ID != deleting {
			others = append(others, e)
		}
	}
	if len(others) == 0 {
		return nil, ErrLastEmail
	}
	if preferred == nil || *preferred != deleting {
		return preferred, nil
	}
	sort.Slice(others, func(i, j int) bool { return others[i].ID < others[j].ID })
	next := others[0].ID
	return &next, nil
}
