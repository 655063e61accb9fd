package domain

import "time"

// User 订阅者账户
//
// PasswordHash 只保存在本地，从不发送到远端。
type User struct {
	ID               uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	PartialURL       string    `json:"partialUrl" gorm:"column:partial_url;type:varchar(255);index"`
	DisplayName      *string   `json:"displayName,omitempty" gorm:"column:display_name;type:varchar(255);uniqueIndex"`
	PasswordHash     string    `json:"-" gorm:"column:password_hash;type:varchar(255)"`
	PreferredEmailID *uint64   `json:"preferredEmailId,omitempty" gorm:"column:preferred_email_id"`
	IsSuperuser      bool      `json:"isSuperuser" gorm:"column:is_superuser"`
	CreatedOn        time.Time `json:"createdOn" gorm:"column:created_on"`
}

// TableName 指定表名
func (User) TableName() string { return "users" }

func (u *User) Kind() Kind              { return KindUser }
func (u *User) PK() uint64              { return u.ID }
func (u *User) PeerPath() string        { return u.PartialURL }
func (u *User) SetPeerPath(path string) { u.PartialURL = path }

// Name 返回显示名，未设置时为空字符串
func (u *User) Name() string {
	if u.DisplayName == nil {
		return ""
	}
	return *u.DisplayName
}

// HasPreferred 判断是否已设置首选邮箱
func (u *User) HasPreferred() bool {
	return u.PreferredEmailID != nil
}

func (u *User) Field(name string) (any, bool) {
	switch name {
	case "id":
		return u.ID, true
	case "partial_url":
		return u.PartialURL, true
	case "display_name":
		return u.DisplayName, true
	case "password_hash":
		return u.PasswordHash, true
	case "preferred_email_id":
		return u.PreferredEmailID, true
	case "is_superuser":
		return u.IsSuperuser, true
	case "created_on":
		return u.CreatedOn, true
	}
	return nil, false
}

func (u *User) SetField(name string, value any) (err error) {
	switch name {
	case "id":
		u.ID, err = asUint64(name, value)
	case "partial_url":
		u.PartialURL, err = asString(name, value)
	case "display_name":
		u.DisplayName, err = asStringPtr(name, value)
		if err == nil && u.DisplayName != nil && *u.DisplayName == "" {
			u.DisplayName = nil
		}
	case "password_hash":
		u.PasswordHash, err = asString(name, value)
	case "preferred_email_id":
		u.PreferredEmailID, err = asUint64Ptr(name, value)
	case "is_superuser":
		u.IsSuperuser, err = asBool(name, value)
	case "created_on":
		u.CreatedOn, err = asTime(name, value)
	default:
		err = unknown(KindUser, name)
	}
	return err
}
