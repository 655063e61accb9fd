package domain

import "time"

// Membership 用户以某个角色加入列表
type Membership struct {
	ID            uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	PartialURL    string    `json:"partialUrl" gorm:"column:partial_url;type:varchar(255);index"`
	UserID        uint64    `json:"userId" gorm:"column:user_id;index;not null"`
	MailingListID uint64    `json:"mailingListId" gorm:"column:mailing_list_id;not null;uniqueIndex:idx_membership_identity"`
	Address       string    `json:"address" gorm:"column:address;type:varchar(255);not null;uniqueIndex:idx_membership_identity"`
	Role          Role      `json:"role" gorm:"column:role;type:varchar(20);not null;uniqueIndex:idx_membership_identity"`
	CreatedAt     time.Time `json:"createdAt" gorm:"column:created_at"`
}

// TableName 指定表名
func (Membership) TableName() string { return "memberships" }

func (m *Membership) Kind() Kind              { return KindMembership }
func (m *Membership) PK() uint64              { return m.ID }
func (m *Membership) PeerPath() string        { return m.PartialURL }
func (m *Membership) SetPeerPath(path string) { m.PartialURL = path }

func (m *Membership) Field(name string) (any, bool) {
	switch name {
	case "id":
		return m.ID, true
	case "partial_url":
		return m.PartialURL, true
	case "user_id":
		return m.UserID, true
	case "mailing_list_id":
		return m.MailingListID, true
	case "address":
		return m.Address, true
	case "role":
		return m.Role, true
	case "created_at":
		return m.CreatedAt, true
	}
	return nil, false
}

func (m *Membership) SetField(name string, value any) (err error) {
	switch name {
	case "id":
		m.ID, err = asUint64(name, value)
	case "partial_url":
		m.PartialURL, err = asString(name, value)
	case "user_id":
		m.UserID, err = asUint64(name, value)
	case "mailing_list_id":
		m.MailingListID, err = asUint64(name, value)
	case "address":
		m.Address, err = asString(name, value)
	case "role":
		var s string
		if s, err = asString(name, value); err == nil {
			if r := Role(s); r.Valid() {
				m.Role = r
			} else {
				err = ErrInvalidRole
			}
		}
	case "created_at":
		m.CreatedAt, err = asTime(name, value)
	default:
		err = unknown(KindMembership, name)
	}
	return err
}
