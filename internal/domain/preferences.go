package domain

// PreferenceKeys 偏好设置的固定键集合
var PreferenceKeys = []string{
	"acknowledge_posts",
	"delivery_mode",
	"delivery_status",
	"hide_address",
	"preferred_language",
	"receive_list_copy",
	"receive_own_postings",
}

// Preferences 投递偏好，归属于 User、Email 或 Membership 之一
//
// 全部偏好字段可为空，空值表示沿用上级默认。
type Preferences struct {
	ID                 uint64  `json:"id" gorm:"primaryKey;autoIncrement"`
	PartialURL         string  `json:"partialUrl" gorm:"column:partial_url;type:varchar(255);index"`
	OwnerKind          Kind    `json:"ownerKind" gorm:"column:owner_kind;type:varchar(20);not null;uniqueIndex:idx_preferences_owner"`
	OwnerID            uint64  `json:"ownerId" gorm:"column:owner_id;not null;uniqueIndex:idx_preferences_owner"`
	AcknowledgePosts   *bool   `json:"acknowledge_posts" gorm:"column:acknowledge_posts"`
	DeliveryMode       *string `json:"delivery_mode" gorm:"column:delivery_mode;type:varchar(50)"`
	DeliveryStatus     *string `json:"delivery_status" gorm:"column:delivery_status;type:varchar(50)"`
	HideAddress        *bool   `json:"hide_address" gorm:"column:hide_address"`
	PreferredLanguage  *string `json:"preferred_language" gorm:"column:preferred_language;type:varchar(20)"`
	ReceiveListCopy    *bool   `json:"receive_list_copy" gorm:"column:receive_list_copy"`
	ReceiveOwnPostings *bool   `json:"receive_own_postings" gorm:"column:receive_own_postings"`
}

// TableName 指定表名
func (Preferences) TableName() string { return "preferences" }

// NewPreferences 为指定归属创建空偏好
func NewPreferences(owner Record) *Preferences {
	return &Preferences{OwnerKind: owner.Kind(), OwnerID: owner.PK()}
}

func (p *Preferences) Kind() Kind              { return KindPreferences }
func (p *Preferences) PK() uint64              { return p.ID }
func (p *Preferences) PeerPath() string        { return p.PartialURL }
func (p *Preferences) SetPeerPath(path string) { p.PartialURL = path }

// Keys 返回偏好键列表
func (p *Preferences) Keys() []string {
	out := make([]string, len(PreferenceKeys))
	copy(out, PreferenceKeys)
	return out
}

// Get 按键读取偏好值，未设置时返回 nil
func (p *Preferences) Get(key string) (any, bool) {
	switch key {
	case "acknowledge_posts":
		return derefBool(p.AcknowledgePosts), true
	case "delivery_mode":
		return derefString(p.DeliveryMode), true
	case "delivery_status":
		return derefString(p.DeliveryStatus), true
	case "hide_address":
		return derefBool(p.HideAddress), true
	case "preferred_language":
		return derefString(p.PreferredLanguage), true
	case "receive_list_copy":
		return derefBool(p.ReceiveListCopy), true
	case "receive_own_postings":
		return derefBool(p.ReceiveOwnPostings), true
	}
	return nil, false
}

// Set 按键写入偏好值，nil 表示清除
func (p *Preferences) Set(key string, value any) (err error) {
	switch key {
	case "acknowledge_posts":
		p.AcknowledgePosts, err = asBoolPtr(key, value)
	case "delivery_mode":
		p.DeliveryMode, err = asStringPtr(key, value)
	case "delivery_status":
		p.DeliveryStatus, err = asStringPtr(key, value)
	case "hide_address":
		p.HideAddress, err = asBoolPtr(key, value)
	case "preferred_language":
		p.PreferredLanguage, err = asStringPtr(key, value)
	case "receive_list_copy":
		p.ReceiveListCopy, err = asBoolPtr(key, value)
	case "receive_own_postings":
		p.ReceiveOwnPostings, err = asBoolPtr(key, value)
	default:
		err = unknown(KindPreferences, key)
	}
	return err
}

// Values 返回全部已设置的偏好
func (p *Preferences) Values() map[string]any {
	out := make(map[string]any, len(PreferenceKeys))
	for _, key := range PreferenceKeys {
		if v, _ := p.Get(key); v != nil {
			out[key] = v
		}
	}
	return out
}

func (p *Preferences) Field(name string) (any, bool) {
	switch name {
	case "id":
		return p.ID, true
	case "partial_url":
		return p.PartialURL, true
	case "owner_kind":
		return p.OwnerKind, true
	case "owner_id":
		return p.OwnerID, true
	}
	return p.Get(name)
}

func (p *Preferences) SetField(name string, value any) (err error) {
	switch name {
	case "id":
		p.ID, err = asUint64(name, value)
		return err
	case "partial_url":
		p.PartialURL, err = asString(name, value)
		return err
	case "owner_kind":
		var s string
		s, err = asString(name, value)
		p.OwnerKind = Kind(s)
		return err
	case "owner_id":
		p.OwnerID, err = asUint64(name, value)
		return err
	}
	return p.Set(name, value)
}

func derefBool(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

func derefString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
