package domain

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
)

// 验证相关的错误定义
var (
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrEmailTooLong     = errors.New("email address too long")
	ErrLocalPartTooLong = errors.New("local part too long (max 64 chars)")
	ErrInvalidDomain    = errors.New("invalid domain format")
	ErrInvalidListName  = errors.New("invalid list name")
	ErrPasswordTooShort = errors.New("password too short (min 8 chars)")
	ErrPasswordTooLong  = errors.New("password too long (max 128 chars)")
)

// 验证常量
const (
	// RFC 5322 邮箱地址长度限制
	MaxEmailLength     = 254
	MaxLocalPartLength = 64
	MaxDomainLength    = 253

	MinPasswordLength = 8
	MaxPasswordLength = 128
)

var (
	// 域名验证（支持子域名）
	domainRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

	// 列表名只允许作为邮箱本地部分的安全字符
	listNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._+-]*$`)
)

// NormalizeAddress 去除空白并统一为小写
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// ValidateAddress 验证订阅地址
func ValidateAddress(address string) error {
	address = NormalizeAddress(address)
	if address == "" {
		return ErrInvalidEmail
	}
	if len(address) > MaxEmailLength {
		return ErrEmailTooLong
	}

	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Address != address {
		return ErrInvalidEmail
	}

	at := strings.LastIndex(address, "@")
	if at <= 0 {
		return ErrInvalidEmail
	}
	if at > MaxLocalPartLength {
		return ErrLocalPartTooLong
	}
	return ValidateMailHost(address[at+1:])
}

// ValidateMailHost 验证邮件域名
func ValidateMailHost(host string) error {
	if host == "" || len(host) > MaxDomainLength {
		return ErrInvalidDomain
	}
	if !domainRegex.MatchString(host) {
		return ErrInvalidDomain
	}
	return nil
}

// ValidateListName 验证列表名
func ValidateListName(name string) error {
	if name == "" {
		return ErrMissingListName
	}
	if len(name) > MaxLocalPartLength || !listNameRegex.MatchString(name) {
		return ErrInvalidListName
	}
	return nil
}

// ValidatePassword 验证密码长度
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}
