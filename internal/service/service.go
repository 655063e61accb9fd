// Package service 提供面向调用方的邮件列表业务操作。
//
// 每个写操作先提交本地存储，再交给同步层与远端对齐。
package service

import (
	"context"
	"errors"

	"mailmirror/backend/internal/domain"
)

var (
	// ErrDomainNotFound 邮件域不存在
	ErrDomainNotFound = errors.New("domain not found")
	// ErrListNotFound 邮件列表不存在
	ErrListNotFound = errors.New("mailing list not found")
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailNotFound 邮箱不存在
	ErrEmailNotFound = errors.New("email not found")
	// ErrEmailExists 邮箱已被使用
	ErrEmailExists = errors.New("email already exists")
	// ErrAlreadySubscribed 地址已经以该角色加入列表
	ErrAlreadySubscribed = errors.New("address already subscribed with this role")
	// ErrNotSubscribed 地址没有以该角色加入列表
	ErrNotSubscribed = errors.New("address is not subscribed with this role")
	// ErrReadOnlySetting 列表配置字段只读
	ErrReadOnlySetting = errors.New("list setting is read-only")
	// ErrNotSynced 记录尚未与远端绑定，无法执行远端操作
	ErrNotSynced = errors.New("record is not synced to remote")
)

// Syncer 同步层，由 *binding.Binder 实现
type Syncer interface {
	Sync(ctx context.Context, rec domain.Record, created bool) error
	SyncFields(ctx context.Context, rec domain.Record, fields []string) error
	Delete(ctx context.Context, rec domain.Record) error

	Domains(ctx context.Context, f domain.Filter) ([]*domain.Domain, error)
	MailingLists(ctx context.Context, f domain.Filter) ([]*domain.MailingList, error)
	Users(ctx context.Context, f domain.Filter) ([]*domain.User, error)
	Emails(ctx context.Context, f domain.Filter) ([]*domain.Email, error)
	Memberships(ctx context.Context, f domain.Filter) ([]*domain.Membership, error)
}

// syncUpdate 推送本地修改；记录在本次同步中才完成绑定时再推送一次
//
// 传入 fields 时只推送这些字段。
func syncUpdate(ctx context.Context, sync Syncer, rec domain.Record, fields ...string) error {
	push := func() error {
		if fields == nil {
			return sync.Sync(ctx, rec, false)
		}
		return sync.SyncFields(ctx, rec, fields)
	}
	bound := rec.PeerPath() != ""
	if err := push(); err != nil {
		return err
	}
	if !bound && rec.PeerPath() != "" {
		return push()
	}
	return nil
}
