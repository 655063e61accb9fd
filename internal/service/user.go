package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"mailmirror/backend/internal/adaptor"
	"mailmirror/backend/internal/core"
	"mailmirror/backend/internal/domain"
	"mailmirror/backend/internal/storage"
)

// UserService 用户与邮箱服务
type UserService struct {
	store  storage.Store
	sync   Syncer
	conn   adaptor.Caller
	logger *zap.Logger
}

// NewUserService 创建用户服务
func NewUserService(store storage.Store, sync Syncer, conn adaptor.Caller, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{store: store, sync: sync, conn: conn, logger: logger}
}

// CreateUserInput 创建用户输入
type CreateUserInput struct {
	Email       string
	DisplayName string
	Password    string // 为空时不设置密码
	IsSuperuser bool
}

// HashPassword 使用 bcrypt 生成密码哈希
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Create 创建用户及其首选邮箱，并同步到远端
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	address := domain.NormalizeAddress(input.Email)
	if err := domain.ValidateAddress(address); err != nil {
		return nil, err
	}

	var hash string
	if input.Password != "" {
		if err := domain.ValidatePassword(input.Password); err != nil {
			return nil, err
		}
		var err error
		if hash, err = HashPassword(input.Password); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}

	if _, err := s.store.GetEmailByAddress(address); err == nil {
		return nil, ErrEmailExists
	} else if !storage.IsNotFound(err) {
		return nil, err
	}

	user := &domain.User{PasswordHash: hash, IsSuperuser: input.IsSuperuser}
	if name := strings.TrimSpace(input.DisplayName); name != "" {
		user.DisplayName = &name
	}
	email := &domain.Email{Address: address}
	if err := s.store.CreateUserWithEmail(user, email); err != nil {
		// 检查之后其他调用方可能已写入同一地址
		if storage.IsDuplicate(err) {
			if _, lerr := s.store.GetEmailByAddress(address); lerr == nil {
				return nil, ErrEmailExists
			}
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.sync.Sync(ctx, user, true); err != nil {
		return nil, err
	}
	if err := s.sync.Sync(ctx, email, true); err != nil {
		return nil, err
	}
	if input.Password != "" {
		if err := s.pushPassword(ctx, user, input.Password); err != nil {
			return nil, err
		}
	}

	s.logger.Info("user created", zap.Uint64("user_id", user.ID), zap.String("email", address))
	return user, nil
}

// ensureEmail 返回地址对应的邮箱，本地和远端都不存在时新建用户
func (s *UserService) ensureEmail(ctx context.Context, address string) (*domain.Email, error) {
	rows, err := s.sync.Emails(ctx, domain.Filter{"address": address})
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return rows[0], nil
	}
	if _, err := s.Create(ctx, CreateUserInput{Email: address}); err != nil {
		return nil, err
	}
	return s.store.GetEmailByAddress(address)
}

// Get 按 ID 获取用户
func (s *UserService) Get(id uint64) (*domain.User, error) {
	user, err := s.store.GetUser(id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// List 按条件列出用户
func (s *UserService) List(ctx context.Context, f domain.Filter) ([]*domain.User, error) {
	return s.sync.Users(ctx, f)
}

// AddEmail 为用户添加邮箱，用户尚无首选邮箱时设为首选
func (s *UserService) AddEmail(ctx context.Context, userID uint64, address string) (*domain.Email, error) {
	address = domain.NormalizeAddress(address)
	if err := domain.ValidateAddress(address); err != nil {
		return nil, err
	}
	user, err := s.Get(userID)
	if err != nil {
		return nil, err
	}
	existing, err := s.sync.Emails(ctx, domain.Filter{"address": address})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, ErrEmailExists
	}

	email := &domain.Email{UserID: user.ID, Address: address}
	if err := s.store.CreateEmail(email, nil); err != nil {
		if storage.IsDuplicate(err) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create email: %w", err)
	}
	if !user.HasPreferred() {
		user.PreferredEmailID = &email.ID
		if err := s.store.UpdateUser(user); err != nil {
			return nil, fmt.Errorf("set preferred email: %w", err)
		}
	}

	if user.PartialURL == "" {
		if err := s.sync.Sync(ctx, user, false); err != nil {
			return nil, err
		}
	}
	if err := s.sync.Sync(ctx, email, true); err != nil {
		return nil, err
	}
	return email, nil
}

// GetEmail 按地址获取邮箱，本地不存在时从远端拉取
func (s *UserService) GetEmail(ctx context.Context, address string) (*domain.Email, error) {
	rows, err := s.sync.Emails(ctx, domain.Filter{"address": domain.NormalizeAddress(address)})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmailNotFound
	}
	return rows[0], nil
}

// Emails 返回用户的全部邮箱
func (s *UserService) Emails(ctx context.Context, userID uint64) ([]*domain.Email, error) {
	return s.sync.Emails(ctx, domain.Filter{"user_id": userID})
}

func (s *UserService) getEmail(id uint64) (*domain.Email, error) {
	email, err := s.store.GetEmail(id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrEmailNotFound
		}
		return nil, err
	}
	return email, nil
}

// SetPreferredEmail 设置首选邮箱，邮箱必须属于该用户
func (s *UserService) SetPreferredEmail(ctx context.Context, userID, emailID uint64) (*domain.User, error) {
	user, err := s.Get(userID)
	if err != nil {
		return nil, err
	}
	email, err := s.getEmail(emailID)
	if err != nil {
		return nil, err
	}
	if email.UserID != user.ID {
		return nil, domain.ErrPreferredNotOwned
	}

	user.PreferredEmailID = &email.ID
	if err := s.store.UpdateUser(user); err != nil {
		return nil, err
	}
	if err := s.sync.Sync(ctx, user, false); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteEmail 删除邮箱
//
// 用户只剩这一个邮箱时返回 domain.ErrLastEmail；删除的是首选邮箱时，
// 首选改为 ID 最小的其余邮箱。
func (s *UserService) DeleteEmail(ctx context.Context, emailID uint64) error {
	email, err := s.getEmail(emailID)
	if err != nil {
		return err
	}
	user, err := s.Get(email.UserID)
	if err != nil {
		return err
	}
	emails, err := s.store.FilterEmails(domain.Filter{"user_id": user.ID})
	if err != nil {
		return err
	}
	if _, err := domain.ReassignPreferred(emails, user.PreferredEmailID, email.ID); err != nil {
		return err
	}

	if err := s.sync.Delete(ctx, email); err != nil {
		return err
	}
	if user.PreferredEmailID == nil || *user.PreferredEmailID != email.ID {
		return nil
	}

	// 首选邮箱已由存储层重新指定，推送到远端
	updated, err := s.Get(user.ID)
	if err != nil {
		return err
	}
	return s.sync.Sync(ctx, updated, false)
}

// VerifyEmail 把邮箱标记为已验证
func (s *UserService) VerifyEmail(ctx context.Context, emailID uint64) (*domain.Email, error) {
	email, err := s.getEmail(emailID)
	if err != nil {
		return nil, err
	}
	if email.PartialURL != "" {
		if err := adaptor.NewAddress(s.conn, email.PartialURL).Verify(ctx); err != nil {
			if !core.IsConnectionError(err) {
				return nil, fmt.Errorf("verify %s: %w", email.Address, err)
			}
			s.logger.Warn("remote unreachable, verifying locally only",
				zap.String("email", email.Address), zap.Error(err))
		}
	}

	email.Verified = true
	if err := s.store.UpdateEmail(email); err != nil {
		return nil, err
	}
	return email, nil
}

// SetPassword 修改密码
//
// 本地只保存 bcrypt 哈希，明文仅随 PATCH 发送到远端。
func (s *UserService) SetPassword(ctx context.Context, userID uint64, password string) error {
	if err := domain.ValidatePassword(password); err != nil {
		return err
	}
	user, err := s.Get(userID)
	if err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	if err := s.store.UpdateUser(user); err != nil {
		return err
	}
	return s.pushPassword(ctx, user, password)
}

func (s *UserService) pushPassword(ctx context.Context, user *domain.User, password string) error {
	if user.PartialURL == "" {
		return nil
	}
	remote := adaptor.NewUser(s.conn, user.PartialURL)
	remote.SetPassword(password)
	if err := remote.Save(ctx); err != nil {
		if core.IsConnectionError(err) {
			s.logger.Warn("remote unreachable, password kept locally",
				zap.Uint64("user_id", user.ID), zap.Error(err))
			return nil
		}
		return fmt.Errorf("push password: %w", err)
	}
	return nil
}

// CheckPassword 校验密码
func (s *UserService) CheckPassword(userID uint64, password string) (bool, error) {
	user, err := s.Get(userID)
	if err != nil {
		return false, err
	}
	if user.PasswordHash == "" {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil, nil
}

// Delete 删除用户及其邮箱与成员资格
func (s *UserService) Delete(ctx context.Context, userID uint64) error {
	user, err := s.Get(userID)
	if err != nil {
		return err
	}
	if err := s.sync.Delete(ctx, user); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.Uint64("user_id", userID))
	return nil
}
