package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"mailmirror/backend/internal/domain"
	"mailmirror/backend/internal/storage"
)

// ErrInvalidOwner 偏好只能归属于用户、邮箱或成员资格
var ErrInvalidOwner = errors.New("preferences owner must be a user, email or membership")

// Owner 偏好的归属记录
type Owner struct {
	Kind domain.Kind
	ID   uint64
}

func (o Owner) validate() error {
	switch o.Kind {
	case domain.KindUser, domain.KindEmail, domain.KindMembership:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidOwner, o.Kind)
}

// PreferencesService 投递偏好服务
type PreferencesService struct {
	store  storage.Store
	sync   Syncer
	logger *zap.Logger
}

// NewPreferencesService 创建偏好服务
func NewPreferencesService(store storage.Store, sync Syncer, logger *zap.Logger) *PreferencesService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreferencesService{store: store, sync: sync, logger: logger}
}

// Get 返回归属记录的偏好
func (s *PreferencesService) Get(owner Owner) (*domain.Preferences, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	return s.store.GetPreferences(owner.Kind, owner.ID)
}

// Replace 以 PUT 语义写入偏好
//
// values 中的键覆盖原值，nil 清除该键；未给出的键保留原值。
// 远端收到的是写入后的完整偏好。
func (s *PreferencesService) Replace(ctx context.Context, owner Owner, values map[string]any) (*domain.Preferences, error) {
	return s.apply(ctx, owner, values, true)
}

// Patch 只写入非空的值
func (s *PreferencesService) Patch(ctx context.Context, owner Owner, values map[string]any) (*domain.Preferences, error) {
	return s.apply(ctx, owner, values, false)
}

func (s *PreferencesService) apply(ctx context.Context, owner Owner, values map[string]any, clear bool) (*domain.Preferences, error) {
	prefs, err := s.Get(owner)
	if err != nil {
		return nil, err
	}
	for key, value := range values {
		if value == nil && !clear {
			continue
		}
		if err := prefs.Set(key, value); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdatePreferences(prefs); err != nil {
		return nil, fmt.Errorf("update preferences: %w", err)
	}
	if err := syncUpdate(ctx, s.sync, prefs); err != nil {
		return nil, err
	}
	s.logger.Debug("preferences updated",
		zap.String("owner_kind", string(owner.Kind)),
		zap.Uint64("owner_id", owner.ID),
		zap.Int("keys", len(values)),
	)
	return prefs, nil
}
