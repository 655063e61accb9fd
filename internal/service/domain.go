package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"mailmirror/backend/internal/domain"
	"mailmirror/backend/internal/storage"
)

// DomainService 邮件域服务
type DomainService struct {
	store  storage.Store
	sync   Syncer
	logger *zap.Logger
}

// NewDomainService 创建邮件域服务
func NewDomainService(store storage.Store, sync Syncer, logger *zap.Logger) *DomainService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DomainService{store: store, sync: sync, logger: logger}
}

// CreateDomainInput 创建邮件域输入
type CreateDomainInput struct {
	MailHost       string
	BaseURL        string
	ContactAddress string
	Description    string
}

// Create 创建邮件域并同步到远端
func (s *DomainService) Create(ctx context.Context, input CreateDomainInput) (*domain.Domain, error) {
	mailHost := strings.ToLower(strings.TrimSpace(input.MailHost))
	if err := domain.ValidateMailHost(mailHost); err != nil {
		return nil, err
	}
	if input.ContactAddress != "" {
		if err := domain.ValidateAddress(input.ContactAddress); err != nil {
			return nil, fmt.Errorf("contact address: %w", err)
		}
	}
	baseURL := input.BaseURL
	if baseURL == "" {
		baseURL = "http://" + mailHost
	}

	d := &domain.Domain{
		MailHost:       mailHost,
		BaseURL:        baseURL,
		ContactAddress: input.ContactAddress,
		Description:    input.Description,
	}
	if err := s.store.CreateDomain(d); err != nil {
		return nil, fmt.Errorf("create domain: %w", err)
	}
	if err := s.sync.Sync(ctx, d, true); err != nil {
		return nil, err
	}

	s.logger.Info("domain created", zap.Uint64("domain_id", d.ID), zap.String("mail_host", d.MailHost))
	return d, nil
}

// Get 按 ID 获取邮件域
func (s *DomainService) Get(id uint64) (*domain.Domain, error) {
	d, err := s.store.GetDomain(id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrDomainNotFound
		}
		return nil, err
	}
	return d, nil
}

// GetByMailHost 按邮件主机获取邮件域，本地不存在时从远端拉取
func (s *DomainService) GetByMailHost(ctx context.Context, mailHost string) (*domain.Domain, error) {
	rows, err := s.sync.Domains(ctx, domain.Filter{"mail_host": strings.ToLower(mailHost)})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrDomainNotFound
	}
	return rows[0], nil
}

// List 按条件列出邮件域
func (s *DomainService) List(ctx context.Context, f domain.Filter) ([]*domain.Domain, error) {
	return s.sync.Domains(ctx, f)
}

// Delete 删除邮件域及其下的列表
func (s *DomainService) Delete(ctx context.Context, id uint64) error {
	d, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := s.sync.Delete(ctx, d); err != nil {
		return err
	}
	s.logger.Info("domain deleted", zap.Uint64("domain_id", id), zap.String("mail_host", d.MailHost))
	return nil
}
