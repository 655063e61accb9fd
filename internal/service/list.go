package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"mailmirror/backend/internal/adaptor"
	"mailmirror/backend/internal/domain"
	"mailmirror/backend/internal/storage"
)

// ListService 邮件列表服务
type ListService struct {
	store  storage.Store
	sync   Syncer
	conn   adaptor.Caller
	users  *UserService
	logger *zap.Logger
}

// NewListService 创建邮件列表服务
func NewListService(store storage.Store, sync Syncer, conn adaptor.Caller, logger *zap.Logger) *ListService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListService{
		store:  store,
		sync:   sync,
		conn:   conn,
		users:  NewUserService(store, sync, conn, logger),
		logger: logger,
	}
}

// CreateListInput 创建列表输入
type CreateListInput struct {
	ListName      string
	DisplayName   string
	Description   string
	Advertised    *bool // 为空时沿用默认值
	SubjectPrefix string
}

func (in CreateListInput) settings() map[string]any {
	values := make(map[string]any)
	if in.Description != "" {
		values["description"] = in.Description
	}
	if in.Advertised != nil {
		values["advertised"] = *in.Advertised
	}
	if in.SubjectPrefix != "" {
		values["subject_prefix"] = in.SubjectPrefix
	}
	return values
}

// ListFilter 列表查询条件
type ListFilter struct {
	DomainID       uint64
	OnlyAdvertised bool
}

// CreateList 在邮件域下创建列表及其配置
func (s *ListService) CreateList(ctx context.Context, domainID uint64, input CreateListInput) (*domain.MailingList, error) {
	d, err := s.store.GetDomain(domainID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrDomainNotFound
		}
		return nil, err
	}
	if err := domain.ValidateListName(strings.ToLower(input.ListName)); err != nil {
		return nil, err
	}

	list, err := domain.NewMailingList(d, input.ListName, input.DisplayName)
	if err != nil {
		return nil, err
	}
	if err := list.Validate(); err != nil {
		return nil, err
	}

	settings := domain.NewListSettings(list)
	if input.Description != "" {
		settings.Description = input.Description
	}
	if input.Advertised != nil {
		settings.Advertised = *input.Advertised
	}
	if input.SubjectPrefix != "" {
		settings.SubjectPrefix = input.SubjectPrefix
	}

	if err := s.store.CreateMailingList(list, settings); err != nil {
		return nil, fmt.Errorf("create mailing list: %w", err)
	}
	if err := s.sync.Sync(ctx, list, true); err != nil {
		return nil, err
	}
	// 远端列表使用自己的默认配置，显式给出的配置项单独推送
	if values := input.settings(); len(values) > 0 && list.PartialURL != "" {
		if _, err := s.UpdateSettings(ctx, list.ID, values); err != nil {
			return nil, err
		}
	}

	s.logger.Info("mailing list created",
		zap.Uint64("list_id", list.ID),
		zap.String("fqdn_listname", list.FQDNListname),
	)
	return list, nil
}

// Get 按 ID 获取列表
func (s *ListService) Get(id uint64) (*domain.MailingList, error) {
	list, err := s.store.GetMailingList(id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrListNotFound
		}
		return nil, err
	}
	return list, nil
}

// GetByFQDN 按完整列表地址获取列表，本地不存在时从远端拉取
func (s *ListService) GetByFQDN(ctx context.Context, fqdn string) (*domain.MailingList, error) {
	rows, err := s.sync.MailingLists(ctx, domain.Filter{"fqdn_listname": strings.ToLower(fqdn)})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrListNotFound
	}
	return rows[0], nil
}

// List 列出列表，OnlyAdvertised 时只返回公开列表
func (s *ListService) List(ctx context.Context, filter ListFilter) ([]*domain.MailingList, error) {
	f := domain.Filter{}
	if filter.DomainID != 0 {
		f["domain_id"] = filter.DomainID
	}
	lists, err := s.sync.MailingLists(ctx, f)
	if err != nil {
		return nil, err
	}
	if !filter.OnlyAdvertised {
		return lists, nil
	}

	public := make([]*domain.MailingList, 0, len(lists))
	for _, list := range lists {
		settings, err := s.store.GetListSettings(list.ID)
		if err != nil {
			if storage.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if settings.Advertised {
			public = append(public, list)
		}
	}
	return public, nil
}

// Subscribe 以指定角色订阅地址
//
// 地址在本地和远端都不存在时，先为它创建用户。
func (s *ListService) Subscribe(ctx context.Context, listID uint64, address string, role domain.Role) (*domain.Membership, error) {
	if !role.Valid() {
		return nil, domain.ErrInvalidRole
	}
	address = domain.NormalizeAddress(address)
	if err := domain.ValidateAddress(address); err != nil {
		return nil, err
	}
	list, err := s.Get(listID)
	if err != nil {
		return nil, err
	}

	existing, err := s.sync.Memberships(ctx, domain.Filter{
		"mailing_list_id": list.ID,
		"address":         address,
		"role":            role,
	})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, ErrAlreadySubscribed
	}

	email, err := s.users.ensureEmail(ctx, address)
	if err != nil {
		return nil, err
	}

	m := &domain.Membership{
		UserID:        email.UserID,
		MailingListID: list.ID,
		Address:       address,
		Role:          role,
	}
	if err := s.store.CreateMembership(m, nil); err != nil {
		if storage.IsDuplicate(err) {
			return nil, ErrAlreadySubscribed
		}
		return nil, fmt.Errorf("create membership: %w", err)
	}
	if err := s.sync.Sync(ctx, m, true); err != nil {
		return nil, err
	}

	s.logger.Info("address subscribed",
		zap.String("fqdn_listname", list.FQDNListname),
		zap.String("address", address),
		zap.String("role", string(role)),
	)
	return m, nil
}

// AddOwner 添加列表所有者
func (s *ListService) AddOwner(ctx context.Context, listID uint64, address string) (*domain.Membership, error) {
	return s.Subscribe(ctx, listID, address, domain.RoleOwner)
}

// AddModerator 添加列表审核员
func (s *ListService) AddModerator(ctx context.Context, listID uint64, address string) (*domain.Membership, error) {
	return s.Subscribe(ctx, listID, address, domain.RoleModerator)
}

// AddMember 添加普通成员
func (s *ListService) AddMember(ctx context.Context, listID uint64, address string) (*domain.Membership, error) {
	return s.Subscribe(ctx, listID, address, domain.RoleMember)
}

// Unsubscribe 取消地址在列表中的某个角色
func (s *ListService) Unsubscribe(ctx context.Context, listID uint64, address string, role domain.Role) error {
	rows, err := s.store.FilterMemberships(domain.Filter{
		"mailing_list_id": listID,
		"address":         domain.NormalizeAddress(address),
		"role":            role,
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotSubscribed
	}
	return s.sync.Delete(ctx, rows[0])
}

func (s *ListService) roster(ctx context.Context, listID uint64, role domain.Role) ([]*domain.Membership, error) {
	f := domain.Filter{"mailing_list_id": listID}
	if role != "" {
		f["role"] = role
	}
	return s.sync.Memberships(ctx, f)
}

// Owners 返回列表所有者
func (s *ListService) Owners(ctx context.Context, listID uint64) ([]*domain.Membership, error) {
	return s.roster(ctx, listID, domain.RoleOwner)
}

// Moderators 返回列表审核员
func (s *ListService) Moderators(ctx context.Context, listID uint64) ([]*domain.Membership, error) {
	return s.roster(ctx, listID, domain.RoleModerator)
}

// Members 返回普通成员
func (s *ListService) Members(ctx context.Context, listID uint64) ([]*domain.Membership, error) {
	return s.roster(ctx, listID, domain.RoleMember)
}

// AllSubscribers 返回列表的全部成员资格，不区分角色
func (s *ListService) AllSubscribers(ctx context.Context, listID uint64) ([]*domain.Membership, error) {
	return s.roster(ctx, listID, "")
}

func (s *ListService) hasRole(ctx context.Context, listID uint64, address string, role domain.Role) (bool, error) {
	rows, err := s.sync.Memberships(ctx, domain.Filter{
		"mailing_list_id": listID,
		"address":         domain.NormalizeAddress(address),
		"role":            role,
	})
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// IsOwner 判断地址是否为列表所有者
func (s *ListService) IsOwner(ctx context.Context, listID uint64, address string) (bool, error) {
	return s.hasRole(ctx, listID, address, domain.RoleOwner)
}

// IsModerator 判断地址是否为列表审核员
func (s *ListService) IsModerator(ctx context.Context, listID uint64, address string) (bool, error) {
	return s.hasRole(ctx, listID, address, domain.RoleModerator)
}

// IsMember 判断地址是否为普通成员
func (s *ListService) IsMember(ctx context.Context, listID uint64, address string) (bool, error) {
	return s.hasRole(ctx, listID, address, domain.RoleMember)
}

// Settings 返回列表配置
func (s *ListService) Settings(listID uint64) (*domain.ListSettings, error) {
	settings, err := s.store.GetListSettings(listID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrListNotFound
		}
		return nil, err
	}
	return settings, nil
}

// UpdateSettings 修改列表配置并把改动的字段推送到远端
//
// 任一字段只读或未知时不做任何修改。
func (s *ListService) UpdateSettings(ctx context.Context, listID uint64, values map[string]any) (*domain.ListSettings, error) {
	settings, err := s.Settings(listID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		if domain.IsListReadOnly(key) {
			return nil, fmt.Errorf("%w: %s", ErrReadOnlySetting, key)
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := settings.SetField(key, values[key]); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateListSettings(settings); err != nil {
		return nil, fmt.Errorf("update list settings: %w", err)
	}
	if err := syncUpdate(ctx, s.sync, settings, keys...); err != nil {
		return nil, err
	}
	return settings, nil
}

// remote 返回已绑定列表的远端适配器
func (s *ListService) remote(listID uint64) (*adaptor.List, error) {
	list, err := s.Get(listID)
	if err != nil {
		return nil, err
	}
	if list.PartialURL == "" {
		return nil, fmt.Errorf("%w: list %s", ErrNotSynced, list.FQDNListname)
	}
	return adaptor.NewList(s.conn, list.PartialURL), nil
}

// Held 返回待审核消息，直接读取远端
func (s *ListService) Held(ctx context.Context, listID uint64) ([]adaptor.HeldMessage, error) {
	l, err := s.remote(listID)
	if err != nil {
		return nil, err
	}
	return l.Held(ctx)
}

// Requests 返回待处理的订阅请求
func (s *ListService) Requests(ctx context.Context, listID uint64) ([]adaptor.SubscriptionRequest, error) {
	l, err := s.remote(listID)
	if err != nil {
		return nil, err
	}
	return l.Requests(ctx)
}

// ModerateMessage 处理一条待审核消息
func (s *ListService) ModerateMessage(ctx context.Context, listID uint64, requestID int, action adaptor.ModerationAction) error {
	l, err := s.remote(listID)
	if err != nil {
		return err
	}
	if _, err := l.ModerateMessage(ctx, requestID, action); err != nil {
		return fmt.Errorf("moderate held message %d: %w", requestID, err)
	}
	s.logger.Info("held message moderated",
		zap.Uint64("list_id", listID),
		zap.Int("request_id", requestID),
		zap.String("action", string(action)),
	)
	return nil
}

// Delete 删除列表，配置与成员资格一并删除
func (s *ListService) Delete(ctx context.Context, listID uint64) error {
	list, err := s.Get(listID)
	if err != nil {
		return err
	}
	if err := s.sync.Delete(ctx, list); err != nil {
		return err
	}
	s.logger.Info("mailing list deleted", zap.String("fqdn_listname", list.FQDNListname))
	return nil
}
