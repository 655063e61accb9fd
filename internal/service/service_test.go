package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailmirror/backend/internal/binding"
	"mailmirror/backend/internal/config"
	"mailmirror/backend/internal/core"
	"mailmirror/backend/internal/domain"
	"mailmirror/backend/internal/mailmantest"
	"mailmirror/backend/internal/resolver"
	"mailmirror/backend/internal/storage/memory"
)

// testEnv 内存存储加内存远端的完整服务组合
type testEnv struct {
	srv     *mailmantest.Server
	conn    *core.Connection
	store   *memory.Store
	binder  *binding.Binder
	domains *DomainService
	lists   *ListService
	users   *UserService
	prefs   *PreferencesService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	srv := mailmantest.New(t)
	conn, err := core.NewConnection(&config.CoreConfig{BaseURL: srv.BaseURL(), Timeout: 5 * time.Second}, zap.NewNop())
	require.NoError(t, err)

	store := memory.NewStore()
	binder := binding.New(store, resolver.New(conn), binding.Options{})
	logger := zap.NewNop()
	return &testEnv{
		srv:     srv,
		conn:    conn,
		store:   store,
		binder:  binder,
		domains: NewDomainService(store, binder, logger),
		lists:   NewListService(store, binder, conn, logger),
		users:   NewUserService(store, binder, conn, logger),
		prefs:   NewPreferencesService(store, binder, logger),
	}
}

// newList 创建 bar.com 邮件域及其下的列表
func (e *testEnv) newList(t *testing.T, name string) *domain.MailingList {
	t.Helper()
	ctx := context.Background()
	d, err := e.domains.GetByMailHost(ctx, "bar.com")
	if errors.Is(err, ErrDomainNotFound) {
		d, err = e.domains.Create(ctx, CreateDomainInput{MailHost: "bar.com"})
	}
	require.NoError(t, err)
	list, err := e.lists.CreateList(ctx, d.ID, CreateListInput{ListName: name})
	require.NoError(t, err)
	return list
}

// MockSyncer 模拟同步层
type MockSyncer struct {
	mock.Mock
}

func (m *MockSyncer) Sync(ctx context.Context, rec domain.Record, created bool) error {
	args := m.Called(ctx, rec, created)
	return args.Error(0)
}

func (m *MockSyncer) SyncFields(ctx context.Context, rec domain.Record, fields []string) error {
	args := m.Called(ctx, rec, fields)
	return args.Error(0)
}

func (m *MockSyncer) Delete(ctx context.Context, rec domain.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockSyncer) Domains(ctx context.Context, f domain.Filter) ([]*domain.Domain, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Domain), args.Error(1)
}

// 以下方法在服务测试中不会被调用
func (m *MockSyncer) MailingLists(ctx context.Context, f domain.Filter) ([]*domain.MailingList, error) {
	return nil, nil
}
func (m *MockSyncer) Users(ctx context.Context, f domain.Filter) ([]*domain.User, error) {
	return nil, nil
}
func (m *MockSyncer) Emails(ctx context.Context, f domain.Filter) ([]*domain.Email, error) {
	return nil, nil
}
func (m *MockSyncer) Memberships(ctx context.Context, f domain.Filter) ([]*domain.Membership, error) {
	return nil, nil
}

func TestDomainService_WithMockSyncer(t *testing.T) {
	ctx := context.Background()

	t.Run("新建记录以 created 标记同步", func(t *testing.T) {
		syncer := new(MockSyncer)
		store := memory.NewStore()
		svc := NewDomainService(store, syncer, nil)

		syncer.On("Sync", mock.Anything, mock.AnythingOfType("*domain.Domain"), true).Return(nil).Once()

		d, err := svc.Create(ctx, CreateDomainInput{MailHost: "Example.COM"})
		require.NoError(t, err)
		assert.Equal(t, "example.com", d.MailHost)
		assert.Equal(t, "http://example.com", d.BaseURL)
		syncer.AssertExpectations(t)
	})

	t.Run("同步失败时保留本地记录", func(t *testing.T) {
		syncer := new(MockSyncer)
		store := memory.NewStore()
		svc := NewDomainService(store, syncer, nil)

		syncErr := errors.New("remote rejected")
		syncer.On("Sync", mock.Anything, mock.Anything, true).Return(syncErr)

		_, err := svc.Create(ctx, CreateDomainInput{MailHost: "example.com"})
		assert.ErrorIs(t, err, syncErr)

		stored, err := store.GetDomainByMailHost("example.com")
		require.NoError(t, err)
		assert.Empty(t, stored.PartialURL)
	})

	t.Run("非法主机名不会写入本地也不会同步", func(t *testing.T) {
		syncer := new(MockSyncer)
		svc := NewDomainService(memory.NewStore(), syncer, nil)

		_, err := svc.Create(ctx, CreateDomainInput{MailHost: "not a host"})
		assert.ErrorIs(t, err, domain.ErrInvalidDomain)
		syncer.AssertNotCalled(t, "Sync", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("列表查询交给同步层", func(t *testing.T) {
		syncer := new(MockSyncer)
		svc := NewDomainService(memory.NewStore(), syncer, nil)

		want := []*domain.Domain{{ID: 1, MailHost: "a.org"}}
		syncer.On("Domains", mock.Anything, domain.Filter{}).Return(want, nil)

		got, err := svc.List(ctx, domain.Filter{})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}
