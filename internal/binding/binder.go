// Package binding 把本地记录与远端资源绑定起来。
//
// 保存时定位或创建远端资源并写回 partial_url，已绑定的记录按策略推送字段；
// 本地查询未命中时拉取远端集合并物化为本地记录。
package binding

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"mailmirror/backend/internal/cache"
	"mailmirror/backend/internal/core"
	"mailmirror/backend/internal/domain"
	"mailmirror/backend/internal/lock"
	"mailmirror/backend/internal/monitoring"
	"mailmirror/backend/internal/resolver"
	"mailmirror/backend/internal/storage"
)

var (
	// ErrRelatedNotSynced 关联记录尚未绑定远端，属于调用顺序错误
	ErrRelatedNotSynced = errors.New("related record is not synced to remote")
	// ErrRemoteMissing 远端资源不存在且不能由本端创建
	ErrRemoteMissing = errors.New("remote resource is missing and cannot be created")
	// ErrNoNaturalKey 记录缺少定位远端资源所需的字段
	ErrNoNaturalKey = errors.New("record has no natural key for remote lookup")
	// ErrMissingRelation 远端条目缺少必需的关联
	ErrMissingRelation = errors.New("remote entry lacks a required relation")
)

// DefaultImmutableKinds 绑定后不再 PATCH 的资源类型
var DefaultImmutableKinds = []domain.Kind{
	domain.KindDomain,
	domain.KindMailingList,
	domain.KindMembership,
	domain.KindEmail,
}

// Policy 同步策略
type Policy struct {
	immutable map[domain.Kind]bool
}

// NewPolicy 创建同步策略，kinds 中的类型绑定后不再推送
func NewPolicy(kinds []domain.Kind) Policy {
	p := Policy{immutable: make(map[domain.Kind]bool, len(kinds))}
	for _, k := range kinds {
		p.immutable[k] = true
	}
	return p
}

// Immutable 判断该类型绑定后是否跳过推送
func (p Policy) Immutable(kind domain.Kind) bool {
	return p.immutable[kind]
}

// ParseKinds 解析配置中的类型名，忽略空项
func ParseKinds(names []string) ([]domain.Kind, error) {
	kinds := make([]domain.Kind, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		k, err := domain.ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// DefaultLockTTL 未配置时定位与创建的最长执行时间
const DefaultLockTTL = 30 * time.Second

// Options 构造 Binder 的可选依赖
type Options struct {
	ImmutableKinds []domain.Kind // nil 时使用 DefaultImmutableKinds
	Ledger         cache.Ledger  // nil 时使用不过期的进程内标记
	Locker         lock.Locker   // nil 时只在进程内合并
	LockTTL        time.Duration // 合并后的定位与创建最长执行时间，0 时为 DefaultLockTTL
	Metrics        *monitoring.Metrics
	Logger         *zap.Logger
}

// Binder 同步层入口
type Binder struct {
	records *storage.Records
	remote  *resolver.Resolver
	policy  Policy
	ledger  cache.Ledger
	locker  lock.Locker
	lockTTL time.Duration
	group   singleflight.Group
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// New 创建 Binder
func New(store storage.Store, remote *resolver.Resolver, opts Options) *Binder {
	kinds := opts.ImmutableKinds
	if kinds == nil {
		kinds = DefaultImmutableKinds
	}
	ledger := opts.Ledger
	if ledger == nil {
		ledger = cache.NewLocalLedger(0)
	}
	locker := opts.Locker
	if locker == nil {
		locker = lock.NopLocker{}
	}
	lockTTL := opts.LockTTL
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Binder{
		records: storage.NewRecords(store),
		remote:  remote,
		policy:  NewPolicy(kinds),
		ledger:  ledger,
		locker:  locker,
		lockTTL: lockTTL,
		metrics: opts.Metrics,
		logger:  logger.Named("binding"),
	}
}

// Records 返回按类型访问的本地存储
func (b *Binder) Records() *storage.Records { return b.records }

// Resolver 返回远端解析器
func (b *Binder) Resolver() *resolver.Resolver { return b.remote }

// Sync 在本地保存之后同步远端
//
// 未绑定的记录先按自然键定位，找不到再创建；已绑定的记录按策略推送可写字段。
// 远端不可达时只记录日志，本地保存不受影响。
func (b *Binder) Sync(ctx context.Context, rec domain.Record, created bool) error {
	return b.sync(ctx, rec, created, nil)
}

// SyncFields 与 Sync 相同，但已绑定的记录只推送 fields 中列出的本地字段
func (b *Binder) SyncFields(ctx context.Context, rec domain.Record, fields []string) error {
	if fields == nil {
		fields = []string{}
	}
	return b.sync(ctx, rec, false, fields)
}

// sync 执行同步；fields 为 nil 时推送全部可写字段
func (b *Binder) sync(ctx context.Context, rec domain.Record, created bool, fields []string) error {
	kind := rec.Kind()
	log := b.logger.With(
		zap.String("sync_id", uuid.NewString()),
		zap.String("kind", string(kind)),
		zap.Uint64("id", rec.PK()),
	)

	var (
		outcome string
		err     error
	)
	switch {
	case rec.PeerPath() == "":
		outcome, err = b.bind(ctx, rec, log)
	case created:
		// 从远端物化的记录创建时已经绑定
		outcome = monitoring.OutcomeSkipped
	default:
		outcome, err = b.push(ctx, rec, fields, log)
	}

	if err != nil {
		if core.IsConnectionError(err) {
			log.Warn("remote unreachable, local change kept", zap.Error(err))
			b.metrics.RecordSync(string(kind), monitoring.OutcomeOffline)
			return nil
		}
		b.metrics.RecordSync(string(kind), monitoring.OutcomeFailed)
		return fmt.Errorf("sync %s %d: %w", kind, rec.PK(), err)
	}

	b.metrics.RecordSync(string(kind), outcome)
	log.Debug("record synced", zap.String("outcome", outcome), zap.String("peer", rec.PeerPath()))
	return nil
}

type located struct {
	path    string
	outcome string
}

// bind 定位或创建远端资源并写回路径
func (b *Binder) bind(ctx context.Context, rec domain.Record, log *zap.Logger) (string, error) {
	kind := rec.Kind()
	params, err := b.project(rec)
	if err != nil {
		return "", err
	}
	lookup, err := b.lookup(rec, params)
	if err != nil {
		return "", err
	}

	// 同一自然键的定位与创建在进程内合并，跨进程由 Locker 串行化。
	// 合并后的调用不随某个调用方取消，最长执行 lockTTL。
	key := string(kind) + ":" + domain.Filter(lookup).Key()
	ch := b.group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.lockTTL)
		defer cancel()
		unlock := b.acquire(shared, key, log)
		defer unlock()
		return b.locateOrCreate(shared, kind, lookup, params)
	})

	var result singleflight.Result
	select {
	case result = <-ch:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if result.Err != nil {
		return "", result.Err
	}

	res := result.Val.(located)
	if err := domain.Bind(rec, res.path); err != nil {
		return "", err
	}
	if err := b.records.Save(rec); err != nil {
		return "", fmt.Errorf("save peer path: %w", err)
	}
	if err := b.bindCompanion(rec); err != nil {
		return "", err
	}
	if kind == domain.KindMailingList && res.outcome == monitoring.OutcomeLocated {
		if err := b.pullSettings(ctx, rec); err != nil {
			log.Warn("failed to read remote list config, local settings kept", zap.Error(err))
		}
	}
	return res.outcome, nil
}

// acquire 获取跨进程锁；锁服务不可用时只依赖进程内合并
func (b *Binder) acquire(ctx context.Context, key string, log *zap.Logger) func() {
	unlock, err := b.locker.Lock(ctx, key)
	if err == nil {
		return unlock
	}
	log.Warn("sync lock unavailable, coalescing in process only", zap.String("key", key), zap.Error(err))
	return func() {}
}

func (b *Binder) locateOrCreate(ctx context.Context, kind domain.Kind, lookup, params resolver.Params) (located, error) {
	path, found, err := b.locate(ctx, kind, lookup)
	if err != nil {
		return located{}, err
	}
	if found {
		return located{path: path, outcome: monitoring.OutcomeLocated}, nil
	}

	switch kind {
	case domain.KindSettings, domain.KindPreferences:
		return located{}, fmt.Errorf("%w: %s %s", ErrRemoteMissing, kind, domain.Filter(lookup).Key())
	}

	path, err = b.remote.Create(ctx, kind, params)
	if err == nil {
		return located{path: path, outcome: monitoring.OutcomeCreated}, nil
	}
	if !core.IsConflict(err) {
		return located{}, err
	}

	// 其他进程抢先创建了同一资源，再定位一次
	path, found, lerr := b.locate(ctx, kind, lookup)
	if lerr != nil || !found {
		return located{}, err
	}
	return located{path: path, outcome: monitoring.OutcomeLocated}, nil
}

// locate 按查找键读取远端资源，返回其 self_link 对应的路径
func (b *Binder) locate(ctx context.Context, kind domain.Kind, lookup resolver.Params) (string, bool, error) {
	res, found, err := b.remote.Get(ctx, kind, lookup)
	if err != nil || !found {
		return "", false, err
	}
	info, err := res.Info(ctx)
	if err != nil {
		return "", false, err
	}
	link, _ := info["self_link"].(string)
	if link == "" {
		link = res.URL()
	}
	return b.remote.PartialPath(link), true, nil
}

// bindCompanion 归属记录绑定后，为尚未绑定的配置或偏好写入推导出的路径
func (b *Binder) bindCompanion(owner domain.Record) error {
	path := storage.CompanionPath(owner)
	if path == "" {
		return nil
	}

	store := b.records.Store()
	var companion domain.Record
	switch owner.Kind() {
	case domain.KindMailingList:
		settings, err := store.GetListSettings(owner.PK())
		if err != nil {
			return ignoreMissing(err)
		}
		companion = settings
	case domain.KindUser, domain.KindEmail, domain.KindMembership:
		prefs, err := store.GetPreferences(owner.Kind(), owner.PK())
		if err != nil {
			return ignoreMissing(err)
		}
		companion = prefs
	default:
		return nil
	}

	if companion.PeerPath() != "" {
		return nil
	}
	companion.SetPeerPath(path)
	return b.records.Save(companion)
}

func ignoreMissing(err error) error {
	if storage.IsNotFound(err) {
		return nil
	}
	return err
}

// push 把已绑定记录的可写字段写往远端，fields 非 nil 时只推送其中的字段
func (b *Binder) push(ctx context.Context, rec domain.Record, fields []string, log *zap.Logger) (string, error) {
	kind := rec.Kind()
	if b.policy.Immutable(kind) {
		log.Debug("kind is immutable remotely, update skipped")
		return monitoring.OutcomeSkipped, nil
	}
	params, err := b.project(rec)
	if err != nil {
		return "", err
	}
	if fields != nil {
		params = only(kind, params, fields)
	}
	updated, err := b.remote.Update(ctx, kind, rec.PeerPath(), params)
	if err != nil {
		return "", err
	}
	if !updated {
		return monitoring.OutcomeSkipped, nil
	}
	return monitoring.OutcomeUpdated, nil
}

// only 保留 fields 中本地字段对应的远端参数
func only(kind domain.Kind, params resolver.Params, fields []string) resolver.Params {
	keep := make(map[string]bool, len(fields))
	for _, name := range fields {
		if spec, ok := fieldSpec(kind, name); ok {
			keep[spec.Remote] = true
		}
	}
	out := make(resolver.Params, len(keep))
	for k, v := range params {
		if keep[k] {
			out[k] = v
		}
	}
	return out
}

// project 按字段表把本地记录转换为远端参数
//
// 关联字段以关联记录的绝对地址表示；设置了 RefKey 时改用关联记录的该列值。
func (b *Binder) project(rec domain.Record) (resolver.Params, error) {
	out := make(map[string]any)
	for _, spec := range domain.FieldTable(rec.Kind()) {
		if !spec.Dir.Pushes() {
			continue
		}
		value, ok := rec.Field(spec.Local)
		if !ok {
			continue
		}
		if spec.IsRef() {
			id := refID(value)
			if id == 0 {
				continue
			}
			v, err := b.refValue(spec, id)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", rec.Kind(), spec.Local, err)
			}
			value = v
		}
		if value = scalar(value); value != nil {
			out[spec.Remote] = value
		}
	}
	return resolver.Sanitize(rec.Kind(), out), nil
}

// refValue 返回关联记录在远端的表示
func (b *Binder) refValue(spec domain.FieldSpec, id uint64) (any, error) {
	related, err := b.records.Get(spec.Ref, id)
	if err != nil {
		return nil, err
	}
	if related.PeerPath() == "" && !spec.Loose {
		return nil, fmt.Errorf("%w: %s %d", ErrRelatedNotSynced, spec.Ref, id)
	}
	if spec.RefKey != "" {
		v, _ := related.Field(spec.RefKey)
		return v, nil
	}
	return b.remote.AbsoluteURL(related.PeerPath()), nil
}

// lookup 返回定位远端资源所用的自然键
func (b *Binder) lookup(rec domain.Record, params resolver.Params) (resolver.Params, error) {
	pick := func(keys ...string) (resolver.Params, error) {
		out := make(resolver.Params, len(keys))
		for _, key := range keys {
			v := params.Get(key)
			if v == "" {
				return nil, fmt.Errorf("%w: %s needs %s", ErrNoNaturalKey, rec.Kind(), key)
			}
			out[key] = v
		}
		return out, nil
	}

	switch v := rec.(type) {
	case *domain.Domain:
		return pick("mail_host")
	case *domain.MailingList:
		return pick("fqdn_listname")
	case *domain.User:
		// 未设置首选邮箱时退回到最早添加的邮箱
		if params.Get("email") == "" {
			emails, err := b.records.Find(domain.KindEmail, domain.Filter{"user_id": v.ID})
			if err != nil {
				return nil, err
			}
			if len(emails) == 0 {
				return nil, fmt.Errorf("%w: user %d has no email", ErrNoNaturalKey, v.ID)
			}
			params["email"] = emails[0].(*domain.Email).Address
		}
		return resolver.Params{"address": params.Get("email")}, nil
	case *domain.Email:
		return pick("email")
	case *domain.Membership:
		return pick("list_id", "subscriber", "role")
	case *domain.ListSettings:
		owner, err := b.boundOwner(domain.KindMailingList, v.MailingListID)
		if err != nil {
			return nil, err
		}
		return resolver.Params{"list_id": owner.(*domain.MailingList).ListID}, nil
	case *domain.Preferences:
		owner, err := b.boundOwner(v.OwnerKind, v.OwnerID)
		if err != nil {
			return nil, err
		}
		return resolver.Params{"owner": owner.PeerPath()}, nil
	}
	return nil, fmt.Errorf("%w: %T", domain.ErrUnknownKind, rec)
}

func (b *Binder) boundOwner(kind domain.Kind, id uint64) (domain.Record, error) {
	owner, err := b.records.Get(kind, id)
	if err != nil {
		return nil, err
	}
	if owner.PeerPath() == "" {
		return nil, fmt.Errorf("%w: owning %s %d", ErrRelatedNotSynced, kind, id)
	}
	return owner, nil
}

// Delete 先删除远端资源，再删除本地记录
//
// 远端 404 视为已删除；远端不可达时只记录日志，本地删除照常进行。
func (b *Binder) Delete(ctx context.Context, rec domain.Record) error {
	if path := rec.PeerPath(); path != "" {
		err := b.remote.Delete(ctx, path)
		switch {
		case err == nil, core.IsNotFound(err):
		case core.IsConnectionError(err):
			b.logger.Warn("remote unreachable, deleting locally only",
				zap.String("kind", string(rec.Kind())),
				zap.String("peer", path),
				zap.Error(err),
			)
			b.metrics.RecordSync(string(rec.Kind()), monitoring.OutcomeOffline)
		default:
			return fmt.Errorf("delete remote %s %s: %w", rec.Kind(), path, err)
		}
	}
	return b.records.Delete(rec)
}

// refID 读取关联列中的本地 ID，未设置时返回 0
func refID(v any) uint64 {
	switch t := v.(type) {
	case uint64:
		return t
	case *uint64:
		if t != nil {
			return *t
		}
	}
	return 0
}

// scalar 解引用指针并把具名字符串还原为 string，空指针与零时间返回 nil
func scalar(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if t, ok := rv.Interface().(interface{ IsZero() bool }); ok && t.IsZero() {
		return nil
	}
	if rv.Kind() == reflect.String {
		return rv.String()
	}
	return rv.Interface()
}
