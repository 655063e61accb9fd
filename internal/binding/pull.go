package binding

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"mailmirror/backend/internal/adaptor"
	"mailmirror/backend/internal/core"
	"mailmirror/backend/internal/domain"
	"mailmirror/backend/internal/monitoring"
	"mailmirror/backend/internal/resolver"
	"mailmirror/backend/internal/storage"
)

// Domains 查询邮件域，本地未命中时从远端拉取
func (b *Binder) Domains(ctx context.Context, f domain.Filter) ([]*domain.Domain, error) {
	return typed[*domain.Domain](b.pull(ctx, domain.KindDomain, f))
}

// MailingLists 查询邮件列表，本地未命中时从远端拉取
func (b *Binder) MailingLists(ctx context.Context, f domain.Filter) ([]*domain.MailingList, error) {
	return typed[*domain.MailingList](b.pull(ctx, domain.KindMailingList, f))
}

// Users 查询用户，本地未命中时从远端拉取
func (b *Binder) Users(ctx context.Context, f domain.Filter) ([]*domain.User, error) {
	return typed[*domain.User](b.pull(ctx, domain.KindUser, f))
}

// Emails 查询邮箱，本地未命中时从远端拉取
func (b *Binder) Emails(ctx context.Context, f domain.Filter) ([]*domain.Email, error) {
	return typed[*domain.Email](b.pull(ctx, domain.KindEmail, f))
}

// Memberships 查询成员资格，本地未命中时从远端拉取
func (b *Binder) Memberships(ctx context.Context, f domain.Filter) ([]*domain.Membership, error) {
	return typed[*domain.Membership](b.pull(ctx, domain.KindMembership, f))
}

func typed[T domain.Record](rows []domain.Record, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.(T))
	}
	return out, nil
}

// pull 执行本地查询，结果为空时向远端拉取一次并重新查询
//
// 同一条件只拉取一次，远端失败时返回本地结果；
// 通信失败会清除拉取标记，之后的查询可以重试。
func (b *Binder) pull(ctx context.Context, kind domain.Kind, f domain.Filter) ([]domain.Record, error) {
	rows, err := b.records.Find(kind, f)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		b.metrics.RecordPull(string(kind), monitoring.PullLocal)
		return rows, nil
	}

	log := b.logger.With(zap.String("kind", string(kind)), zap.String("filter", f.Key()))
	key := string(kind) + "?" + f.Key()
	first, err := b.ledger.Mark(ctx, key)
	if err != nil {
		log.Warn("pull ledger unavailable, serving local result", zap.Error(err))
		return rows, nil
	}
	if !first {
		b.metrics.RecordPull(string(kind), monitoring.PullMarked)
		return rows, nil
	}

	entries, err := b.fetch(ctx, kind, f)
	if err != nil {
		if core.IsConnectionError(err) {
			if cerr := b.ledger.Clear(ctx, key); cerr != nil {
				log.Warn("failed to clear pull mark", zap.Error(cerr))
			}
		}
		log.Warn("pull failed, serving local result", zap.Error(err))
		b.metrics.RecordPull(string(kind), monitoring.PullFailed)
		return rows, nil
	}
	b.metrics.RecordPull(string(kind), monitoring.PullFetched)

	b.materializeAll(ctx, kind, entries, f, log)
	return b.records.Find(kind, f)
}

// RefreshOrder 全量刷新时的类型顺序，被引用的类型在前
var RefreshOrder = []domain.Kind{
	domain.KindDomain,
	domain.KindMailingList,
	domain.KindUser,
	domain.KindEmail,
	domain.KindMembership,
}

// Refresh 拉取整个远端集合并补建本地缺失的记录，返回新建的数量
func (b *Binder) Refresh(ctx context.Context, kind domain.Kind) (int, error) {
	entries, err := b.fetch(ctx, kind, nil)
	if err != nil {
		return 0, err
	}
	log := b.logger.With(zap.String("kind", string(kind)))
	return b.materializeAll(ctx, kind, entries, nil, log), nil
}

func (b *Binder) materializeAll(ctx context.Context, kind domain.Kind, entries []map[string]any, seed domain.Filter, log *zap.Logger) int {
	created := 0
	for _, entry := range entries {
		_, isNew, err := b.materialize(ctx, kind, entry, seed)
		if err != nil {
			log.Warn("remote entry skipped", zap.Any("self_link", entry["self_link"]), zap.Error(err))
			continue
		}
		if isNew {
			created++
		}
	}
	return created
}

// fetch 把本地条件转换为远端参数并读取集合
func (b *Binder) fetch(ctx context.Context, kind domain.Kind, f domain.Filter) ([]map[string]any, error) {
	raw := make(map[string]any, len(f))
	for name, value := range f {
		spec, ok := fieldSpec(kind, name)
		if !ok || !spec.IsRef() {
			raw[name] = scalar(value)
			continue
		}
		id := refID(value)
		if id == 0 {
			continue
		}
		v, err := b.refValue(spec, id)
		if err != nil {
			return nil, err
		}
		raw[name] = scalar(v)
	}
	return b.remote.List(ctx, kind, resolver.Sanitize(kind, raw))
}

func fieldSpec(kind domain.Kind, local string) (domain.FieldSpec, bool) {
	for _, spec := range domain.FieldTable(kind) {
		if spec.Local == local {
			return spec, true
		}
	}
	return domain.FieldSpec{}, false
}

// materialize 为远端条目创建本地记录
//
// 已有相同路径的记录时直接返回该记录。seed 中的等值条件先写入记录，
// 再按字段表复制远端字段；关联字段按路径或键列查找本地记录，
// 缺失且允许时从远端补建。
func (b *Binder) materialize(ctx context.Context, kind domain.Kind, entry map[string]any, seed domain.Filter) (domain.Record, bool, error) {
	link, _ := entry["self_link"].(string)
	path := b.remote.PartialPath(link)
	if path == "" {
		return nil, false, fmt.Errorf("%w: %s entry without self_link", adaptor.ErrUnexpectedBody, kind)
	}
	existing, err := b.records.FindByPeer(kind, path)
	if err == nil {
		return existing, false, nil
	}
	if !storage.IsNotFound(err) {
		return nil, false, err
	}

	rec, err := newRecord(kind)
	if err != nil {
		return nil, false, err
	}
	for name, value := range seed {
		if name == "id" || name == "partial_url" {
			continue
		}
		if err := rec.SetField(name, value); err != nil {
			return nil, false, err
		}
	}

	for _, spec := range domain.FieldTable(kind) {
		if !spec.Dir.Pulls() {
			continue
		}
		value, ok := entry[spec.Remote]
		if spec.IsRef() {
			if !ok || value == nil {
				if current, _ := rec.Field(spec.Local); refID(current) == 0 {
					return nil, false, fmt.Errorf("%w: %s.%s", ErrMissingRelation, kind, spec.Remote)
				}
				continue
			}
			id, err := b.resolveRef(ctx, spec, value)
			if err != nil {
				return nil, false, fmt.Errorf("resolve %s.%s: %w", kind, spec.Local, err)
			}
			value = id
		} else if spec.Decode != nil {
			value = spec.Decode(value)
		} else if !ok {
			continue
		}
		if err := rec.SetField(spec.Local, value); err != nil {
			return nil, false, err
		}
	}

	rec.SetPeerPath(path)
	if err := b.records.Materialize(rec); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, false, fmt.Errorf("local row conflicts with %s: %w", path, err)
		}
		return nil, false, err
	}
	b.metrics.RecordMaterialized(string(kind))

	if kind == domain.KindMailingList {
		if err := b.pullSettings(ctx, rec); err != nil {
			b.logger.Warn("failed to read remote list config, default settings kept",
				zap.String("peer", path),
				zap.Error(err),
			)
		}
	}
	return rec, true, nil
}

// pullSettings 读取已绑定列表的远端配置并写入本地配置记录
func (b *Binder) pullSettings(ctx context.Context, list domain.Record) error {
	settings, err := b.records.Store().GetListSettings(list.PK())
	if err != nil {
		return ignoreMissing(err)
	}
	if settings.PartialURL == "" {
		settings.PartialURL = storage.CompanionPath(list)
	}
	res, err := b.remote.FromURL(domain.KindSettings, settings.PartialURL)
	if err != nil {
		return err
	}
	info, err := res.Info(ctx)
	if err != nil {
		return err
	}
	if err := copyScalars(settings, info); err != nil {
		return err
	}
	return b.records.Save(settings)
}

// copyScalars 按字段表把远端条目中出现的非关联字段写入记录
func copyScalars(rec domain.Record, entry map[string]any) error {
	for _, spec := range domain.FieldTable(rec.Kind()) {
		if !spec.Dir.Pulls() || spec.IsRef() {
			continue
		}
		value, ok := entry[spec.Remote]
		if !ok {
			continue
		}
		if spec.Decode != nil {
			value = spec.Decode(value)
		}
		if err := rec.SetField(spec.Local, value); err != nil {
			return err
		}
	}
	return nil
}

// resolveRef 返回关联记录的本地 ID
func (b *Binder) resolveRef(ctx context.Context, spec domain.FieldSpec, value any) (uint64, error) {
	var (
		related domain.Record
		err     error
	)
	if spec.RefKey != "" {
		related, err = b.records.FindOne(spec.Ref, spec.RefKey, value)
	} else {
		related, err = b.records.FindByPeer(spec.Ref, b.remote.PartialPath(fmt.Sprint(value)))
	}
	if err == nil {
		return related.PK(), nil
	}
	if !storage.IsNotFound(err) || !spec.Fetch {
		return 0, err
	}

	res, err := b.fetchRef(ctx, spec, value)
	if err != nil {
		return 0, err
	}
	info, err := res.Info(ctx)
	if err != nil {
		return 0, err
	}
	related, _, err = b.materialize(ctx, spec.Ref, info, nil)
	if err != nil {
		return 0, err
	}
	return related.PK(), nil
}

func (b *Binder) fetchRef(ctx context.Context, spec domain.FieldSpec, value any) (adaptor.Resource, error) {
	if spec.RefKey == "" {
		return b.remote.FromURL(spec.Ref, fmt.Sprint(value))
	}
	res, found, err := b.remote.Get(ctx, spec.Ref, resolver.Params{spec.RefKey: value})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s %s=%v", ErrRemoteMissing, spec.Ref, spec.RefKey, value)
	}
	return res, nil
}

func newRecord(kind domain.Kind) (domain.Record, error) {
	switch kind {
	case domain.KindDomain:
		return &domain.Domain{}, nil
	case domain.KindMailingList:
		return &domain.MailingList{}, nil
	case domain.KindUser:
		return &domain.User{}, nil
	case domain.KindEmail:
		return &domain.Email{}, nil
	case domain.KindMembership:
		return &domain.Membership{}, nil
	}
	return nil, fmt.Errorf("%w: %s", storage.ErrNotMaterializable, kind)
}
