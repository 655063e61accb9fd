// Package cache 记录已经向远端拉取过的查询，避免同一查询反复请求远端。
package cache

import "context"

// Ledger 拉取标记
//
// Mark 在键尚未标记（或标记已过期）时写入标记并返回 true，
// 已标记时返回 false。Clear 移除标记，使下一次查询可以重新拉取。
type Ledger interface {
	Mark(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context, key string) error
}
