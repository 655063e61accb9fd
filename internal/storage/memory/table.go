package memory

import (
	"sort"
	"time"

	"mailmirror/backend/internal/domain"
)

// row 约束表中的记录类型为实现 domain.Record 的结构体指针
type row[T any] interface {
	*T
	domain.Record
}

// table 单类记录的内存表，按自增 ID 保存副本
type table[T any, P row[T]] struct {
	rows map[uint64]P
	next uint64
}

func newTable[T any, P row[T]]() *table[T, P] {
	return &table[T, P]{rows: make(map[uint64]P)}
}

func copyOf[T any, P row[T]](v P) P {
	c := new(T)
	*c = *v
	return P(c)
}

// insert 分配 ID 并保存副本，回写 ID 与创建时间
func (t *table[T, P]) insert(v P) {
	t.next++
	_ = v.SetField("id", t.next)
	if created, ok := v.Field("created_at"); ok {
		if ts, _ := created.(time.Time); ts.IsZero() {
			_ = v.SetField("created_at", time.Now().UTC())
		}
	}
	t.rows[t.next] = copyOf[T, P](v)
}

func (t *table[T, P]) get(id uint64) (P, bool) {
	v, ok := t.rows[id]
	if !ok {
		return nil, false
	}
	return copyOf[T, P](v), true
}

func (t *table[T, P]) put(v P) bool {
	if _, ok := t.rows[v.PK()]; !ok {
		return false
	}
	t.rows[v.PK()] = copyOf[T, P](v)
	return true
}

func (t *table[T, P]) remove(id uint64) bool {
	if _, ok := t.rows[id]; !ok {
		return false
	}
	delete(t.rows, id)
	return true
}

// each 按 ID 升序遍历原始记录，不做拷贝
func (t *table[T, P]) each(fn func(P) bool) {
	ids := make([]uint64, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if !fn(t.rows[id]) {
			return
		}
	}
}

func (t *table[T, P]) filter(f domain.Filter) []P {
	out := make([]P, 0)
	t.each(func(v P) bool {
		if f.Matches(v) {
			out = append(out, copyOf[T, P](v))
		}
		return true
	})
	return out
}

// first 返回第一条满足条件的记录副本
func (t *table[T, P]) first(match func(P) bool) (P, bool) {
	var found P
	t.each(func(v P) bool {
		if match(v) {
			found = copyOf[T, P](v)
			return false
		}
		return true
	})
	return found, found != nil
}

// exists 判断除 self 外是否有记录满足条件
func (t *table[T, P]) exists(self uint64, match func(P) bool) bool {
	hit := false
	t.each(func(v P) bool {
		if v.PK() != self && match(v) {
			hit = true
			return false
		}
		return true
	})
	return hit
}
