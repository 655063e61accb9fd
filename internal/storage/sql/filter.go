package sql

import (
	"reflect"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mailmirror/backend/internal/domain"
)

// where 把 Filter 转换为等值条件，列名必须是 sample 的已知字段
func where(tx *gorm.DB, sample domain.Record, f domain.Filter) (*gorm.DB, error) {
	names := make([]string, 0, len(f))
	for name := range f {
		if _, ok := sample.Field(name); !ok {
			return nil, domain.ErrUnknownField
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		// 值为 nil 时生成 IS NULL
		tx = tx.Where(clause.Eq{Column: clause.Column{Name: name}, Value: plain(f[name])})
	}
	return tx.Order("id"), nil
}

// plain 解引用指针并把具名类型还原为驱动可接受的基础类型
func plain(v any) any {
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
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return rv.Interface()
}

// exists 判断指定 ID 的记录是否存在
func exists(tx *gorm.DB, model any, id uint64) (bool, error) {
	var n int64
	if err := tx.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// idsOf 查询满足条件的记录 ID
func idsOf(tx *gorm.DB, model any, column string, value any) ([]uint64, error) {
	var ids []uint64
	err := tx.Model(model).Where(clause.Eq{Column: clause.Column{Name: column}, Value: value}).Order("id").Pluck("id", &ids).Error
	return ids, err
}
