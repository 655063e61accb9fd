package sql

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mailmirror/backend/internal/config"
	"mailmirror/backend/internal/domain"
	"mailmirror/backend/internal/storage"
)

// Store 基于 GORM 的关系型存储实现（支持 SQLite、MySQL 5.7+ 和 PostgreSQL）
type Store struct {
	db         *gorm.DB
	sqlDB      *sql.DB
	driverName string // "sqlite"、"mysql" 或 "postgres"
}

var _ storage.Store = (*Store)(nil)

// NewStore 根据配置打开数据库并执行迁移
func NewStore(cfg config.DatabaseConfig) (*Store, error) {
	var dialector gorm.Dialector

	switch cfg.Type {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql", "postgres":
		// MySQL 与 PostgreSQL 先用 database/sql 打开，再交给 GORM 复用连接
		db, err := sql.Open(cfg.Type, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		if cfg.Type == "mysql" {
			dialector = mysql.New(mysql.Config{Conn: db})
		} else {
			dialector = postgres.New(postgres.Config{Conn: db})
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite, mysql, postgres)", cfg.Type)
	}

	store, err := NewStoreWithDialector(cfg.Type, dialector)
	if err != nil {
		return nil, err
	}
	if cfg.Type != "sqlite" {
		store.sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		store.sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		store.sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return store, nil
}

// NewStoreWithDialector 使用指定的 GORM dialector 创建存储实例
func NewStoreWithDialector(driverName string, dialector gorm.Dialector) (*Store, error) {
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if driverName == "sqlite" {
		// SQLite 只允许单写连接，内存库还依赖连接不被回收
		sqlDB.SetMaxOpenConns(1)
	}

	store := &Store{db: db, sqlDB: sqlDB, driverName: driverName}
	if err := store.Migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Migrate 自动迁移数据库表结构
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&domain.Domain{},
		&domain.MailingList{},
		&domain.ListSettings{},
		&domain.User{},
		&domain.Email{},
		&domain.Membership{},
		&domain.Preferences{},
	)
}

// DriverName 返回数据库类型
func (s *Store) DriverName() string { return s.driverName }

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.sqlDB != nil {
		return s.sqlDB.Close()
	}
	return nil
}

// Health 检查数据库健康状态
func (s *Store) Health() error {
	if s.sqlDB == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.sqlDB.Ping()
}

// translateError 把驱动错误转换为 storage 包的错误
func translateError(err error, kind domain.Kind, key any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %v", storage.ErrNotFound, kind, key)
	}
	if isDuplicate(err) {
		return fmt.Errorf("%w: %s %v", storage.ErrDuplicate, kind, key)
	}
	return err
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	var myErr *mysqldriver.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}
