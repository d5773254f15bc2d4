package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 封装了 GORM 实例，作为运行日志的入口
type DB struct {
	conn *gorm.DB
}

// dialect 按 DSN 选择驱动：postgres:// 或 postgresql:// 走 Postgres，其余视为 SQLite 文件
func dialect(dsn string) gorm.Dialector {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

// Open 初始化数据库连接并迁移表结构
func Open(ctx context.Context, dsn string) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("journal dsn is empty")
	}

	db, err := gorm.Open(dialect(dsn), &gorm.Config{
		// CLI 场景下 SQL 日志只会污染 stderr
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("journal ping failed: %w", err)
	}

	j := &DB{conn: db}
	if err := j.AutoMigrate(&Run{}, &Entry{}); err != nil {
		return nil, fmt.Errorf("auto migration failed: %w", err)
	}
	return j, nil
}

// NewWithConn 复用现有的 GORM 连接 (测试用内存 SQLite)
func NewWithConn(conn *gorm.DB) *DB {
	return &DB{conn: conn}
}

// AutoMigrate 迁移传入的 Model
func (d *DB) AutoMigrate(models ...any) error {
	return d.conn.AutoMigrate(models...)
}

func (d *DB) GetConn() *gorm.DB {
	return d.conn
}

// Close 关闭底层连接池
func (d *DB) Close() error {
	sqlDB, err := d.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
