package models

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite" // 纯 Go SQLite 驱动（基于 modernc.org/sqlite）
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// 驱动名称常量
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var dbDriver = DriverSQLite

// DBPoolConfig 数据库连接池配置
type DBPoolConfig struct {
	MaxOpenConns           int
	MaxIdleConns           int
	ConnMaxLifetimeSeconds int
	ConnMaxIdleTimeSeconds int
}

// NormalizeDriver 归一化驱动名称
func NormalizeDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DriverPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// InitDB 初始化数据库连接
func InitDB(driver, dsn string, pool DBPoolConfig, debug bool) error {
	normalized, err := NormalizeDriver(driver)
	if err != nil {
		return err
	}
	var dialector gorm.Dialector
	switch normalized {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	}
	logLevel := logger.Warn
	if debug {
		logLevel = logger.Info
	}
	DB, err = gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return err
	}
	dbDriver = normalized

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	if normalized == DriverSQLite && pool.MaxOpenConns <= 0 {
		// SQLite 单写者，事务串行化依赖单连接
		pool.MaxOpenConns = 1
	}
	applyDBPool(sqlDB, pool)
	return nil
}

// UseDB 注入已打开的数据库（测试或外部初始化使用）
func UseDB(db *gorm.DB, driver string) {
	DB = db
	if normalized, err := NormalizeDriver(driver); err == nil {
		dbDriver = normalized
	}
}

// Driver 返回当前数据库驱动
func Driver() string {
	return dbDriver
}

func applyDBPool(sqlDB *sql.DB, pool DBPoolConfig) {
	if sqlDB == nil {
		return
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetimeSeconds > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetimeSeconds) * time.Second)
	}
	if pool.ConnMaxIdleTimeSeconds > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(pool.ConnMaxIdleTimeSeconds) * time.Second)
	}
}

// AllModels 返回需要迁移的全部模型
func AllModels() []interface{} {
	return []interface{}{
		&Product{},
		&ProductVariant{},
		&StockEntry{},
		&StockAlert{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&OrderTransition{},
	}
}

// AutoMigrate 自动迁移所有数据库表
func AutoMigrate() error {
	return DB.AutoMigrate(AllModels()...)
}
