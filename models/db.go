package models

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"BrandAmbassador-server/config"

	_ "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var DB *sql.DB
var GormDB *gorm.DB

// InitDB 按配置打开数据库并自动建表，在 main.go 中调用
func InitDB() {
	if config.AppConfig == nil {
		log.Fatal("config.AppConfig is nil, call config.InitConfig first")
	}
	cfg := config.AppConfig.Database
	driver := cfg.Driver
	if driver == "" {
		driver = inferDriverFromDSN(cfg.DSN)
	}

	db, err := OpenDatabase(driver, cfg.DSN)
	if err != nil {
		log.Fatalf("打开数据库失败: %v", err)
	}
	GormDB = db
	if sqlDB, err := db.DB(); err == nil {
		DB = sqlDB
	}

	if err := NewStore(db).AutoMigrate(); err != nil {
		log.Fatalf("自动建表失败: %v", err)
	}
	log.Printf("数据库连接成功 (%s + GORM)", driver)
}

// OpenDatabase 按驱动类型初始化 GORM；mysql 沿用 database/sql 连接池
func OpenDatabase(driver, dsn string) (*gorm.DB, error) {
	gormCfg := &gorm.Config{NowFunc: func() time.Time { return time.Now().UTC() }}
	switch strings.ToLower(driver) {
	case "mysql":
		sqlDB, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)
		if err := sqlDB.Ping(); err != nil {
			return nil, fmt.Errorf("ping mysql: %w", err)
		}
		return gorm.Open(mysql.New(mysql.Config{Conn: sqlDB}), gormCfg)
	case "postgres", "postgresql", "pg":
		return gorm.Open(postgres.Open(dsn), gormCfg)
	case "sqlite", "sqlite3":
		return gorm.Open(sqlite.Open(strings.TrimPrefix(dsn, "sqlite://")), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func inferDriverFromDSN(dsn string) string {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return "postgres"
	case strings.Contains(lower, "@tcp("), strings.HasPrefix(lower, "mysql://"):
		return "mysql"
	default:
		return "sqlite"
	}
}
