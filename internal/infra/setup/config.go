package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// 支持的数据库驱动
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// DBOptions 是打开数据库连接所需的参数
type DBOptions struct {
	Driver string
	DSN    string
	// Quiet 为 true 时丢弃 GORM 日志 (测试使用)
	Quiet bool
}

// InitDB 初始化数据库连接
func InitDB(opts DBOptions) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case DriverMySQL:
		if opts.DSN == "" {
			return nil, fmt.Errorf("mysql driver requires a DSN")
		}
		dialector = mysql.Open(opts.DSN)
	case DriverSQLite, "":
		dsn := opts.DSN
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	gormLog := gormlogger.Default.LogMode(gormlogger.Warn)
	if opts.Quiet {
		gormLog = gormlogger.Discard
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.Driver, err)
	}

	sqlDB, err := db.DB() // 获取底层的 *sql.DB 对象
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if opts.Driver == DriverMySQL {
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	} else {
		// sqlite 只允许一个写连接
		sqlDB.SetMaxOpenConns(1)
	}
	logrus.WithField("driver", opts.Driver).Info("Database connected")
	return db, nil
}

// RedisOptions 是 Redis 连接参数
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// InitRedis 初始化 Redis 连接并 Ping 一次
func InitRedis(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     20,
		MinIdleConns: 5,
		MaxConnAge:   30 * time.Minute,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	logrus.WithField("addr", opts.Addr).Info("Redis connected")
	return client, nil
}
