package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	"desk-ledger/internal/infra/setup"
)

// envPrefix 是所有环境变量的前缀，例如 DESK_SERVER_PORT。
const envPrefix = "DESK"

// Config 结构体用于存储从环境变量或 .env 文件加载的配置
type Config struct {
	AppEnv     string `envconfig:"APP_ENV" default:"development"` // development / production
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	ServerPort string `envconfig:"SERVER_PORT" default:"8080"`

	DBDriver string `envconfig:"DB_DRIVER" default:"sqlite"` // sqlite / mysql
	DBDSN    string `envconfig:"DB_DSN"`

	// RedisAddr 为空时以单实例模式运行：本地广播，不限流，不启动 worker
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix     string `envconfig:"KEY_PREFIX" default:"desk:"`

	RateLimitMax    int           `envconfig:"RATE_LIMIT_MAX" default:"100"`
	RateLimitWindow time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1s"`
	SweepSchedule   string        `envconfig:"SWEEP_SCHEDULE" default:"@every 1h"`

	CORSAllowedOrigin string `envconfig:"CORS_ALLOWED_ORIGIN" default:"*"`

	RoomTTL      time.Duration `envconfig:"ROOM_TTL" default:"168h"`
	MaxMembers   int           `envconfig:"MAX_MEMBERS" default:"20"`
	CodeAttempts int           `envconfig:"CODE_ATTEMPTS" default:"10"`
}

// LoadConfig 从 .env 文件和环境变量加载配置
func LoadConfig() (*Config, error) {
	// 优先加载 .env 文件 (如果存在)，已有的环境变量不会被覆盖
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("Failed to load .env file, using environment only")
	}

	cfg := &Config{}
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查配置组合是否可用，并修正可以修正的取值。
func (c *Config) Validate() error {
	switch c.DBDriver {
	case setup.DriverSQLite:
	case setup.DriverMySQL:
		if c.DBDSN == "" {
			return fmt.Errorf("environment variable %s_DB_DSN must be set for mysql", envPrefix)
		}
	default:
		return fmt.Errorf("unsupported %s_DB_DRIVER %q (want sqlite or mysql)", envPrefix, c.DBDriver)
	}
	if c.MaxMembers <= 0 {
		return fmt.Errorf("%s_MAX_MEMBERS must be positive, got %d", envPrefix, c.MaxMembers)
	}
	if c.RedisAddr != "" && (c.RateLimitMax <= 0 || c.RateLimitWindow <= 0) {
		return fmt.Errorf("%s_RATE_LIMIT_MAX and %s_RATE_LIMIT_WINDOW must be positive", envPrefix, envPrefix)
	}

	// 验证日志级别
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		logrus.Warnf("Invalid %s_LOG_LEVEL '%s', using default 'info'", envPrefix, c.LogLevel)
		c.LogLevel = "info"
	}
	return nil
}

// IsProduction 报告是否运行在生产环境。
func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

// NewLogger 按配置创建 logger，同时配置 logrus 的标准 logger，
// 各组件通过 logrus.WithFields 写出的日志使用相同的格式和级别。
func NewLogger(cfg *Config) *logrus.Logger {
	log := logrus.New()
	configureLogger(log, cfg)
	configureLogger(logrus.StandardLogger(), cfg)
	return log
}

func configureLogger(log *logrus.Logger, cfg *Config) {
	if cfg.IsProduction() {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
}
