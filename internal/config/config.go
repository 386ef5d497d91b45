package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	LMS       LMSConfig `mapstructure:"lms"`
	JWT       JWTConfig
	Redis     RedisConfig
	Cache     CacheConfig     `mapstructure:"cache"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

// LMSConfig 上游LMS数据库（只读）及站点展示参数
type LMSConfig struct {
	Database    DatabaseConfig `mapstructure:"database"`
	TablePrefix string         `mapstructure:"table_prefix"`
	SiteURL     string         `mapstructure:"site_url"`
	Timezone    string         `mapstructure:"timezone"`
	DateFormat  string         `mapstructure:"date_format"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig 缓存刷新的调优参数
type CacheConfig struct {
	RecentLimit        int           `mapstructure:"recent_limit"`       // 展示用近期quiz/lesson条数
	RebuildBatchSize   int           `mapstructure:"rebuild_batch_size"` // 全量重建批大小
	StepBatchSize      int           `mapstructure:"step_batch_size"`    // 增量刷新批大小
	BatchPause         time.Duration `mapstructure:"batch_pause_seconds"`
	StudentTimeout     time.Duration `mapstructure:"student_timeout_seconds"`
	DailyRefreshHour   int           `mapstructure:"daily_refresh_hour"`
	DailyRefreshEnable bool          `mapstructure:"daily_refresh_enabled"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("STUDENT_CONTROL")
	viper.AutomaticEnv()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// LMS database
	viper.BindEnv("lms.database.host", "LMS_DATABASE_HOST")
	viper.BindEnv("lms.database.port", "LMS_DATABASE_PORT")
	viper.BindEnv("lms.database.user", "LMS_DATABASE_USER")
	viper.BindEnv("lms.database.password", "LMS_DATABASE_PASSWORD")
	viper.BindEnv("lms.database.dbname", "LMS_DATABASE_NAME")
	viper.BindEnv("lms.table_prefix", "LMS_TABLE_PREFIX")
	viper.BindEnv("lms.site_url", "LMS_SITE_URL")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour
	cfg.Cache.BatchPause = cfg.Cache.BatchPause * time.Second
	cfg.Cache.StudentTimeout = cfg.Cache.StudentTimeout * time.Second

	// 未配置时的默认调优值
	if cfg.Cache.RecentLimit <= 0 {
		cfg.Cache.RecentLimit = 10
	}
	if cfg.Cache.RebuildBatchSize <= 0 {
		cfg.Cache.RebuildBatchSize = 50
	}
	if cfg.Cache.StepBatchSize <= 0 {
		cfg.Cache.StepBatchSize = 10
	}
	if cfg.Cache.BatchPause <= 0 {
		cfg.Cache.BatchPause = 2 * time.Second
	}
	if cfg.Cache.StudentTimeout <= 0 {
		cfg.Cache.StudentTimeout = 120 * time.Second
	}
	if cfg.LMS.TablePrefix == "" {
		cfg.LMS.TablePrefix = "lms_"
	}
	if cfg.LMS.DateFormat == "" {
		cfg.LMS.DateFormat = "2006-01-02 15:04"
	}

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	return &cfg, nil
}
