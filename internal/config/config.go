package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Redis      RedisConfig
	Registry   RegistryConfig   `mapstructure:"registry"`
	Sync       SyncConfig       `mapstructure:"sync"`
	XP         XPConfig         `mapstructure:"xp"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	CORS       CORSConfig       `mapstructure:"cors"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
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

// RegistryConfig 外部凭证注册表（链上持仓查询服务）
type RegistryConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	Timeout       time.Duration `mapstructure:"timeout_seconds"`
	RetryAttempts uint          `mapstructure:"retry_attempts"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl_seconds"`
}

// SyncConfig 进度持久化与同步参数
type SyncConfig struct {
	FlushInterval time.Duration `mapstructure:"flush_interval_seconds"`
	MaxRetries    uint          `mapstructure:"max_retries"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl_seconds"`
}

// XPConfig 经验值发放规则
type XPConfig struct {
	QuizReward int `mapstructure:"quiz_reward"`
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

	viper.SetEnvPrefix("TOKENGATE")
	viper.AutomaticEnv()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// Credential registry
	viper.BindEnv("registry.base_url", "REGISTRY_BASE_URL")
	viper.BindEnv("registry.api_key", "REGISTRY_API_KEY")

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
	cfg.Registry.Timeout = cfg.Registry.Timeout * time.Second
	cfg.Registry.CacheTTL = cfg.Registry.CacheTTL * time.Second
	cfg.Sync.FlushInterval = cfg.Sync.FlushInterval * time.Second
	cfg.Sync.CacheTTL = cfg.Sync.CacheTTL * time.Second

	if cfg.Registry.RetryAttempts == 0 {
		cfg.Registry.RetryAttempts = 3
	}
	if cfg.Sync.MaxRetries == 0 {
		cfg.Sync.MaxRetries = 5
	}
	if cfg.Sync.FlushInterval == 0 {
		cfg.Sync.FlushInterval = 2 * time.Second
	}
	if cfg.XP.QuizReward == 0 {
		cfg.XP.QuizReward = 100
	}

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	return &cfg, nil
}
