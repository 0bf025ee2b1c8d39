package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/zenithmed/registry-api/internal/notification"
	"github.com/zenithmed/registry-api/internal/repository/postgres"
)

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type FeedConfig struct {
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffMax  time.Duration `mapstructure:"backoff_max"`
}

type RelayConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	RetainFor     time.Duration `mapstructure:"retain_for"`
}

type GatewayConfig struct {
	EchoTimeout time.Duration `mapstructure:"echo_timeout"`
}

type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	Expiry         time.Duration `mapstructure:"expiry"`
	ExtendedExpiry time.Duration `mapstructure:"extended_expiry"`
}

type AuthConfig struct {
	JWT JWTConfig `mapstructure:"jwt"`
	// Bcrypt hashes of per-role access codes; an absent entry means the role
	// logs in without a code.
	AccessCodes map[string]string `mapstructure:"access_codes"`
}

type AssistConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	SummaryTTL time.Duration `mapstructure:"summary_ttl"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type Config struct {
	Server    ServerConfig            `mapstructure:"server"`
	Database  postgres.DatabaseConfig `mapstructure:"database"`
	Redis     RedisConfig             `mapstructure:"redis"`
	Feed      FeedConfig              `mapstructure:"feed"`
	Relay     RelayConfig             `mapstructure:"relay"`
	Gateway   GatewayConfig           `mapstructure:"gateway"`
	Auth      AuthConfig              `mapstructure:"auth"`
	Assist    AssistConfig            `mapstructure:"assist"`
	SMTP      notification.SMTPConfig `mapstructure:"smtp"`
	RateLimit RateLimitConfig         `mapstructure:"rate_limit"`
}

// envOverrides are the deploy-time secrets, applied on top of the YAML file.
type envOverrides struct {
	DatabasePassword string `envconfig:"DATABASE_PASSWORD"`
	RedisURL         string `envconfig:"REDIS_URL"`
	JWTSecret        string `envconfig:"JWT_SECRET"`
	AssistAPIKey     string `envconfig:"ASSIST_API_KEY"`
	SMTPPassword     string `envconfig:"SMTP_PASSWORD"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process("registry", &env); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}
	if env.DatabasePassword != "" {
		cfg.Database.Password = env.DatabasePassword
	}
	if env.RedisURL != "" {
		cfg.Redis.URL = env.RedisURL
	}
	if env.JWTSecret != "" {
		cfg.Auth.JWT.Secret = env.JWTSecret
	}
	if env.AssistAPIKey != "" {
		cfg.Assist.APIKey = env.AssistAPIKey
	}
	if env.SMTPPassword != "" {
		cfg.SMTP.Password = env.SMTPPassword
	}

	if cfg.Auth.JWT.Secret == "" {
		return nil, fmt.Errorf("auth.jwt.secret is required")
	}

	return &cfg, nil
}
