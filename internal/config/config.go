package config

import (
	"strings"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	DSN         string `mapstructure:"dsn"`
	MaxOpen     int    `mapstructure:"max_open"`
	MaxIdle     int    `mapstructure:"max_idle"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
	EnableTLS   bool   `mapstructure:"enable_tls"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	PoolSize  int    `mapstructure:"pool_size"`
	EnableTLS bool   `mapstructure:"enable_tls"`
}

type RabbitMQExchangeName struct {
	Generation string `mapstructure:"generation"`
}

type RabbitMQRoutingKey struct {
	GenerationRun string `mapstructure:"generation_run"`
}

type RabbitMQQueueName struct {
	Generation string `mapstructure:"generation"`
}

type RabbitMQConfig struct {
	URL          string               `mapstructure:"url"`
	EnableTLS    bool                 `mapstructure:"enable_tls"`
	Prefetch     int                  `mapstructure:"prefetch"`
	ExchangeName RabbitMQExchangeName `mapstructure:"exchange_name"`
	RoutingKey   RabbitMQRoutingKey   `mapstructure:"routing_key"`
	QueueName    RabbitMQQueueName    `mapstructure:"queue_name"`
}

type S3Config struct {
	Endpoint         string `mapstructure:"endpoint"`
	Region           string `mapstructure:"region"`
	Bucket           string `mapstructure:"bucket"`
	AccessKey        string `mapstructure:"access_key"`
	SecretKey        string `mapstructure:"secret_key"`
	UsePathStyle     bool   `mapstructure:"use_path_style"`
	PublicBaseURL    string `mapstructure:"public_base_url"`
	PresignExpireSec int    `mapstructure:"presign_expire_sec"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// AuthConfig configures the Supabase auth project used to verify user JWTs.
type AuthConfig struct {
	ProjectRef string `mapstructure:"project_ref"`
	APIKey     string `mapstructure:"api_key"`
}

type RootConfig struct {
	ServiceTokenPrefix       string `mapstructure:"service_token_prefix"`
	ServiceKeyPHC            string `mapstructure:"service_key_phc"`
	SecretPepper             string `mapstructure:"secret_pepper"`
	EnableArgon2Verification bool   `mapstructure:"enable_argon2_verification"`
	WebhookSecret            string `mapstructure:"webhook_secret"`
}

type GenerationConfig struct {
	CostCredits          int   `mapstructure:"cost_credits"`
	SignupGrantCredits   int   `mapstructure:"signup_grant_credits"`
	PendingDeadlineSec   int   `mapstructure:"pending_deadline_sec"`
	SweepIntervalSec     int   `mapstructure:"sweep_interval_sec"`
	MaxImageFetchBytes   int64 `mapstructure:"max_image_fetch_bytes"`
	IdempotencyWindowSec int   `mapstructure:"idempotency_window_sec"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OtlpEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	RabbitMQ   RabbitMQConfig   `mapstructure:"rabbitmq"`
	S3         S3Config         `mapstructure:"s3"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Root       RootConfig       `mapstructure:"root"`
	Generation GenerationConfig `mapstructure:"generation"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "decorly-api")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.addr", ":8080")

	v.SetDefault("log.level", "info")

	v.SetDefault("database.max_open", 20)
	v.SetDefault("database.max_idle", 5)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("rabbitmq.prefetch", 10)
	v.SetDefault("rabbitmq.exchange_name.generation", "decorly.generation")
	v.SetDefault("rabbitmq.routing_key.generation_run", "generation.run")
	v.SetDefault("rabbitmq.queue_name.generation", "decorly.generation.run")

	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "decorly")
	v.SetDefault("s3.presign_expire_sec", 900)

	v.SetDefault("gemini.model", "gemini-2.5-flash-image")

	v.SetDefault("root.service_token_prefix", "sk_service_")
	v.SetDefault("root.enable_argon2_verification", true)

	v.SetDefault("generation.cost_credits", 5)
	v.SetDefault("generation.signup_grant_credits", 10)
	v.SetDefault("generation.pending_deadline_sec", 600)
	v.SetDefault("generation.sweep_interval_sec", 60)
	v.SetDefault("generation.max_image_fetch_bytes", 20<<20)
	v.SetDefault("generation.idempotency_window_sec", 300)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Load reads config.yaml (optional) and environment variables prefixed with
// DECORLY_, e.g. DECORLY_DATABASE_DSN or DECORLY_GEMINI_API_KEY.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("DECORLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// config file is optional, env vars may carry everything
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
