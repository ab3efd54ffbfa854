package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Webhook   WebhookConfig
	RateLimit RateLimitConfig
	Retry     RetryConfig
	Dedup     DedupConfig
	Redis     RedisConfig
	Solana    SolanaConfig
	Moddio    ModdioConfig
	Jobs      JobsConfig
	App       AppConfig
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port           string
	GinMode        string
	AllowedOrigins []string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver       string // postgres or sqlite
	URL          string
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SQLitePath   string
	MaxOpenConns int
	MaxIdleConns int
}

// WebhookConfig holds ingress authentication settings
type WebhookConfig struct {
	Secret          string
	SignatureHeader string
	// AllowUnsigned must be set explicitly to run without a secret.
	AllowUnsigned bool
	MaxBodyBytes  int64
	// MaxSignatureLength bounds the stored transaction identifier.
	MaxSignatureLength int
}

// RateLimitConfig holds per-route fixed window limits
type RateLimitConfig struct {
	WebhookMax    int
	WebhookWindow time.Duration
	APIMax        int
	APIWindow     time.Duration
}

// RetryConfig holds retry executor settings for webhook dispatch
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DedupConfig holds processed-transaction cache settings
type DedupConfig struct {
	TTL            time.Duration
	SweepThreshold int
}

// RedisConfig holds the optional shared cache. An empty URL keeps rate
// limiting and dedup caching process-local.
type RedisConfig struct {
	URL string
}

// SolanaConfig holds RPC settings
type SolanaConfig struct {
	RPCURL string
}

// ModdioConfig holds outbound notification settings
type ModdioConfig struct {
	APIURL          string
	SecretKey       string
	BigBetThreshold int64
	RequestTimeout  time.Duration
}

// JobsConfig holds background job schedules
type JobsConfig struct {
	VolumeResetInterval time.Duration
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Env       string
	LogLevel  string
	LogFormat string
	JWTSecret string
}

// IsProduction reports whether error details must be hidden from clients.
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "3001")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "arena_indexer")
	v.SetDefault("DB_SQLITE_PATH", "arena-indexer.db")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("WEBHOOK_SIGNATURE_HEADER", "X-Helius-Signature")
	v.SetDefault("WEBHOOK_ALLOW_UNSIGNED", false)
	v.SetDefault("WEBHOOK_MAX_BODY_BYTES", int64(10<<20))
	v.SetDefault("WEBHOOK_MAX_SIGNATURE_LENGTH", 128)

	v.SetDefault("WEBHOOK_RATE_LIMIT", 10)
	v.SetDefault("WEBHOOK_RATE_WINDOW", "1m")
	v.SetDefault("API_RATE_LIMIT", 100)
	v.SetDefault("API_RATE_WINDOW", "15m")

	v.SetDefault("RETRY_MAX_ATTEMPTS", 3)
	v.SetDefault("RETRY_INITIAL_DELAY", "1s")
	v.SetDefault("RETRY_MAX_DELAY", "30s")
	v.SetDefault("RETRY_BACKOFF_MULTIPLIER", 2.0)

	v.SetDefault("DEDUP_TTL", "1h")
	v.SetDefault("DEDUP_SWEEP_THRESHOLD", 10000)

	v.SetDefault("SOLANA_RPC_URL", "https://api.devnet.solana.com")

	v.SetDefault("MODDIO_API_URL", "https://api.modd.io")
	v.SetDefault("BIG_BET_THRESHOLD_LAMPORTS", int64(1_000_000_000))
	v.SetDefault("MODDIO_TIMEOUT", "5s")

	v.SetDefault("VOLUME_RESET_INTERVAL", "24h")

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

// Load loads configuration from .env, an optional config.yaml and the
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			GinMode:        v.GetString("GIN_MODE"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Driver:       strings.ToLower(v.GetString("DB_DRIVER")),
			URL:          v.GetString("DATABASE_URL"),
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetString("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			DBName:       v.GetString("DB_NAME"),
			SQLitePath:   v.GetString("DB_SQLITE_PATH"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		},
		Webhook: WebhookConfig{
			Secret:          v.GetString("HELIUS_WEBHOOK_SECRET"),
			SignatureHeader: v.GetString("WEBHOOK_SIGNATURE_HEADER"),
			AllowUnsigned:   v.GetBool("WEBHOOK_ALLOW_UNSIGNED"),

			MaxBodyBytes:       v.GetInt64("WEBHOOK_MAX_BODY_BYTES"),
			MaxSignatureLength: v.GetInt("WEBHOOK_MAX_SIGNATURE_LENGTH"),
		},
		RateLimit: RateLimitConfig{
			WebhookMax:    v.GetInt("WEBHOOK_RATE_LIMIT"),
			WebhookWindow: v.GetDuration("WEBHOOK_RATE_WINDOW"),
			APIMax:        v.GetInt("API_RATE_LIMIT"),
			APIWindow:     v.GetDuration("API_RATE_WINDOW"),
		},
		Retry: RetryConfig{
			MaxAttempts:       v.GetInt("RETRY_MAX_ATTEMPTS"),
			InitialDelay:      v.GetDuration("RETRY_INITIAL_DELAY"),
			MaxDelay:          v.GetDuration("RETRY_MAX_DELAY"),
			BackoffMultiplier: v.GetFloat64("RETRY_BACKOFF_MULTIPLIER"),
		},
		Dedup: DedupConfig{
			TTL:            v.GetDuration("DEDUP_TTL"),
			SweepThreshold: v.GetInt("DEDUP_SWEEP_THRESHOLD"),
		},
		Redis: RedisConfig{
			URL: v.GetString("REDIS_URL"),
		},
		Solana: SolanaConfig{
			RPCURL: v.GetString("SOLANA_RPC_URL"),
		},
		Moddio: ModdioConfig{
			APIURL:          strings.TrimRight(v.GetString("MODDIO_API_URL"), "/"),
			SecretKey:       v.GetString("MODDIO_SECRET_KEY"),
			BigBetThreshold: v.GetInt64("BIG_BET_THRESHOLD_LAMPORTS"),
			RequestTimeout:  v.GetDuration("MODDIO_TIMEOUT"),
		},
		Jobs: JobsConfig{
			VolumeResetInterval: v.GetDuration("VOLUME_RESET_INTERVAL"),
		},
		App: AppConfig{
			Env:       v.GetString("APP_ENV"),
			LogLevel:  v.GetString("LOG_LEVEL"),
			LogFormat: v.GetString("LOG_FORMAT"),
			JWTSecret: v.GetString("JWT_SECRET"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	if c.Webhook.Secret == "" && !c.Webhook.AllowUnsigned {
		return fmt.Errorf("HELIUS_WEBHOOK_SECRET is required (set WEBHOOK_ALLOW_UNSIGNED=true to run unauthenticated)")
	}
	if c.Webhook.MaxBodyBytes <= 0 || c.Webhook.MaxSignatureLength <= 0 {
		return fmt.Errorf("webhook body and signature limits must be positive")
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.RateLimit.WebhookMax <= 0 || c.RateLimit.WebhookWindow <= 0 {
		return fmt.Errorf("webhook rate limit must be positive")
	}
	if c.RateLimit.APIMax <= 0 || c.RateLimit.APIWindow <= 0 {
		return fmt.Errorf("api rate limit must be positive")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string, or the SQLite path when
// the sqlite driver is selected
func (c *Config) GetDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLitePath
	}
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
