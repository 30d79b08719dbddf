package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	AppEnv string

	// Database
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Token
	JWTSecret string
	TokenTTL  time.Duration

	// Azure AD（4つすべて設定された場合のみ有効）
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string
	AzureRedirectURL  string

	// Booking
	BookingLocation *time.Location
	SweepInterval   time.Duration
	SweepLockTTL    time.Duration
	RoomsSeedFile   string

	// Redis / RabbitMQ（未設定の場合は使わない）
	RedisURL           string
	AMQPURL            string
	BookingEventsQueue string

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int
	RateLimitAuth    int

	// Logging
	LogLevel string

	// Server
	ServerPort    string
	ClientBaseURL string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// IsDev は開発環境かを返す。
func (c *Config) IsDev() bool {
	return c.AppEnv == "dev"
}

// Load は環境変数からConfigを読み込む。
// APP_ENV=dev の場合はカレントディレクトリの .env を先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "dev" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := &Config{AppEnv: appEnv}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	tz := getEnvString("BOOKING_TIMEZONE", "Local")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid BOOKING_TIMEZONE %q: %w", tz, err)
	}
	cfg.BookingLocation = loc

	// Optional fields with defaults
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 20)
	cfg.DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 5)
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", 24*time.Hour)
	cfg.AzureTenantID = os.Getenv("AZURE_TENANT_ID")
	cfg.AzureClientID = os.Getenv("AZURE_CLIENT_ID")
	cfg.AzureClientSecret = os.Getenv("AZURE_CLIENT_SECRET")
	cfg.AzureRedirectURL = os.Getenv("AZURE_REDIRECT_URL")
	cfg.SweepInterval = getEnvDuration("SWEEP_INTERVAL", time.Minute)
	cfg.SweepLockTTL = getEnvDuration("SWEEP_LOCK_TTL", 30*time.Second)
	cfg.RoomsSeedFile = getEnvString("ROOMS_SEED_FILE", "rooms.yaml")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.AMQPURL = os.Getenv("AMQP_URL")
	cfg.BookingEventsQueue = getEnvString("BOOKING_EVENTS_QUEUE", "booking-events")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.ClientBaseURL = strings.TrimRight(getEnvString("CLIENT_BASE_URL", "http://localhost:3000"), "/")
	cfg.CookieSecure = strings.HasPrefix(cfg.ClientBaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", cfg.ClientBaseURL)

	return cfg, nil
}

// AzureEnabled はAzure ADログインに必要な設定が揃っているかを返す。
func (c *Config) AzureEnabled() bool {
	return c.AzureTenantID != "" && c.AzureClientID != "" && c.AzureClientSecret != "" && c.AzureRedirectURL != ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
