package config

import (
	"path/filepath"
	"strings"
)

// Config holds all application configuration in a structured way. It is
// resolved once at startup and passed into constructors; handlers never read
// the environment themselves.
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Provider   ProviderConfig
	Webhook    WebhookConfig
	Notify     NotifyConfig
	WorkerPool WorkerPoolConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasePath           string
	BaseUrl            string
	CorsAllowedOrigins []string
	TrustedProxies     []string
}

type DatabaseConfig struct {
	Driver   string // "postgres" or "sqlite"
	Host     string
	Port     int
	User     string
	Password string
	Name     string // file path for SQLite, DB name for Postgres
}

// ProviderConfig points at the Evolution-compatible messaging provider.
type ProviderConfig struct {
	BaseURL       string
	APIKey        string
	Timeout       int // seconds, default request timeout
	GroupsTimeout int // seconds, group listing with participants can be huge
}

// WebhookConfig covers the inbound ingestion endpoint.
type WebhookConfig struct {
	AuthToken      string // shared secret; DB fallback handled by the usecase
	MinContentLen  int
	SecretCacheTTL int // seconds
}

// NotifyConfig configures the Brevo notification channels.
type NotifyConfig struct {
	BrevoAPIKey string
	EmailSender string
	EmailFrom   string
	SMSSender   string
}

type WorkerPoolConfig struct {
	Size      int
	QueueSize int
}

// Global provides access to the loaded configuration (migration helper for
// call sites that predate constructor injection).
var Global *Config

// LoadConfig loads configuration from environment variables or defaults.
func LoadConfig() (*Config, error) {
	cors := []string{"http://localhost:3000", "http://localhost:5173"}
	if v := getEnv("APP_CORS_ALLOWED_ORIGINS", ""); v != "" {
		cors = strings.Split(v, ",")
	}

	appCfg := AppConfig{
		Version:            "v1.3.0",
		Port:               getEnv("APP_PORT", "3000"),
		Debug:              getEnvBool("APP_DEBUG", false),
		Environment:        getEnv("APP_ENV", "development"),
		BasePath:           getEnv("APP_BASE_PATH", ""),
		BaseUrl:            getEnv("APP_BASE_URL", "http://localhost:3000"),
		CorsAllowedOrigins: cors,
	}
	if v := getEnv("APP_TRUSTED_PROXIES", ""); v != "" {
		appCfg.TrustedProxies = strings.Split(v, ",")
	}

	dbCfg := DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", "sqlite"),
		Name:     getEnv("DB_NAME", filepath.Join("storages", "ingest.db")),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
	}

	providerCfg := ProviderConfig{
		BaseURL:       getEnv("EVOLUTION_API_URL", ""),
		APIKey:        getEnv("EVOLUTION_API_KEY", ""),
		Timeout:       getEnvInt("EVOLUTION_API_TIMEOUT", 15),
		GroupsTimeout: getEnvInt("EVOLUTION_API_GROUPS_TIMEOUT", 60),
	}

	webhookCfg := WebhookConfig{
		AuthToken:      getEnv("WEBHOOK_AUTH_TOKEN", ""),
		MinContentLen:  getEnvInt("WEBHOOK_MIN_CONTENT_LEN", 2),
		SecretCacheTTL: getEnvInt("WEBHOOK_SECRET_CACHE_TTL", 300),
	}

	notifyCfg := NotifyConfig{
		BrevoAPIKey: getEnv("BREVO_API_KEY", ""),
		EmailSender: getEnv("NOTIFY_EMAIL_SENDER", "ZapDigest"),
		EmailFrom:   getEnv("NOTIFY_EMAIL_FROM", "alerts@zapdigest.app"),
		SMSSender:   getEnv("NOTIFY_SMS_SENDER", "ZapDigest"),
	}

	cfg := &Config{
		App:      appCfg,
		Database: dbCfg,
		Provider: providerCfg,
		Webhook:  webhookCfg,
		Notify:   notifyCfg,
		WorkerPool: WorkerPoolConfig{
			Size:      getEnvInt("MESSAGE_WORKER_POOL_SIZE", 20),
			QueueSize: getEnvInt("MESSAGE_WORKER_QUEUE_SIZE", 1000),
		},
	}

	Global = cfg
	return cfg, nil
}

// IngestWebhookURL builds the URL the provider must deliver events to,
// including the shared secret as a query parameter when configured.
func (c *Config) IngestWebhookURL(secret string) string {
	base := strings.TrimSuffix(c.App.BaseUrl, "/") + c.App.BasePath + "/webhook"
	if secret == "" {
		return base
	}
	return base + "?token=" + secret
}
