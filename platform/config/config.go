// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// IMAPConfig provides settings for the email polling job.
type IMAPConfig interface {
	GetIMAPHost() string
	GetIMAPPort() int
	GetEmailUser() string
	GetEmailPassword() string
	GetEmailPollLogPath() string
	GetQuerySubjectMarker() string
}

// SMTPConfig provides settings for outbound email.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUser() string
	GetSMTPPassword() string
	GetSMTPUseTLS() bool
	GetDefaultFromEmail() string
	GetEmailFromName() string
}

// SMSConfig provides settings for the outbound SMS gateway.
type SMSConfig interface {
	GetSMSGatewayURL() string
	GetSMSGatewayKey() string
	IsSMSEnabled() bool
}

// WebhookConfig provides verify tokens and signing secrets per channel.
type WebhookConfig interface {
	GetVerifyToken(channel string) string
	GetAppSecret(channel string) string
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// StorageConfig provides settings for MinIO attachment storage.
type StorageConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketQueryAttachments() string
	IsMinIOEnabled() bool
}

// DispatchConfig provides assignment policy settings.
type DispatchConfig interface {
	GetDispatchStrategy() string
}

// LifecycleConfig provides SLA defaults for new queries.
type LifecycleConfig interface {
	GetDefaultSLA() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env             string
	HTTPAddr        string
	DatabaseURL     string
	JWTAccessSecret string
	CORSAllowAll    bool
	CORSOrigins     []string

	IMAPHost           string
	IMAPPort           int
	EmailUser          string
	EmailPassword      string
	EmailPollLogPath   string
	QuerySubjectMarker string

	SMTPHost         string
	SMTPPort         int
	SMTPUser         string
	SMTPPassword     string
	SMTPUseTLS       bool
	DefaultFromEmail string
	EmailFromName    string

	SMSGatewayURL string
	SMSGatewayKey string

	WhatsAppVerifyToken  string
	FacebookVerifyToken  string
	InstagramVerifyToken string
	WhatsAppAppSecret    string
	FacebookAppSecret    string
	InstagramAppSecret   string

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	MinIOEndpoint               string
	MinIOAccessKey              string
	MinIOSecretKey              string
	MinIOUseSSL                 bool
	MinIOMaxFileSize            int64
	MinioBucketQueryAttachments string

	DispatchStrategy string
	DefaultSLAHours  int
}

// =============================================================================
// Interface Implementations
// =============================================================================

func (c *Config) GetDatabaseURL() string     { return c.DatabaseURL }
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

func (c *Config) GetIMAPHost() string           { return c.IMAPHost }
func (c *Config) GetIMAPPort() int              { return c.IMAPPort }
func (c *Config) GetEmailUser() string          { return c.EmailUser }
func (c *Config) GetEmailPassword() string      { return c.EmailPassword }
func (c *Config) GetEmailPollLogPath() string   { return c.EmailPollLogPath }
func (c *Config) GetQuerySubjectMarker() string { return c.QuerySubjectMarker }

func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUser() string         { return c.SMTPUser }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetSMTPUseTLS() bool         { return c.SMTPUseTLS }
func (c *Config) GetDefaultFromEmail() string { return c.DefaultFromEmail }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }

func (c *Config) GetSMSGatewayURL() string { return c.SMSGatewayURL }
func (c *Config) GetSMSGatewayKey() string { return c.SMSGatewayKey }
func (c *Config) IsSMSEnabled() bool       { return c.SMSGatewayURL != "" }

// GetVerifyToken returns the hub verification token for a webhook channel.
func (c *Config) GetVerifyToken(channel string) string {
	switch strings.ToLower(channel) {
	case "whatsapp":
		return c.WhatsAppVerifyToken
	case "facebook":
		return c.FacebookVerifyToken
	case "instagram":
		return c.InstagramVerifyToken
	}
	return ""
}

// GetAppSecret returns the payload signing secret for a webhook channel.
func (c *Config) GetAppSecret(channel string) string {
	switch strings.ToLower(channel) {
	case "whatsapp":
		return c.WhatsAppAppSecret
	case "facebook":
		return c.FacebookAppSecret
	case "instagram":
		return c.InstagramAppSecret
	}
	return ""
}

func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

func (c *Config) GetMinIOEndpoint() string   { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string  { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string  { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool       { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64 { return c.MinIOMaxFileSize }
func (c *Config) GetMinioBucketQueryAttachments() string {
	return c.MinioBucketQueryAttachments
}
func (c *Config) IsMinIOEnabled() bool { return c.MinIOEndpoint != "" }

func (c *Config) GetDispatchStrategy() string { return c.DispatchStrategy }

func (c *Config) GetDefaultSLA() time.Duration {
	return time.Duration(c.DefaultSLAHours) * time.Hour
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		JWTAccessSecret: getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:    strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true"),
		CORSOrigins:     splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200")),

		IMAPHost:           getEnv("EMAIL_IMAP_HOST", "imap.gmail.com"),
		IMAPPort:           mustInt(getEnv("EMAIL_IMAP_PORT", "993")),
		EmailUser:          getEnv("EMAIL_USER", ""),
		EmailPassword:      getEnv("EMAIL_PASSWORD", ""),
		EmailPollLogPath:   getEnv("EMAIL_POLL_LOG_PATH", "email_logs.txt"),
		QuerySubjectMarker: getEnv("QUERY_SUBJECT_MARKER", "[VITIGO-QUERY]"),

		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUser:         getEnv("SMTP_USER", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		SMTPUseTLS:       strings.EqualFold(getEnv("SMTP_USE_TLS", "true"), "true"),
		DefaultFromEmail: getEnv("DEFAULT_FROM_EMAIL", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "VitiGo Care"),

		SMSGatewayURL: getEnv("SMS_GATEWAY_URL", ""),
		SMSGatewayKey: getEnv("SMS_GATEWAY_KEY", ""),

		WhatsAppVerifyToken:  getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		FacebookVerifyToken:  getEnv("FACEBOOK_VERIFY_TOKEN", ""),
		InstagramVerifyToken: getEnv("INSTAGRAM_VERIFY_TOKEN", ""),
		WhatsAppAppSecret:    getEnv("WHATSAPP_APP_SECRET", ""),
		FacebookAppSecret:    getEnv("FACEBOOK_APP_SECRET", ""),
		InstagramAppSecret:   getEnv("INSTAGRAM_APP_SECRET", ""),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),

		MinIOEndpoint:               getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:              getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:              getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:                 strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinIOMaxFileSize:            mustInt64(getEnv("MINIO_MAX_FILE_SIZE", "26214400")),
		MinioBucketQueryAttachments: getEnv("MINIO_BUCKET_QUERY_ATTACHMENTS", "query-attachments"),

		DispatchStrategy: getEnv("DISPATCH_STRATEGY", "random"),
		DefaultSLAHours:  mustInt(getEnv("QUERY_SLA_HOURS", "48")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.DefaultSLAHours < 1 {
		return nil, fmt.Errorf("QUERY_SLA_HOURS must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}
