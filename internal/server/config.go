package server

import (
	"strings"
	"time"

	"github.com/cyphera/cyphera-notify/internal/constants"
	"github.com/cyphera/cyphera-notify/internal/helpers"
)

var defaultCORSOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}

// Config holds the settings read from the environment. Secrets are not part
// of Config; they are resolved through Secrets Manager during initialization.
type Config struct {
	Stage string
	Port  string

	EmailProvider string
	FromEmail     string
	FromName      string
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	DKIMSelector  string
	DKIMDomain    string
	DKIMKeyPath   string

	JWKSURL  string
	Issuer   string
	Audience string

	SQLitePath   string
	RedisURL     string
	RoleCacheTTL time.Duration
	AdminEmails  []string

	AuditQueueURL string
	AWSRegion     string
	AWSEndpoint   string

	MaxBatchSize    int
	Pacing          string
	StaggerInterval time.Duration
	RatePerSecond   int
	Burst           int

	RateLimitRPS   int
	RateLimitBurst int

	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

// LoadConfig reads Config from the environment, applying defaults.
func LoadConfig() Config {
	stage := helpers.GetEnv("STAGE", constants.StageLocal)
	if !helpers.IsValidStage(stage) {
		stage = constants.StageLocal
	}

	return Config{
		Stage: stage,
		Port:  helpers.GetEnv("PORT", "8000"),

		EmailProvider: strings.ToLower(helpers.GetEnv("EMAIL_PROVIDER", constants.EmailProviderResend)),
		FromEmail:     helpers.GetEnv("EMAIL_FROM_ADDRESS", "notifications@cyphera.com"),
		FromName:      helpers.GetEnv("EMAIL_FROM_NAME", "Cyphera"),
		SMTPHost:      helpers.GetEnv("SMTP_HOST", ""),
		SMTPPort:      helpers.GetEnvInt("SMTP_PORT", 587),
		SMTPUsername:  helpers.GetEnv("SMTP_USERNAME", ""),
		DKIMSelector:  helpers.GetEnv("SMTP_DKIM_SELECTOR", ""),
		DKIMDomain:    helpers.GetEnv("SMTP_DKIM_DOMAIN", ""),
		DKIMKeyPath:   helpers.GetEnv("SMTP_DKIM_KEY_PATH", ""),

		JWKSURL:  helpers.GetEnv("AUTH_JWKS_URL", ""),
		Issuer:   helpers.GetEnv("AUTH_ISSUER", ""),
		Audience: helpers.GetEnv("AUTH_AUDIENCE", ""),

		SQLitePath:   helpers.GetEnv("SQLITE_PATH", ""),
		RedisURL:     helpers.GetEnv("REDIS_URL", ""),
		RoleCacheTTL: helpers.GetEnvDuration("ROLE_CACHE_TTL", 5*time.Minute),
		AdminEmails:  helpers.SplitAndTrim(helpers.GetEnv("ADMIN_EMAILS", "")),

		AuditQueueURL: helpers.GetEnv("AUDIT_SQS_QUEUE_URL", ""),
		AWSRegion:     helpers.GetEnv("AWS_REGION", "us-east-1"),
		AWSEndpoint:   helpers.GetEnv("AWS_ENDPOINT_URL", ""),

		MaxBatchSize:    helpers.GetEnvInt("MAX_BATCH_SIZE", constants.MaxBatchSize),
		Pacing:          strings.ToLower(helpers.GetEnv("DISPATCH_PACING", constants.PacingStagger)),
		StaggerInterval: helpers.GetEnvMillis("DISPATCH_STAGGER_MS", constants.DefaultStagger),
		RatePerSecond:   helpers.GetEnvInt("DISPATCH_RATE_PER_SECOND", 10),
		Burst:           helpers.GetEnvInt("DISPATCH_BURST", 1),

		RateLimitRPS:   helpers.GetEnvInt("RATE_LIMIT_RPS", 10),
		RateLimitBurst: helpers.GetEnvInt("RATE_LIMIT_BURST", 20),

		CORSAllowedOrigins: helpers.SplitAndTrim(helpers.GetEnv("CORS_ALLOWED_ORIGINS", "")),
		CORSAllowedMethods: helpers.SplitAndTrim(helpers.GetEnv("CORS_ALLOWED_METHODS",
			"GET,POST,PUT,OPTIONS")),
		CORSAllowedHeaders: helpers.SplitAndTrim(helpers.GetEnv("CORS_ALLOWED_HEADERS",
			"Origin,Content-Type,Accept,Authorization,X-Correlation-ID")),
		CORSAllowCredentials: helpers.GetEnv("CORS_ALLOW_CREDENTIALS", "false") == "true",
	}
}
