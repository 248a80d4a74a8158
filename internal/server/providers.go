package server

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/cyphera/cyphera-notify/internal/audit"
	"github.com/cyphera/cyphera-notify/internal/auth"
	awsclient "github.com/cyphera/cyphera-notify/internal/client/aws"
	"github.com/cyphera/cyphera-notify/internal/client/email"
	"github.com/cyphera/cyphera-notify/internal/constants"
	"github.com/cyphera/cyphera-notify/internal/dispatch"
	"github.com/cyphera/cyphera-notify/internal/helpers"
	"github.com/cyphera/cyphera-notify/internal/roles"
	"github.com/cyphera/cyphera-notify/internal/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	opts := awsclient.ConfigOptions{
		Region:   cfg.AWSRegion,
		Endpoint: cfg.AWSEndpoint,
	}
	// A local endpoint (localstack) accepts any static credentials.
	if cfg.AWSEndpoint != "" {
		opts.AccessKeyID = helpers.GetEnv("AWS_ACCESS_KEY_ID", "test")
		opts.SecretAccessKey = helpers.GetEnv("AWS_SECRET_ACCESS_KEY", "test")
	}
	return awsclient.LoadConfig(ctx, opts)
}

func newSecretsClient(cfg aws.Config, log *zap.Logger) *awsclient.SecretsManagerClient {
	return awsclient.NewSecretsManagerClient(cfg, log)
}

// newSender builds the configured send adapter. A provider that cannot be
// configured yields an UnavailableSender so the service still starts and
// reports the problem per request. A broken DKIM key is a startup error.
func newSender(ctx context.Context, cfg Config, secrets *awsclient.SecretsManagerClient, log *zap.Logger) (dispatch.Sender, error) {
	switch cfg.EmailProvider {
	case constants.EmailProviderResend:
		apiKey, err := secrets.GetSecretString(ctx, "RESEND_API_KEY_ARN", "RESEND_API_KEY")
		if err != nil {
			log.Warn("Resend API key not configured, email sending disabled", zap.Error(err))
			return email.UnavailableSender{Reason: "RESEND_API_KEY not configured"}, nil
		}

		var opts []email.ResendOption
		if baseURL := helpers.GetEnv("RESEND_BASE_URL", ""); baseURL != "" {
			opts = append(opts, email.WithBaseURL(baseURL))
		}
		sender, err := email.NewResendSender(apiKey, cfg.FromEmail, cfg.FromName, log, opts...)
		if err != nil {
			log.Warn("Resend sender unavailable", zap.Error(err))
			return email.UnavailableSender{Reason: err.Error()}, nil
		}
		return sender, nil

	case constants.EmailProviderSMTP:
		// The password is optional; relays on a private network often accept
		// unauthenticated mail.
		password, _ := secrets.GetSecretString(ctx, "SMTP_PASSWORD_ARN", "SMTP_PASSWORD")
		dkimKey, _ := secrets.GetSecretString(ctx, "SMTP_DKIM_PRIVATE_KEY_ARN", "SMTP_DKIM_PRIVATE_KEY")

		signer, err := email.NewDKIMSigner(email.DKIMConfig{
			Selector:   cfg.DKIMSelector,
			Domain:     cfg.DKIMDomain,
			KeyPath:    cfg.DKIMKeyPath,
			PrivateKey: dkimKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure DKIM signing: %w", err)
		}

		sender, err := email.NewSMTPSender(email.SMTPConfig{
			Host:      cfg.SMTPHost,
			Port:      cfg.SMTPPort,
			Username:  cfg.SMTPUsername,
			Password:  password,
			FromEmail: cfg.FromEmail,
			FromName:  cfg.FromName,
		}, signer, log)
		if err != nil {
			log.Warn("SMTP sender unavailable", zap.Error(err))
			return email.UnavailableSender{Reason: err.Error()}, nil
		}
		return sender, nil

	default:
		log.Warn("Unknown email provider, email sending disabled", zap.String("provider", cfg.EmailProvider))
		return email.UnavailableSender{Reason: fmt.Sprintf("unknown email provider %q", cfg.EmailProvider)}, nil
	}
}

// newVerifier prefers JWKS when AUTH_JWKS_URL is set and falls back to a
// shared HS256 secret.
func newVerifier(ctx context.Context, cfg Config, secrets *awsclient.SecretsManagerClient, deps *Dependencies) (auth.Verifier, error) {
	if cfg.JWKSURL != "" {
		verifier, err := auth.NewJWKSVerifier(cfg.JWKSURL, cfg.Issuer, cfg.Audience)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize JWKS verifier: %w", err)
		}
		deps.onClose(verifier.Close)
		return verifier, nil
	}

	secret, err := secrets.GetSecretString(ctx, "AUTH_JWT_SECRET_ARN", "AUTH_JWT_SECRET")
	if err != nil {
		return nil, fmt.Errorf("no credential verifier configured, set AUTH_JWKS_URL or AUTH_JWT_SECRET: %w", err)
	}
	return auth.NewHMACVerifier([]byte(secret), cfg.Issuer, cfg.Audience), nil
}

// initStores selects the role and audit stores: postgres when a database is
// configured, otherwise SQLite when SQLITE_PATH is set, otherwise an
// in-memory role store with audit records written to the log. Redis caches
// role lookups and SQS receives a copy of every audit record when configured.
func initStores(ctx context.Context, cfg Config, awsCfg aws.Config, secrets *awsclient.SecretsManagerClient, deps *Dependencies, log *zap.Logger) error {
	var (
		roleStore   roles.Store
		auditStores audit.FanoutStore
	)

	databaseURL, err := resolveDatabaseURL(ctx, secrets, log)
	if err != nil {
		return err
	}

	switch {
	case databaseURL != "":
		pg, err := store.NewPostgresStore(ctx, databaseURL, log)
		if err != nil {
			return err
		}
		deps.onClose(pg.Close)
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		roleStore = pg
		auditStores = append(auditStores, pg)
		deps.HealthChecks["database"] = pg

	case cfg.SQLitePath != "":
		sqlite, err := store.OpenSQLite(ctx, cfg.SQLitePath, log)
		if err != nil {
			return err
		}
		deps.onClose(func() { _ = sqlite.Close() })
		roleStore = sqlite
		auditStores = append(auditStores, sqlite)
		deps.HealthChecks["database"] = sqlite

	default:
		log.Warn("No database configured, using in-memory roles and log-only audit")
		roleStore = roles.NewMemoryStore()
		auditStores = append(auditStores, audit.StoreFunc(func(_ context.Context, record audit.Record) error {
			log.Info("Bulk notification audit",
				zap.String("audit_id", record.ID),
				zap.String("sent_by", record.SentBy),
				zap.String("subject", record.Subject),
				zap.Int("recipient_count", record.RecipientCount),
				zap.Int("failed_count", record.FailedCount),
			)
			return nil
		}))
	}

	if err := seedAdmins(ctx, roleStore, cfg.AdminEmails); err != nil {
		return err
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		deps.onClose(func() { _ = client.Close() })
		roleStore = roles.NewCachedStore(roleStore, client, cfg.RoleCacheTTL, log)
		deps.HealthChecks["redis"] = pingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}

	if cfg.AuditQueueURL != "" {
		auditStores = append(auditStores, awsclient.NewAuditPublisher(awsCfg, cfg.AuditQueueURL, log))
	}

	deps.RoleStore = roleStore
	if len(auditStores) == 1 {
		deps.AuditStore = auditStores[0]
	} else {
		deps.AuditStore = auditStores
	}
	return nil
}

// resolveDatabaseURL reads the RDS secret named by DB_SECRET_ARN, falling
// back to DATABASE_URL. An empty result means no postgres.
func resolveDatabaseURL(ctx context.Context, secrets *awsclient.SecretsManagerClient, log *zap.Logger) (string, error) {
	if helpers.GetEnv("DB_SECRET_ARN", "") != "" {
		var secret awsclient.DatabaseSecret
		if err := secrets.GetSecretJSON(ctx, "DB_SECRET_ARN", &secret); err != nil {
			return "", fmt.Errorf("failed to load database secret: %w", err)
		}
		log.Info("Using database credentials from Secrets Manager", zap.String("host", secret.Host))
		return secret.DSN(helpers.GetEnv("DB_SSLMODE", "require")), nil
	}
	return helpers.GetEnv("DATABASE_URL", ""), nil
}

// seedAdmins grants the admin role to each configured email.
func seedAdmins(ctx context.Context, roleStore roles.Store, admins []string) error {
	for _, email := range admins {
		email = helpers.NormalizeEmail(email)
		if email == "" {
			continue
		}
		if err := roleStore.AssignRole(ctx, email, constants.RoleAdmin); err != nil {
			return fmt.Errorf("failed to seed admin %s: %w", email, err)
		}
	}
	return nil
}
