package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/cyphera/cyphera-notify/internal/logger"
	"go.uber.org/zap"
)

type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerClient wraps the AWS Secrets Manager client.
type SecretsManagerClient struct {
	svc    secretsAPI
	logger *zap.Logger
}

// NewSecretsManagerClient creates a Secrets Manager client from cfg.
func NewSecretsManagerClient(cfg aws.Config, log *zap.Logger) *SecretsManagerClient {
	return &SecretsManagerClient{
		svc:    secretsmanager.NewFromConfig(cfg),
		logger: logger.OrNop(log),
	}
}

// GetSecretString fetches a secret using the ARN held in secretArnEnvVar. If
// that variable is unset or the fetch fails it falls back to the value of
// fallbackEnvVar. It returns an error when neither yields a value.
func (c *SecretsManagerClient) GetSecretString(ctx context.Context, secretArnEnvVar string, fallbackEnvVar string) (string, error) {
	if secretArn := os.Getenv(secretArnEnvVar); secretArn != "" {
		value, err := c.fetch(ctx, secretArn)
		if err == nil && value != "" {
			c.logger.Info("Successfully fetched secret from Secrets Manager", zap.String("arnEnvVar", secretArnEnvVar))
			return value, nil
		}
		c.logger.Warn("Failed to retrieve secret from Secrets Manager, falling back to env var",
			zap.String("arnEnvVar", secretArnEnvVar),
			zap.String("fallbackEnvVar", fallbackEnvVar),
			zap.Error(err),
		)
	}

	if value := os.Getenv(fallbackEnvVar); value != "" {
		c.logger.Debug("Using secret value from direct environment variable", zap.String("envVar", fallbackEnvVar))
		return value, nil
	}

	return "", fmt.Errorf("secret not found using ARN env var '%s' or direct env var '%s'", secretArnEnvVar, fallbackEnvVar)
}

// GetSecretJSON fetches the secret named by secretArnEnvVar and unmarshals it
// into target. There is no environment fallback.
func (c *SecretsManagerClient) GetSecretJSON(ctx context.Context, secretArnEnvVar string, target interface{}) error {
	secretArn := os.Getenv(secretArnEnvVar)
	if secretArn == "" {
		return fmt.Errorf("secret ARN env var '%s' is not set", secretArnEnvVar)
	}

	value, err := c.fetch(ctx, secretArn)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(value), target); err != nil {
		return fmt.Errorf("secret '%s' is not valid JSON: %w", secretArnEnvVar, err)
	}
	return nil
}

func (c *SecretsManagerClient) fetch(ctx context.Context, secretArn string) (string, error) {
	result, err := c.svc.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretArn),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret value: %w", err)
	}
	if result.SecretString == nil {
		return "", fmt.Errorf("secret has no string value")
	}
	return *result.SecretString, nil
}

// DatabaseSecret is the JSON layout of an RDS managed database secret.
type DatabaseSecret struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"dbname"`
}

// DSN renders the secret as a postgres connection URL.
func (s DatabaseSecret) DSN(sslMode string) string {
	if sslMode == "" {
		sslMode = "require"
	}
	port := s.Port
	if port == 0 {
		port = 5432
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(s.Username, s.Password),
		Host:     fmt.Sprintf("%s:%d", s.Host, port),
		Path:     "/" + s.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String()
}
