package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/cyphera/cyphera-notify/internal/audit"
	"github.com/cyphera/cyphera-notify/internal/helpers"
	"github.com/cyphera/cyphera-notify/internal/logger"
	"github.com/cyphera/cyphera-notify/internal/roles"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS bulk_notification_audit (
		id UUID PRIMARY KEY,
		sent_by TEXT NOT NULL,
		subject TEXT NOT NULL,
		recipient_count INTEGER NOT NULL,
		successful_count INTEGER NOT NULL,
		failed_count INTEGER NOT NULL,
		category TEXT NOT NULL,
		message_preview TEXT NOT NULL,
		correlation_id TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bulk_notification_audit_sent_by
		ON bulk_notification_audit (sent_by, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS roles (
		email TEXT PRIMARY KEY,
		role TEXT NOT NULL CHECK (role IN ('admin', 'support', 'user')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// PostgresStore keeps audit records and roles in postgres.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore connects to databaseURL and verifies the connection.
func NewPostgresStore(ctx context.Context, databaseURL string, log *zap.Logger) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresStore{pool: pool, logger: logger.OrNop(log)}, nil
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return helpers.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		for _, stmt := range postgresSchema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
		}
		return nil
	})
}

// Append implements audit.Store.
func (s *PostgresStore) Append(ctx context.Context, record audit.Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO bulk_notification_audit
			(id, sent_by, subject, recipient_count, successful_count, failed_count, category, message_preview, correlation_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10)
		 ON CONFLICT (id) DO NOTHING`,
		record.ID, record.SentBy, record.Subject, record.RecipientCount, record.SuccessfulCount,
		record.FailedCount, record.Category, record.MessagePreview, record.CorrelationID, record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// GetRole implements roles.Store.
func (s *PostgresStore) GetRole(ctx context.Context, email string) (string, error) {
	var role string
	err := s.pool.QueryRow(ctx, `SELECT role FROM roles WHERE email = $1`, email).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", roles.ErrRoleNotFound
		}
		return "", fmt.Errorf("failed to query role: %w", err)
	}
	return role, nil
}

// AssignRole implements roles.Store.
func (s *PostgresStore) AssignRole(ctx context.Context, email, role string) error {
	return helpers.WithTransactionRetry(ctx, s.pool, 3, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO roles (email, role) VALUES ($1, $2)
			 ON CONFLICT (email) DO UPDATE SET role = EXCLUDED.role, updated_at = NOW()`,
			email, role,
		)
		return err
	})
}

// Ping reports whether the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *PostgresStore) Close() {
	s.logger.Info("Closing postgres connection pool")
	s.pool.Close()
}
