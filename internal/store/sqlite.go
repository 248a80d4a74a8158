package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cyphera/cyphera-notify/internal/audit"
	"github.com/cyphera/cyphera-notify/internal/logger"
	"github.com/cyphera/cyphera-notify/internal/roles"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var sqliteMigrations string

// MemoryPath opens a private in-memory SQLite database.
const MemoryPath = ":memory:"

// SQLiteStore keeps audit records and roles in a local SQLite file. It is
// used on the local stage when no postgres is configured.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema.
func OpenSQLite(ctx context.Context, path string, log *zap.Logger) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One connection serializes writers and keeps an in-memory database alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if path != MemoryPath {
		_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
		_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout = 5000")
	}

	if _, err := db.ExecContext(ctx, sqliteMigrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger.OrNop(log)}, nil
}

// Append implements audit.Store.
func (s *SQLiteStore) Append(ctx context.Context, record audit.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bulk_notification_audit
			(id, sent_by, subject, recipient_count, successful_count, failed_count, category, message_preview, correlation_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		record.ID, record.SentBy, record.Subject, record.RecipientCount, record.SuccessfulCount,
		record.FailedCount, record.Category, record.MessagePreview, nullString(record.CorrelationID),
		record.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// ListAudit returns the most recent audit records, newest first.
func (s *SQLiteStore) ListAudit(ctx context.Context, limit int) ([]audit.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sent_by, subject, recipient_count, successful_count, failed_count, category, message_preview,
			COALESCE(correlation_id, ''), created_at
		 FROM bulk_notification_audit ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []audit.Record
	for rows.Next() {
		var r audit.Record
		var createdAt string
		if err := rows.Scan(&r.ID, &r.SentBy, &r.Subject, &r.RecipientCount, &r.SuccessfulCount,
			&r.FailedCount, &r.Category, &r.MessagePreview, &r.CorrelationID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		if r.Timestamp, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("invalid audit timestamp %q: %w", createdAt, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetRole implements roles.Store.
func (s *SQLiteStore) GetRole(ctx context.Context, email string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `SELECT role FROM roles WHERE email = ?`, email).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", roles.ErrRoleNotFound
		}
		return "", fmt.Errorf("failed to query role: %w", err)
	}
	return role, nil
}

// AssignRole implements roles.Store.
func (s *SQLiteStore) AssignRole(ctx context.Context, email, role string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO roles(email, role, updated_at) VALUES(?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET role = excluded.role, updated_at = excluded.updated_at`,
		email, role, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert role: %w", err)
	}
	return nil
}

// Ping checks the database handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
