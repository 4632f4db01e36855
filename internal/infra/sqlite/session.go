// Package sqlite persists chat sessions and settings in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("sqlite")

// SessionStorage is a key/value port.SessionStorage backed by the kv_records table.
type SessionStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSessionStorage opens (or creates) the database at dbPath and runs migrations.
func NewSessionStorage(dbPath string, logger *zap.Logger) (*SessionStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// um único writer evita SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("session storage ready", zap.String("path", dbPath))
	return &SessionStorage{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *SessionStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Load reads the blob stored under key.
func (s *SessionStorage) Load(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, span := tracer.Start(ctx, "SessionStorage.Load")
	defer span.End()
	span.SetAttributes(attribute.String("storage.key", key))

	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_records WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("load %s: %w", key, err)
	}
	return value, true, nil
}

// Save upserts the blob under key.
func (s *SessionStorage) Save(ctx context.Context, key string, data []byte) error {
	ctx, span := tracer.Start(ctx, "SessionStorage.Save")
	defer span.End()
	span.SetAttributes(attribute.String("storage.key", key), attribute.Int("storage.bytes", len(data)))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_records (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, data, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
