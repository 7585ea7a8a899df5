package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/igorpaiva/legal-bot-v3-sub001/internal/domain"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex // serialize session writes to prevent SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		assistant_label TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		status TEXT NOT NULL,
		phone_identity TEXT,
		is_active INTEGER DEFAULT 0,
		message_count INTEGER DEFAULT 0,
		last_activity_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_owner ON sessions(owner_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveSession creates or updates the persisted record for a session.
func (s *SQLiteStore) SaveSession(ctx context.Context, rec *domain.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
	INSERT INTO sessions (
		session_id, display_name, assistant_label, owner_id, status,
		phone_identity, is_active, message_count, last_activity_at,
		created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		display_name = excluded.display_name,
		assistant_label = excluded.assistant_label,
		status = excluded.status,
		phone_identity = COALESCE(excluded.phone_identity, sessions.phone_identity),
		is_active = excluded.is_active,
		message_count = excluded.message_count,
		last_activity_at = COALESCE(excluded.last_activity_at, sessions.last_activity_at),
		updated_at = excluded.updated_at`

	var phoneIdentity interface{}
	if rec.PhoneIdentity != "" {
		phoneIdentity = rec.PhoneIdentity
	}
	var lastActivity interface{}
	if rec.LastActivityAt != nil {
		lastActivity = rec.LastActivityAt.Unix()
	}

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.DisplayName, rec.AssistantLabel, rec.OwnerID, string(rec.Status),
		phoneIdentity, rec.IsActive, rec.MessageCount, lastActivity,
		rec.CreatedAt.Unix(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// LoadSessions retrieves every persisted session record.
func (s *SQLiteStore) LoadSessions(ctx context.Context) ([]*domain.SessionRecord, error) {
	query := `
		SELECT session_id, display_name, assistant_label, owner_id, status,
		       phone_identity, is_active, message_count, last_activity_at,
		       created_at, updated_at
		FROM sessions`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close session rows", "error", closeErr)
		}
	}()

	var recs []*domain.SessionRecord
	for rows.Next() {
		var rec domain.SessionRecord
		var status string
		var phoneIdentity sql.NullString
		var lastActivity sql.NullInt64
		var createdAt, updatedAt int64

		if err := rows.Scan(
			&rec.ID, &rec.DisplayName, &rec.AssistantLabel, &rec.OwnerID, &status,
			&phoneIdentity, &rec.IsActive, &rec.MessageCount, &lastActivity,
			&createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}

		rec.Status = domain.Status(status)
		rec.PhoneIdentity = phoneIdentity.String
		if lastActivity.Valid {
			t := time.Unix(lastActivity.Int64, 0)
			rec.LastActivityAt = &t
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		rec.UpdatedAt = time.Unix(updatedAt, 0)
		recs = append(recs, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return recs, nil
}

// DeleteSession removes a session's persisted record.
// Retries with exponential backoff to handle SQLITE_BUSY errors.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		err := s.deleteSessionOnce(ctx, sessionID)
		if err == nil {
			return nil
		}

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i) // 100ms, 200ms, 400ms
			slog.Debug("DeleteSession hit SQLITE_BUSY, retrying",
				"session_id", sessionID,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}

		return fmt.Errorf("failed to delete session %s after %d attempts: %w", sessionID, i+1, err)
	}

	return nil
}

func (s *SQLiteStore) deleteSessionOnce(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
