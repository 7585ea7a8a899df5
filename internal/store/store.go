// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/igorpaiva/legal-bot-v3-sub001/internal/domain"
)

// Repository defines the interface for persisting session configuration
// and status. Persistence faults are non-fatal to in-memory operation;
// callers log and continue.
type Repository interface {
	// SaveSession creates or updates the persisted record for a session.
	SaveSession(ctx context.Context, rec *domain.SessionRecord) error

	// LoadSessions retrieves every persisted session record for restart
	// recovery.
	LoadSessions(ctx context.Context) ([]*domain.SessionRecord, error)

	// DeleteSession removes a session's persisted record.
	DeleteSession(ctx context.Context, sessionID string) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
