package store

import (
	"context"
	"time"

	"github.com/aussiebroadwan/pwdself/internal/pwdself/domain"
)

// Store is the root data access interface implemented by the drivers.
type Store interface {
	AuditEvents() AuditEvents

	ApplyMigrations() error

	// Close releases the underlying database.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

type AuditEvents interface {
	// RecordAuditEvent inserts e. The caller assigns the ID.
	RecordAuditEvent(ctx context.Context, e domain.AuditEvent) error

	// ListAuditEventsByUsername returns the newest events for username first.
	// A non-positive limit means 50.
	ListAuditEventsByUsername(ctx context.Context, username string, limit int) ([]domain.AuditEvent, error)

	// DeleteAuditEventsBefore prunes events older than cutoff and returns
	// how many were removed.
	DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
