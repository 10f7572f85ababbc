// Package progress contains the history ledger.
package progress

import (
	"context"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

// Repository defines persistence for the history ledger.
type Repository interface {
	// Save appends or updates a ledger entry.
	Save(ctx context.Context, r *Record) error

	// GetByID returns one ledger entry.
	GetByID(ctx context.Context, id string) (*Record, error)

	// ListRecentByChild returns the child's most recent entries, newest
	// first, up to limit. This is the scoring and filler lookback window.
	ListRecentByChild(ctx context.Context, childID shared.ChildID, limit int) ([]*Record, error)

	// ListCompletedInRange returns completed entries for the child with
	// CompletedAt in [from, to), oldest first. Drives the monthly digest.
	ListCompletedInRange(ctx context.Context, childID shared.ChildID, from, to time.Time) ([]*Record, error)

	// CountCompletedSince returns how many completed entries the child
	// has logged at or after the given time. Drives plan evolution.
	CountCompletedSince(ctx context.Context, childID shared.ChildID, since time.Time) (int, error)
}

// ProcessedEventStore tracks which completion events have already been
// handled, so redelivered events become no-ops. Backed by Redis with a
// TTL; a lost key past the TTL only risks re-processing events old
// enough that every downstream write is already idempotent.
type ProcessedEventStore interface {
	// CheckAndRecord atomically tests the key and records it when
	// absent. Returns true when the key was already present, meaning
	// the event was processed before.
	CheckAndRecord(ctx context.Context, key string, ttl time.Duration) (alreadyProcessed bool, err error)
}
