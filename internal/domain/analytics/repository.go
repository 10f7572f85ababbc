// Package analytics contains the monthly digest model.
package analytics

import (
	"context"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

// Repository defines persistence for monthly reports.
type Repository interface {
	// Save persists a report (create or overwrite by ID).
	Save(ctx context.Context, r *MonthlyReport) error

	// GetByChildAndMonth returns the report for the month containing
	// the given time, or shared.ErrNotFound.
	GetByChildAndMonth(ctx context.Context, childID shared.ChildID, month time.Time) (*MonthlyReport, error)

	// ListByOwner returns an owner's reports, most recent month first.
	ListByOwner(ctx context.Context, ownerID shared.OwnerID, limit int) ([]*MonthlyReport, error)
}
