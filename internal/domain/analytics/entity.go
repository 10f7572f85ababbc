// Package analytics contains the monthly digest model: a per-child
// summary of the previous month's activity, generated for the owner.
package analytics

import (
	"fmt"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/pkg/timeutil"
)

// ReportID builds the deterministic identifier for a child's monthly
// report: "{childID}_{first-of-month ISO date}". Callers may pass any
// time within the target month.
func ReportID(childID shared.ChildID, month time.Time) string {
	first := timeutil.StartOfMonth(month.UTC())
	return fmt.Sprintf("%s_%s", childID, timeutil.FormatDate(first))
}

// MonthlyReport summarizes one child's month for the owner digest.
type MonthlyReport struct {
	// ID is deterministic: "{childID}_{month ISO date}", where the
	// month is its first day. Regeneration overwrites in place.
	ID      string
	OwnerID shared.OwnerID
	ChildID shared.ChildID

	// Month is the first day of the covered month, midnight UTC.
	Month time.Time

	// CompletedCount is the number of completed activities.
	CompletedCount int

	// SkillsProgressed is how many skill statuses moved forward.
	SkillsProgressed int

	// AreaBreakdown counts completions per activity area.
	AreaBreakdown map[string]int

	// TotalMinutes sums activity durations, using the catalog default
	// for activities with no duration.
	TotalMinutes int

	GeneratedAt time.Time
}

// TopArea returns the area with the most completions, empty when the
// month had none. Ties break alphabetically for stable digests.
func (r *MonthlyReport) TopArea() string {
	best := ""
	bestCount := 0
	for area, count := range r.AreaBreakdown {
		if count > bestCount || (count == bestCount && best != "" && area < best) {
			best = area
			bestCount = count
		}
	}
	return best
}

// IsEmpty reports whether the month had no completions at all.
func (r *MonthlyReport) IsEmpty() bool {
	return r.CompletedCount == 0
}
