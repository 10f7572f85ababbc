package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/analytics"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

// AnalyticsRepository is an in-memory analytics.Repository.
type AnalyticsRepository struct {
	mu      sync.RWMutex
	reports map[string]*analytics.MonthlyReport
}

// NewAnalyticsRepository creates an empty store.
func NewAnalyticsRepository() *AnalyticsRepository {
	return &AnalyticsRepository{reports: make(map[string]*analytics.MonthlyReport)}
}

// Save implements analytics.Repository.
func (r *AnalyticsRepository) Save(ctx context.Context, report *analytics.MonthlyReport) error {
	if report.ID == "" {
		return shared.ErrInvalidID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports[report.ID] = cloneReport(report)
	return nil
}

// GetByChildAndMonth implements analytics.Repository.
func (r *AnalyticsRepository) GetByChildAndMonth(ctx context.Context, childID shared.ChildID, month time.Time) (*analytics.MonthlyReport, error) {
	id := analytics.ReportID(childID, month)
	r.mu.RLock()
	defer r.mu.RUnlock()
	report, ok := r.reports[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return cloneReport(report), nil
}

// ListByOwner implements analytics.Repository.
func (r *AnalyticsRepository) ListByOwner(ctx context.Context, ownerID shared.OwnerID, limit int) ([]*analytics.MonthlyReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*analytics.MonthlyReport
	for _, report := range r.reports {
		if report.OwnerID == ownerID {
			out = append(out, cloneReport(report))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.After(out[j].Month) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneReport(report *analytics.MonthlyReport) *analytics.MonthlyReport {
	clone := *report
	clone.AreaBreakdown = make(map[string]int, len(report.AreaBreakdown))
	for k, v := range report.AreaBreakdown {
		clone.AreaBreakdown[k] = v
	}
	return &clone
}
