package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/plan"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/pkg/timeutil"
)

// PlanRepository is an in-memory plan.Repository.
type PlanRepository struct {
	mu    sync.RWMutex
	plans map[string]*plan.WeeklyPlan
}

// NewPlanRepository creates an empty store.
func NewPlanRepository() *PlanRepository {
	return &PlanRepository{plans: make(map[string]*plan.WeeklyPlan)}
}

// GetByID implements plan.Repository.
func (r *PlanRepository) GetByID(ctx context.Context, id string) (*plan.WeeklyPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, shared.ErrPlanNotFound
	}
	return clonePlan(p), nil
}

// GetByChildAndWeek implements plan.Repository.
func (r *PlanRepository) GetByChildAndWeek(ctx context.Context, childID shared.ChildID, weekOf time.Time) (*plan.WeeklyPlan, error) {
	id := timeutil.PlanID(childID.String(), timeutil.StartOfWeek(weekOf))
	return r.GetByID(ctx, id)
}

// ExistsForWeek implements plan.Repository.
func (r *PlanRepository) ExistsForWeek(ctx context.Context, childID shared.ChildID, weekOf time.Time) (bool, error) {
	id := timeutil.PlanID(childID.String(), timeutil.StartOfWeek(weekOf))
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.plans[id]
	return ok, nil
}

// Save implements plan.Repository.
func (r *PlanRepository) Save(ctx context.Context, p *plan.WeeklyPlan) error {
	if p.ID == "" {
		return shared.ErrInvalidID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[p.ID] = clonePlan(p)
	return nil
}

// ListByChild implements plan.Repository.
func (r *PlanRepository) ListByChild(ctx context.Context, childID shared.ChildID, limit int) ([]*plan.WeeklyPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*plan.WeeklyPlan
	for _, p := range r.plans {
		if p.ChildID == childID {
			out = append(out, clonePlan(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStart.After(out[j].WeekStart) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func clonePlan(p *plan.WeeklyPlan) *plan.WeeklyPlan {
	clone := *p
	clone.Days = make(map[plan.Weekday][]plan.Entry, len(p.Days))
	for day, entries := range p.Days {
		clone.Days[day] = append([]plan.Entry(nil), entries...)
	}
	return &clone
}
