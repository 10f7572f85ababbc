package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/internal/domain/skill"
)

// SkillRepository is an in-memory skill.Repository.
type SkillRepository struct {
	mu     sync.RWMutex
	skills map[shared.SkillID]*skill.DevelopmentalSkill
}

// NewSkillRepository creates an empty store.
func NewSkillRepository() *SkillRepository {
	return &SkillRepository{skills: make(map[shared.SkillID]*skill.DevelopmentalSkill)}
}

// GetByID implements skill.Repository.
func (r *SkillRepository) GetByID(ctx context.Context, id shared.SkillID) (*skill.DevelopmentalSkill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[id]
	if !ok {
		return nil, shared.ErrSkillNotFound
	}
	clone := *s
	return &clone, nil
}

// ListAll implements skill.Repository.
func (r *SkillRepository) ListAll(ctx context.Context) ([]*skill.DevelopmentalSkill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*skill.DevelopmentalSkill, 0, len(r.skills))
	for _, s := range r.skills {
		clone := *s
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Save implements skill.Repository.
func (r *SkillRepository) Save(ctx context.Context, s *skill.DevelopmentalSkill) error {
	if !s.ID.IsValid() {
		return shared.ErrInvalidID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *s
	r.skills[s.ID] = &clone
	return nil
}

type statusKey struct {
	child shared.ChildID
	skill shared.SkillID
}

// StatusRepository is an in-memory skill.StatusRepository. It keeps a
// small advancement journal so CountAdvancedInRange works without a
// separate event store.
type StatusRepository struct {
	mu       sync.RWMutex
	statuses map[statusKey]*skill.ChildSkillStatus
	advances map[shared.ChildID][]time.Time
}

// NewStatusRepository creates an empty store.
func NewStatusRepository() *StatusRepository {
	return &StatusRepository{
		statuses: make(map[statusKey]*skill.ChildSkillStatus),
		advances: make(map[shared.ChildID][]time.Time),
	}
}

// GetStatus implements skill.StatusRepository.
func (r *StatusRepository) GetStatus(ctx context.Context, childID shared.ChildID, skillID shared.SkillID) (*skill.ChildSkillStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.statuses[statusKey{childID, skillID}]
	if !ok {
		return nil, shared.ErrSkillStatusNotFound
	}
	clone := *s
	return &clone, nil
}

// ListByChild implements skill.StatusRepository.
func (r *StatusRepository) ListByChild(ctx context.Context, childID shared.ChildID) (map[shared.SkillID]*skill.ChildSkillStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[shared.SkillID]*skill.ChildSkillStatus)
	for k, s := range r.statuses {
		if k.child == childID {
			clone := *s
			out[k.skill] = &clone
		}
	}
	return out, nil
}

// SaveStatus implements skill.StatusRepository. A save that raises the
// status rank is journaled as an advancement.
func (r *StatusRepository) SaveStatus(ctx context.Context, s *skill.ChildSkillStatus) error {
	if !s.ChildID.IsValid() || !s.SkillID.IsValid() {
		return shared.ErrInvalidID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := statusKey{s.ChildID, s.SkillID}
	prev, existed := r.statuses[key]
	if !existed || s.Status.Rank() > prev.Status.Rank() {
		r.advances[s.ChildID] = append(r.advances[s.ChildID], s.LastAssessedAt)
	}
	clone := *s
	r.statuses[key] = &clone
	return nil
}

// CountAdvancedInRange implements skill.StatusRepository.
func (r *StatusRepository) CountAdvancedInRange(ctx context.Context, childID shared.ChildID, from, to time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, at := range r.advances[childID] {
		if !at.Before(from) && at.Before(to) {
			n++
		}
	}
	return n, nil
}
