package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/internal/domain/suggestion"
)

// SuggestionRepository is an in-memory suggestion.Repository.
type SuggestionRepository struct {
	mu          sync.RWMutex
	suggestions map[string]*suggestion.ActivitySuggestion
}

// NewSuggestionRepository creates an empty store.
func NewSuggestionRepository() *SuggestionRepository {
	return &SuggestionRepository{suggestions: make(map[string]*suggestion.ActivitySuggestion)}
}

// GetByID implements suggestion.Repository.
func (r *SuggestionRepository) GetByID(ctx context.Context, id string) (*suggestion.ActivitySuggestion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.suggestions[id]
	if !ok {
		return nil, shared.ErrSuggestionNotFound
	}
	clone := *s
	return &clone, nil
}

// GetOpenByChildAndActivity implements suggestion.Repository.
func (r *SuggestionRepository) GetOpenByChildAndActivity(ctx context.Context, childID shared.ChildID, activityID shared.ActivityID) (*suggestion.ActivitySuggestion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.suggestions {
		if s.ChildID == childID && s.ActivityID == activityID && !s.Status.IsTerminal() {
			clone := *s
			return &clone, nil
		}
	}
	return nil, shared.ErrSuggestionNotFound
}

// ListPendingByChild implements suggestion.Repository.
func (r *SuggestionRepository) ListPendingByChild(ctx context.Context, childID shared.ChildID, limit int) ([]*suggestion.ActivitySuggestion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*suggestion.ActivitySuggestion
	for _, s := range r.suggestions {
		if s.ChildID == childID && s.Status == suggestion.StatusPending {
			clone := *s
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListStalePending implements suggestion.Repository.
func (r *SuggestionRepository) ListStalePending(ctx context.Context, childID shared.ChildID, cutoff time.Time) ([]*suggestion.ActivitySuggestion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*suggestion.ActivitySuggestion
	for _, s := range r.suggestions {
		if s.ChildID == childID && s.Status == suggestion.StatusPending && s.CreatedAt.Before(cutoff) {
			clone := *s
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Save implements suggestion.Repository. Creating a second open
// suggestion for the same (child, activity) pair is rejected.
func (r *SuggestionRepository) Save(ctx context.Context, s *suggestion.ActivitySuggestion) error {
	if s.ID == "" {
		return shared.ErrInvalidID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !s.Status.IsTerminal() {
		for id, existing := range r.suggestions {
			if id != s.ID && existing.ChildID == s.ChildID && existing.ActivityID == s.ActivityID && !existing.Status.IsTerminal() {
				return shared.ErrDuplicateSuggestion
			}
		}
	}
	clone := *s
	r.suggestions[s.ID] = &clone
	return nil
}

// SaveAll implements suggestion.Repository.
func (r *SuggestionRepository) SaveAll(ctx context.Context, suggestions []*suggestion.ActivitySuggestion) error {
	for _, s := range suggestions {
		if err := r.Save(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// SuggestionLogRepository is an in-memory suggestion.LogRepository.
type SuggestionLogRepository struct {
	mu   sync.RWMutex
	logs []*suggestion.RecommendationLog
}

// NewSuggestionLogRepository creates an empty log.
func NewSuggestionLogRepository() *SuggestionLogRepository {
	return &SuggestionLogRepository{}
}

// Save implements suggestion.LogRepository.
func (r *SuggestionLogRepository) Save(ctx context.Context, l *suggestion.RecommendationLog) error {
	if l.ID == "" {
		return shared.ErrInvalidID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *l
	clone.Reasons = append([]string(nil), l.Reasons...)
	r.logs = append(r.logs, &clone)
	return nil
}

// SaveAll implements suggestion.LogRepository.
func (r *SuggestionLogRepository) SaveAll(ctx context.Context, logs []*suggestion.RecommendationLog) error {
	for _, l := range logs {
		if err := r.Save(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

// CloseOpen implements suggestion.LogRepository.
func (r *SuggestionLogRepository) CloseOpen(ctx context.Context, childID shared.ChildID, activityID shared.ActivityID, outcome suggestion.Status, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Newest open entry for the pair wins.
	for i := len(r.logs) - 1; i >= 0; i-- {
		l := r.logs[i]
		if l.ChildID == childID && l.ActivityID == activityID && l.Outcome == suggestion.StatusPending {
			l.Close(outcome, at)
			return nil
		}
	}
	return nil
}

// ListByChild implements suggestion.LogRepository.
func (r *SuggestionLogRepository) ListByChild(ctx context.Context, childID shared.ChildID, limit int) ([]*suggestion.RecommendationLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*suggestion.RecommendationLog
	for i := len(r.logs) - 1; i >= 0; i-- {
		if r.logs[i].ChildID == childID {
			clone := *r.logs[i]
			clone.Reasons = append([]string(nil), r.logs[i].Reasons...)
			out = append(out, &clone)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}
