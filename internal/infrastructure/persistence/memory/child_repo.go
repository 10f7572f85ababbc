// Package memory provides in-memory repository implementations, used by
// tests and the local development runner. All stores are safe for
// concurrent use and return defensive copies.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/child"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

// ChildRepository is an in-memory child.Repository.
type ChildRepository struct {
	mu       sync.RWMutex
	children map[shared.ChildID]*child.Child
}

// NewChildRepository creates an empty store.
func NewChildRepository() *ChildRepository {
	return &ChildRepository{children: make(map[shared.ChildID]*child.Child)}
}

// GetByID implements child.Repository.
func (r *ChildRepository) GetByID(ctx context.Context, id shared.ChildID) (*child.Child, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.children[id]
	if !ok {
		return nil, shared.ErrChildNotFound
	}
	return cloneChild(c), nil
}

// ListActive implements child.Repository.
func (r *ChildRepository) ListActive(ctx context.Context) ([]*child.Child, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*child.Child
	for _, c := range r.children {
		if c.Active {
			out = append(out, cloneChild(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ListByOwner implements child.Repository.
func (r *ChildRepository) ListByOwner(ctx context.Context, ownerID shared.OwnerID) ([]*child.Child, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*child.Child
	for _, c := range r.children {
		if c.OwnerID == ownerID {
			out = append(out, cloneChild(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Save implements child.Repository.
func (r *ChildRepository) Save(ctx context.Context, c *child.Child) error {
	if !c.ID.IsValid() {
		return shared.ErrInvalidChildID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.children[c.ID] = cloneChild(c)
	return nil
}

// TouchPlanGeneratedAt implements child.Repository.
func (r *ChildRepository) TouchPlanGeneratedAt(ctx context.Context, id shared.ChildID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.children[id]
	if !ok {
		return shared.ErrChildNotFound
	}
	c.MarkPlanGenerated(time.Now().UTC())
	return nil
}

// TouchPlanEvolvedAt implements child.Repository.
func (r *ChildRepository) TouchPlanEvolvedAt(ctx context.Context, id shared.ChildID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.children[id]
	if !ok {
		return shared.ErrChildNotFound
	}
	c.MarkPlanEvolved(time.Now().UTC())
	return nil
}

func cloneChild(c *child.Child) *child.Child {
	clone := *c
	clone.Interests = append([]string(nil), c.Interests...)
	if c.LastPlanGeneratedAt != nil {
		t := *c.LastPlanGeneratedAt
		clone.LastPlanGeneratedAt = &t
	}
	if c.LastPlanEvolvedAt != nil {
		t := *c.LastPlanEvolvedAt
		clone.LastPlanEvolvedAt = &t
	}
	return &clone
}

// OwnerRepository is an in-memory child.OwnerRepository.
type OwnerRepository struct {
	mu     sync.RWMutex
	owners map[shared.OwnerID]*child.Owner
}

// NewOwnerRepository creates an empty store.
func NewOwnerRepository() *OwnerRepository {
	return &OwnerRepository{owners: make(map[shared.OwnerID]*child.Owner)}
}

// GetByID implements child.OwnerRepository.
func (r *OwnerRepository) GetByID(ctx context.Context, id shared.OwnerID) (*child.Owner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.owners[id]
	if !ok {
		return nil, shared.ErrOwnerNotFound
	}
	return cloneOwner(o), nil
}

// ListAll implements child.OwnerRepository.
func (r *OwnerRepository) ListAll(ctx context.Context) ([]*child.Owner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*child.Owner, 0, len(r.owners))
	for _, o := range r.owners {
		out = append(out, cloneOwner(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Save implements child.OwnerRepository.
func (r *OwnerRepository) Save(ctx context.Context, o *child.Owner) error {
	if !o.ID.IsValid() {
		return shared.ErrInvalidID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners[o.ID] = cloneOwner(o)
	return nil
}

func cloneOwner(o *child.Owner) *child.Owner {
	clone := *o
	if o.Schedule != nil {
		s := *o.Schedule
		if o.Schedule.ByDay != nil {
			s.ByDay = make(map[string]int, len(o.Schedule.ByDay))
			for k, v := range o.Schedule.ByDay {
				s.ByDay[k] = v
			}
		}
		clone.Schedule = &s
	}
	return &clone
}
