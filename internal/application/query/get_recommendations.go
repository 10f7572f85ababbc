// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/catalog"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/internal/domain/suggestion"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RECOMMENDATIONS QUERY
// Returns the child's live recommendations, highest priority first, each
// joined with its catalog details. Suggestions whose activity has since
// vanished from the catalog are skipped rather than failing the read.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultRecommendationLimit caps the response when the caller sets none.
const DefaultRecommendationLimit = 10

// GetRecommendationsQuery contains the query parameters.
type GetRecommendationsQuery struct {
	// ChildID is the profile to read recommendations for.
	ChildID shared.ChildID

	// Limit caps the result count. Zero or negative means the default.
	Limit int
}

// Validate validates and normalizes the query.
func (q *GetRecommendationsQuery) Validate() error {
	if !q.ChildID.IsValid() {
		return shared.ErrInvalidChildID
	}
	if q.Limit <= 0 {
		q.Limit = DefaultRecommendationLimit
	}
	return nil
}

// RecommendationDTO is one recommendation joined with catalog details.
type RecommendationDTO struct {
	SuggestionID string    `json:"suggestion_id"`
	ActivityID   string    `json:"activity_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Area         string    `json:"area"`
	Difficulty   string    `json:"difficulty"`
	Duration     int       `json:"duration_minutes"`
	Priority     float64   `json:"priority"`
	Reason       string    `json:"reason"`
	RecommendedAt time.Time `json:"recommended_at"`
}

// GetRecommendationsResult is the query response.
type GetRecommendationsResult struct {
	ChildID         shared.ChildID      `json:"child_id"`
	Recommendations []RecommendationDTO `json:"recommendations"`

	// SkippedMissing counts suggestions dropped because their activity
	// no longer exists in the catalog.
	SkippedMissing int `json:"skipped_missing,omitempty"`
}

// GetRecommendationsHandler handles the GetRecommendationsQuery.
type GetRecommendationsHandler struct {
	suggestionRepo suggestion.Repository
	catalogRepo    catalog.Repository
}

// NewGetRecommendationsHandler creates a new GetRecommendationsHandler.
func NewGetRecommendationsHandler(suggestionRepo suggestion.Repository, catalogRepo catalog.Repository) *GetRecommendationsHandler {
	return &GetRecommendationsHandler{
		suggestionRepo: suggestionRepo,
		catalogRepo:    catalogRepo,
	}
}

// Handle executes the query.
func (h *GetRecommendationsHandler) Handle(ctx context.Context, q GetRecommendationsQuery) (*GetRecommendationsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_recommendations: validation failed: %w", err)
	}

	pending, err := h.suggestionRepo.ListPendingByChild(ctx, q.ChildID, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("get_recommendations: failed to load suggestions: %w", err)
	}

	ids := make([]shared.ActivityID, len(pending))
	for i, s := range pending {
		ids[i] = s.ActivityID
	}
	activities, err := h.catalogRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get_recommendations: failed to load activities: %w", err)
	}
	byID := make(map[shared.ActivityID]*catalog.Activity, len(activities))
	for _, a := range activities {
		byID[a.ID] = a
	}

	result := &GetRecommendationsResult{
		ChildID:         q.ChildID,
		Recommendations: make([]RecommendationDTO, 0, len(pending)),
	}
	for _, s := range pending {
		a, ok := byID[s.ActivityID]
		if !ok {
			result.SkippedMissing++
			continue
		}
		result.Recommendations = append(result.Recommendations, RecommendationDTO{
			SuggestionID:  s.ID,
			ActivityID:    a.ID.String(),
			Name:          a.Name,
			Description:   a.Description,
			Area:          a.Area,
			Difficulty:    string(a.Difficulty),
			Duration:      a.Duration(),
			Priority:      s.Priority,
			Reason:        s.Reason,
			RecommendedAt: s.CreatedAt,
		})
	}
	return result, nil
}
