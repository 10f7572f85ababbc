package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/internal/domain/suggestion"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUGGESTION REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// SuggestionRepository implements suggestion.Repository for PostgreSQL.
// The partial unique index on (child_id, activity_id) WHERE status IN
// ('pending', 'accepted') backs the one-open-suggestion invariant.
type SuggestionRepository struct {
	conn *Connection
}

// NewSuggestionRepository creates a new SuggestionRepository.
func NewSuggestionRepository(conn *Connection) *SuggestionRepository {
	return &SuggestionRepository{conn: conn}
}

const suggestionColumns = `id, child_id, activity_id, priority, reason,
	   status, weekly_plan_id, created_at, updated_at`

// GetByID returns one suggestion.
func (r *SuggestionRepository) GetByID(ctx context.Context, id string) (*suggestion.ActivitySuggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM suggestions WHERE id = $1`
	return scanSuggestion(r.conn.QueryRow(ctx, query, id))
}

// GetOpenByChildAndActivity returns the single pending or accepted
// suggestion for the pair.
func (r *SuggestionRepository) GetOpenByChildAndActivity(ctx context.Context, childID shared.ChildID, activityID shared.ActivityID) (*suggestion.ActivitySuggestion, error) {
	query := `
		SELECT ` + suggestionColumns + `
		FROM suggestions
		WHERE child_id = $1 AND activity_id = $2
		  AND status IN ('pending', 'accepted')
	`
	return scanSuggestion(r.conn.QueryRow(ctx, query, childID.String(), activityID.String()))
}

// ListPendingByChild returns pending suggestions, highest priority
// first. limit <= 0 means all.
func (r *SuggestionRepository) ListPendingByChild(ctx context.Context, childID shared.ChildID, limit int) ([]*suggestion.ActivitySuggestion, error) {
	query := `
		SELECT ` + suggestionColumns + `
		FROM suggestions
		WHERE child_id = $1 AND status = 'pending'
		ORDER BY priority DESC, id
	`
	args := []interface{}{childID.String()}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending suggestions: %w", err)
	}
	defer rows.Close()

	return collectSuggestions(rows)
}

// ListStalePending returns pending suggestions created before the cutoff.
func (r *SuggestionRepository) ListStalePending(ctx context.Context, childID shared.ChildID, cutoff time.Time) ([]*suggestion.ActivitySuggestion, error) {
	query := `
		SELECT ` + suggestionColumns + `
		FROM suggestions
		WHERE child_id = $1 AND status = 'pending' AND created_at < $2
		ORDER BY created_at
	`

	rows, err := r.conn.Query(ctx, query, childID.String(), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale suggestions: %w", err)
	}
	defer rows.Close()

	return collectSuggestions(rows)
}

const saveSuggestionQuery = `
	INSERT INTO suggestions (
		id, child_id, activity_id, priority, reason,
		status, weekly_plan_id, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO UPDATE SET
		priority = EXCLUDED.priority,
		reason = EXCLUDED.reason,
		status = EXCLUDED.status,
		weekly_plan_id = EXCLUDED.weekly_plan_id,
		updated_at = EXCLUDED.updated_at
`

func saveSuggestionArgs(s *suggestion.ActivitySuggestion) []interface{} {
	return []interface{}{
		s.ID, s.ChildID.String(), s.ActivityID.String(), s.Priority, s.Reason,
		string(s.Status), s.WeeklyPlanID, s.CreatedAt, s.UpdatedAt,
	}
}

// Save persists a suggestion (create or update).
func (r *SuggestionRepository) Save(ctx context.Context, s *suggestion.ActivitySuggestion) error {
	_, err := r.conn.Exec(ctx, saveSuggestionQuery, saveSuggestionArgs(s)...)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrDuplicateSuggestion
		}
		return fmt.Errorf("failed to save suggestion: %w", err)
	}
	return nil
}

// SaveAll persists one chunk of suggestions in a single batched round
// trip. The statements run in one implicit transaction, so either the
// whole chunk lands or none of it does.
func (r *SuggestionRepository) SaveAll(ctx context.Context, suggestions []*suggestion.ActivitySuggestion) error {
	if len(suggestions) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, s := range suggestions {
		b.Queue(saveSuggestionQuery, saveSuggestionArgs(s)...)
	}

	results := r.conn.SendBatch(ctx, b)
	defer results.Close()
	for _, s := range suggestions {
		if _, err := results.Exec(); err != nil {
			if IsUniqueViolation(err) {
				return shared.ErrDuplicateSuggestion
			}
			return fmt.Errorf("failed to save suggestion %s: %w", s.ID, err)
		}
	}
	return nil
}

func collectSuggestions(rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
}) ([]*suggestion.ActivitySuggestion, error) {
	var out []*suggestion.ActivitySuggestion
	for rows.Next() {
		s, err := scanSuggestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSuggestion(row interface{ Scan(...interface{}) error }) (*suggestion.ActivitySuggestion, error) {
	var (
		s          suggestion.ActivitySuggestion
		childID    string
		activityID string
		status     string
	)
	err := row.Scan(
		&s.ID, &childID, &activityID, &s.Priority, &s.Reason,
		&status, &s.WeeklyPlanID, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSuggestionNotFound
		}
		return nil, fmt.Errorf("failed to scan suggestion: %w", err)
	}
	s.ChildID = shared.ChildID(childID)
	s.ActivityID = shared.ActivityID(activityID)
	s.Status = suggestion.Status(status)
	return &s, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RECOMMENDATION LOG REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// RecommendationLogRepository implements suggestion.LogRepository for
// PostgreSQL.
type RecommendationLogRepository struct {
	conn *Connection
}

// NewRecommendationLogRepository creates a new RecommendationLogRepository.
func NewRecommendationLogRepository(conn *Connection) *RecommendationLogRepository {
	return &RecommendationLogRepository{conn: conn}
}

const saveRecommendationLogQuery = `
	INSERT INTO recommendation_logs (
		id, child_id, activity_id, score, reasons, outcome, created_at, closed_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		outcome = EXCLUDED.outcome,
		closed_at = EXCLUDED.closed_at
`

func saveRecommendationLogArgs(l *suggestion.RecommendationLog) ([]interface{}, error) {
	reasons, err := json.Marshal(l.Reasons)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reasons: %w", err)
	}
	return []interface{}{
		l.ID, l.ChildID.String(), l.ActivityID.String(), l.Score,
		reasons, string(l.Outcome), l.CreatedAt, l.ClosedAt,
	}, nil
}

// Save appends an audit entry.
func (r *RecommendationLogRepository) Save(ctx context.Context, l *suggestion.RecommendationLog) error {
	args, err := saveRecommendationLogArgs(l)
	if err != nil {
		return err
	}
	if _, err := r.conn.Exec(ctx, saveRecommendationLogQuery, args...); err != nil {
		return fmt.Errorf("failed to save recommendation log: %w", err)
	}
	return nil
}

// SaveAll appends one chunk of audit entries in a single batched round
// trip.
func (r *RecommendationLogRepository) SaveAll(ctx context.Context, logs []*suggestion.RecommendationLog) error {
	if len(logs) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, l := range logs {
		args, err := saveRecommendationLogArgs(l)
		if err != nil {
			return err
		}
		b.Queue(saveRecommendationLogQuery, args...)
	}

	results := r.conn.SendBatch(ctx, b)
	defer results.Close()
	for _, l := range logs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to save recommendation log %s: %w", l.ID, err)
		}
	}
	return nil
}

// CloseOpen closes the most recent open entry for the pair. A missing
// open entry is not an error.
func (r *RecommendationLogRepository) CloseOpen(ctx context.Context, childID shared.ChildID, activityID shared.ActivityID, outcome suggestion.Status, at time.Time) error {
	query := `
		UPDATE recommendation_logs
		SET outcome = $1, closed_at = $2
		WHERE id = (
			SELECT id FROM recommendation_logs
			WHERE child_id = $3 AND activity_id = $4 AND outcome = 'pending'
			ORDER BY created_at DESC
			LIMIT 1
		)
	`
	_, err := r.conn.Exec(ctx, query,
		string(outcome), at.UTC(), childID.String(), activityID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to close recommendation log: %w", err)
	}
	return nil
}

// ListByChild returns the child's audit entries, newest first.
func (r *RecommendationLogRepository) ListByChild(ctx context.Context, childID shared.ChildID, limit int) ([]*suggestion.RecommendationLog, error) {
	query := `
		SELECT id, child_id, activity_id, score, reasons, outcome, created_at, closed_at
		FROM recommendation_logs
		WHERE child_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, childID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recommendation logs: %w", err)
	}
	defer rows.Close()

	var out []*suggestion.RecommendationLog
	for rows.Next() {
		var (
			l          suggestion.RecommendationLog
			childID    string
			activityID string
			outcome    string
			reasons    []byte
		)
		err := rows.Scan(
			&l.ID, &childID, &activityID, &l.Score,
			&reasons, &outcome, &l.CreatedAt, &l.ClosedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recommendation log: %w", err)
		}
		l.ChildID = shared.ChildID(childID)
		l.ActivityID = shared.ActivityID(activityID)
		l.Outcome = suggestion.Status(outcome)
		if err := json.Unmarshal(reasons, &l.Reasons); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reasons: %w", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}
