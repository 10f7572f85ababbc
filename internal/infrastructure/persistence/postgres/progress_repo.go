package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/progress"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.Repository for PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

const recordColumns = `id, child_id, activity_id, status, completed_at,
	   engagement_level, interest_level, skills_demonstrated,
	   duration_minutes, notes, created_at`

// Save appends or updates a ledger entry.
func (r *ProgressRepository) Save(ctx context.Context, rec *progress.Record) error {
	skills, err := json.Marshal(rec.SkillsDemonstrated)
	if err != nil {
		return fmt.Errorf("failed to marshal skills: %w", err)
	}

	var completedAt *time.Time
	if !rec.CompletedAt.IsZero() {
		completedAt = &rec.CompletedAt
	}

	query := `
		INSERT INTO progress_records (
			id, child_id, activity_id, status, completed_at,
			engagement_level, interest_level, skills_demonstrated,
			duration_minutes, notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at,
			engagement_level = EXCLUDED.engagement_level,
			interest_level = EXCLUDED.interest_level,
			skills_demonstrated = EXCLUDED.skills_demonstrated,
			duration_minutes = EXCLUDED.duration_minutes,
			notes = EXCLUDED.notes,
			updated_at = NOW()
	`
	_, err = r.conn.Exec(ctx, query,
		rec.ID, rec.ChildID.String(), rec.ActivityID.String(), string(rec.Status),
		completedAt, string(rec.EngagementLevel), string(rec.InterestLevel),
		skills, rec.DurationMinutes, rec.Notes, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save progress record: %w", err)
	}
	return nil
}

// GetByID returns one ledger entry.
func (r *ProgressRepository) GetByID(ctx context.Context, id string) (*progress.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM progress_records WHERE id = $1`
	return scanRecord(r.conn.QueryRow(ctx, query, id))
}

// ListRecentByChild returns the child's most recent entries, newest first.
func (r *ProgressRepository) ListRecentByChild(ctx context.Context, childID shared.ChildID, limit int) ([]*progress.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM progress_records
		WHERE child_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, childID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent records: %w", err)
	}
	defer rows.Close()

	var out []*progress.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListCompletedInRange returns completed entries with CompletedAt in
// [from, to), oldest first.
func (r *ProgressRepository) ListCompletedInRange(ctx context.Context, childID shared.ChildID, from, to time.Time) ([]*progress.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM progress_records
		WHERE child_id = $1 AND status = 'completed'
		  AND completed_at >= $2 AND completed_at < $3
		ORDER BY completed_at
	`

	rows, err := r.conn.Query(ctx, query, childID.String(), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed records: %w", err)
	}
	defer rows.Close()

	var out []*progress.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountCompletedSince returns how many completed entries the child has
// logged at or after the given time.
func (r *ProgressRepository) CountCompletedSince(ctx context.Context, childID shared.ChildID, since time.Time) (int, error) {
	var n int
	err := r.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM progress_records
		 WHERE child_id = $1 AND status = 'completed' AND completed_at >= $2`,
		childID.String(), since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed records: %w", err)
	}
	return n, nil
}

func scanRecord(row interface{ Scan(...interface{}) error }) (*progress.Record, error) {
	var (
		rec         progress.Record
		childID     string
		activityID  string
		status      string
		completedAt *time.Time
		engagement  string
		interest    string
		skills      []byte
	)
	err := row.Scan(
		&rec.ID, &childID, &activityID, &status, &completedAt,
		&engagement, &interest, &skills,
		&rec.DurationMinutes, &rec.Notes, &rec.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProgressRecordNotFound
		}
		return nil, fmt.Errorf("failed to scan progress record: %w", err)
	}
	rec.ChildID = shared.ChildID(childID)
	rec.ActivityID = shared.ActivityID(activityID)
	rec.Status = progress.RecordStatus(status)
	if completedAt != nil {
		rec.CompletedAt = *completedAt
	}
	rec.EngagementLevel = shared.Level(engagement)
	rec.InterestLevel = shared.Level(interest)
	if err := json.Unmarshal(skills, &rec.SkillsDemonstrated); err != nil {
		return nil, fmt.Errorf("failed to unmarshal skills: %w", err)
	}
	return &rec, nil
}
