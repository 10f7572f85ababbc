package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/seedlinghq/seedling-engine/internal/domain/catalog"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// CatalogRepository implements catalog.Repository for PostgreSQL.
type CatalogRepository struct {
	conn *Connection
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(conn *Connection) *CatalogRepository {
	return &CatalogRepository{conn: conn}
}

const activityColumns = `id, name, description, area, age_ranges, difficulty,
	   skills_addressed, duration_minutes, status, created_at, updated_at`

// GetByID returns one activity.
func (r *CatalogRepository) GetByID(ctx context.Context, id shared.ActivityID) (*catalog.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE id = $1`
	return scanActivity(r.conn.QueryRow(ctx, query, id.String()))
}

// ListActiveByAgeGroup returns all active activities suitable for the
// given age group. The age filter runs on the JSONB array.
func (r *CatalogRepository) ListActiveByAgeGroup(ctx context.Context, group shared.AgeGroup) ([]*catalog.Activity, error) {
	query := `
		SELECT ` + activityColumns + `
		FROM activities
		WHERE status = 'active' AND age_ranges ? $1
		ORDER BY id
	`

	rows, err := r.conn.Query(ctx, query, group.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list activities by age group: %w", err)
	}
	defer rows.Close()

	var out []*catalog.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListByIDs returns the activities for the given IDs. Missing IDs are
// silently skipped.
func (r *CatalogRepository) ListByIDs(ctx context.Context, ids []shared.ActivityID) ([]*catalog.Activity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}

	query := `SELECT ` + activityColumns + ` FROM activities WHERE id = ANY($1) ORDER BY id`

	rows, err := r.conn.Query(ctx, query, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities by IDs: %w", err)
	}
	defer rows.Close()

	var out []*catalog.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Save persists an activity (create or update).
func (r *CatalogRepository) Save(ctx context.Context, a *catalog.Activity) error {
	ageRanges, err := json.Marshal(a.AgeRanges)
	if err != nil {
		return fmt.Errorf("failed to marshal age ranges: %w", err)
	}
	skills, err := json.Marshal(a.SkillsAddressed)
	if err != nil {
		return fmt.Errorf("failed to marshal skills: %w", err)
	}

	query := `
		INSERT INTO activities (
			id, name, description, area, age_ranges, difficulty,
			skills_addressed, duration_minutes, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			area = EXCLUDED.area,
			age_ranges = EXCLUDED.age_ranges,
			difficulty = EXCLUDED.difficulty,
			skills_addressed = EXCLUDED.skills_addressed,
			duration_minutes = EXCLUDED.duration_minutes,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`
	_, err = r.conn.Exec(ctx, query,
		a.ID.String(), a.Name, a.Description, a.Area, ageRanges,
		string(a.Difficulty), skills, a.DurationMinutes, string(a.Status),
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save activity: %w", err)
	}
	return nil
}

func scanActivity(row interface{ Scan(...interface{}) error }) (*catalog.Activity, error) {
	var (
		a          catalog.Activity
		id         string
		ageRanges  []byte
		difficulty string
		skills     []byte
		status     string
	)
	err := row.Scan(
		&id, &a.Name, &a.Description, &a.Area, &ageRanges, &difficulty,
		&skills, &a.DurationMinutes, &status, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrActivityNotFound
		}
		return nil, fmt.Errorf("failed to scan activity: %w", err)
	}
	a.ID = shared.ActivityID(id)
	a.Difficulty = catalog.Difficulty(difficulty)
	a.Status = catalog.ActivityStatus(status)
	if err := json.Unmarshal(ageRanges, &a.AgeRanges); err != nil {
		return nil, fmt.Errorf("failed to unmarshal age ranges: %w", err)
	}
	if err := json.Unmarshal(skills, &a.SkillsAddressed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal skills: %w", err)
	}
	return &a, nil
}
