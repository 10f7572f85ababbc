package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/plan"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY PLAN REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// PlanRepository implements plan.Repository for PostgreSQL. Day buckets
// are stored as a single JSONB document; the plan is always read and
// written whole.
type PlanRepository struct {
	conn *Connection
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(conn *Connection) *PlanRepository {
	return &PlanRepository{conn: conn}
}

const planColumns = `id, child_id, week_start, days, generated_by, created_at, updated_at`

// GetByID returns one plan by its deterministic ID.
func (r *PlanRepository) GetByID(ctx context.Context, id string) (*plan.WeeklyPlan, error) {
	query := `SELECT ` + planColumns + ` FROM weekly_plans WHERE id = $1`
	return scanPlan(r.conn.QueryRow(ctx, query, id))
}

// GetByChildAndWeek returns the plan for the week containing the given
// time.
func (r *PlanRepository) GetByChildAndWeek(ctx context.Context, childID shared.ChildID, weekStart time.Time) (*plan.WeeklyPlan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM weekly_plans
		WHERE child_id = $1 AND week_start = $2
	`
	return scanPlan(r.conn.QueryRow(ctx, query, childID.String(), timeutil.StartOfWeek(weekStart)))
}

// ExistsForWeek reports whether a plan exists for the child's week.
func (r *PlanRepository) ExistsForWeek(ctx context.Context, childID shared.ChildID, weekStart time.Time) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM weekly_plans WHERE child_id = $1 AND week_start = $2)`,
		childID.String(), timeutil.StartOfWeek(weekStart),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check plan existence: %w", err)
	}
	return exists, nil
}

// Save persists a plan (create or update by ID).
func (r *PlanRepository) Save(ctx context.Context, p *plan.WeeklyPlan) error {
	days, err := json.Marshal(p.Days)
	if err != nil {
		return fmt.Errorf("failed to marshal plan days: %w", err)
	}

	query := `
		INSERT INTO weekly_plans (
			id, child_id, week_start, days, generated_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			days = EXCLUDED.days,
			generated_by = EXCLUDED.generated_by,
			updated_at = EXCLUDED.updated_at
	`
	_, err = r.conn.Exec(ctx, query,
		p.ID, p.ChildID.String(), p.WeekStart, days,
		p.GeneratedBy, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrPlanExists
		}
		return fmt.Errorf("failed to save weekly plan: %w", err)
	}
	return nil
}

// ListByChild returns the child's plans, most recent week first.
func (r *PlanRepository) ListByChild(ctx context.Context, childID shared.ChildID, limit int) ([]*plan.WeeklyPlan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM weekly_plans
		WHERE child_id = $1
		ORDER BY week_start DESC
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, childID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list weekly plans: %w", err)
	}
	defer rows.Close()

	var out []*plan.WeeklyPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPlan(row interface{ Scan(...interface{}) error }) (*plan.WeeklyPlan, error) {
	var (
		p       plan.WeeklyPlan
		childID string
		days    []byte
	)
	err := row.Scan(
		&p.ID, &childID, &p.WeekStart, &days,
		&p.GeneratedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to scan weekly plan: %w", err)
	}
	p.ChildID = shared.ChildID(childID)
	p.WeekStart = p.WeekStart.UTC()
	if err := json.Unmarshal(days, &p.Days); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plan days: %w", err)
	}
	if p.Days == nil {
		p.Days = make(map[plan.Weekday][]plan.Entry)
	}
	return &p, nil
}
