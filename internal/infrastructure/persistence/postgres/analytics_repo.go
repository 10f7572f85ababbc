package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/analytics"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// AnalyticsRepository implements analytics.Repository for PostgreSQL.
type AnalyticsRepository struct {
	conn *Connection
}

// NewAnalyticsRepository creates a new AnalyticsRepository.
func NewAnalyticsRepository(conn *Connection) *AnalyticsRepository {
	return &AnalyticsRepository{conn: conn}
}

const reportColumns = `id, owner_id, child_id, month, completed_count,
	   skills_progressed, area_breakdown, total_minutes, generated_at`

// Save persists a report. Regeneration overwrites in place.
func (r *AnalyticsRepository) Save(ctx context.Context, report *analytics.MonthlyReport) error {
	breakdown, err := json.Marshal(report.AreaBreakdown)
	if err != nil {
		return fmt.Errorf("failed to marshal area breakdown: %w", err)
	}

	query := `
		INSERT INTO monthly_reports (
			id, owner_id, child_id, month, completed_count,
			skills_progressed, area_breakdown, total_minutes, generated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			completed_count = EXCLUDED.completed_count,
			skills_progressed = EXCLUDED.skills_progressed,
			area_breakdown = EXCLUDED.area_breakdown,
			total_minutes = EXCLUDED.total_minutes,
			generated_at = EXCLUDED.generated_at
	`
	_, err = r.conn.Exec(ctx, query,
		report.ID, report.OwnerID.String(), report.ChildID.String(), report.Month,
		report.CompletedCount, report.SkillsProgressed, breakdown,
		report.TotalMinutes, report.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save monthly report: %w", err)
	}
	return nil
}

// GetByChildAndMonth returns the report for the month containing the
// given time.
func (r *AnalyticsRepository) GetByChildAndMonth(ctx context.Context, childID shared.ChildID, month time.Time) (*analytics.MonthlyReport, error) {
	query := `SELECT ` + reportColumns + ` FROM monthly_reports WHERE id = $1`
	return scanReport(r.conn.QueryRow(ctx, query, analytics.ReportID(childID, month)))
}

// ListByOwner returns an owner's reports, most recent month first.
func (r *AnalyticsRepository) ListByOwner(ctx context.Context, ownerID shared.OwnerID, limit int) ([]*analytics.MonthlyReport, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM monthly_reports
		WHERE owner_id = $1
		ORDER BY month DESC, child_id
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, ownerID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list monthly reports: %w", err)
	}
	defer rows.Close()

	var out []*analytics.MonthlyReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, report)
	}
	return out, rows.Err()
}

func scanReport(row interface{ Scan(...interface{}) error }) (*analytics.MonthlyReport, error) {
	var (
		report    analytics.MonthlyReport
		ownerID   string
		childID   string
		breakdown []byte
	)
	err := row.Scan(
		&report.ID, &ownerID, &childID, &report.Month, &report.CompletedCount,
		&report.SkillsProgressed, &breakdown, &report.TotalMinutes, &report.GeneratedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan monthly report: %w", err)
	}
	report.OwnerID = shared.OwnerID(ownerID)
	report.ChildID = shared.ChildID(childID)
	report.Month = report.Month.UTC()
	if err := json.Unmarshal(breakdown, &report.AreaBreakdown); err != nil {
		return nil, fmt.Errorf("failed to unmarshal area breakdown: %w", err)
	}
	return &report, nil
}
