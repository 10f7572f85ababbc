package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/internal/domain/skill"
)

// ══════════════════════════════════════════════════════════════════════════════
// SKILL REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// SkillRepository implements skill.Repository for PostgreSQL.
type SkillRepository struct {
	conn *Connection
}

// NewSkillRepository creates a new SkillRepository.
func NewSkillRepository(conn *Connection) *SkillRepository {
	return &SkillRepository{conn: conn}
}

// GetByID returns one skill definition.
func (r *SkillRepository) GetByID(ctx context.Context, id shared.SkillID) (*skill.DevelopmentalSkill, error) {
	query := `SELECT id, name, area, age_groups, created_at FROM skills WHERE id = $1`
	return scanSkill(r.conn.QueryRow(ctx, query, id.String()))
}

// ListAll returns every skill definition.
func (r *SkillRepository) ListAll(ctx context.Context) ([]*skill.DevelopmentalSkill, error) {
	query := `SELECT id, name, area, age_groups, created_at FROM skills ORDER BY id`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list skills: %w", err)
	}
	defer rows.Close()

	var out []*skill.DevelopmentalSkill
	for rows.Next() {
		s, err := scanSkill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Save persists a skill definition.
func (r *SkillRepository) Save(ctx context.Context, s *skill.DevelopmentalSkill) error {
	ageGroups, err := json.Marshal(s.AgeGroups)
	if err != nil {
		return fmt.Errorf("failed to marshal age groups: %w", err)
	}

	query := `
		INSERT INTO skills (id, name, area, age_groups, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			area = EXCLUDED.area,
			age_groups = EXCLUDED.age_groups
	`
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if _, err := r.conn.Exec(ctx, query, s.ID.String(), s.Name, s.Area, ageGroups, createdAt); err != nil {
		return fmt.Errorf("failed to save skill: %w", err)
	}
	return nil
}

func scanSkill(row interface{ Scan(...interface{}) error }) (*skill.DevelopmentalSkill, error) {
	var (
		s         skill.DevelopmentalSkill
		id        string
		ageGroups []byte
	)
	err := row.Scan(&id, &s.Name, &s.Area, &ageGroups, &s.CreatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSkillNotFound
		}
		return nil, fmt.Errorf("failed to scan skill: %w", err)
	}
	s.ID = shared.SkillID(id)
	if err := json.Unmarshal(ageGroups, &s.AgeGroups); err != nil {
		return nil, fmt.Errorf("failed to unmarshal age groups: %w", err)
	}
	return &s, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SKILL STATUS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// StatusRepository implements skill.StatusRepository for PostgreSQL.
// Forward transitions are journaled into skill_advancements inside the
// same transaction as the status write, which is what the monthly digest
// counts.
type StatusRepository struct {
	conn *Connection
}

// NewStatusRepository creates a new StatusRepository.
func NewStatusRepository(conn *Connection) *StatusRepository {
	return &StatusRepository{conn: conn}
}

const statusColumns = `id, child_id, skill_id, status, demonstrations,
	   last_assessed_at, created_at, updated_at`

// GetStatus returns the tracking record for one (child, skill) pair.
func (r *StatusRepository) GetStatus(ctx context.Context, childID shared.ChildID, skillID shared.SkillID) (*skill.ChildSkillStatus, error) {
	query := `SELECT ` + statusColumns + ` FROM child_skill_statuses WHERE child_id = $1 AND skill_id = $2`
	return scanStatus(r.conn.QueryRow(ctx, query, childID.String(), skillID.String()))
}

// ListByChild returns all tracked statuses for a child, keyed by skill ID.
func (r *StatusRepository) ListByChild(ctx context.Context, childID shared.ChildID) (map[shared.SkillID]*skill.ChildSkillStatus, error) {
	query := `SELECT ` + statusColumns + ` FROM child_skill_statuses WHERE child_id = $1`

	rows, err := r.conn.Query(ctx, query, childID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list skill statuses: %w", err)
	}
	defer rows.Close()

	out := make(map[shared.SkillID]*skill.ChildSkillStatus)
	for rows.Next() {
		s, err := scanStatus(rows)
		if err != nil {
			return nil, err
		}
		out[s.SkillID] = s
	}
	return out, rows.Err()
}

// SaveStatus persists a status record. A save that raises the status
// rank also journals the advancement.
func (r *StatusRepository) SaveStatus(ctx context.Context, s *skill.ChildSkillStatus) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		var prevStatus string
		err := tx.QueryRow(ctx,
			`SELECT status FROM child_skill_statuses WHERE child_id = $1 AND skill_id = $2 FOR UPDATE`,
			s.ChildID.String(), s.SkillID.String(),
		).Scan(&prevStatus)
		existed := err == nil
		if err != nil && !IsNoRows(err) {
			return fmt.Errorf("failed to load previous status: %w", err)
		}

		upsert := `
			INSERT INTO child_skill_statuses (
				id, child_id, skill_id, status, demonstrations,
				last_assessed_at, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (child_id, skill_id) DO UPDATE SET
				status = EXCLUDED.status,
				demonstrations = EXCLUDED.demonstrations,
				last_assessed_at = EXCLUDED.last_assessed_at,
				updated_at = EXCLUDED.updated_at
		`
		_, err = tx.Exec(ctx, upsert,
			s.ID, s.ChildID.String(), s.SkillID.String(), string(s.Status),
			s.Demonstrations, s.LastAssessedAt, s.CreatedAt, s.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save skill status: %w", err)
		}

		advanced := !existed || s.Status.Rank() > skill.Status(prevStatus).Rank()
		if !advanced {
			return nil
		}
		from := prevStatus
		if !existed {
			from = string(skill.StatusNotStarted)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO skill_advancements (child_id, skill_id, from_status, to_status, advanced_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			s.ChildID.String(), s.SkillID.String(), from, string(s.Status), s.LastAssessedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to journal advancement: %w", err)
		}
		return nil
	})
}

// CountAdvancedInRange returns how many of the child's skill statuses
// moved forward in [from, to).
func (r *StatusRepository) CountAdvancedInRange(ctx context.Context, childID shared.ChildID, from, to time.Time) (int, error) {
	var n int
	err := r.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM skill_advancements
		 WHERE child_id = $1 AND advanced_at >= $2 AND advanced_at < $3`,
		childID.String(), from, to,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count advancements: %w", err)
	}
	return n, nil
}

func scanStatus(row interface{ Scan(...interface{}) error }) (*skill.ChildSkillStatus, error) {
	var (
		s       skill.ChildSkillStatus
		childID string
		skillID string
		status  string
	)
	err := row.Scan(
		&s.ID, &childID, &skillID, &status, &s.Demonstrations,
		&s.LastAssessedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSkillStatusNotFound
		}
		return nil, fmt.Errorf("failed to scan skill status: %w", err)
	}
	s.ChildID = shared.ChildID(childID)
	s.SkillID = shared.SkillID(skillID)
	s.Status = skill.Status(status)
	return &s, nil
}
