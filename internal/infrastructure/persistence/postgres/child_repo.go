package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/child"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHILD REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ChildRepository implements child.Repository for PostgreSQL.
type ChildRepository struct {
	conn *Connection
}

// NewChildRepository creates a new ChildRepository.
func NewChildRepository(conn *Connection) *ChildRepository {
	return &ChildRepository{conn: conn}
}

const childColumns = `id, owner_id, name, age_group, interests, active,
	   last_plan_generated_at, last_plan_evolved_at, created_at, updated_at`

// GetByID returns a child profile by ID.
func (r *ChildRepository) GetByID(ctx context.Context, id shared.ChildID) (*child.Child, error) {
	query := `SELECT ` + childColumns + ` FROM children WHERE id = $1`
	return scanChild(r.conn.QueryRow(ctx, query, id.String()))
}

// ListActive returns all active profiles in creation order.
func (r *ChildRepository) ListActive(ctx context.Context) ([]*child.Child, error) {
	query := `SELECT ` + childColumns + ` FROM children WHERE active ORDER BY created_at`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active children: %w", err)
	}
	defer rows.Close()

	var out []*child.Child
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListByOwner returns all profiles belonging to one owner.
func (r *ChildRepository) ListByOwner(ctx context.Context, ownerID shared.OwnerID) ([]*child.Child, error) {
	query := `SELECT ` + childColumns + ` FROM children WHERE owner_id = $1 ORDER BY created_at`

	rows, err := r.conn.Query(ctx, query, ownerID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list children by owner: %w", err)
	}
	defer rows.Close()

	var out []*child.Child
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Save persists a profile (create or update).
func (r *ChildRepository) Save(ctx context.Context, c *child.Child) error {
	interests, err := json.Marshal(c.Interests)
	if err != nil {
		return fmt.Errorf("failed to marshal interests: %w", err)
	}

	query := `
		INSERT INTO children (
			id, owner_id, name, age_group, interests, active,
			last_plan_generated_at, last_plan_evolved_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			name = EXCLUDED.name,
			age_group = EXCLUDED.age_group,
			interests = EXCLUDED.interests,
			active = EXCLUDED.active,
			last_plan_generated_at = EXCLUDED.last_plan_generated_at,
			last_plan_evolved_at = EXCLUDED.last_plan_evolved_at,
			updated_at = EXCLUDED.updated_at
	`
	_, err = r.conn.Exec(ctx, query,
		c.ID.String(), c.OwnerID.String(), c.Name, c.AgeGroup.String(),
		interests, c.Active, c.LastPlanGeneratedAt, c.LastPlanEvolvedAt,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save child: %w", err)
	}
	return nil
}

// TouchPlanGeneratedAt updates only the last-plan-generated marker.
func (r *ChildRepository) TouchPlanGeneratedAt(ctx context.Context, id shared.ChildID) error {
	return r.touch(ctx, id, "last_plan_generated_at")
}

// TouchPlanEvolvedAt updates only the last-plan-evolved marker.
func (r *ChildRepository) TouchPlanEvolvedAt(ctx context.Context, id shared.ChildID) error {
	return r.touch(ctx, id, "last_plan_evolved_at")
}

func (r *ChildRepository) touch(ctx context.Context, id shared.ChildID, column string) error {
	query := fmt.Sprintf(`UPDATE children SET %s = NOW(), updated_at = NOW() WHERE id = $1`, column)

	tag, err := r.conn.Exec(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("failed to touch %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrChildNotFound
	}
	return nil
}

func scanChild(row interface{ Scan(...interface{}) error }) (*child.Child, error) {
	var (
		c         child.Child
		id        string
		ownerID   string
		ageGroup  string
		interests []byte
	)
	err := row.Scan(
		&id, &ownerID, &c.Name, &ageGroup, &interests, &c.Active,
		&c.LastPlanGeneratedAt, &c.LastPlanEvolvedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrChildNotFound
		}
		return nil, fmt.Errorf("failed to scan child: %w", err)
	}
	c.ID = shared.ChildID(id)
	c.OwnerID = shared.OwnerID(ownerID)
	c.AgeGroup = shared.AgeGroup(ageGroup)
	if err := json.Unmarshal(interests, &c.Interests); err != nil {
		return nil, fmt.Errorf("failed to unmarshal interests: %w", err)
	}
	return &c, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// OWNER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// OwnerRepository implements child.OwnerRepository for PostgreSQL.
type OwnerRepository struct {
	conn *Connection
}

// NewOwnerRepository creates a new OwnerRepository.
func NewOwnerRepository(conn *Connection) *OwnerRepository {
	return &OwnerRepository{conn: conn}
}

// GetByID returns an owner by ID.
func (r *OwnerRepository) GetByID(ctx context.Context, id shared.OwnerID) (*child.Owner, error) {
	query := `
		SELECT id, email, digest_opt_out, schedule, created_at, updated_at
		FROM owners WHERE id = $1
	`
	return scanOwner(r.conn.QueryRow(ctx, query, id.String()))
}

// ListAll returns every owner.
func (r *OwnerRepository) ListAll(ctx context.Context) ([]*child.Owner, error) {
	query := `
		SELECT id, email, digest_opt_out, schedule, created_at, updated_at
		FROM owners ORDER BY created_at
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	defer rows.Close()

	var out []*child.Owner
	for rows.Next() {
		o, err := scanOwner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Save persists an owner (create or update).
func (r *OwnerRepository) Save(ctx context.Context, o *child.Owner) error {
	var schedule []byte
	if o.Schedule != nil {
		var err error
		schedule, err = json.Marshal(o.Schedule)
		if err != nil {
			return fmt.Errorf("failed to marshal schedule: %w", err)
		}
	}

	query := `
		INSERT INTO owners (id, email, digest_opt_out, schedule, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			digest_opt_out = EXCLUDED.digest_opt_out,
			schedule = EXCLUDED.schedule,
			updated_at = EXCLUDED.updated_at
	`
	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.conn.Exec(ctx, query,
		o.ID.String(), o.Email, o.DigestOptOut, schedule, createdAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save owner: %w", err)
	}
	return nil
}

func scanOwner(row interface{ Scan(...interface{}) error }) (*child.Owner, error) {
	var (
		o        child.Owner
		id       string
		schedule []byte
	)
	err := row.Scan(&id, &o.Email, &o.DigestOptOut, &schedule, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrOwnerNotFound
		}
		return nil, fmt.Errorf("failed to scan owner: %w", err)
	}
	o.ID = shared.OwnerID(id)
	if len(schedule) > 0 {
		var prefs child.SchedulePreferences
		if err := json.Unmarshal(schedule, &prefs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal schedule: %w", err)
		}
		o.Schedule = &prefs
	}
	return &o, nil
}
