package postgres

// GetMigrations returns all embedded migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_profiles",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_catalog_and_skills",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_ledger_and_suggestions",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
		{
			Version: 4,
			Name:    "create_plans_and_reports",
			UpSQL:   migration004Up,
			DownSQL: migration004Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: OWNERS AND CHILDREN
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS owners (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    digest_opt_out BOOLEAN NOT NULL DEFAULT FALSE,
    schedule JSONB,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS children (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL REFERENCES owners(id),
    name TEXT NOT NULL,
    age_group TEXT NOT NULL,
    interests JSONB NOT NULL DEFAULT '[]',
    active BOOLEAN NOT NULL DEFAULT TRUE,
    last_plan_generated_at TIMESTAMP WITH TIME ZONE,
    last_plan_evolved_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_children_owner ON children(owner_id);
CREATE INDEX IF NOT EXISTS idx_children_active ON children(active, created_at);
`

const migration001Down = `
DROP TABLE IF EXISTS children;
DROP TABLE IF EXISTS owners;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CATALOG AND SKILLS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS activities (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    area TEXT NOT NULL,
    age_ranges JSONB NOT NULL DEFAULT '[]',
    difficulty TEXT NOT NULL,
    skills_addressed JSONB NOT NULL DEFAULT '[]',
    duration_minutes INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'active',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_activities_status ON activities(status);

CREATE TABLE IF NOT EXISTS skills (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    area TEXT NOT NULL,
    age_groups JSONB NOT NULL DEFAULT '[]',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS child_skill_statuses (
    id TEXT PRIMARY KEY,
    child_id TEXT NOT NULL REFERENCES children(id),
    skill_id TEXT NOT NULL,
    status TEXT NOT NULL,
    demonstrations INTEGER NOT NULL DEFAULT 0,
    last_assessed_at TIMESTAMP WITH TIME ZONE NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    UNIQUE (child_id, skill_id)
);

CREATE INDEX IF NOT EXISTS idx_skill_statuses_child ON child_skill_statuses(child_id);

-- Forward transitions journaled for the monthly digest.
CREATE TABLE IF NOT EXISTS skill_advancements (
    id BIGSERIAL PRIMARY KEY,
    child_id TEXT NOT NULL,
    skill_id TEXT NOT NULL,
    from_status TEXT NOT NULL,
    to_status TEXT NOT NULL,
    advanced_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_skill_advancements_child
    ON skill_advancements(child_id, advanced_at);
`

const migration002Down = `
DROP TABLE IF EXISTS skill_advancements;
DROP TABLE IF EXISTS child_skill_statuses;
DROP TABLE IF EXISTS skills;
DROP TABLE IF EXISTS activities;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: HISTORY LEDGER AND SUGGESTIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS progress_records (
    id TEXT PRIMARY KEY,
    child_id TEXT NOT NULL REFERENCES children(id),
    activity_id TEXT NOT NULL,
    status TEXT NOT NULL,
    completed_at TIMESTAMP WITH TIME ZONE,
    engagement_level TEXT NOT NULL DEFAULT '',
    interest_level TEXT NOT NULL DEFAULT '',
    skills_demonstrated JSONB NOT NULL DEFAULT '[]',
    duration_minutes INTEGER NOT NULL DEFAULT 0,
    notes TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_progress_child_created
    ON progress_records(child_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_progress_child_completed
    ON progress_records(child_id, completed_at)
    WHERE status = 'completed';

CREATE TABLE IF NOT EXISTS suggestions (
    id TEXT PRIMARY KEY,
    child_id TEXT NOT NULL REFERENCES children(id),
    activity_id TEXT NOT NULL,
    priority DOUBLE PRECISION NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    weekly_plan_id TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_suggestions_child_status
    ON suggestions(child_id, status, priority DESC);

-- At most one open suggestion per (child, activity).
CREATE UNIQUE INDEX IF NOT EXISTS idx_suggestions_open
    ON suggestions(child_id, activity_id)
    WHERE status IN ('pending', 'accepted');

CREATE TABLE IF NOT EXISTS recommendation_logs (
    id TEXT PRIMARY KEY,
    child_id TEXT NOT NULL,
    activity_id TEXT NOT NULL,
    score DOUBLE PRECISION NOT NULL,
    reasons JSONB NOT NULL DEFAULT '[]',
    outcome TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    closed_at TIMESTAMP WITH TIME ZONE
);

CREATE INDEX IF NOT EXISTS idx_rec_logs_child
    ON recommendation_logs(child_id, created_at DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS recommendation_logs;
DROP TABLE IF EXISTS suggestions;
DROP TABLE IF EXISTS progress_records;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: WEEKLY PLANS AND MONTHLY REPORTS
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
CREATE TABLE IF NOT EXISTS weekly_plans (
    id TEXT PRIMARY KEY,
    child_id TEXT NOT NULL REFERENCES children(id),
    week_start TIMESTAMP WITH TIME ZONE NOT NULL,
    days JSONB NOT NULL DEFAULT '{}',
    generated_by TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    UNIQUE (child_id, week_start)
);

CREATE INDEX IF NOT EXISTS idx_plans_child_week
    ON weekly_plans(child_id, week_start DESC);

CREATE TABLE IF NOT EXISTS monthly_reports (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    child_id TEXT NOT NULL,
    month TIMESTAMP WITH TIME ZONE NOT NULL,
    completed_count INTEGER NOT NULL DEFAULT 0,
    skills_progressed INTEGER NOT NULL DEFAULT 0,
    area_breakdown JSONB NOT NULL DEFAULT '{}',
    total_minutes INTEGER NOT NULL DEFAULT 0,
    generated_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_owner_month
    ON monthly_reports(owner_id, month DESC);
`

const migration004Down = `
DROP TABLE IF EXISTS monthly_reports;
DROP TABLE IF EXISTS weekly_plans;
`
