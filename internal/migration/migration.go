package migration

import (
	"context"

	"variatio/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in order. Every statement is
// idempotent, so Run is safe on an existing schema.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	for _, step := range r.Steps() {
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			return errors.Wrapf(err, "failed to %s", step.Name)
		}
	}
	return nil
}

// Step is one named schema statement
type Step struct {
	Name string
	SQL  string
}

// Steps lists the schema statements Run applies
func (r *MigrationRunner) Steps() []Step {
	return []Step{
		{Name: "create analysis_sessions table", SQL: `
		CREATE TABLE IF NOT EXISTS analysis_sessions (
			id UUID PRIMARY KEY,
			control_arm TEXT NOT NULL,
			treatment_arms JSONB NOT NULL DEFAULT '[]',
			mode VARCHAR(32) NOT NULL,
			correction VARCHAR(32) NOT NULL DEFAULT 'none',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`},
		{Name: "create metric_results table", SQL: `
		CREATE TABLE IF NOT EXISTS metric_results (
			id UUID PRIMARY KEY,
			session_id UUID NOT NULL REFERENCES analysis_sessions(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			kind VARCHAR(32) NOT NULL,
			event_name TEXT NOT NULL,
			attribute_name TEXT,
			method VARCHAR(32) NOT NULL,
			degraded BOOLEAN NOT NULL DEFAULT false,
			result JSONB NOT NULL,
			computed_at TIMESTAMP WITH TIME ZONE NOT NULL,
			UNIQUE (session_id, position)
		)`},
		{Name: "create indexes", SQL: `
		CREATE INDEX IF NOT EXISTS idx_metric_results_session ON metric_results(session_id, position);
		CREATE INDEX IF NOT EXISTS idx_analysis_sessions_created ON analysis_sessions(created_at DESC)`},
	}
}
