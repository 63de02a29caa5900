// Package migrate applies versioned schema migrations to the calibration
// registry database. The registry keeps its applied version in its own
// tracking table (calib_schema_migrations), separate from any other schema
// sharing the database.
package migrate

import (
	"database/sql"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// Step is one migration to run in one direction.
type Step struct {
	Migration Migration
	Up        bool
}

// Direction names the step's direction as "up" or "down".
func (s Step) Direction() string {
	if s.Up {
		return "up"
	}
	return "down"
}

// Target is the version the schema is at once the step has run.
func (s Step) Target() int {
	if s.Up {
		return s.Migration.Version
	}
	return s.Migration.Version - 1
}

// Status summarizes the schema version of a database.
type Status struct {
	Current int
	Latest  int
	Pending []Migration
}

// DB represents either a database connection or transaction
type DB interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// MigrationProvider defines how migrations are loaded and how the applied
// version is tracked
type MigrationProvider interface {
	GetMigrations() ([]Migration, error)
	GetCurrentVersion(db *sql.DB) (int, error)
	SetVersion(db DB, version int) error
	CreateMigrationTable(db *sql.DB) error
}

// Migrator handles the execution of migrations
type Migrator struct {
	db       *sql.DB
	provider MigrationProvider
	logger   *zap.SugaredLogger
}

// NewMigrator creates a new migrator instance. A nil logger discards output.
func NewMigrator(db *sql.DB, provider MigrationProvider, logger *zap.SugaredLogger) *Migrator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Migrator{
		db:       db,
		provider: provider,
		logger:   logger,
	}
}

// MigrateUp runs all pending migrations up to the latest version
func (m *Migrator) MigrateUp() error {
	return m.MigrateTo(-1) // -1 means migrate to latest
}

// MigrateDown runs down migrations to revert to a specific version. Unlike
// MigrateTo it refuses a target at or above the current version.
func (m *Migrator) MigrateDown(targetVersion int) error {
	currentVersion, err := m.GetCurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	if targetVersion >= currentVersion {
		return fmt.Errorf("target version %d must be less than current version %d", targetVersion, currentVersion)
	}

	return m.MigrateTo(targetVersion)
}

// MigrateTo runs migrations up or down to reach a specific version. -1 means
// the latest available version.
func (m *Migrator) MigrateTo(targetVersion int) error {
	steps, err := m.Plan(targetVersion)
	if err != nil {
		return err
	}

	for _, step := range steps {
		if err := m.executeStep(step); err != nil {
			if step.Up {
				return fmt.Errorf("failed to apply migration %d: %w", step.Migration.Version, err)
			}
			return fmt.Errorf("failed to rollback migration %d: %w", step.Migration.Version, err)
		}
	}

	return nil
}

// Plan lists the steps MigrateTo would run to reach targetVersion, in
// execution order, without touching the schema.
func (m *Migrator) Plan(targetVersion int) ([]Step, error) {
	currentVersion, err := m.GetCurrentVersion()
	if err != nil {
		return nil, fmt.Errorf("failed to get current version: %w", err)
	}

	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to get migrations: %w", err)
	}

	// Sort migrations by version ascending
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	// Determine target version if -1 (latest)
	if targetVersion == -1 {
		targetVersion = currentVersion
		if len(migrations) > 0 && migrations[len(migrations)-1].Version > currentVersion {
			targetVersion = migrations[len(migrations)-1].Version
		}
	}
	if targetVersion < 0 {
		return nil, fmt.Errorf("invalid target version %d", targetVersion)
	}

	var steps []Step
	if targetVersion < currentVersion {
		// Roll back newest first
		for i := len(migrations) - 1; i >= 0; i-- {
			mig := migrations[i]
			if mig.Version > targetVersion && mig.Version <= currentVersion {
				steps = append(steps, Step{Migration: mig, Up: false})
			}
		}
		return steps, nil
	}

	for _, mig := range migrations {
		if mig.Version > currentVersion && mig.Version <= targetVersion {
			steps = append(steps, Step{Migration: mig, Up: true})
		}
	}
	return steps, nil
}

// GetCurrentVersion returns the current migration version, creating the
// tracking table on first use.
func (m *Migrator) GetCurrentVersion() (int, error) {
	if err := m.provider.CreateMigrationTable(m.db); err != nil {
		return 0, fmt.Errorf("failed to create migration table: %w", err)
	}
	return m.provider.GetCurrentVersion(m.db)
}

// GetPendingMigrations returns migrations that haven't been applied yet
func (m *Migrator) GetPendingMigrations() ([]Migration, error) {
	steps, err := m.Plan(-1)
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, step := range steps {
		pending = append(pending, step.Migration)
	}
	return pending, nil
}

// Status reports the current and latest versions and what is still pending.
func (m *Migrator) Status() (Status, error) {
	current, err := m.GetCurrentVersion()
	if err != nil {
		return Status{}, err
	}
	pending, err := m.GetPendingMigrations()
	if err != nil {
		return Status{}, err
	}

	st := Status{Current: current, Latest: current, Pending: pending}
	if len(pending) > 0 {
		st.Latest = pending[len(pending)-1].Version
	}
	return st, nil
}

// executeStep runs a single migration step in its own transaction and
// records the resulting version there too.
func (m *Migrator) executeStep(step Step) error {
	stmt := step.Migration.Down
	if step.Up {
		stmt = step.Migration.Up
	}

	if stmt == "" {
		return fmt.Errorf("migration %d has no %s SQL", step.Migration.Version, step.Direction())
	}

	// Start transaction
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Execute migration
	if _, err := tx.Exec(stmt); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	// Update version
	if err := m.provider.SetVersion(tx, step.Target()); err != nil {
		return fmt.Errorf("failed to update migration version: %w", err)
	}

	// Commit transaction
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	m.logger.Infow("applied registry migration",
		"version", step.Migration.Version,
		"name", step.Migration.Name,
		"direction", step.Direction(),
		"schema_version", step.Target())
	return nil
}
