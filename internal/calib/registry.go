package calib

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/chrissnell/jetcalib/pkg/migrate"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrationFS embed.FS

const migrationTable = "calib_schema_migrations"

// Registry stores calibration tables in a database, keyed by a global-tag
// style label plus the table name. SQLite is the default backend; a shared
// PostgreSQL conditions database is reachable through lib/pq ("postgres")
// or pgx ("pgx").
type Registry struct {
	db      *sql.DB
	dialect string
	logger  *zap.SugaredLogger
}

// dialectFor maps a configured driver to its SQL dialect.
func dialectFor(driver string) (string, error) {
	switch driver {
	case "sqlite":
		return "sqlite", nil
	case "postgres", "pgx":
		return "postgres", nil
	}
	return "", fmt.Errorf("unsupported registry driver %q (use sqlite, postgres or pgx)", driver)
}

// OpenRegistry connects to the registry database and brings its schema up
// to date.
func OpenRegistry(ctx context.Context, driver, dsn string, logger *zap.SugaredLogger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open calibration registry: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping calibration registry: %w", err)
	}
	if dialect == "sqlite" {
		// SQLite allows a single writer; serializing through one connection
		// avoids SQLITE_BUSY during imports.
		db.SetMaxOpenConns(1)
	}

	if err := NewMigrator(db, dialect, logger).MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate calibration registry: %w", err)
	}

	return &Registry{db: db, dialect: dialect, logger: logger}, nil
}

// NewMigrator returns a migrator for the registry schema of the given
// dialect ("sqlite" or "postgres") on db.
func NewMigrator(db *sql.DB, dialect string, logger *zap.SugaredLogger) *migrate.Migrator {
	provider := migrate.NewFSProvider(migrationFS, "migrations/"+dialect, migrationTable, dialect)
	return migrate.NewMigrator(db, provider, logger)
}

// DialectFor maps a driver name to the SQL dialect its migrations are
// written in.
func DialectFor(driver string) (string, error) {
	return dialectFor(driver)
}

// Close releases the database handle.
func (r *Registry) Close() error {
	return r.db.Close()
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (r *Registry) rebind(query string) string {
	if r.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// Import stores tables under label in one transaction, replacing any table
// of the same name already stored there. It returns the batch ID recorded
// on every imported payload.
func (r *Registry) Import(ctx context.Context, label string, tables ...*Table) (string, error) {
	if label == "" {
		return "", errors.New("registry import needs a label")
	}
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return "", err
		}
	}

	batchID := uuid.NewString()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range tables {
		if err := r.put(ctx, tx, label, batchID, t); err != nil {
			return "", fmt.Errorf("failed to store table %s: %w", t.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit import: %w", err)
	}

	r.logger.Infow("imported calibration tables", "label", label, "tables", len(tables), "batch", batchID)
	return batchID, nil
}

func (r *Registry) put(ctx context.Context, tx *sql.Tx, label, batchID string, t *Table) error {
	_, err := tx.ExecContext(ctx, r.rebind(`
		DELETE FROM calib_records
		WHERE payload_id IN (SELECT id FROM calib_payloads WHERE label = ? AND name = ?)
	`), label, t.Name)
	if err != nil {
		return fmt.Errorf("failed to clear existing records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM calib_payloads WHERE label = ? AND name = ?`), label, t.Name); err != nil {
		return fmt.Errorf("failed to clear existing payload: %w", err)
	}

	var payloadID int64
	err = tx.QueryRowContext(ctx, r.rebind(`
		INSERT INTO calib_payloads (label, name, level, formula, bin_vars, par_vars, batch_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), label, t.Name, t.Level, string(t.Formula), joinVariables(t.BinVars), joinVariables(t.ParVars), batchID).Scan(&payloadID)
	if err != nil {
		return fmt.Errorf("failed to insert payload: %w", err)
	}

	insert := r.rebind(`INSERT INTO calib_records (payload_id, idx, data) VALUES (?, ?, ?)`)
	for i, rec := range t.Records {
		data, err := msgpack.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("failed to encode record %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx, insert, payloadID, i, data); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}
	return nil
}

// Get loads the table stored as name under label.
func (r *Registry) Get(ctx context.Context, label, name string) (*Table, error) {
	t := &Table{Name: name}
	var payloadID int64
	var formula, binVars, parVars string

	err := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT id, level, formula, bin_vars, par_vars
		FROM calib_payloads
		WHERE label = ? AND name = ?
	`), label, name).Scan(&payloadID, &t.Level, &formula, &binVars, &parVars)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &notFoundError{label: label, name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query payload %s/%s: %w", label, name, err)
	}
	t.Formula = FormulaName(formula)
	t.BinVars = parseVariables(binVars)
	t.ParVars = parseVariables(parVars)

	rows, err := r.db.QueryContext(ctx, r.rebind(`SELECT data FROM calib_records WHERE payload_id = ? ORDER BY idx`), payloadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records of %s/%s: %w", label, name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}
		var rec Record
		if err := msgpack.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode record of %s/%s: %w", label, name, err)
		}
		t.Records = append(t.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records of %s/%s: %w", label, name, err)
	}

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("registry entry %s/%s is malformed: %w", label, name, err)
	}
	r.logger.Debugw("loaded calibration table", "label", label, "name", name, "records", len(t.Records))
	return t, nil
}

// Labels lists every label with at least one stored table.
func (r *Registry) Labels(ctx context.Context) ([]string, error) {
	return r.queryStrings(ctx, `SELECT DISTINCT label FROM calib_payloads ORDER BY label`)
}

// Names lists the tables stored under label.
func (r *Registry) Names(ctx context.Context, label string) ([]string, error) {
	return r.queryStrings(ctx, r.rebind(`SELECT name FROM calib_payloads WHERE label = ? ORDER BY name`), label)
}

func (r *Registry) queryStrings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query registry: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan registry row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Labeled returns a Source reading tables stored under label.
func (r *Registry) Labeled(label string) Source {
	return labeledSource{registry: r, label: label}
}

type labeledSource struct {
	registry *Registry
	label    string
}

func (s labeledSource) Load(ctx context.Context, name string) (*Table, error) {
	return s.registry.Get(ctx, s.label, name)
}

func joinVariables(vars []Variable) string {
	parts := make([]string, len(vars))
	for i, v := range vars {
		parts[i] = string(v)
	}
	return strings.Join(parts, " ")
}
