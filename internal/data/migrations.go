package data

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"zolo/internal/logging"
)

// The migration ledger records every schema migration applied to an
// application database. History is queried by schema hash so re-running
// the same canonical schema is a no-op.
const migrationTable = "_zdata_migrations"

const createMigrationTable = `CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	schema_version INTEGER NOT NULL,
	schema_hash TEXT NOT NULL,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	duration_ms INTEGER DEFAULT 0,
	tables_added INTEGER DEFAULT 0,
	tables_dropped INTEGER DEFAULT 0,
	columns_added INTEGER DEFAULT 0,
	columns_dropped INTEGER DEFAULT 0,
	status TEXT NOT NULL,
	error_message TEXT DEFAULT ''
)`

// MigrationRecord is one row of the ledger.
type MigrationRecord struct {
	ID             int64
	SchemaVersion  int
	SchemaHash     string
	AppliedAt      time.Time
	DurationMS     int64
	TablesAdded    int
	TablesDropped  int
	ColumnsAdded   int
	ColumnsDropped int
	Status         string // success | failed
	ErrorMessage   string
}

// MigrationPlan is a set of DDL statements plus the counters recorded in
// the ledger.
type MigrationPlan struct {
	SchemaVersion  int      `yaml:"schema_version"`
	Statements     []string `yaml:"statements"`
	TablesAdded    int      `yaml:"tables_added"`
	TablesDropped  int      `yaml:"tables_dropped"`
	ColumnsAdded   int      `yaml:"columns_added"`
	ColumnsDropped int      `yaml:"columns_dropped"`
}

// Confirmer routes the migration confirmation through the display
// collaborator. Migrations never auto-confirm: a nil confirmer denies.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// SchemaHash computes the sha256 of a canonical schema description.
// Keys are sorted so equivalent schemas hash identically.
func SchemaHash(schema map[string]any) string {
	keys := make([]string, 0, len(schema))
	for k := range schema {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%v;", k, schema[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Migrator applies migration plans against one database and keeps the ledger.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a migrator, ensuring the ledger table exists.
func NewMigrator(db *sql.DB) (*Migrator, error) {
	if db == nil {
		return nil, ErrNoAdapter
	}
	if _, err := db.Exec(createMigrationTable); err != nil {
		return nil, fmt.Errorf("failed to create migration table: %w", err)
	}
	return &Migrator{db: db}, nil
}

// Applied reports whether a successful migration with the given schema
// hash is already recorded.
func (m *Migrator) Applied(schemaHash string) (bool, error) {
	var count int
	err := m.db.QueryRow(
		"SELECT COUNT(*) FROM "+migrationTable+" WHERE schema_hash = ? AND status = 'success'",
		schemaHash,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query migration history: %w", err)
	}
	return count > 0, nil
}

// Apply runs a plan inside a transaction after confirmation, recording the
// outcome in the ledger. Already-applied hashes are skipped quietly.
func (m *Migrator) Apply(ctx context.Context, plan MigrationPlan, schemaHash string, confirm Confirmer) error {
	timer := logging.StartTimer(logging.CategoryData, "migration")
	defer timer.Stop()

	applied, err := m.Applied(schemaHash)
	if err != nil {
		return err
	}
	if applied {
		logging.Data("Migration already applied (hash %s), skipping", shortHash(schemaHash))
		return nil
	}

	// The confirmation must come from the display collaborator; with no
	// collaborator wired the migration is refused.
	if confirm == nil {
		return fmt.Errorf("migration requires confirmation but no display collaborator is wired")
	}
	ok, err := confirm.Confirm(fmt.Sprintf(
		"Apply schema migration v%d (%d statements, +%d/-%d tables, +%d/-%d columns)?",
		plan.SchemaVersion, len(plan.Statements),
		plan.TablesAdded, plan.TablesDropped, plan.ColumnsAdded, plan.ColumnsDropped))
	if err != nil {
		return fmt.Errorf("migration confirmation failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("migration declined")
	}

	start := time.Now()
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}

	var runErr error
	for _, stmt := range plan.Statements {
		if _, runErr = tx.ExecContext(ctx, stmt); runErr != nil {
			runErr = fmt.Errorf("migration statement failed (%s): %w", firstLine(stmt), runErr)
			break
		}
	}

	duration := time.Since(start)
	if runErr != nil {
		_ = tx.Rollback()
		m.record(plan, schemaHash, duration, "failed", runErr.Error())
		return runErr
	}
	if err := tx.Commit(); err != nil {
		m.record(plan, schemaHash, duration, "failed", err.Error())
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	m.record(plan, schemaHash, duration, "success", "")
	logging.Data("Migration v%d applied in %v (hash %s)", plan.SchemaVersion, duration, shortHash(schemaHash))
	return nil
}

func (m *Migrator) record(plan MigrationPlan, hash string, d time.Duration, status, errMsg string) {
	_, err := m.db.Exec(
		"INSERT INTO "+migrationTable+
			" (schema_version, schema_hash, duration_ms, tables_added, tables_dropped, columns_added, columns_dropped, status, error_message)"+
			" VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		plan.SchemaVersion, hash, d.Milliseconds(),
		plan.TablesAdded, plan.TablesDropped, plan.ColumnsAdded, plan.ColumnsDropped,
		status, errMsg,
	)
	if err != nil {
		logging.DataError("Failed to record migration: %v", err)
	}
}

// History returns the ledger, newest first.
func (m *Migrator) History() ([]MigrationRecord, error) {
	rows, err := m.db.Query(
		"SELECT id, schema_version, schema_hash, applied_at, duration_ms, tables_added, tables_dropped, columns_added, columns_dropped, status, error_message FROM " +
			migrationTable + " ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration history: %w", err)
	}
	defer rows.Close()

	var out []MigrationRecord
	for rows.Next() {
		var r MigrationRecord
		if err := rows.Scan(&r.ID, &r.SchemaVersion, &r.SchemaHash, &r.AppliedAt, &r.DurationMS,
			&r.TablesAdded, &r.TablesDropped, &r.ColumnsAdded, &r.ColumnsDropped,
			&r.Status, &r.ErrorMessage); err != nil {
			return nil, fmt.Errorf("failed to scan migration record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
