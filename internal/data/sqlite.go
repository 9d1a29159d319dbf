package data

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"zolo/internal/logging"
)

// SQLiteAdapter is the bundled adapter over database/sql with the
// mattn/go-sqlite3 driver. One adapter owns one connection; the mutex
// serialises the Begin/Commit/Rollback state, not query execution.
type SQLiteAdapter struct {
	mu   sync.Mutex
	path string
	db   *sql.DB
	tx   *sql.Tx
}

// NewSQLiteAdapter creates an adapter for the database at path.
// Use ":memory:" for an in-memory database.
func NewSQLiteAdapter(path string) *SQLiteAdapter {
	return &SQLiteAdapter{path: path}
}

// Kind returns "sqlite".
func (a *SQLiteAdapter) Kind() string { return "sqlite" }

// Connect opens the database and verifies it with a ping.
func (a *SQLiteAdapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db != nil {
		return nil
	}
	db, err := sql.Open("sqlite3", a.path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database %s: %w", a.path, err)
	}
	// Adapters are single-threaded per connection.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping sqlite database %s: %w", a.path, err)
	}
	a.db = db
	logging.DataDebug("sqlite adapter connected: %s", a.path)
	return nil
}

// Disconnect closes the database. An active transaction is rolled back.
func (a *SQLiteAdapter) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tx != nil {
		_ = a.tx.Rollback()
		a.tx = nil
	}
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	if err != nil {
		return fmt.Errorf("failed to close sqlite database %s: %w", a.path, err)
	}
	logging.DataDebug("sqlite adapter disconnected: %s", a.path)
	return nil
}

// Begin starts a transaction. Nesting is undefined and rejected.
func (a *SQLiteAdapter) Begin(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return ErrNoAdapter
	}
	if a.tx != nil {
		return ErrTxActive
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	a.tx = tx
	return nil
}

// Commit commits the active transaction.
func (a *SQLiteAdapter) Commit() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tx == nil {
		return ErrNoTx
	}
	err := a.tx.Commit()
	a.tx = nil
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback rolls back the active transaction.
func (a *SQLiteAdapter) Rollback() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tx == nil {
		return ErrNoTx
	}
	err := a.tx.Rollback()
	a.tx = nil
	if err != nil {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// InTransaction reports whether a transaction is active.
func (a *SQLiteAdapter) InTransaction() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tx != nil
}

// Exec runs a statement inside the transaction when one is active.
func (a *SQLiteAdapter) Exec(ctx context.Context, query string, args ...any) error {
	a.mu.Lock()
	tx, db := a.tx, a.db
	a.mu.Unlock()
	if db == nil {
		return ErrNoAdapter
	}
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return fmt.Errorf("exec failed: %w", err)
	}
	return nil
}

// Query runs a query and materialises the rows as ordered column maps.
func (a *SQLiteAdapter) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	a.mu.Lock()
	tx, db := a.tx, a.db
	a.mu.Unlock()
	if db == nil {
		return nil, ErrNoAdapter
	}

	var rows *sql.Rows
	var err error
	if tx != nil {
		rows, err = tx.QueryContext(ctx, query, args...)
	} else {
		rows, err = db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := raw[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = raw[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// DB exposes the raw handle for the migration ledger.
func (a *SQLiteAdapter) DB() *sql.DB {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.db
}
