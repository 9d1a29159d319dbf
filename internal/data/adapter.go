// Package data defines the adapter contract the schema cache tier holds
// live handles to, the bundled SQLite adapter, and the migration ledger.
// Adapters are single-threaded per connection: two concurrent operations
// on the same adapter are not permitted, and the schema tier guarantees
// at most one active handle per alias.
package data

import (
	"context"
	"errors"
)

var (
	// ErrNoAdapter indicates a query targeted an alias with no live handle.
	ErrNoAdapter = errors.New("no adapter connected for alias")
	// ErrTxActive indicates a nested transaction was attempted.
	ErrTxActive = errors.New("transaction already active")
	// ErrNoTx indicates commit/rollback without a transaction.
	ErrNoTx = errors.New("no active transaction")
)

// Adapter is a live database connection. Implementations wrap one backend
// (SQLite, PostgreSQL, CSV); the core only ever sees this contract.
type Adapter interface {
	// Kind names the backend ("sqlite", "postgres", "csv").
	Kind() string

	// Connect opens the underlying handle.
	Connect(ctx context.Context) error

	// Disconnect closes the handle. Safe to call twice.
	Disconnect() error

	// Begin starts a transaction. Nesting is rejected with ErrTxActive.
	Begin(ctx context.Context) error

	// Commit commits the active transaction.
	Commit() error

	// Rollback rolls back the active transaction.
	Rollback() error

	// InTransaction reports whether a transaction is active.
	InTransaction() bool

	// Exec runs a statement, inside the transaction when one is active.
	Exec(ctx context.Context, query string, args ...any) error

	// Query runs a query and returns rows as ordered column maps.
	Query(ctx context.Context, query string, args ...any) ([]map[string]any, error)
}

// Catalog is the connection-info collaborator: the model list and schemas
// exposed over discover/introspect/get_schema.
type Catalog interface {
	Models() []string
	Schema(model string) (map[string]any, bool)
}
