package data

import (
	"context"
	"errors"
	"testing"
)

func connectMemory(t *testing.T) *SQLiteAdapter {
	t.Helper()
	a := NewSQLiteAdapter(":memory:")
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = a.Disconnect() })
	return a
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := connectMemory(t)

	if err := a.Exec(ctx, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := a.Exec(ctx, "INSERT INTO users (name) VALUES (?)", "Ada"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rows, err := a.Query(ctx, "SELECT id, name FROM users")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 || rows[0]["name"] != "Ada" {
		t.Errorf("rows = %v", rows)
	}
}

func TestSQLiteTransactionRollback(t *testing.T) {
	ctx := context.Background()
	a := connectMemory(t)
	if err := a.Exec(ctx, "CREATE TABLE t (v TEXT)"); err != nil {
		t.Fatal(err)
	}

	if err := a.Begin(ctx); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if !a.InTransaction() {
		t.Fatal("InTransaction should report true")
	}
	if err := a.Begin(ctx); !errors.Is(err, ErrTxActive) {
		t.Errorf("nested Begin = %v, want %v", err, ErrTxActive)
	}

	if err := a.Exec(ctx, "INSERT INTO t (v) VALUES ('x')"); err != nil {
		t.Fatal(err)
	}
	if err := a.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	rows, err := a.Query(ctx, "SELECT v FROM t")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("rolled-back insert is visible: %v", rows)
	}
	if err := a.Commit(); !errors.Is(err, ErrNoTx) {
		t.Errorf("Commit without tx = %v, want %v", err, ErrNoTx)
	}
}

func TestSQLiteDisconnectedOperationsFail(t *testing.T) {
	ctx := context.Background()
	a := NewSQLiteAdapter(":memory:")
	if err := a.Exec(ctx, "SELECT 1"); !errors.Is(err, ErrNoAdapter) {
		t.Errorf("Exec = %v, want %v", err, ErrNoAdapter)
	}
	if _, err := a.Query(ctx, "SELECT 1"); !errors.Is(err, ErrNoAdapter) {
		t.Errorf("Query = %v, want %v", err, ErrNoAdapter)
	}
	if err := a.Begin(ctx); !errors.Is(err, ErrNoAdapter) {
		t.Errorf("Begin = %v, want %v", err, ErrNoAdapter)
	}
	if err := a.Disconnect(); err != nil {
		t.Errorf("Disconnect on unconnected adapter = %v", err)
	}
}

func TestDisconnectRollsBackActiveTx(t *testing.T) {
	ctx := context.Background()
	a := connectMemory(t)
	if err := a.Exec(ctx, "CREATE TABLE t (v TEXT)"); err != nil {
		t.Fatal(err)
	}
	if err := a.Begin(ctx); err != nil {
		t.Fatal(err)
	}
	if err := a.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if a.InTransaction() {
		t.Error("transaction must not survive disconnect")
	}
}
