package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"etlcore/internal/storage"
)

// TestRegisteredKindOpensDatabase opens a file database through the
// registry and runs a query on it.
func TestRegisteredKindOpensDatabase(t *testing.T) {
	t.Parallel()

	dsn := filepath.Join(t.TempDir(), "reg.db")
	conn, err := storage.Open(context.Background(), storage.Config{Kind: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer conn.Close()

	if conn.Kind() != Kind {
		t.Fatalf("Kind = %q, want %q", conn.Kind(), Kind)
	}
	got, err := conn.QueryTable(context.Background(), "SELECT 1 AS one, 'x' AS s")
	if err != nil {
		t.Fatalf("QueryTable: %v", err)
	}
	one, _ := got.Column("one")
	if got.NumRows() != 1 || one.Values[0] != int64(1) {
		t.Fatalf("one = %v", one.Values)
	}
}
