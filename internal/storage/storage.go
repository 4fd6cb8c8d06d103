// Package storage contains the backend-agnostic connection contract used by
// query sources, plus a registry that maps a connection kind ("postgres",
// "sqlite", "mysql", "sqlserver") to an opener.
//
// Backends register themselves from init functions; importing
// etlcore/internal/storage/all enables every built-in backend. Callers then
// open connections by kind without importing a backend directly:
//
//	conn, err := storage.Open(ctx, storage.Config{Kind: "sqlite", DSN: "file:etl.db"})
//	if err != nil { ... }
//	defer conn.Close()
//	t, err := conn.QueryTable(ctx, "SELECT * FROM events")
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"etlcore/internal/table"
)

// Conn is a shared, concurrency-safe connection handle. Many jobs may query
// through one Conn at once; the owner closes it after they all finish.
type Conn interface {
	// Kind returns the registered kind the connection was opened with.
	Kind() string

	// QueryTable runs sql and materializes the whole result.
	QueryTable(ctx context.Context, sql string) (*table.Table, error)

	Close()
}

// Config selects a backend and tells it where to connect.
type Config struct {
	Kind string
	DSN  string
}

// Opener opens a Conn for a backend.
type Opener func(ctx context.Context, cfg Config) (Conn, error)

var (
	mu      sync.RWMutex
	openers = map[string]Opener{}
)

// Register registers (or replaces) the opener for kind. Kinds are matched
// case-insensitively.
func Register(kind string, fn Opener) {
	mu.Lock()
	defer mu.Unlock()
	openers[strings.ToLower(kind)] = fn
}

// Open opens a connection of cfg.Kind.
func Open(ctx context.Context, cfg Config) (Conn, error) {
	mu.RLock()
	fn, ok := openers[strings.ToLower(cfg.Kind)]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported connection kind=%s", cfg.Kind)
	}
	return fn(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(openers))
	for k := range openers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
