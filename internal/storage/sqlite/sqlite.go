// Package sqlite registers the "sqlite" connection kind backed by the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"

	_ "modernc.org/sqlite"

	"etlcore/internal/storage"
	"etlcore/internal/storage/sqldb"
)

// Kind is the registered connection kind.
const Kind = "sqlite"

// Open opens a SQLite database. dsn is passed to the driver as is, e.g.
// "file:etl.db?_pragma=foreign_keys(1)" or a plain path.
func Open(ctx context.Context, dsn string) (*sqldb.Conn, error) {
	db, err := sqldb.Open(ctx, "sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqldb.Conn{DB: db, Name: Kind}, nil
}

func init() {
	storage.Register(Kind, func(ctx context.Context, cfg storage.Config) (storage.Conn, error) {
		return Open(ctx, cfg.DSN)
	})
}
