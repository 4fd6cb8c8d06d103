// Package mysql registers the "mysql" connection kind backed by
// github.com/go-sql-driver/mysql.
package mysql

import (
	"context"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"etlcore/internal/storage"
	"etlcore/internal/storage/sqldb"
)

// Kind is the registered connection kind.
const Kind = "mysql"

// normalizeDSN parses dsn and turns on parseTime so DATE and DATETIME
// columns arrive as time.Time.
func normalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql: dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// Open opens a MySQL pool for a go-sql-driver DSN such as
// "user:pass@tcp(127.0.0.1:3306)/db".
func Open(ctx context.Context, dsn string) (*sqldb.Conn, error) {
	norm, err := normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sqldb.Open(ctx, "mysql", norm)
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
