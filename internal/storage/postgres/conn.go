package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"etlcore/internal/storage"
	"etlcore/internal/table"
)

// Kind is the registered connection kind.
const Kind = "postgres"

// Conn is a storage.Conn over a pgx pool. The same pool feeds Postgres
// sinks through Pool.
type Conn struct {
	pool *pgxpool.Pool
}

// NewConn wraps an open pool.
func NewConn(pool *pgxpool.Pool) *Conn { return &Conn{pool: pool} }

// Kind returns "postgres".
func (c *Conn) Kind() string { return Kind }

// Pool returns the underlying pool.
func (c *Conn) Pool() *pgxpool.Pool { return c.pool }

// QueryTable runs sql on the pool and materializes the result.
func (c *Conn) QueryTable(ctx context.Context, sql string) (*table.Table, error) {
	return Query(ctx, c.pool, sql)
}

// Close closes the pool.
func (c *Conn) Close() { c.pool.Close() }

func init() {
	open := func(ctx context.Context, cfg storage.Config) (storage.Conn, error) {
		pool, err := Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return NewConn(pool), nil
	}
	storage.Register(Kind, open)
	storage.Register("postgresql", open)
}
