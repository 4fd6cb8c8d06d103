package sink

import (
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"etlcore/internal/etlerr"
)

// PostgresBuilder assembles a PostgresSink. Setters may be chained; Build
// checks the combination.
type PostgresBuilder struct {
	s PostgresSink
}

// NewPostgres starts a PostgresSink writing through pool.
func NewPostgres(pool *pgxpool.Pool) *PostgresBuilder {
	return &PostgresBuilder{s: PostgresSink{Pool: pool}}
}

func (b *PostgresBuilder) Schema(name string) *PostgresBuilder {
	b.s.Schema = name
	return b
}

func (b *PostgresBuilder) Table(name string) *PostgresBuilder {
	b.s.Table = name
	return b
}

// AutoCreate makes the sink create the target table when it is missing.
func (b *PostgresBuilder) AutoCreate() *PostgresBuilder {
	b.s.AutoCreate = true
	return b
}

// Upsert switches the sink to merge on the given key columns.
func (b *PostgresBuilder) Upsert(key ...string) *PostgresBuilder {
	b.s.Upsert = true
	b.s.PrimaryKey = append([]string(nil), key...)
	return b
}

// PrimaryKey sets key columns without enabling upsert. With AutoCreate the
// created table gets the key as its primary key.
func (b *PostgresBuilder) PrimaryKey(key ...string) *PostgresBuilder {
	b.s.PrimaryKey = append([]string(nil), key...)
	return b
}

func (b *PostgresBuilder) ChunkSize(n int) *PostgresBuilder {
	b.s.ChunkSize = n
	return b
}

// Build returns the configured sink or a config error.
func (b *PostgresBuilder) Build() (PostgresSink, error) {
	s := b.s
	switch {
	case s.Pool == nil:
		return PostgresSink{}, etlerr.Configf("postgres sink", "pool is required")
	case strings.TrimSpace(s.Table) == "":
		return PostgresSink{}, etlerr.Configf("postgres sink", "table name is required")
	case s.Upsert && len(s.PrimaryKey) == 0:
		return PostgresSink{}, etlerr.Configf("postgres sink", "upsert requires a primary key")
	case s.ChunkSize < 0:
		return PostgresSink{}, etlerr.Configf("postgres sink", "chunk size must not be negative")
	}
	for _, k := range s.PrimaryKey {
		if strings.TrimSpace(k) == "" {
			return PostgresSink{}, etlerr.Configf("postgres sink", "empty primary key column")
		}
	}
	return s, nil
}
