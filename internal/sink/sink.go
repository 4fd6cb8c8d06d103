// Package sink writes a table to its destination: a local file or a
// PostgreSQL table.
package sink

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"etlcore/internal/codec"
	"etlcore/internal/codec/csv"
	"etlcore/internal/codec/json"
	"etlcore/internal/codec/parquet"
	"etlcore/internal/datasource/file"
	"etlcore/internal/etlerr"
	"etlcore/internal/storage/postgres"
	"etlcore/internal/table"
)

// Sink is one of FileSink or PostgresSink.
type Sink interface {
	fmt.Stringer
	isSink()
}

// FileSink overwrites a local file. The file is replaced atomically: a
// failed save leaves any previous file untouched.
type FileSink struct {
	Format codec.Format // csv, parquet or ndjson
	Path   string
	CSV    csv.Options
}

// PostgresSink bulk loads into a PostgreSQL table. Build one with
// NewPostgres to get its settings validated.
type PostgresSink struct {
	Pool       *pgxpool.Pool
	Schema     string
	Table      string
	AutoCreate bool
	Upsert     bool
	PrimaryKey []string
	ChunkSize  int
}

func (FileSink) isSink()     {}
func (PostgresSink) isSink() {}

func (s FileSink) String() string { return fmt.Sprintf("file:%s:%s", s.Format, s.Path) }

func (s PostgresSink) String() string {
	mode := "append"
	if s.Upsert {
		mode = "upsert"
	}
	name := s.Table
	if s.Schema != "" {
		name = s.Schema + "." + s.Table
	}
	return fmt.Sprintf("postgres:%s:%s", name, mode)
}

func (s PostgresSink) target() postgres.Target {
	return postgres.Target{
		Schema:     s.Schema,
		Table:      s.Table,
		AutoCreate: s.AutoCreate,
		Upsert:     s.Upsert,
		PrimaryKey: s.PrimaryKey,
	}
}

// loadPostgres is swapped in tests so PostgresSink can be exercised
// without a server.
var loadPostgres = func(ctx context.Context, s PostgresSink, t *table.Table) (int64, error) {
	l := &postgres.Loader{Pool: s.Pool, ChunkSize: s.ChunkSize}
	return l.Load(ctx, s.target(), t)
}

// Save writes t to s.
func Save(ctx context.Context, s Sink, t *table.Table) error {
	if t == nil {
		return etlerr.Configf("sink", "nil table")
	}
	switch s := s.(type) {
	case FileSink:
		return saveFile(ctx, s, t)
	case *FileSink:
		return saveFile(ctx, *s, t)
	case PostgresSink:
		return savePostgres(ctx, s, t)
	case *PostgresSink:
		return savePostgres(ctx, *s, t)
	case nil:
		return etlerr.Configf("sink", "no sink configured")
	default:
		return etlerr.Configf("sink", "unsupported sink %T", s)
	}
}

func saveFile(ctx context.Context, s FileSink, t *table.Table) error {
	if s.Path == "" {
		return etlerr.Configf("file sink", "path is required")
	}
	var write func(*file.Pending) error
	switch s.Format {
	case codec.CSV:
		write = func(p *file.Pending) error { return csv.Write(p, t, s.CSV) }
	case codec.Parquet:
		write = func(p *file.Pending) error { return parquet.Write(p, t) }
	case codec.NDJSON:
		write = func(p *file.Pending) error { return json.WriteLines(p, t) }
	default:
		return etlerr.Configf("file sink", "unsupported format %q", s.Format)
	}

	p, err := file.NewLocal(s.Path).Create(ctx)
	if err != nil {
		return etlerr.IO("file sink", err)
	}
	if err := write(p); err != nil {
		p.Abort()
		if etlerr.KindOf(err) != 0 {
			return err
		}
		return etlerr.IO("file sink "+string(s.Format), err)
	}
	if err := p.Commit(); err != nil {
		return etlerr.IO("file sink", err)
	}
	log.Printf("sink: wrote file rows=%d path=%s format=%s", t.NumRows(), s.Path, s.Format)
	return nil
}

func savePostgres(ctx context.Context, s PostgresSink, t *table.Table) error {
	if s.Pool == nil {
		return etlerr.Configf("postgres sink", "pool is required")
	}
	_, err := loadPostgres(ctx, s, t)
	return err
}
