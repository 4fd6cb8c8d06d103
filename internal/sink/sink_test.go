package sink

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgxpool"

	"etlcore/internal/codec"
	"etlcore/internal/codec/csv"
	"etlcore/internal/codec/json"
	"etlcore/internal/codec/parquet"
	"etlcore/internal/etlerr"
	"etlcore/internal/table"
)

func sample() *table.Table {
	return table.MustNew(
		&table.Column{Name: "id", Type: table.Int64, Values: []any{int64(1), int64(2)}},
		&table.Column{Name: "name", Type: table.String, Values: []any{"a", nil}},
	)
}

func TestSaveFileFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format codec.Format
		read   func(*os.File) (*table.Table, error)
	}{
		{codec.CSV, func(f *os.File) (*table.Table, error) { return csv.Read(f, csv.Options{}) }},
		{codec.NDJSON, func(f *os.File) (*table.Table, error) { return json.ReadLines(f) }},
		{codec.Parquet, func(f *os.File) (*table.Table, error) { return parquet.Read(context.Background(), f) }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.format), func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "out."+string(tt.format))
			if err := Save(context.Background(), FileSink{Format: tt.format, Path: path}, sample()); err != nil {
				t.Fatalf("Save: %v", err)
			}
			f, err := os.Open(path)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer f.Close()
			got, err := tt.read(f)
			if err != nil {
				t.Fatalf("read back: %v", err)
			}
			if diff := cmp.Diff([]string{"id", "name"}, got.ColumnNames()); diff != "" {
				t.Fatalf("columns (-want +got):\n%s", diff)
			}
			if got.NumRows() != 2 {
				t.Fatalf("rows = %d, want 2", got.NumRows())
			}
			name, _ := got.Column("name")
			if diff := cmp.Diff([]any{"a", nil}, name.Values); diff != "" {
				t.Errorf("name (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSaveFileFailureKeepsPreviousFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.parquet")
	if err := os.WriteFile(path, []byte("previous"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Parquet cannot encode a table without columns.
	err := Save(context.Background(), FileSink{Format: codec.Parquet, Path: path}, table.Empty())
	if !errors.Is(err, etlerr.ErrSchema) {
		t.Fatalf("err = %v, want schema error", err)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "previous" {
		t.Fatalf("file = %q, %v; want previous content", b, err)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("leftover files: %v", entries)
	}
}

func TestSaveFileErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name string
		sink FileSink
		want error
	}{
		{"no path", FileSink{Format: codec.CSV}, etlerr.ErrConfig},
		{"json document", FileSink{Format: codec.JSON, Path: filepath.Join(dir, "x.json")}, etlerr.ErrConfig},
		{"missing dir", FileSink{Format: codec.CSV, Path: filepath.Join(dir, "nope", "x.csv")}, etlerr.ErrIO},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := Save(ctx, tt.sink, sample()); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSaveRejectsNil(t *testing.T) {
	t.Parallel()

	if err := Save(context.Background(), nil, sample()); !errors.Is(err, etlerr.ErrConfig) {
		t.Fatalf("nil sink: err = %v", err)
	}
	if err := Save(context.Background(), FileSink{Format: codec.CSV, Path: "x"}, nil); !errors.Is(err, etlerr.ErrConfig) {
		t.Fatalf("nil table: err = %v", err)
	}
	if err := Save(context.Background(), PostgresSink{Table: "t"}, sample()); !errors.Is(err, etlerr.ErrConfig) {
		t.Fatalf("no pool: err = %v", err)
	}
}

// lazyPool returns a pool that never dials unless a connection is acquired.
func lazyPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	pool, err := pgxpool.New(context.Background(), "postgres://etl@127.0.0.1:1/etl")
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestPostgresBuilder(t *testing.T) {
	t.Parallel()

	pool := lazyPool(t)
	s, err := NewPostgres(pool).Schema("public").Table("events").AutoCreate().Upsert("id", "day").ChunkSize(500).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := PostgresSink{Pool: pool, Schema: "public", Table: "events", AutoCreate: true, Upsert: true,
		PrimaryKey: []string{"id", "day"}, ChunkSize: 500}
	if diff := cmp.Diff(want, s, cmp.Comparer(func(a, b *pgxpool.Pool) bool { return a == b })); diff != "" {
		t.Fatalf("sink (-want +got):\n%s", diff)
	}
	if s.String() != "postgres:public.events:upsert" {
		t.Errorf("String = %q", s.String())
	}
}

func TestPostgresBuilderErrors(t *testing.T) {
	t.Parallel()

	pool := lazyPool(t)
	tests := map[string]*PostgresBuilder{
		"no pool":      NewPostgres(nil).Table("t"),
		"no table":     NewPostgres(pool),
		"upsert no pk": NewPostgres(pool).Table("t").Upsert(),
		"blank key":    NewPostgres(pool).Table("t").Upsert("id", " "),
		"negative":     NewPostgres(pool).Table("t").ChunkSize(-1),
	}
	for name, b := range tests {
		if _, err := b.Build(); !errors.Is(err, etlerr.ErrConfig) {
			t.Errorf("%s: err = %v, want config error", name, err)
		}
	}
}

func TestSavePostgresUsesLoader(t *testing.T) {
	pool := lazyPool(t)
	orig := loadPostgres
	t.Cleanup(func() { loadPostgres = orig })

	var got PostgresSink
	loadPostgres = func(_ context.Context, s PostgresSink, tb *table.Table) (int64, error) {
		got = s
		return int64(tb.NumRows()), nil
	}
	s, err := NewPostgres(pool).Table("events").PrimaryKey("id").Build()
	if err != nil {
		t.Fatal(err)
	}
	if err := Save(context.Background(), &s, sample()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got.Table != "events" || got.Upsert || len(got.PrimaryKey) != 1 {
		t.Fatalf("loader got %+v", got)
	}
}
