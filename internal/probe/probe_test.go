package probe

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"etlcore/internal/codec"
	"etlcore/internal/config"
	"etlcore/internal/etlerr"
	"etlcore/internal/source"
	"etlcore/internal/table"
)

func writeCSV(t *testing.T, body string) (source.FileSource, config.Source) {
	t.Helper()
	p := filepath.Join(t.TempDir(), "in.csv")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return source.FileSource{Format: codec.CSV, Path: p}, config.Source{Kind: "file", Format: "csv", Path: p}
}

func TestProbeCSV(t *testing.T) {
	t.Parallel()

	src, cfg := writeCSV(t, "Vehicle ID,Owner Name,Score\n1,Ada,1.5\n2,,2\n3,Alan,\n")
	res, err := Probe(context.Background(), src, cfg, Options{Name: "Vehicle Owners", PrimaryKey: []string{"vehicle_id"}})
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if res.Rows != 3 {
		t.Fatalf("Rows = %d, want 3", res.Rows)
	}

	want := []Column{
		{Header: "Vehicle ID", Normalized: "vehicle_id", Type: "int64", SQLType: "BIGINT", Example: "1"},
		{Header: "Owner Name", Normalized: "owner_name", Type: "utf8", SQLType: "TEXT", Nulls: 1, Example: "Ada"},
		{Header: "Score", Normalized: "score", Type: "float64", SQLType: "DOUBLE PRECISION", Nulls: 1, Example: "1.5"},
	}
	if diff := cmp.Diff(want, res.Columns); diff != "" {
		t.Fatalf("columns (-want +got):\n%s", diff)
	}
	if !strings.Contains(res.DDL, `CREATE TABLE IF NOT EXISTS "vehicle_owners"`) ||
		!strings.Contains(res.DDL, `PRIMARY KEY ("vehicle_id")`) {
		t.Fatalf("DDL = %s", res.DDL)
	}

	j := res.Job
	if j.Sink.Table != "vehicle_owners" || !j.Sink.Upsert || !j.Sink.AutoCreate {
		t.Fatalf("sink = %+v", j.Sink)
	}
	var kinds []string
	for _, tr := range j.Transform {
		kinds = append(kinds, tr.Kind)
	}
	if diff := cmp.Diff([]string{"sanitize_names", "dedup"}, kinds); diff != "" {
		t.Fatalf("transforms (-want +got):\n%s", diff)
	}
}

func TestProbeText(t *testing.T) {
	t.Parallel()

	src, cfg := writeCSV(t, "a,b\nx,1\n")
	res, err := Probe(context.Background(), src, cfg, Options{})
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	text := string(res.Text())
	for _, want := range []string{"# rows=1 columns=2\n", "a,a,utf8,TEXT,0\n", "b,b,int64,BIGINT,0\n", `"probe"`} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q:\n%s", want, text)
		}
	}
	if len(res.Job.Transform) != 0 {
		t.Fatalf("clean headers should not need sanitize_names: %+v", res.Job.Transform)
	}
}

func TestProbeJobFileDecodes(t *testing.T) {
	t.Setenv("WAREHOUSE_DSN", "postgres://localhost/etl")

	src, cfg := writeCSV(t, "Id,Name\n1,a\n")
	res, err := Probe(context.Background(), src, cfg, Options{Name: "people", PrimaryKey: []string{"id"}})
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	body, err := res.JobFile()
	if err != nil {
		t.Fatalf("JobFile: %v", err)
	}
	f, err := config.DecodeYAML(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("decode generated file: %v\n%s", err, body)
	}
	if err := config.Err(config.Validate(f)); err != nil {
		t.Fatalf("generated file is invalid: %v\n%s", err, body)
	}
	if f.Jobs[0].Sink.Table != "people" || f.Connections["warehouse"].DSN != "postgres://localhost/etl" {
		t.Fatalf("decoded = %+v", f)
	}
}

func TestProbeErrors(t *testing.T) {
	src, cfg := writeCSV(t, "a\n1\n")

	if _, err := Probe(context.Background(), src, cfg, Options{PrimaryKey: []string{"missing"}}); !errors.Is(err, etlerr.ErrSchema) {
		t.Fatalf("unknown key err = %v, want schema error", err)
	}

	prev := loadFn
	t.Cleanup(func() { loadFn = prev })
	loadFn = func(context.Context, source.Source) (*table.Table, error) { return table.Empty(), nil }
	if _, err := Probe(context.Background(), src, cfg, Options{}); !errors.Is(err, etlerr.ErrSchema) {
		t.Fatalf("empty table err = %v, want schema error", err)
	}

	boom := etlerr.IO("load", errors.New("boom"))
	loadFn = func(context.Context, source.Source) (*table.Table, error) { return nil, boom }
	if _, err := Probe(context.Background(), src, cfg, Options{}); !errors.Is(err, boom) {
		t.Fatalf("load err = %v", err)
	}
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"Vehicle Owners", "vehicle_owners"},
		{"  ", "probe"},
		{"a-b.c", "a_b_c"},
	}
	for _, tt := range tests {
		if got := normalizeName(tt.in); got != tt.want {
			t.Errorf("normalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
