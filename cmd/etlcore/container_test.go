package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"etlcore/internal/config"
	"etlcore/internal/etlerr"
	"etlcore/internal/job"
	"etlcore/internal/pipeline"
	"etlcore/internal/sink"
	"etlcore/internal/source"
	"etlcore/internal/storage"
	"etlcore/internal/table"
)

// fakeConn is a non-postgres connection that records Close.
type fakeConn struct {
	kind   string
	closed bool
}

func (c *fakeConn) Kind() string { return c.kind }

func (c *fakeConn) QueryTable(context.Context, string) (*table.Table, error) {
	return table.Empty(), nil
}

func (c *fakeConn) Close() { c.closed = true }

// stubOpen swaps openConnFn for the duration of a test. Tests using it must
// not run in parallel.
func stubOpen(t *testing.T, fn func(context.Context, storage.Config) (storage.Conn, error)) {
	t.Helper()
	prev := openConnFn
	openConnFn = fn
	t.Cleanup(func() { openConnFn = prev })
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestBuildFileJob(t *testing.T) {
	t.Parallel()

	f := &config.File{Jobs: []config.Job{{
		Name:      "copy",
		Source:    config.Source{Kind: "FILE", Format: "csv", Path: "in.csv", Comma: ";"},
		Transform: []config.Transform{{Kind: "sanitize_names"}, {Kind: "drop", Options: config.Options{"columns": []any{"x"}}}},
		Sink:      config.Sink{Kind: "file", Format: "ndjson", Path: "out.ndjson"},
	}}}
	c, err := newContainer(context.Background(), f)
	if err != nil {
		t.Fatalf("newContainer: %v", err)
	}
	defer c.Close()
	if len(c.jobs) != 1 || c.jobs[0].Name() != "copy" {
		t.Fatalf("jobs = %+v", c.jobs)
	}

	src, err := c.buildSource(f.Jobs[0].Source)
	if err != nil {
		t.Fatalf("buildSource: %v", err)
	}
	fs, ok := src.(source.FileSource)
	if !ok || fs.CSV.Comma != ';' || fs.Path != "in.csv" {
		t.Fatalf("source = %#v", src)
	}
}

func TestBuildHTTPSource(t *testing.T) {
	t.Parallel()

	c := &container{}
	src, err := c.buildSource(config.Source{
		Kind:           "http",
		URL:            "https://api.example.com/items",
		Auth:           config.Auth{Kind: "bearer", Token: "t"},
		TimeoutSeconds: 5,
		MaxIterations:  4,
	})
	if err != nil {
		t.Fatalf("buildSource: %v", err)
	}
	hs := src.(source.HTTPSource)
	if hs.Auth == nil || hs.Client == nil || hs.Flattener.MaxIterations != 4 {
		t.Fatalf("http source = %#v", hs)
	}
}

func TestBuildErrors(t *testing.T) {
	t.Parallel()

	c := &container{conns: map[string]storage.Conn{"lite": &fakeConn{kind: "sqlite"}}}
	tests := []struct {
		name string
		fn   func() error
	}{
		{"unknown source kind", func() error { _, err := c.buildSource(config.Source{Kind: "ftp"}); return err }},
		{"bad file format", func() error { _, err := c.buildSource(config.Source{Kind: "file", Format: "xml"}); return err }},
		{"unknown connection", func() error {
			_, err := c.buildSource(config.Source{Kind: "query", Connection: "nope", Query: "SELECT 1"})
			return err
		}},
		{"unknown sink kind", func() error { _, err := c.buildSink(config.Sink{Kind: "s3"}, config.Defaults{}); return err }},
		{"postgres sink on sqlite", func() error {
			_, err := c.buildSink(config.Sink{Kind: "postgres", Connection: "lite", Table: "t"}, config.Defaults{})
			return err
		}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, etlerr.ErrConfig) {
				t.Fatalf("err = %v, want config error", err)
			}
		})
	}
}

func TestBuildFileSink(t *testing.T) {
	t.Parallel()

	s, err := (&container{}).buildSink(config.Sink{Kind: "file", Format: "csv", Path: "o.csv", Comma: "\t"}, config.Defaults{})
	if err != nil {
		t.Fatalf("buildSink: %v", err)
	}
	if fs := s.(sink.FileSink); fs.CSV.Comma != '\t' {
		t.Fatalf("sink = %#v", fs)
	}
}

func TestNewContainerClosesConnectionsOnError(t *testing.T) {
	var opened []*fakeConn
	stubOpen(t, func(_ context.Context, cfg storage.Config) (storage.Conn, error) {
		c := &fakeConn{kind: cfg.Kind}
		opened = append(opened, c)
		return c, nil
	})

	f := &config.File{
		Connections: map[string]config.Connection{"a": {Kind: "sqlite", DSN: "x"}, "b": {Kind: "sqlite", DSN: "y"}},
		Jobs: []config.Job{{
			Name:   "bad",
			Source: config.Source{Kind: "query", Connection: "a", Query: "SELECT 1"},
			Sink:   config.Sink{Kind: "postgres", Connection: "b", Table: "t"},
		}},
	}
	if _, err := newContainer(context.Background(), f); err == nil {
		t.Fatal("expected error for postgres sink on sqlite connection")
	}
	if len(opened) != 2 {
		t.Fatalf("opened %d connections, want 2", len(opened))
	}
	for _, c := range opened {
		if !c.closed {
			t.Fatal("connection left open after failed build")
		}
	}
}

func TestNewContainerOpenErrorFailsOnlyItsJobs(t *testing.T) {
	good := &fakeConn{kind: "sqlite"}
	stubOpen(t, func(_ context.Context, cfg storage.Config) (storage.Conn, error) {
		if cfg.DSN == "bad" {
			return nil, errors.New("connection refused")
		}
		return good, nil
	})

	dir := t.TempDir()
	f := &config.File{
		Connections: map[string]config.Connection{
			"down": {Kind: "postgres", DSN: "bad"},
			"up":   {Kind: "sqlite", DSN: "good"},
		},
		Jobs: []config.Job{
			{
				Name:   "reads_down",
				Source: config.Source{Kind: "query", Connection: "down", Query: "SELECT 1"},
				Sink:   config.Sink{Kind: "file", Format: "csv", Path: filepath.Join(dir, "a.csv")},
			},
			{
				Name:   "writes_down",
				Source: config.Source{Kind: "query", Connection: "up", Query: "SELECT 1"},
				Sink:   config.Sink{Kind: "postgres", Connection: "down", Table: "t"},
			},
			{
				Name:   "reads_up",
				Source: config.Source{Kind: "query", Connection: "up", Query: "SELECT 1"},
				Sink:   config.Sink{Kind: "file", Format: "csv", Path: filepath.Join(dir, "b.csv")},
			},
		},
	}
	c, err := newContainer(context.Background(), f)
	if err != nil {
		t.Fatalf("newContainer: %v", err)
	}
	defer c.Close()
	if len(c.jobs) != 3 {
		t.Fatalf("jobs = %d, want 3", len(c.jobs))
	}

	results := job.RunAll(context.Background(), c.jobs, 0)
	for _, r := range results[:2] {
		if r.Err == nil {
			t.Fatalf("%s: expected failure", r.Job)
		}
		if !errors.Is(r.Err, etlerr.ErrQuery) || !strings.Contains(r.Err.Error(), "refused") {
			t.Fatalf("%s: err = %v, want query error", r.Job, r.Err)
		}
	}
	if r := results[2]; !r.OK() {
		t.Fatalf("reads_up: err = %v", r.Err)
	}
	if _, err := os.Stat(filepath.Join(dir, "b.csv")); err != nil {
		t.Fatalf("reads_up output: %v", err)
	}
}

func TestNewContainerUnknownConnection(t *testing.T) {
	t.Parallel()

	f := &config.File{Jobs: []config.Job{{
		Name:   "orphan",
		Source: config.Source{Kind: "query", Connection: "nope", Query: "SELECT 1"},
		Sink:   config.Sink{Kind: "file", Format: "csv", Path: "out.csv"},
	}}}
	_, err := newContainer(context.Background(), f)
	if !errors.Is(err, etlerr.ErrConfig) {
		t.Fatalf("err = %v, want config error", err)
	}
}

func TestReport(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	report(&buf, []job.Result{
		{Job: "a", RunID: "r1", Stats: pipeline.Stats{RowsLoaded: 3, RowsSaved: 2}, Duration: 1500 * time.Microsecond},
		{Job: "b", RunID: "r2", Err: &job.Error{Job: "b", Err: errors.New("boom")}},
	})
	want := "ok   a run=r1 loaded=3 saved=2 duration=1ms\n" +
		"FAIL b run=r2 duration=0s err=boom\n"
	if buf.String() != want {
		t.Fatalf("report =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestRunOncePassesParallelism(t *testing.T) {
	prev := runAllFn
	t.Cleanup(func() { runAllFn = prev })

	var got int
	runAllFn = func(_ context.Context, jobs []*job.Job, parallelism int) []job.Result {
		got = parallelism
		return []job.Result{{Job: "x", Err: &job.Error{Job: "x", Err: errors.New("e")}}}
	}
	var buf bytes.Buffer
	if failed := (&container{}).runOnce(context.Background(), 3, &buf); failed != 1 {
		t.Fatalf("failed = %d, want 1", failed)
	}
	if got != 3 {
		t.Fatalf("parallelism = %d, want 3", got)
	}
}
