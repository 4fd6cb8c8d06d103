// Package main wires a job file into runnable jobs: it opens the shared
// connections, resolves every source, transform chain and sink, and runs
// the jobs once or on a cron schedule. It depends only on the storage
// registry and never imports a database driver directly.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"etlcore/internal/codec"
	"etlcore/internal/codec/csv"
	"etlcore/internal/config"
	"etlcore/internal/datasource/httpds"
	"etlcore/internal/etlerr"
	"etlcore/internal/flatten"
	"etlcore/internal/job"
	"etlcore/internal/metrics"
	"etlcore/internal/pipeline"
	"etlcore/internal/sink"
	"etlcore/internal/source"
	"etlcore/internal/storage"
	"etlcore/internal/transformer/builtin"
)

// Function variables used as test seams.
var (
	openConnFn = storage.Open
	runAllFn   = job.RunAll
)

// pooler is implemented by postgres connections; sinks load through the
// connection's pool.
type pooler interface {
	Pool() *pgxpool.Pool
}

// container owns the connections shared by every job of a file.
type container struct {
	conns map[string]storage.Conn
	// broken holds the open error of each connection that failed; only the
	// jobs referencing it fail.
	broken map[string]error
	jobs   []*job.Job
}

// connError reports a job's use of a connection that could not be opened.
type connError struct {
	name string
	err  error
}

func (e *connError) Error() string { return fmt.Sprintf("connection %s: %v", e.name, e.err) }

func (e *connError) Unwrap() error { return e.err }

// unavailable is the runner of a job whose connection could not be opened.
type unavailable struct{ err error }

func (u unavailable) Run(context.Context) (pipeline.Stats, error) { return pipeline.Stats{}, u.err }

// newContainer opens every named connection and builds the jobs. A
// connection that fails to open fails only the jobs that use it. On a build
// error the connections opened so far are closed.
func newContainer(ctx context.Context, f *config.File) (*container, error) {
	c := &container{
		conns:  make(map[string]storage.Conn, len(f.Connections)),
		broken: map[string]error{},
	}
	for _, name := range sortedNames(f.Connections) {
		cc := f.Connections[name]
		conn, err := openConnFn(ctx, storage.Config{Kind: cc.Kind, DSN: cc.DSN})
		if err != nil {
			log.Printf("container: connection failed name=%s kind=%s err=%v", name, cc.Kind, err)
			c.broken[name] = err
			continue
		}
		log.Printf("container: connection opened name=%s kind=%s", name, cc.Kind)
		c.conns[name] = conn
	}
	for i, jc := range f.Jobs {
		j, err := c.buildJob(jc, f.Defaults)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("jobs[%d] %s: %w", i, jc.Name, err)
		}
		c.jobs = append(c.jobs, j)
	}
	return c, nil
}

// Close closes every connection. It is safe to call more than once.
func (c *container) Close() {
	for name, conn := range c.conns {
		conn.Close()
		delete(c.conns, name)
	}
}

func (c *container) buildJob(jc config.Job, def config.Defaults) (*job.Job, error) {
	chain, err := builtin.Chain(jc.Transform)
	if err != nil {
		return nil, err
	}
	src, err := c.buildSource(jc.Source)
	if err != nil {
		return c.unavailableJob(jc.Name, err)
	}
	snk, err := c.buildSink(jc.Sink, def)
	if err != nil {
		return c.unavailableJob(jc.Name, err)
	}
	p, err := pipeline.NewBuilder().Source(src).Then(chain...).Sink(snk).Build()
	if err != nil {
		return nil, err
	}
	return job.New(jc.Name, p), nil
}

// unavailableJob turns a connection error into a job that fails with a
// query error when run. Other errors are returned as is.
func (c *container) unavailableJob(name string, err error) (*job.Job, error) {
	var ce *connError
	if !errors.As(err, &ce) {
		return nil, err
	}
	return job.New(name, unavailable{err: etlerr.Query("connection "+ce.name, ce.err)}), nil
}

func (c *container) conn(name string) (storage.Conn, error) {
	if err, ok := c.broken[name]; ok {
		return nil, &connError{name: name, err: err}
	}
	conn, ok := c.conns[name]
	if !ok {
		return nil, etlerr.Configf("connection", "unknown connection %q", name)
	}
	return conn, nil
}

func (c *container) buildSource(s config.Source) (source.Source, error) {
	switch strings.ToLower(s.Kind) {
	case "file":
		format, err := codec.ParseFormat(s.Format)
		if err != nil {
			return nil, etlerr.Configf("file source", "%v", err)
		}
		return source.FileSource{
			Format:   format,
			Path:     s.Path,
			CSV:      csv.Options{Comma: firstRune(s.Comma), TrimSpace: s.TrimSpace},
			DataPath: s.DataPath,
		}, nil

	case "query":
		conn, err := c.conn(s.Connection)
		if err != nil {
			return nil, err
		}
		return source.QuerySource{Conn: conn, Query: s.Query}, nil

	case "http":
		hs := source.HTTPSource{
			URL:         s.URL,
			Headers:     s.Headers,
			QueryParams: s.QueryParams,
			DataPath:    s.DataPath,
			Flattener:   flatten.Flattener{MaxIterations: s.MaxIterations},
		}
		switch strings.ToLower(s.Auth.Kind) {
		case "bearer":
			hs.Auth = httpds.BearerAuth{Token: s.Auth.Token}
		case "basic":
			hs.Auth = httpds.BasicAuth{Username: s.Auth.Username, Password: s.Auth.Password}
		}
		if s.TimeoutSeconds > 0 {
			hs.Client = httpds.NewClient(httpds.Config{Timeout: time.Duration(s.TimeoutSeconds) * time.Second})
		}
		return hs, nil
	}
	return nil, etlerr.Configf("source", "unsupported kind %q", s.Kind)
}

func (c *container) buildSink(s config.Sink, def config.Defaults) (sink.Sink, error) {
	switch strings.ToLower(s.Kind) {
	case "file":
		format, err := codec.ParseFormat(s.Format)
		if err != nil {
			return nil, etlerr.Configf("file sink", "%v", err)
		}
		return sink.FileSink{Format: format, Path: s.Path, CSV: csv.Options{Comma: firstRune(s.Comma)}}, nil

	case "postgres":
		conn, err := c.conn(s.Connection)
		if err != nil {
			return nil, err
		}
		p, ok := conn.(pooler)
		if !ok {
			return nil, etlerr.Configf("postgres sink", "connection %q is %s, not postgres", s.Connection, conn.Kind())
		}
		chunk := s.ChunkSize
		if chunk == 0 {
			chunk = def.ChunkSize
		}
		b := sink.NewPostgres(p.Pool()).Schema(s.Schema).Table(s.Table).ChunkSize(chunk)
		if s.AutoCreate {
			b.AutoCreate()
		}
		if s.Upsert {
			b.Upsert(s.PrimaryKey...)
		} else if len(s.PrimaryKey) > 0 {
			b.PrimaryKey(s.PrimaryKey...)
		}
		return b.Build()
	}
	return nil, etlerr.Configf("sink", "unsupported kind %q", s.Kind)
}

// runOnce runs every job, flushes metrics and writes a report. It returns
// the number of failed jobs.
func (c *container) runOnce(ctx context.Context, parallel int, w io.Writer) int {
	start := time.Now()
	results := runAllFn(ctx, c.jobs, parallel)
	if err := metrics.Flush(); err != nil {
		log.Printf("metrics: flush error: %v", err)
	}
	report(w, results)
	failed := len(job.Failed(results))
	log.Printf("container: run finished jobs=%d failed=%d duration=%s",
		len(results), failed, time.Since(start).Truncate(time.Millisecond))
	return failed
}

// report writes one line per job result.
func report(w io.Writer, results []job.Result) {
	for _, r := range results {
		d := r.Duration.Truncate(time.Millisecond)
		if r.Err != nil {
			fmt.Fprintf(w, "FAIL %s run=%s duration=%s err=%v\n", r.Job, r.RunID, d, r.Err.Err)
			continue
		}
		fmt.Fprintf(w, "ok   %s run=%s loaded=%d saved=%d duration=%s\n",
			r.Job, r.RunID, r.Stats.RowsLoaded, r.Stats.RowsSaved, d)
	}
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func sortedNames(m map[string]config.Connection) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
