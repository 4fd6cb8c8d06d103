// Package probe samples a source and describes it: the normalized column
// names, the inferred types, null counts, a Postgres CREATE TABLE statement
// and a job file skeleton that loads the source into that table.
package probe

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"etlcore/internal/config"
	"etlcore/internal/etlerr"
	pgddl "etlcore/internal/storage/postgres/ddl"
	"etlcore/internal/source"
	"etlcore/internal/table"
	"etlcore/internal/transformer/builtin"
)

// DefaultSampleRows bounds the rows inspected when Options.SampleRows is 0.
const DefaultSampleRows = 1000

// Options control the probe.
type Options struct {
	// Name is the job and table name. Defaults to "probe".
	Name string
	// Schema of the generated table; empty leaves it to search_path.
	Schema string
	// PrimaryKey columns, by normalized name.
	PrimaryKey []string
	// SampleRows bounds the rows inspected for null counts and examples.
	SampleRows int
}

// Column describes one column of the probed source.
type Column struct {
	Header     string
	Normalized string
	Type       string
	SQLType    string
	Nulls      int
	Example    string
}

// Result is the probe output.
type Result struct {
	Rows    int
	Columns []Column
	DDL     string
	Job     config.Job
}

// loadFn is swapped in tests.
var loadFn = source.Load

// Probe loads src and describes it.
func Probe(ctx context.Context, src source.Source, cfg config.Source, opt Options) (Result, error) {
	if opt.Name == "" {
		opt.Name = "probe"
	}
	if opt.SampleRows <= 0 {
		opt.SampleRows = DefaultSampleRows
	}

	t, err := loadFn(ctx, src)
	if err != nil {
		return Result{}, err
	}
	if t.NumCols() == 0 {
		return Result{}, etlerr.Schemaf("probe", "%s has no columns", src)
	}

	sanitize, err := builtin.New("sanitize_names", nil)
	if err != nil {
		return Result{}, err
	}
	norm, err := sanitize.Apply(t)
	if err != nil {
		return Result{}, err
	}

	def, err := pgddl.FromTable(opt.Schema, normalizeName(opt.Name), norm, opt.PrimaryKey)
	if err != nil {
		return Result{}, etlerr.Schemaf("probe", "%v", err)
	}
	ddl, err := pgddl.BuildCreateTableSQL(def)
	if err != nil {
		return Result{}, etlerr.Schemaf("probe", "%v", err)
	}

	sample := t.Slice(0, min(opt.SampleRows, t.NumRows()))
	res := Result{Rows: t.NumRows(), DDL: ddl}
	for i, c := range sample.Columns() {
		col := Column{
			Header:     c.Name,
			Normalized: norm.Columns()[i].Name,
			Type:       c.Type.String(),
			SQLType:    def.Columns[i].SQLType,
		}
		for _, v := range c.Values {
			if v == nil {
				col.Nulls++
				continue
			}
			if col.Example == "" {
				col.Example, _ = table.FormatValue(c.Type, v)
			}
		}
		res.Columns = append(res.Columns, col)
	}
	res.Job = skeleton(opt, cfg, norm.NumCols() != t.NumCols() || changed(res.Columns))
	return res, nil
}

// skeleton returns a job that loads the probed source into a postgres
// table named after the job.
func skeleton(opt Options, src config.Source, rename bool) config.Job {
	j := config.Job{
		Name:   opt.Name,
		Source: src,
		Sink: config.Sink{
			Kind:       "postgres",
			Connection: "warehouse",
			Schema:     opt.Schema,
			Table:      normalizeName(opt.Name),
			AutoCreate: true,
		},
	}
	if rename {
		j.Transform = append(j.Transform, config.Transform{Kind: "sanitize_names"})
	}
	if len(opt.PrimaryKey) > 0 {
		j.Sink.Upsert = true
		j.Sink.PrimaryKey = opt.PrimaryKey
		j.Transform = append(j.Transform, config.Transform{
			Kind:    "dedup",
			Options: config.Options{"keys": opt.PrimaryKey, "policy": "keep-last"},
		})
	}
	return j
}

func changed(cols []Column) bool {
	for _, c := range cols {
		if c.Header != c.Normalized {
			return true
		}
	}
	return false
}

func normalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "probe"
	}
	return b.String()
}

// Text renders one "header,normalized,type,sql_type,nulls" line per column.
func (r Result) Text() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# rows=%d columns=%d\n", r.Rows, len(r.Columns))
	for _, c := range r.Columns {
		buf.WriteString(strings.Join([]string{
			c.Header, c.Normalized, c.Type, c.SQLType, strconv.Itoa(c.Nulls),
		}, ","))
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.WriteString(r.DDL)
	buf.WriteByte('\n')
	return buf.Bytes()
}

// JobFile renders the job skeleton as a YAML job file.
func (r Result) JobFile() ([]byte, error) {
	f := config.File{
		Connections: map[string]config.Connection{
			"warehouse": {Kind: "postgres", DSN: "${WAREHOUSE_DSN}"},
		},
		Jobs: []config.Job{r.Job},
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, fmt.Errorf("probe: encode job file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("probe: encode job file: %w", err)
	}
	return buf.Bytes(), nil
}
