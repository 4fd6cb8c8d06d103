// Package csv reads delimited text into a table.Table, inferring column
// types from the values, and writes tables back as CSV with a header row.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"etlcore/internal/etlerr"
	"etlcore/internal/table"
)

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// Options configures reading and writing. The zero value reads and writes
// comma-separated data with a header row.
type Options struct {
	// Comma is the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing spaces from every value before type
	// inference.
	TrimSpace bool
}

// Read parses r. The first record is the header. Empty cells are null;
// column types are inferred from the remaining values.
func Read(r io.Reader, opt Options) (*table.Table, error) {
	cr := csv.NewReader(r)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return table.Empty(), nil
	}
	if err != nil {
		return nil, etlerr.IO("csv header", err)
	}
	names := normalizeHeaders(header)

	raw := make([][]any, len(names))
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, etlerr.IO("csv read", fmt.Errorf("line %d: %w", line, err))
		}
		for i, v := range rec {
			if opt.TrimSpace {
				v = strings.TrimSpace(v)
			}
			raw[i] = append(raw[i], emptyToNil(v))
		}
	}

	cols := make([]*table.Column, len(names))
	for i, name := range names {
		dt := inferColumn(raw[i])
		vals := make([]any, len(raw[i]))
		for j, v := range raw[i] {
			if s, ok := v.(string); ok {
				vals[j] = convert(s, dt)
			}
		}
		cols[i] = &table.Column{Name: name, Type: dt, Values: vals}
	}
	t, err := table.New(cols...)
	if err != nil {
		return nil, etlerr.IO("csv read", err)
	}
	return t, nil
}

// Write emits a header row followed by one record per row. Nulls are written
// as empty fields; nested values are written as JSON.
func Write(w io.Writer, t *table.Table, opt Options) error {
	cw := csv.NewWriter(w)
	if opt.Comma != 0 {
		cw.Comma = opt.Comma
	}
	if err := cw.Write(t.ColumnNames()); err != nil {
		return etlerr.IO("csv write", err)
	}
	cols := t.Columns()
	rec := make([]string, len(cols))
	for i := 0; i < t.NumRows(); i++ {
		for j, c := range cols {
			rec[j] = cell(c, i)
		}
		if err := cw.Write(rec); err != nil {
			return etlerr.IO("csv write", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return etlerr.IO("csv flush", err)
	}
	return nil
}

func cell(c *table.Column, i int) string {
	v := c.Values[i]
	if b, ok := v.(bool); ok {
		return strconv.FormatBool(b)
	}
	s, _ := table.FormatValue(c.Type, v)
	return s
}

func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// normalizeHeaders strips a BOM and surrounding space and names blank or
// repeated headers col_N so every column has a unique name.
func normalizeHeaders(h []string) []string {
	out := make([]string, len(h))
	seen := make(map[string]bool, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		if c == "" || seen[c] {
			c = "col_" + strconv.Itoa(i)
		}
		seen[c] = true
		out[i] = c
	}
	return out
}
