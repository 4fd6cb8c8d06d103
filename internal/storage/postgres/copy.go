// Package postgres loads tables into Postgres with COPY and reads query
// results back as tables. It focuses on:
//   - Chunking a table into COPY operations of bounded size.
//   - Streaming each chunk through an io.Pipe so encoding runs beside the copy.
//   - Simple, testable design by inverting the COPY call via a function type.
package postgres

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/sync/errgroup"

	"etlcore/internal/table"
)

// CopyFn abstracts the COPY operation. In production it streams r to
// pgconn.PgConn.CopyFrom; in tests a fake can verify chunking behavior. It
// returns the number of rows the server reports.
type CopyFn func(ctx context.Context, r io.Reader, sql string) (int64, error)

// pgCopy adapts a raw connection to CopyFn.
func pgCopy(conn *pgconn.PgConn) CopyFn {
	return func(ctx context.Context, r io.Reader, sql string) (int64, error) {
		tag, err := conn.CopyFrom(ctx, r, sql)
		return tag.RowsAffected(), err
	}
}

// copySQL renders COPY ... FROM STDIN for a quoted target and column list.
func copySQL(target string, cols []string) string {
	return fmt.Sprintf("COPY %s (%s) FROM STDIN WITH (FORMAT csv)",
		target, strings.Join(mapIdent(cols), ", "))
}

// CopyTable slices t into chunks of chunkSize rows and issues one COPY per
// chunk. It returns the total rows reported by copyFn and the first error
// encountered; chunks already copied stay copied.
func CopyTable(
	ctx context.Context,
	t *table.Table,
	sql string,
	chunkSize int,
	copyFn CopyFn,
) (int64, error) {
	if chunkSize <= 0 {
		return 0, fmt.Errorf("chunkSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}

	var total int64
	for off := 0; off < t.NumRows(); off += chunkSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n := min(chunkSize, t.NumRows()-off)
		copied, err := copyChunk(ctx, t, off, n, sql, copyFn)
		total += copied
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// copyChunk runs the encoder and the copier for rows [off, off+n) under one
// errgroup. A failure on either side closes the pipe, which unblocks and
// fails the other.
func copyChunk(ctx context.Context, t *table.Table, off, n int, sql string, copyFn CopyFn) (int64, error) {
	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		bw := bufio.NewWriterSize(pw, 64<<10)
		err := encodeRows(bw, t, off, n)
		if err == nil {
			err = bw.Flush()
		}
		pw.CloseWithError(err)
		return err
	})

	var copied int64
	g.Go(func() error {
		c, err := copyFn(gctx, pr, sql)
		copied = c
		if err != nil {
			pr.CloseWithError(err)
			return err
		}
		pr.Close()
		return nil
	})

	err := g.Wait()
	return copied, err
}

// encodeRows writes rows [off, off+n) of t as header-less CSV in the form
// COPY ... (FORMAT csv) expects: NULL is an unquoted empty field and an
// empty string is "".
func encodeRows(w *bufio.Writer, t *table.Table, off, n int) error {
	cols := t.Columns()
	for r := off; r < off+n; r++ {
		for i, c := range cols {
			if i > 0 {
				if err := w.WriteByte(','); err != nil {
					return err
				}
			}
			s, ok := table.FormatValue(c.Type, c.Values[r])
			if !ok {
				continue
			}
			if err := writeField(w, s); err != nil {
				return err
			}
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}

// writeField writes one non-null field, quoting it when Postgres would
// otherwise misread it: empty (would be NULL), a delimiter, quote or line
// break inside, or the end-of-data marker.
func writeField(w *bufio.Writer, s string) error {
	if !needsQuote(s) {
		_, err := w.WriteString(s)
		return err
	}
	if err := w.WriteByte('"'); err != nil {
		return err
	}
	if _, err := w.WriteString(strings.ReplaceAll(s, `"`, `""`)); err != nil {
		return err
	}
	return w.WriteByte('"')
}

func needsQuote(s string) bool {
	return s == "" || s == `\.` || strings.ContainsAny(s, ",\"\r\n")
}
