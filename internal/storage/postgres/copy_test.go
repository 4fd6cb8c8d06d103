package postgres

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"etlcore/internal/table"
)

func encode(t *testing.T, tb *table.Table, off, n int) string {
	t.Helper()
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := encodeRows(w, tb, off, n); err != nil {
		t.Fatalf("encodeRows: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	return buf.String()
}

// TestEncodeRows_NullVersusEmpty pins the two spellings COPY tells apart:
// an unquoted empty field is NULL and "" is the empty string.
func TestEncodeRows_NullVersusEmpty(t *testing.T) {
	t.Parallel()

	tb := table.MustNew(
		&table.Column{Name: "id", Type: table.Int64, Values: []any{int64(1), int64(2), nil}},
		&table.Column{Name: "name", Type: table.String, Values: []any{"", nil, "x"}},
	)
	want := "1,\"\"\n2,\n,x\n"
	if got := encode(t, tb, 0, 3); got != want {
		t.Fatalf("encoded = %q, want %q", got, want)
	}
}

// TestEncodeRows_Quoting checks values that must be quoted.
func TestEncodeRows_Quoting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"plain", "plain\n"},
		{"a,b", "\"a,b\"\n"},
		{`say "hi"`, "\"say \"\"hi\"\"\"\n"},
		{"two\nlines", "\"two\nlines\"\n"},
		{"cr\rhere", "\"cr\rhere\"\n"},
		{`\.`, "\"\\.\"\n"},
		{` padded `, " padded \n"},
	}
	for _, tt := range tests {
		tb := table.MustNew(&table.Column{Name: "s", Type: table.String, Values: []any{tt.in}})
		if got := encode(t, tb, 0, 1); got != tt.want {
			t.Errorf("encode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEncodeRows_TypedValues(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	tb := table.MustNew(
		&table.Column{Name: "ok", Type: table.Bool, Values: []any{true}},
		&table.Column{Name: "day", Type: table.Date, Values: []any{day}},
		&table.Column{Name: "tags", Type: table.ListOf(table.String), Values: []any{[]any{"a", "b"}}},
		&table.Column{Name: "raw", Type: table.Binary, Values: []any{[]byte{0xde, 0xad}}},
	)
	want := "t,2024-02-29,\"[\"\"a\"\",\"\"b\"\"]\",\\xdead\n"
	if got := encode(t, tb, 0, 1); got != want {
		t.Fatalf("encoded = %q, want %q", got, want)
	}
}

func rowsTable(n int) *table.Table {
	vals := make([]any, n)
	for i := range vals {
		vals[i] = int64(i)
	}
	return table.MustNew(&table.Column{Name: "n", Type: table.Int64, Values: vals})
}

// countingCopy drains r and reports one row per line.
func countingCopy(calls *int32, chunks *[]string) CopyFn {
	return func(_ context.Context, r io.Reader, _ string) (int64, error) {
		atomic.AddInt32(calls, 1)
		b, err := io.ReadAll(r)
		if err != nil {
			return 0, err
		}
		if chunks != nil {
			*chunks = append(*chunks, string(b))
		}
		return int64(strings.Count(string(b), "\n")), nil
	}
}

// TestCopyTable_Chunks verifies chunk boundaries: 7 rows at size 3 become
// three COPYs of 3, 3 and 1 rows with no row lost or repeated.
func TestCopyTable_Chunks(t *testing.T) {
	t.Parallel()

	var (
		calls  int32
		chunks []string
	)
	total, err := CopyTable(context.Background(), rowsTable(7), "COPY x", 3, countingCopy(&calls, &chunks))
	if err != nil {
		t.Fatalf("CopyTable error: %v", err)
	}
	if total != 7 {
		t.Fatalf("total rows %d, want 7", total)
	}
	want := []string{"0\n1\n2\n", "3\n4\n5\n", "6\n"}
	if len(chunks) != len(want) {
		t.Fatalf("chunks = %q, want %q", chunks, want)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, chunks[i], want[i])
		}
	}
}

func TestCopyTable_ExactMultipleAndEmpty(t *testing.T) {
	t.Parallel()

	var calls int32
	if _, err := CopyTable(context.Background(), rowsTable(6), "COPY x", 3, countingCopy(&calls, nil)); err != nil {
		t.Fatalf("CopyTable error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("copy calls = %d, want 2", calls)
	}

	calls = 0
	total, err := CopyTable(context.Background(), rowsTable(0), "COPY x", 3, countingCopy(&calls, nil))
	if err != nil || total != 0 || calls != 0 {
		t.Fatalf("empty table: total=%d calls=%d err=%v", total, calls, err)
	}
}

// TestCopyTable_ErrorPropagation ensures the first copy error is returned
// and later chunks are not attempted.
func TestCopyTable_ErrorPropagation(t *testing.T) {
	t.Parallel()

	copyErr := errors.New("copy failed")
	var calls int32
	fn := func(_ context.Context, r io.Reader, _ string) (int64, error) {
		if atomic.AddInt32(&calls, 1) == 2 {
			return 0, copyErr
		}
		b, _ := io.ReadAll(r)
		return int64(strings.Count(string(b), "\n")), nil
	}

	total, err := CopyTable(context.Background(), rowsTable(5), "COPY x", 2, fn)
	if !errors.Is(err, copyErr) {
		t.Fatalf("want error %v, got %v", copyErr, err)
	}
	if total != 2 {
		t.Fatalf("total rows %d, want 2", total)
	}
	if calls != 2 {
		t.Fatalf("copy calls = %d, want 2", calls)
	}
}

// TestCopyTable_CopierFailsWithoutReading checks that a copier failing
// before it reads anything does not leave the encoder blocked on the pipe.
func TestCopyTable_CopierFailsWithoutReading(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	fn := func(context.Context, io.Reader, string) (int64, error) { return 0, boom }

	done := make(chan error, 1)
	go func() {
		_, err := CopyTable(context.Background(), rowsTable(50_000), "COPY x", 50_000, fn)
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Fatalf("err = %v, want %v", err, boom)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("CopyTable did not return after copier failure")
	}
}

// TestCopyTable_Errors exercises early argument validation paths.
func TestCopyTable_Errors(t *testing.T) {
	t.Parallel()

	noop := func(context.Context, io.Reader, string) (int64, error) { return 0, nil }
	if _, err := CopyTable(context.Background(), rowsTable(1), "COPY x", 0, noop); err == nil {
		t.Fatal("chunkSize <= 0: expected error, got nil")
	}
	if _, err := CopyTable(context.Background(), rowsTable(1), "COPY x", 1, nil); err == nil {
		t.Fatal("nil copyFn: expected error, got nil")
	}
}

// TestCopyTable_Cancel validates that cancellation stops before the next
// chunk.
func TestCopyTable_Cancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	fn := func(_ context.Context, r io.Reader, _ string) (int64, error) {
		atomic.AddInt32(&calls, 1)
		_, _ = io.Copy(io.Discard, r)
		cancel()
		return 1, nil
	}

	total, err := CopyTable(ctx, rowsTable(3), "COPY x", 1, fn)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if total != 1 || calls != 1 {
		t.Fatalf("total=%d calls=%d, want 1 and 1", total, calls)
	}
}

func TestCopySQL(t *testing.T) {
	t.Parallel()

	got := copySQL(`"public"."t"`, []string{"id", `we"ird`})
	want := `COPY "public"."t" ("id", "we""ird") FROM STDIN WITH (FORMAT csv)`
	if got != want {
		t.Fatalf("copySQL = %q, want %q", got, want)
	}
}
