package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"etlcore/internal/table"
)

// fakeConn is a minimal Conn implementation for tests.
type fakeConn struct {
	kind   string
	closed bool
}

func (f *fakeConn) Kind() string { return f.kind }
func (f *fakeConn) QueryTable(context.Context, string) (*table.Table, error) {
	return table.Empty(), nil
}
func (f *fakeConn) Close() { f.closed = true }

// TestRegisterAndOpen_Success verifies that registering a backend enables
// Open to return the corresponding connection.
func TestRegisterAndOpen_Success(t *testing.T) {
	t.Parallel()

	kind := "fake"
	Register(kind, func(ctx context.Context, cfg Config) (Conn, error) {
		return &fakeConn{kind: cfg.Kind}, nil
	})

	conn, err := Open(context.Background(), Config{Kind: "FAKE"})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if conn == nil {
		t.Fatalf("Open returned nil conn")
	}

	found := false
	for _, k := range ListKinds() {
		if k == kind {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("registered kind %q not present in ListKinds: %v", kind, ListKinds())
	}
}

// TestOpen_Unsupported verifies that unsupported kinds return a helpful error.
func TestOpen_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{Kind: "does-not-exist"})
	if err == nil {
		t.Fatalf("expected error for unsupported kind")
	}
	if got, want := err.Error(), "unsupported connection kind=does-not-exist"; got != want {
		t.Fatalf("error = %q, want %q", got, want)
	}
}

// TestRegister_Override verifies that re-registering a kind overrides the
// previous opener.
func TestRegister_Override(t *testing.T) {
	t.Parallel()

	kind := "override"
	calls := 0

	Register(kind, func(ctx context.Context, cfg Config) (Conn, error) {
		calls++
		return &fakeConn{}, nil
	})
	Register(kind, func(ctx context.Context, cfg Config) (Conn, error) {
		calls += 10
		return &fakeConn{}, nil
	})

	if _, err := Open(context.Background(), Config{Kind: kind}); err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if calls != 10 {
		t.Fatalf("opener call count = %d, want 10", calls)
	}
}

// TestListKinds_Snapshot checks that ListKinds returns a copy.
func TestListKinds_Snapshot(t *testing.T) {
	t.Parallel()

	Register("snap", func(ctx context.Context, cfg Config) (Conn, error) { return &fakeConn{}, nil })

	a := ListKinds()
	if len(a) == 0 {
		t.Fatalf("ListKinds empty after registration")
	}
	a[0] = "mutated"

	if b := ListKinds(); reflect.DeepEqual(a, b) {
		t.Fatalf("ListKinds returned same slice; want snapshot copy")
	}
}

// TestRegister_AllowsErrors shows openers can return errors that bubble up.
func TestRegister_AllowsErrors(t *testing.T) {
	t.Parallel()

	want := errors.New("boom")
	Register("errkind", func(ctx context.Context, cfg Config) (Conn, error) {
		return nil, want
	})

	if _, err := Open(context.Background(), Config{Kind: "errkind"}); !errors.Is(err, want) {
		t.Fatalf("want %v, got %v", want, err)
	}
}
