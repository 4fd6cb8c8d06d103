package builtin

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"etlcore/internal/etlerr"
	"etlcore/internal/table"
)

func visits() *table.Table {
	return table.MustNew(
		&table.Column{Name: "pcv", Type: table.Int64, Values: []any{int64(1), int64(1), int64(2), int64(1), nil, nil}},
		&table.Column{Name: "day", Type: table.String, Values: []any{"d1", "d1", "d1", "d2", "d1", "d1"}},
		&table.Column{Name: "reason", Type: table.String, Values: []any{"A", "", "C", "D", "E", "F"}},
		&table.Column{Name: "rm", Type: table.Int64, Values: []any{nil, int64(7), nil, nil, nil, nil}},
	)
}

func TestDedupPolicies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		policy string
		want   []any // reason column
	}{
		{KeepFirst, []any{"A", "C", "D", "E"}},
		{KeepLast, []any{"", "C", "D", "F"}},
		{"", []any{"", "C", "D", "F"}},
		// Row 0 has 3 non-empty values, row 1 has 3 as well; the tie goes to the later row.
		{MostComplete, []any{"", "C", "D", "F"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.policy, func(t *testing.T) {
			t.Parallel()
			out, err := Dedup{Keys: []string{"pcv", "day"}, Policy: tt.policy}.Apply(visits())
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if diff := cmp.Diff(tt.want, values(t, out, "reason")); diff != "" {
				t.Fatalf("reason (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDedupMostCompletePrefersFilledRow(t *testing.T) {
	t.Parallel()

	in := table.MustNew(
		&table.Column{Name: "k", Type: table.String, Values: []any{"x", "x"}},
		&table.Column{Name: "a", Type: table.String, Values: []any{"filled", nil}},
		&table.Column{Name: "b", Type: table.String, Values: []any{"filled", ""}},
	)
	out, err := Dedup{Keys: []string{"k"}, Policy: MostComplete}.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if diff := cmp.Diff([]any{"filled"}, values(t, out, "a")); diff != "" {
		t.Fatalf("a (-want +got):\n%s", diff)
	}
}

func TestDedupKeyBoundaries(t *testing.T) {
	t.Parallel()

	in := table.MustNew(
		&table.Column{Name: "a", Type: table.String, Values: []any{"a", "ab"}},
		&table.Column{Name: "b", Type: table.String, Values: []any{"bc", "c"}},
	)
	out, err := Dedup{Keys: []string{"a", "b"}}.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out != in {
		t.Fatalf("distinct keys collapsed to %d rows", out.NumRows())
	}
}

func TestDedupUnknownKey(t *testing.T) {
	t.Parallel()

	if _, err := (Dedup{Keys: []string{"zip"}}).Apply(visits()); !errors.Is(err, etlerr.ErrSchema) {
		t.Fatalf("err = %v, want schema error", err)
	}
}
