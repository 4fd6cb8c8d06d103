package builtin

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"etlcore/internal/etlerr"
	"etlcore/internal/table"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	in := table.MustNew(
		&table.Column{Name: "name", Type: table.String, Values: []any{"  Příliš\u00a0žluťoučký ", "a\u00c2\u00a0b", nil}},
		&table.Column{Name: "code", Type: table.String, Values: []any{" X ", "Y", "Z"}},
		&table.Column{Name: "n", Type: table.Int64, Values: []any{int64(1), int64(2), int64(3)}},
	)

	tests := []struct {
		name     string
		op       Normalize
		wantName []any
		wantCode []any
	}{
		{
			name:     "trim and spaces",
			op:       Normalize{},
			wantName: []any{"Příliš žluťoučký", "a b", nil},
			wantCode: []any{"X", "Y", "Z"},
		},
		{
			name:     "fold ascii",
			op:       Normalize{FoldASCII: true},
			wantName: []any{"Prilis zlutoucky", "a b", nil},
			wantCode: []any{"X", "Y", "Z"},
		},
		{
			name:     "only listed columns",
			op:       Normalize{Columns: []string{"code"}},
			wantName: []any{"  Příliš\u00a0žluťoučký ", "a\u00c2\u00a0b", nil},
			wantCode: []any{"X", "Y", "Z"},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := tt.op.Apply(in)
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if diff := cmp.Diff(tt.wantName, values(t, out, "name")); diff != "" {
				t.Errorf("name (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantCode, values(t, out, "code")); diff != "" {
				t.Errorf("code (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff([]any{int64(1), int64(2), int64(3)}, values(t, out, "n")); diff != "" {
				t.Errorf("n (-want +got):\n%s", diff)
			}
		})
	}

	// The input is never modified.
	if got := values(t, in, "code")[0]; got != " X " {
		t.Fatalf("input mutated: %q", got)
	}
	if _, err := (Normalize{Columns: []string{"zip"}}).Apply(in); !errors.Is(err, etlerr.ErrSchema) {
		t.Fatalf("unknown column: err = %v", err)
	}
}

func TestSanitizeNames(t *testing.T) {
	t.Parallel()

	in := table.MustNew(
		&table.Column{Name: "Datum Od", Type: table.String, Values: []any{"a"}},
		&table.Column{Name: "Číslo-Protokolu", Type: table.String, Values: []any{"b"}},
		&table.Column{Name: "datum_od", Type: table.String, Values: []any{"c"}},
		&table.Column{Name: "2nd", Type: table.String, Values: []any{"d"}},
		&table.Column{Name: "???", Type: table.String, Values: []any{"e"}},
	)
	out, err := SanitizeNames{}.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := []string{"datum_od", "cislo_protokolu", "datum_od_2", "_2nd", "col_4"}
	if diff := cmp.Diff(want, out.ColumnNames()); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}

	clean := table.MustNew(&table.Column{Name: "ok_name", Type: table.String, Values: []any{"x"}})
	if same, _ := (SanitizeNames{}).Apply(clean); same != clean {
		t.Fatal("clean names rebuilt the table")
	}
}
