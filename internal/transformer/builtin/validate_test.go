package builtin

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"etlcore/internal/config"
	"etlcore/internal/etlerr"
	"etlcore/internal/table"
)

func contractOptions(policy string) config.Options {
	return config.Options{
		"policy": policy,
		"contract": map[string]any{
			"name": "vehicles",
			"fields": []any{
				map[string]any{"name": "pcv", "type": "int", "required": true},
				map[string]any{"name": "active", "type": "bool"},
				map[string]any{"name": "from", "type": "date", "layout": "02.01.2006"},
				map[string]any{"name": "state", "enum": []any{"A", "B"}},
			},
		},
	}
}

func vehicles() *table.Table {
	return table.MustNew(
		&table.Column{Name: "pcv", Type: table.String, Values: []any{"1", "2", "", "x", "5", "6"}},
		&table.Column{Name: "active", Type: table.String, Values: []any{"ano", "maybe", "ne", "1", nil, "0"}},
		&table.Column{Name: "from", Type: table.String, Values: []any{"13.08.2018", nil, nil, nil, "2018-08-13", nil}},
		&table.Column{Name: "state", Type: table.String, Values: []any{"A", "B", "A", "A", "A", "C"}},
	)
}

func TestValidateLenientDropsInvalidRows(t *testing.T) {
	t.Parallel()

	op, err := New("validate", contractOptions(""))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := op.Apply(vehicles())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	// Row 1: bad bool. Row 2: missing pcv. Row 3: bad int. Row 4: bad date
	// for the layout. Row 5: state not in enum.
	if diff := cmp.Diff([]any{"1"}, values(t, out, "pcv")); diff != "" {
		t.Fatalf("pcv (-want +got):\n%s", diff)
	}
}

func TestValidateStrictFails(t *testing.T) {
	t.Parallel()

	op, err := New("validate", contractOptions("strict"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := op.Apply(vehicles()); !errors.Is(err, etlerr.ErrSchema) {
		t.Fatalf("err = %v, want schema error", err)
	}
}

func TestValidateMissingRequiredColumn(t *testing.T) {
	t.Parallel()

	op, err := New("validate", contractOptions(""))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in := table.MustNew(&table.Column{Name: "state", Type: table.String, Values: []any{"A"}})
	if _, err := op.Apply(in); !errors.Is(err, etlerr.ErrSchema) {
		t.Fatalf("err = %v, want schema error", err)
	}
}

func TestValidateAcceptsTypedValues(t *testing.T) {
	t.Parallel()

	in := table.MustNew(
		&table.Column{Name: "pcv", Type: table.Int64, Values: []any{int64(1), int64(2)}},
		&table.Column{Name: "active", Type: table.Bool, Values: []any{true, false}},
	)
	op, err := New("validate", contractOptions(""))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := op.Apply(in)
	if err != nil || out != in {
		t.Fatalf("Apply = %v, %v; want input back", out, err)
	}
}

func TestValidatePolicyDefaultsToLenient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		policy string
		want   string
	}{
		{"", PolicyLenient},
		{"  ", PolicyLenient},
		{"LENIENT", PolicyLenient},
		{"Strict", PolicyStrict},
	}
	for _, tt := range tests {
		op, err := New("validate", contractOptions(tt.policy))
		if err != nil {
			t.Fatalf("New(policy=%q): %v", tt.policy, err)
		}
		if got := op.(Validate).Policy; got != tt.want {
			t.Errorf("policy %q resolved to %q, want %q", tt.policy, got, tt.want)
		}
	}

	if _, err := New("validate", contractOptions("loose")); !errors.Is(err, etlerr.ErrConfig) {
		t.Fatalf("unknown policy err = %v, want config error", err)
	}
}
