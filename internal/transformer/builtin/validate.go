package builtin

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"etlcore/internal/config"
	"etlcore/internal/etlerr"
	"etlcore/internal/table"
	"etlcore/internal/transformer"
)

// Field is one column rule of a validation contract.
type Field struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"` // int, float, bool, date, text ("" and "string" mean text)
	Required bool     `json:"required"`
	Enum     []string `json:"enum"`
	Layout   string   `json:"layout"`
	Truthy   []string `json:"truthy"`
	Falsy    []string `json:"falsy"`
}

// Contract is the set of rules rows must satisfy.
type Contract struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Validation policies.
const (
	PolicyLenient = "lenient" // drop invalid rows
	PolicyStrict  = "strict"  // fail on the first invalid row
)

// Validate checks every row against a Contract. Values are checked, not
// converted; use coerce for that.
type Validate struct {
	Contract Contract
	Policy   string
}

func newValidate(opts config.Options) (transformer.Operation, error) {
	raw := opts.Any("contract")
	if raw == nil {
		return nil, etlerr.Configf("validate", "option \"contract\" is required")
	}
	b, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(raw)
	if err != nil {
		return nil, etlerr.Configf("validate", "contract: %v", err)
	}
	var c Contract
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(b, &c); err != nil {
		return nil, etlerr.Configf("validate", "contract: %v", err)
	}
	if len(c.Fields) == 0 {
		return nil, etlerr.Configf("validate", "contract has no fields")
	}
	for i, f := range c.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return nil, etlerr.Configf("validate", "contract field %d has no name", i)
		}
		switch normalizeKind(f.Type) {
		case "int", "float", "bool", "date", "text":
		default:
			return nil, etlerr.Configf("validate", "field %q: unknown type %q", f.Name, f.Type)
		}
	}
	policy := strings.ToLower(strings.TrimSpace(opts.String("policy", "")))
	if policy == "" {
		policy = PolicyLenient
	}
	if policy != PolicyLenient && policy != PolicyStrict {
		return nil, etlerr.Configf("validate", "unknown policy %q", policy)
	}
	return Validate{Contract: c, Policy: policy}, nil
}

func (Validate) Name() string { return "validate" }

// fieldMeta is a Field with its lookup sets built once per Apply.
type fieldMeta struct {
	Field
	kind   string
	col    *table.Column
	enum   map[string]struct{}
	truthy map[string]struct{}
	falsy  map[string]struct{}
}

func (v Validate) Apply(t *table.Table) (*table.Table, error) {
	meta := make([]fieldMeta, 0, len(v.Contract.Fields))
	for _, f := range v.Contract.Fields {
		c, ok := t.Column(f.Name)
		if !ok {
			if f.Required {
				return nil, etlerr.Schemaf("validate", "required column %q is missing", f.Name)
			}
			continue
		}
		m := fieldMeta{Field: f, kind: normalizeKind(f.Type), col: c,
			truthy: lowerSet(f.Truthy, defaultTruthy), falsy: lowerSet(f.Falsy, defaultFalsy)}
		if len(f.Enum) > 0 {
			m.enum = make(map[string]struct{}, len(f.Enum))
			for _, e := range f.Enum {
				m.enum[e] = struct{}{}
			}
		}
		meta = append(meta, m)
	}

	keep := make([]int, 0, t.NumRows())
	var firstReason string
	for i := 0; i < t.NumRows(); i++ {
		reason := checkRow(meta, i)
		if reason == "" {
			keep = append(keep, i)
			continue
		}
		if v.Policy == PolicyStrict {
			return nil, etlerr.Schemaf("validate", "row %d: %s", i, reason)
		}
		if firstReason == "" {
			firstReason = reason
		}
	}
	if len(keep) == t.NumRows() {
		return t, nil
	}
	log.Printf("validate: rejected rows contract=%s rejected=%d first=%q",
		v.Contract.Name, t.NumRows()-len(keep), firstReason)
	return t.Take(keep), nil
}

// checkRow returns why row i is invalid, or "".
func checkRow(meta []fieldMeta, i int) string {
	for _, m := range meta {
		val := m.col.Values[i]
		if val == nil || val == "" {
			if m.Required {
				return fmt.Sprintf("required field %q missing", m.Name)
			}
			continue
		}
		s, isStr := val.(string)
		if isStr {
			s = strings.TrimSpace(s)
		}
		switch m.kind {
		case "int":
			if isStr {
				if _, err := strconv.ParseInt(s, 10, 64); err != nil {
					return fmt.Sprintf("field %q: %q not an int", m.Name, s)
				}
			} else if table.Conform(val, table.Int64) == nil {
				return fmt.Sprintf("field %q: %T not int-convertible", m.Name, val)
			}
		case "float":
			if isStr {
				if _, err := strconv.ParseFloat(s, 64); err != nil {
					return fmt.Sprintf("field %q: %q not a number", m.Name, s)
				}
			} else if table.Conform(val, table.Float64) == nil {
				return fmt.Sprintf("field %q: %T not a number", m.Name, val)
			}
		case "bool":
			if isStr {
				ls := strings.ToLower(s)
				_, t := m.truthy[ls]
				_, f := m.falsy[ls]
				if !t && !f {
					return fmt.Sprintf("field %q: %q not a recognized boolean", m.Name, s)
				}
			} else if _, ok := val.(bool); !ok {
				return fmt.Sprintf("field %q: %T not a boolean", m.Name, val)
			}
		case "date":
			if isStr && !parseAnyDate(s, m.Layout) {
				return fmt.Sprintf("field %q: invalid date %q", m.Name, s)
			}
			if _, ok := val.(time.Time); !isStr && !ok {
				return fmt.Sprintf("field %q: %T not a date", m.Name, val)
			}
		}
		if m.enum != nil {
			txt, _ := table.FormatValue(m.col.Type, val)
			if _, ok := m.enum[txt]; !ok {
				return fmt.Sprintf("field %q: %q not in enum %v", m.Name, txt, m.Enum)
			}
		}
	}
	return ""
}

func parseAnyDate(s, layout string) bool {
	if layout != "" {
		_, err := time.Parse(layout, s)
		return err == nil
	}
	_, ok := table.ParseTime(s)
	return ok
}

func normalizeKind(k string) string {
	switch strings.ToLower(strings.TrimSpace(k)) {
	case "", "text", "string":
		return "text"
	case "integer", "int", "bigint":
		return "int"
	case "boolean", "bool":
		return "bool"
	case "float", "double", "number", "numeric":
		return "float"
	case "date":
		return "date"
	default:
		return k
	}
}
