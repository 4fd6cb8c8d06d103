package builtin

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"etlcore/internal/config"
	"etlcore/internal/etlerr"
	"etlcore/internal/table"
	"etlcore/internal/transformer"
)

// spaceFixer replaces U+00A0 with a plain space, together with the stray
// U+00C2 that precedes it when UTF-8 input was decoded as Latin-1.
var spaceFixer = strings.NewReplacer("\u00c2\u00a0", " ", "\u00a0", " ")

// Normalize trims string values and replaces non-breaking spaces. With
// FoldASCII it also strips accents ("Příliš" -> "Prilis"). Columns limits
// the operation to the named columns; empty means every string column.
type Normalize struct {
	Columns   []string
	FoldASCII bool
}

func newNormalize(opts config.Options) (transformer.Operation, error) {
	return Normalize{Columns: opts.StringSlice("columns"), FoldASCII: opts.Bool("fold_ascii", false)}, nil
}

func (Normalize) Name() string { return "normalize" }

func (n Normalize) Apply(t *table.Table) (*table.Table, error) {
	only := make(map[string]bool, len(n.Columns))
	for _, c := range n.Columns {
		if _, ok := t.Column(c); !ok {
			return nil, etlerr.Schemaf("normalize", "unknown column %q", c)
		}
		only[c] = true
	}

	var fold transform.Transformer
	if n.FoldASCII {
		fold = foldASCII()
	}
	cols := t.Columns()
	for i, c := range cols {
		if !isText(c) || (len(only) > 0 && !only[c.Name]) {
			continue
		}
		vals := make([]any, len(c.Values))
		for j, v := range c.Values {
			s, ok := v.(string)
			if !ok {
				vals[j] = v
				continue
			}
			s = strings.TrimSpace(spaceFixer.Replace(s))
			if fold != nil {
				s = foldString(fold, s)
			}
			vals[j] = s
		}
		cols[i] = &table.Column{Name: c.Name, Type: c.Type, Values: vals}
	}
	return t.WithColumns(cols)
}

func isText(c *table.Column) bool {
	return c.Type != nil && c.Type.ID() == table.String.ID()
}

// foldASCII decomposes, drops combining marks and recomposes. A
// transform.Transformer keeps state, so each caller gets its own.
func foldASCII() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

func foldString(tr transform.Transformer, s string) string {
	out, _, err := transform.String(tr, s)
	if err != nil {
		return s
	}
	return out
}

// SanitizeNames rewrites column names to lowercase ASCII snake_case:
// accents are stripped, runs of other characters become one underscore and
// names starting with a digit get a leading underscore. Blank results become
// col_N and clashes get a numeric suffix.
type SanitizeNames struct{}

func newSanitizeNames(config.Options) (transformer.Operation, error) { return SanitizeNames{}, nil }

func (SanitizeNames) Name() string { return "sanitize_names" }

func (SanitizeNames) Apply(t *table.Table) (*table.Table, error) {
	fold := foldASCII()
	seen := make(map[string]bool, t.NumCols())
	cols := t.Columns()
	changed := false
	for i, c := range cols {
		name := snake(foldString(fold, c.Name))
		if name == "" {
			name = "col_" + strconv.Itoa(i)
		}
		base := name
		for n := 2; seen[name]; n++ {
			name = base + "_" + strconv.Itoa(n)
		}
		seen[name] = true
		if name != c.Name {
			cols[i] = &table.Column{Name: name, Type: c.Type, Values: c.Values}
			changed = true
		}
	}
	if !changed {
		return t, nil
	}
	return t.WithColumns(cols)
}

func snake(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToLower(r))
		default:
			pendingSep = true
		}
	}
	out := b.String()
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}
