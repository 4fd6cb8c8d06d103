// Package builtin contains reusable table operations configured by kind and
// an options bag, as they appear in job files.
package builtin

import (
	"sort"
	"strings"

	"etlcore/internal/config"
	"etlcore/internal/etlerr"
	"etlcore/internal/transformer"
)

// Factory builds an operation from its options.
type Factory func(opts config.Options) (transformer.Operation, error)

var registry = map[string]Factory{
	"rename":         newRename,
	"select":         newSelect,
	"drop":           newDrop,
	"normalize":      newNormalize,
	"sanitize_names": newSanitizeNames,
	"require":        newRequire,
	"dedup":          newDedup,
	"coerce":         newCoerce,
	"validate":       newValidate,
}

// New builds the operation registered under kind. Unknown kinds and invalid
// options are config errors.
func New(kind string, opts config.Options) (transformer.Operation, error) {
	f, ok := registry[strings.ToLower(strings.TrimSpace(kind))]
	if !ok {
		return nil, etlerr.Configf("operation", "unknown kind %q (have %s)", kind, strings.Join(Kinds(), ", "))
	}
	if opts == nil {
		opts = config.Options{}
	}
	return f(opts)
}

// Kinds lists the registered operation kinds, sorted.
func Kinds() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Chain builds every step in order.
func Chain(steps []config.Transform) (transformer.Chain, error) {
	chain := make(transformer.Chain, 0, len(steps))
	for i, s := range steps {
		op, err := New(s.Kind, s.Options)
		if err != nil {
			return nil, etlerr.Configf("operation", "transform[%d]: %v", i, err)
		}
		chain = append(chain, op)
	}
	return chain, nil
}

func requireStrings(op string, opts config.Options, key string) ([]string, error) {
	vals := opts.StringSlice(key)
	if len(vals) == 0 {
		return nil, etlerr.Configf(op, "option %q must list at least one column", key)
	}
	for _, v := range vals {
		if strings.TrimSpace(v) == "" {
			return nil, etlerr.Configf(op, "option %q contains an empty column name", key)
		}
	}
	return vals, nil
}
