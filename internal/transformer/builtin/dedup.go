package builtin

import (
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"

	"etlcore/internal/config"
	"etlcore/internal/etlerr"
	"etlcore/internal/table"
	"etlcore/internal/transformer"
)

// Dedup policies.
const (
	KeepFirst    = "keep-first"
	KeepLast     = "keep-last"
	MostComplete = "most-complete"
)

// Dedup collapses rows sharing the same values in Keys and picks a winner
// per key:
//
//   - keep-first: the earliest row
//   - keep-last: the latest row (default)
//   - most-complete: the row with the most non-null, non-empty values; ties
//     go to the later row
//
// Winners keep their original relative order. Null key values compare equal
// to each other.
type Dedup struct {
	Keys   []string
	Policy string
}

func newDedup(opts config.Options) (transformer.Operation, error) {
	keys, err := requireStrings("dedup", opts, "keys")
	if err != nil {
		return nil, err
	}
	policy := strings.ToLower(strings.TrimSpace(opts.String("policy", KeepLast)))
	switch policy {
	case KeepFirst, KeepLast, MostComplete:
	default:
		return nil, etlerr.Configf("dedup", "unknown policy %q", policy)
	}
	return Dedup{Keys: keys, Policy: policy}, nil
}

func (Dedup) Name() string { return "dedup" }

func (d Dedup) Apply(t *table.Table) (*table.Table, error) {
	keyCols := make([]*table.Column, len(d.Keys))
	for i, k := range d.Keys {
		c, ok := t.Column(k)
		if !ok {
			return nil, etlerr.Schemaf("dedup", "unknown key column %q", k)
		}
		keyCols[i] = c
	}
	policy := d.Policy
	if policy == "" {
		policy = KeepLast
	}

	type slot struct {
		index int
		score int
	}
	winners := make(map[xxh3.Uint128]slot, t.NumRows())
	order := make([]xxh3.Uint128, 0, t.NumRows())
	h := xxh3.New()
	for i := 0; i < t.NumRows(); i++ {
		key := rowKey(h, keyCols, i)
		prev, seen := winners[key]
		if !seen {
			order = append(order, key)
		}
		switch policy {
		case KeepFirst:
			if !seen {
				winners[key] = slot{index: i}
			}
		case MostComplete:
			s := slot{index: i, score: completeness(t, i)}
			if !seen || s.score >= prev.score {
				winners[key] = s
			}
		default:
			winners[key] = slot{index: i}
		}
	}
	if len(order) == t.NumRows() {
		return t, nil
	}

	keep := make([]bool, t.NumRows())
	for _, k := range order {
		keep[winners[k].index] = true
	}
	indices := make([]int, 0, len(order))
	for i, ok := range keep {
		if ok {
			indices = append(indices, i)
		}
	}
	return t.Take(indices), nil
}

// rowKey hashes the key values of row i. Values are length-prefixed and
// nulls get their own marker, so ("a", "bc") and ("ab", "c") differ.
func rowKey(h *xxh3.Hasher, cols []*table.Column, i int) xxh3.Uint128 {
	h.Reset()
	for _, c := range cols {
		v := c.Values[i]
		if v == nil {
			_, _ = h.WriteString("-;")
			continue
		}
		s, _ := table.FormatValue(c.Type, v)
		_, _ = h.WriteString(strconv.Itoa(len(s)))
		_, _ = h.WriteString(":")
		_, _ = h.WriteString(s)
	}
	return h.Sum128()
}

func completeness(t *table.Table, i int) int {
	n := 0
	for _, v := range t.Row(i) {
		if v != nil && v != "" {
			n++
		}
	}
	return n
}
