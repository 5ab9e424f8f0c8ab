// Package store reads the business data the assistant's tools query: jobs,
// applications, commissions, leads, consultants, companies and regions. It
// has a SQLite backend for single-node installs and a Postgres backend.
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Filter is a conjunction of column predicates. A value is either a scalar
// (equality) or an In predicate.
type Filter map[string]any

// In is a "column is one of Values" predicate. An empty In matches nothing.
type In struct {
	Values []string
}

// MarshalJSON renders In as {"in": [...]} so filters log and compare cleanly.
func (in In) MarshalJSON() ([]byte, error) {
	vals := in.Values
	if vals == nil {
		vals = []string{}
	}
	return json.Marshal(map[string][]string{"in": vals})
}

// Clone returns a shallow copy so callers can add predicates without mutating
// the base filter.
func (f Filter) Clone() Filter {
	out := make(Filter, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	return out
}

// placeholder renders the n-th (1-based) bind parameter.
type placeholder func(n int) string

func questionMark(int) string { return "?" }

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

// where translates f into a WHERE clause over the allowed columns. Unknown
// columns are rejected so a filter can never reach arbitrary SQL.
func (f Filter) where(allowed map[string]bool, ph placeholder, argOffset int) (string, []any, error) {
	if len(f) == 0 {
		return "", nil, nil
	}
	cols := make([]string, 0, len(f))
	for c := range f {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	var clauses []string
	var args []any
	n := argOffset
	for _, col := range cols {
		if !allowed[col] {
			return "", nil, fmt.Errorf("filter column %q not allowed", col)
		}
		switch v := f[col].(type) {
		case In:
			if len(v.Values) == 0 {
				clauses = append(clauses, "1 = 0")
				continue
			}
			marks := make([]string, len(v.Values))
			for i, val := range v.Values {
				n++
				marks[i] = ph(n)
				args = append(args, val)
			}
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", col, strings.Join(marks, ", ")))
		case string, int, int64, float64, bool:
			n++
			clauses = append(clauses, fmt.Sprintf("%s = %s", col, ph(n)))
			args = append(args, v)
		default:
			return "", nil, fmt.Errorf("filter column %q: unsupported predicate %T", col, v)
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}
