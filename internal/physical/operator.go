// Package physical implements pull-executed physical operators: index
// scan, table scan, filter, projection, the join family
// (hash/optimized-hash/merge/bind/nested-loop/star), bind, values, and
// subquery. Every operator returns a lazy sequence of identifier-keyed
// binding rows.
//
// Grounded on internal/sparql/executor/executor.go's Volcano iterator shape
// (Next()/Binding()/Close()), generalized from its string-keyed
// *store.Binding rows to plain uint32-keyed rows, and extended with every
// join algorithm the original executor did not have (it only implemented
// nested-loop join).
package physical

import (
	"github.com/kbergstrom/rdfkit/internal/dictionary"
	"github.com/kbergstrom/rdfkit/internal/index"
)

// Row is a binding row: variable name to dictionary id.
type Row map[string]uint32

// Clone returns an independent copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Compatible reports whether r and other agree on every variable they both
// bind (natural-join compatibility).
func (r Row) Compatible(other Row) bool {
	for k, v := range other {
		if existing, ok := r[k]; ok && existing != v {
			return false
		}
	}
	return true
}

// Merge returns the union of r and other, assuming Compatible(other) holds.
func (r Row) Merge(other Row) Row {
	out := r.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// SharedVars returns the variable names bound by both a and b.
func SharedVars(a, b Row) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Operator is a pull-based physical operator. A single Next/Row/Close
// sequence drains the operator; there is no cancellation primitive.
type Operator interface {
	Next() bool
	Row() Row
	Close() error
}

// EngineOptions are the caps and thresholds a production implementation
// should make configurable per plan rather than hard-coding.
type EngineOptions struct {
	// BindJoinResultCap bounds the total rows a bind-join may produce.
	BindJoinResultCap int
	// BindJoinPerRowCap bounds matches probed per left row.
	BindJoinPerRowCap int
	// NestedLoopMaxCardinality is the cardinality ceiling under which a
	// nested-loop join is ever a legal candidate.
	NestedLoopMaxCardinality int64
}

// DefaultEngineOptions returns sane defaults for all three thresholds.
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		BindJoinResultCap:        1_000_000,
		BindJoinPerRowCap:        10_000,
		NestedLoopMaxCardinality: 1_000,
	}
}

// UserFunction is a registered Bind function: given the decoded string
// values of its arguments, returns the result string. A failing user
// function yields the empty string rather than an error.
type UserFunction func(args []string) string

// Context bundles the store handles and options every operator needs.
type Context struct {
	Index     *index.Index
	Dict      *dictionary.Dictionary
	Options   EngineOptions
	Functions map[string]UserFunction
}

// NewContext creates a Context with the built-in Bind functions registered
// (concat) plus any user functions supplied.
func NewContext(ix *index.Index, dict *dictionary.Dictionary, opts EngineOptions, userFns map[string]UserFunction) *Context {
	fns := map[string]UserFunction{
		"concat": func(args []string) string {
			out := ""
			for _, a := range args {
				out += a
			}
			return out
		},
	}
	for name, fn := range userFns {
		fns[name] = fn
	}
	return &Context{Index: ix, Dict: dict, Options: opts, Functions: fns}
}
