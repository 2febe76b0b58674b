// Package reasoner implements a semi-naive Datalog-style fixpoint
// evaluator and backward-chaining query resolver over an ABox (the shared
// store's index), a rule set, and a TBox (schema-level triples queried but
// not saturated).
//
// Semantics are grounded on original_source/datalog/knowledge_graph.rs and
// the naming idiom of
// other_examples/ee0a0909_kevinawalsh-datalog__src-datalog-datalog.go.go
// (Rule/Term/unification vocabulary), adapted to this repo's
// identifier-keyed triples and real variable unification rather than that
// source's pointer-identity interning, which does not fit a
// dictionary-encoded term space.
package reasoner

import (
	"github.com/kbergstrom/rdfkit/internal/index"
	"github.com/kbergstrom/rdfkit/internal/logicalplan"
	"github.com/kbergstrom/rdfkit/internal/store"
)

// Rule is a premise list and a conclusion pattern.
type Rule struct {
	Premises   []logicalplan.TriplePattern
	Conclusion logicalplan.TriplePattern
}

// Binding maps a rule or query's variable name to a dictionary id.
type Binding map[string]uint32

// Clone returns an independent copy of b.
func (b Binding) Clone() Binding {
	out := make(Binding, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Reasoner holds a rule set and evaluates it against a Store's ABox, plus
// a separate TBox index.
type Reasoner struct {
	store *store.Store
	tbox  *index.Index
	rules []Rule
}

// New creates a Reasoner over st's ABox with an empty TBox and rule set.
func New(st *store.Store) *Reasoner {
	return &Reasoner{store: st, tbox: index.New()}
}

// AddRule registers rule r. Every variable in r.Conclusion must appear in
// some premise; AddRule does not check this. A conclusion variable that no
// premise binds leaves the conclusion partly grounded, so instantiate
// rejects it and the rule derives nothing.
func (r *Reasoner) AddRule(rule Rule) {
	r.rules = append(r.rules, rule)
}

// TBox returns the schema-level index, populated directly by callers.
func (r *Reasoner) TBox() *index.Index { return r.tbox }

// unify extends binding so that pattern matches t, failing on a
// contradiction — the same variable bound to two different ids.
func unify(pattern logicalplan.TriplePattern, t index.Triple, binding Binding) (Binding, bool) {
	out := binding.Clone()
	terms := [3]logicalplan.Term{pattern.S, pattern.P, pattern.O}
	ids := [3]uint32{t.S, t.P, t.O}
	for i, term := range terms {
		if term.IsVariable() {
			name := term.VariableName()
			if existing, ok := out[name]; ok {
				if existing != ids[i] {
					return nil, false
				}
				continue
			}
			out[name] = ids[i]
		} else if term.ConstantID() != ids[i] {
			return nil, false
		}
	}
	return out, true
}

// substitutePattern replaces every variable of pattern bound in binding
// with the corresponding constant, leaving unbound variables as-is.
func substitutePattern(pattern logicalplan.TriplePattern, binding Binding) logicalplan.TriplePattern {
	sub := func(t logicalplan.Term) logicalplan.Term {
		if t.IsVariable() {
			if id, ok := binding[t.VariableName()]; ok {
				return logicalplan.Const(id)
			}
		}
		return t
	}
	return logicalplan.TriplePattern{S: sub(pattern.S), P: sub(pattern.P), O: sub(pattern.O)}
}

// instantiate substitutes binding into pattern and reports whether every
// position is now fully grounded, returning the resulting triple.
func instantiate(pattern logicalplan.TriplePattern, binding Binding) (index.Triple, bool) {
	grounded := substitutePattern(pattern, binding)
	if grounded.BoundCount() != 3 {
		return index.Triple{}, false
	}
	return index.Triple{S: grounded.S.ConstantID(), P: grounded.P.ConstantID(), O: grounded.O.ConstantID()}, true
}

// matchSet queries candidates for pattern and unifies each result against
// it, returning every extended binding.
func matchSet(ix *index.Index, pattern logicalplan.TriplePattern) []Binding {
	s, p, o := patternIDs(pattern)
	var out []Binding
	for _, t := range ix.Query(s, p, o) {
		if b, ok := unify(pattern, t, Binding{}); ok {
			out = append(out, b)
		}
	}
	return out
}

func patternIDs(p logicalplan.TriplePattern) (s, pr, o uint32) {
	if !p.S.IsVariable() {
		s = p.S.ConstantID()
	}
	if !p.P.IsVariable() {
		pr = p.P.ConstantID()
	}
	if !p.O.IsVariable() {
		o = p.O.ConstantID()
	}
	return
}
