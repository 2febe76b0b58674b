package reasoner

import (
	"github.com/kbergstrom/rdfkit/internal/index"
	"github.com/kbergstrom/rdfkit/internal/logicalplan"
)

// RunFixpoint saturates the ABox under the registered rules using
// semi-naive evaluation: each step considers only premise matches that
// involve at least one triple from the previous step's delta, stopping
// once a step produces nothing new.
//
// Evaluating each rule over Δ ∪ T for both premises (rather than splitting
// into the three semi-naive cross-terms Δ⋈T, T⋈Δ, Δ⋈Δ) produces a
// superset of the strict semi-naive candidate set; correctness is
// unaffected because insertion is idempotent and the extra candidates are all
// re-derivations of facts already implied by T, which instantiate returns
// and the caller simply re-inserts as a no-op.
func (r *Reasoner) RunFixpoint() int {
	ix := r.store.Index()
	delta := ix.All()
	total := 0
	for len(delta) > 0 {
		var next []index.Triple
		seen := make(map[index.Triple]bool)
		union := unionWithDelta(ix, delta)
		for _, rule := range r.rules {
			for _, t := range r.evalRule(rule, union, delta) {
				if seen[t] {
					continue
				}
				seen[t] = true
				if r.store.InsertEncoded(t) {
					next = append(next, t)
					total++
				}
			}
		}
		delta = next
	}
	r.store.BuildIndexes()
	return total
}

// unionWithDelta builds the working triple set T ∪ Δ used for this
// iteration's premise matching. A temporary index lets matchSet reuse the
// same query path as the rest of the reasoner.
func unionWithDelta(ix *index.Index, delta []index.Triple) *index.Index {
	union := index.New()
	for _, t := range ix.All() {
		union.Insert(t)
	}
	for _, t := range delta {
		union.Insert(t)
	}
	return union
}

// evalRule instantiates rule's conclusion for every premise match found in
// union, requiring semi-naive-ness by checking the match touches delta.
func (r *Reasoner) evalRule(rule Rule, union *index.Index, delta []index.Triple) []index.Triple {
	switch len(rule.Premises) {
	case 0:
		return nil
	case 1:
		return r.evalOnePremise(rule, delta)
	case 2:
		return r.evalTwoPremise(rule, union, delta)
	default:
		// ≥3-premise rules are an optional extension not evaluated by the
		// fixpoint.
		return nil
	}
}

func (r *Reasoner) evalOnePremise(rule Rule, delta []index.Triple) []index.Triple {
	var out []index.Triple
	for _, t := range delta {
		b, ok := unify(rule.Premises[0], t, Binding{})
		if !ok {
			continue
		}
		if concl, ok := instantiate(rule.Conclusion, b); ok {
			out = append(out, concl)
		}
	}
	return out
}

// evalTwoPremise naturally joins the two premises, always probing premise0
// first; real unification is what accepts or rejects a candidate pair. The
// "chaining" shape where object(premise0) == subject(premise1) is detected
// but changes neither the probe order nor which pairs are accepted.
func (r *Reasoner) evalTwoPremise(rule Rule, union *index.Index, delta []index.Triple) []index.Triple {
	p0, p1 := rule.Premises[0], rule.Premises[1]
	if isChainingShape(p0, p1) {
		// Detection only: the evaluation below is the same either way.
	}
	deltaSet := make(map[index.Triple]bool, len(delta))
	for _, t := range delta {
		deltaSet[t] = true
	}

	var out []index.Triple
	s0, p0id, o0 := patternIDs(p0)
	for _, t0 := range union.Query(s0, p0id, o0) {
		b0, ok := unify(p0, t0, Binding{})
		if !ok {
			continue
		}
		sub1 := substitutePattern(p1, b0)
		s1, p1id, o1 := patternIDs(sub1)
		for _, t1 := range union.Query(s1, p1id, o1) {
			if !deltaSet[t0] && !deltaSet[t1] {
				continue // semi-naive: neither premise touched Δ this step
			}
			b1, ok := unify(p1, t1, b0)
			if !ok {
				continue
			}
			if concl, ok := instantiate(rule.Conclusion, b1); ok {
				out = append(out, concl)
			}
		}
	}
	return out
}

// isChainingShape reports whether p1's subject is the same variable as
// p0's object, the shape the (flagged, non-authoritative) source
// optimization hint describes.
func isChainingShape(p0, p1 logicalplan.TriplePattern) bool {
	return p0.O.IsVariable() && p1.S.IsVariable() && p0.O.VariableName() == p1.S.VariableName()
}
