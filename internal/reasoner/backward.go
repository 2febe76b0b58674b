package reasoner

import (
	"strconv"
	"sync/atomic"

	"github.com/kbergstrom/rdfkit/internal/logicalplan"
)

// DefaultDepthBound guards against non-terminating recursion during
// backward chaining.
const DefaultDepthBound = 10

var renameCounter atomic.Uint64

// Query resolves goal by backward chaining: direct ABox/TBox matches first,
// then every rule whose conclusion could produce it, recursively resolving
// premises, bounded by depthBound. The
// reasoner never fails — it returns fewer bindings than might otherwise be
// derivable if the depth bound is hit.
func (r *Reasoner) Query(goal logicalplan.TriplePattern, depthBound int) []Binding {
	return r.resolve(goal, depthBound, Binding{})
}

func (r *Reasoner) resolve(goal logicalplan.TriplePattern, depth int, binding Binding) []Binding {
	sub := substitutePattern(goal, binding)

	var results []Binding
	for _, b := range matchSet(r.store.Index(), sub) {
		results = append(results, mergeGoalBinding(binding, b))
	}
	for _, b := range matchSet(r.tbox, sub) {
		results = append(results, mergeGoalBinding(binding, b))
	}

	if depth <= 0 {
		return results
	}
	for _, rule := range r.rules {
		fresh := renameRule(rule)
		premiseBindings := []Binding{{}}
		for _, premise := range fresh.Premises {
			var next []Binding
			for _, pb := range premiseBindings {
				grounded := substitutePattern(premise, pb)
				for _, extended := range r.resolve(grounded, depth-1, Binding{}) {
					merged := pb.Clone()
					for k, v := range extended {
						merged[k] = v
					}
					next = append(next, merged)
				}
			}
			premiseBindings = next
			if len(premiseBindings) == 0 {
				break
			}
		}
		for _, pb := range premiseBindings {
			concl, ok := instantiate(fresh.Conclusion, pb)
			if !ok {
				continue
			}
			if b, ok := unify(sub, concl, Binding{}); ok {
				results = append(results, mergeGoalBinding(binding, b))
			}
		}
	}
	return results
}

// mergeGoalBinding combines a discovered match's bindings (over goal's
// still-free variables) with the caller's original binding (over goal's
// already-bound variables), so the returned Binding is always keyed by the
// goal's full variable set.
func mergeGoalBinding(original, found Binding) Binding {
	out := original.Clone()
	for k, v := range found {
		out[k] = v
	}
	return out
}

// renameRule produces a structurally identical copy of rule with every
// distinct variable replaced by a fresh name, so that recursive resolution
// never confuses one rule application's variables with another's.
func renameRule(rule Rule) Rule {
	names := make(map[string]string)
	rename := func(p logicalplan.TriplePattern) logicalplan.TriplePattern {
		term := func(t logicalplan.Term) logicalplan.Term {
			if !t.IsVariable() {
				return t
			}
			name, ok := names[t.VariableName()]
			if !ok {
				name = t.VariableName() + "#" + strconv.FormatUint(renameCounter.Add(1), 36)
				names[t.VariableName()] = name
			}
			return logicalplan.Var(name)
		}
		return logicalplan.TriplePattern{S: term(p.S), P: term(p.P), O: term(p.O)}
	}
	fresh := Rule{Premises: make([]logicalplan.TriplePattern, len(rule.Premises))}
	for i, p := range rule.Premises {
		fresh.Premises[i] = rename(p)
	}
	fresh.Conclusion = rename(rule.Conclusion)
	return fresh
}
