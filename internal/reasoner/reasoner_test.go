package reasoner

import (
	"testing"

	"github.com/kbergstrom/rdfkit/internal/index"
	"github.com/kbergstrom/rdfkit/internal/logicalplan"
	"github.com/kbergstrom/rdfkit/internal/store"
)

func TestUnifyFirstWinsBinding(t *testing.T) {
	pattern := logicalplan.TriplePattern{S: logicalplan.Var("x"), P: logicalplan.Const(10), O: logicalplan.Var("y")}
	b, ok := unify(pattern, index.Triple{S: 1, P: 10, O: 2}, Binding{})
	if !ok {
		t.Fatalf("expected a successful unification")
	}
	if b["x"] != 1 || b["y"] != 2 {
		t.Fatalf("unexpected binding: %v", b)
	}
}

func TestUnifyRejectsContradiction(t *testing.T) {
	pattern := logicalplan.TriplePattern{S: logicalplan.Var("x"), P: logicalplan.Const(10), O: logicalplan.Var("x")}
	if _, ok := unify(pattern, index.Triple{S: 1, P: 10, O: 2}, Binding{}); ok {
		t.Fatalf("expected unification to reject binding ?x to two different ids")
	}
}

func TestUnifyRejectsConstantMismatch(t *testing.T) {
	pattern := logicalplan.TriplePattern{S: logicalplan.Const(1), P: logicalplan.Const(10), O: logicalplan.Var("y")}
	if _, ok := unify(pattern, index.Triple{S: 2, P: 10, O: 3}, Binding{}); ok {
		t.Fatalf("expected unification to reject a mismatched constant")
	}
}

func TestInstantiateRequiresFullGrounding(t *testing.T) {
	pattern := logicalplan.TriplePattern{S: logicalplan.Var("x"), P: logicalplan.Const(10), O: logicalplan.Var("y")}
	if _, ok := instantiate(pattern, Binding{"x": 1}); ok {
		t.Fatalf("expected instantiate to fail when ?y is unbound")
	}
	tr, ok := instantiate(pattern, Binding{"x": 1, "y": 2})
	if !ok || tr != (index.Triple{S: 1, P: 10, O: 2}) {
		t.Fatalf("unexpected instantiation: %v, ok=%v", tr, ok)
	}
}

func newStoreWithChain(t *testing.T) (*store.Store, uint32, uint32) {
	t.Helper()
	st := store.New()
	pID := uint32(10)
	qID := uint32(20)
	st.InsertEncoded(index.Triple{S: 1, P: pID, O: 2})
	st.InsertEncoded(index.Triple{S: 2, P: pID, O: 3})
	st.InsertEncoded(index.Triple{S: 3, P: pID, O: 4})
	return st, pID, qID
}

// S3: a semi-naive fixpoint over a two-premise chaining rule derives a q
// triple for each two-hop p path.
func TestRunFixpointDerivesTwoHopPairs(t *testing.T) {
	st, pID, qID := newStoreWithChain(t)
	r := New(st)
	r.AddRule(Rule{
		Premises: []logicalplan.TriplePattern{
			{S: logicalplan.Var("x"), P: logicalplan.Const(pID), O: logicalplan.Var("y")},
			{S: logicalplan.Var("y"), P: logicalplan.Const(pID), O: logicalplan.Var("z")},
		},
		Conclusion: logicalplan.TriplePattern{S: logicalplan.Var("x"), P: logicalplan.Const(qID), O: logicalplan.Var("z")},
	})
	derived := r.RunFixpoint()
	if derived == 0 {
		t.Fatalf("expected at least one derived triple")
	}
	if !st.Index().Contains(index.Triple{S: 1, P: qID, O: 3}) {
		t.Fatalf("expected q(1,3) to be derived from p(1,2),p(2,3)")
	}
	if !st.Index().Contains(index.Triple{S: 2, P: qID, O: 4}) {
		t.Fatalf("expected q(2,4) to be derived from p(2,3),p(3,4)")
	}
}

func TestRunFixpointIsIdempotentOnSecondRun(t *testing.T) {
	st, pID, qID := newStoreWithChain(t)
	r := New(st)
	r.AddRule(Rule{
		Premises: []logicalplan.TriplePattern{
			{S: logicalplan.Var("x"), P: logicalplan.Const(pID), O: logicalplan.Var("y")},
			{S: logicalplan.Var("y"), P: logicalplan.Const(pID), O: logicalplan.Var("z")},
		},
		Conclusion: logicalplan.TriplePattern{S: logicalplan.Var("x"), P: logicalplan.Const(qID), O: logicalplan.Var("z")},
	})
	r.RunFixpoint()
	if again := r.RunFixpoint(); again != 0 {
		t.Fatalf("expected a saturated fixpoint to derive nothing new, got %d", again)
	}
}

func TestRunFixpointOnePremiseRule(t *testing.T) {
	st := store.New()
	pID := uint32(10)
	qID := uint32(20)
	st.InsertEncoded(index.Triple{S: 1, P: pID, O: 2})

	r := New(st)
	r.AddRule(Rule{
		Premises:   []logicalplan.TriplePattern{{S: logicalplan.Var("x"), P: logicalplan.Const(pID), O: logicalplan.Var("y")}},
		Conclusion: logicalplan.TriplePattern{S: logicalplan.Var("y"), P: logicalplan.Const(qID), O: logicalplan.Var("x")},
	})
	r.RunFixpoint()
	if !st.Index().Contains(index.Triple{S: 2, P: qID, O: 1}) {
		t.Fatalf("expected the inverse fact to be derived")
	}
}

func TestBackwardChainingResolvesViaRule(t *testing.T) {
	st, pID, qID := newStoreWithChain(t)
	r := New(st)
	r.AddRule(Rule{
		Premises: []logicalplan.TriplePattern{
			{S: logicalplan.Var("x"), P: logicalplan.Const(pID), O: logicalplan.Var("y")},
			{S: logicalplan.Var("y"), P: logicalplan.Const(pID), O: logicalplan.Var("z")},
		},
		Conclusion: logicalplan.TriplePattern{S: logicalplan.Var("x"), P: logicalplan.Const(qID), O: logicalplan.Var("z")},
	})

	goal := logicalplan.TriplePattern{S: logicalplan.Const(1), P: logicalplan.Const(qID), O: logicalplan.Var("z")}
	results := r.Query(goal, DefaultDepthBound)
	found := false
	for _, b := range results {
		if b["z"] == 3 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected backward chaining to derive q(1,3) without running the fixpoint, got %v", results)
	}
}

func TestBackwardChainingDirectABoxMatch(t *testing.T) {
	st, pID, _ := newStoreWithChain(t)
	r := New(st)
	goal := logicalplan.TriplePattern{S: logicalplan.Const(1), P: logicalplan.Const(pID), O: logicalplan.Var("y")}
	results := r.Query(goal, 0)
	if len(results) != 1 || results[0]["y"] != 2 {
		t.Fatalf("expected a direct ABox match even at depth 0, got %v", results)
	}
}

func TestBackwardChainingDepthZeroSkipsRules(t *testing.T) {
	st, pID, qID := newStoreWithChain(t)
	r := New(st)
	r.AddRule(Rule{
		Premises: []logicalplan.TriplePattern{
			{S: logicalplan.Var("x"), P: logicalplan.Const(pID), O: logicalplan.Var("y")},
			{S: logicalplan.Var("y"), P: logicalplan.Const(pID), O: logicalplan.Var("z")},
		},
		Conclusion: logicalplan.TriplePattern{S: logicalplan.Var("x"), P: logicalplan.Const(qID), O: logicalplan.Var("z")},
	})
	goal := logicalplan.TriplePattern{S: logicalplan.Const(1), P: logicalplan.Const(qID), O: logicalplan.Var("z")}
	if results := r.Query(goal, 0); len(results) != 0 {
		t.Fatalf("expected no rule-derived results at depth bound 0, got %v", results)
	}
}

func TestIsChainingShapeDetectsSharedChainVariable(t *testing.T) {
	p0 := logicalplan.TriplePattern{S: logicalplan.Var("x"), P: logicalplan.Const(1), O: logicalplan.Var("y")}
	p1 := logicalplan.TriplePattern{S: logicalplan.Var("y"), P: logicalplan.Const(1), O: logicalplan.Var("z")}
	if !isChainingShape(p0, p1) {
		t.Fatalf("expected chaining shape to be detected when object(p0) == subject(p1)")
	}
	p2 := logicalplan.TriplePattern{S: logicalplan.Var("w"), P: logicalplan.Const(1), O: logicalplan.Var("z")}
	if isChainingShape(p0, p2) {
		t.Fatalf("expected no chaining shape when subjects/objects do not share a variable")
	}
}
