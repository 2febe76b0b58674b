package planner

import (
	"testing"

	"github.com/kbergstrom/rdfkit/internal/index"
	"github.com/kbergstrom/rdfkit/internal/logicalplan"
	"github.com/kbergstrom/rdfkit/internal/physical"
)

func newTestPlanner(t *testing.T) (*Planner, *index.Index) {
	t.Helper()
	ix := index.New()
	ctx := physical.NewContext(ix, nil, physical.DefaultEngineOptions(), nil)
	return New(ix, ctx), ix
}

func scanPattern(s, p, o logicalplan.Term) logicalplan.TriplePattern {
	return logicalplan.TriplePattern{S: s, P: p, O: o}
}

func drain(op physical.Operator) []physical.Row {
	var out []physical.Row
	for op.Next() {
		out = append(out, op.Row().Clone())
	}
	_ = op.Close()
	return out
}

// S1: basic lookup via a single bound-predicate scan.
func TestPlanSingleScanLookup(t *testing.T) {
	pl, ix := newTestPlanner(t)
	ix.Insert(index.Triple{S: 1, P: 10, O: 100})
	ix.Insert(index.Triple{S: 2, P: 10, O: 200})
	ix.RefreshStatistics()

	plan := &logicalplan.Scan{Pattern: scanPattern(logicalplan.Var("s"), logicalplan.Const(10), logicalplan.Var("o"))}
	op, err := pl.Plan(plan)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	rows := drain(op)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %v", len(rows), rows)
	}
}

// S2: a 3-way star join over a shared subject variable.
func TestPlanDetectsAndBuildsStarJoin(t *testing.T) {
	pl, ix := newTestPlanner(t)
	ix.Insert(index.Triple{S: 1, P: 10, O: 30})  // age
	ix.Insert(index.Triple{S: 1, P: 20, O: 200}) // city
	ix.Insert(index.Triple{S: 1, P: 30, O: 300}) // job
	ix.Insert(index.Triple{S: 2, P: 10, O: 40})  // age only
	ix.RefreshStatistics()

	plan := &logicalplan.Join{
		Left: &logicalplan.Join{
			Left:  &logicalplan.Scan{Pattern: scanPattern(logicalplan.Var("s"), logicalplan.Const(10), logicalplan.Var("a"))},
			Right: &logicalplan.Scan{Pattern: scanPattern(logicalplan.Var("s"), logicalplan.Const(20), logicalplan.Var("c"))},
		},
		Right: &logicalplan.Scan{Pattern: scanPattern(logicalplan.Var("s"), logicalplan.Const(30), logicalplan.Var("j"))},
	}
	op, err := pl.Plan(plan)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	rows := drain(op)
	if len(rows) != 1 {
		t.Fatalf("expected exactly subject 1 to satisfy the star, got %d: %v", len(rows), rows)
	}
	if rows[0]["a"] != 30 || rows[0]["c"] != 200 || rows[0]["j"] != 300 {
		t.Fatalf("unexpected bindings: %v", rows[0])
	}
}

func TestPlanTwoPatternChainJoinsOnSharedVariable(t *testing.T) {
	pl, ix := newTestPlanner(t)
	ix.Insert(index.Triple{S: 1, P: 10, O: 2}) // ?a knows ?b
	ix.Insert(index.Triple{S: 2, P: 20, O: 3}) // ?b likes ?c
	ix.RefreshStatistics()

	plan := &logicalplan.Join{
		Left:  &logicalplan.Scan{Pattern: scanPattern(logicalplan.Var("a"), logicalplan.Const(10), logicalplan.Var("b"))},
		Right: &logicalplan.Scan{Pattern: scanPattern(logicalplan.Var("b"), logicalplan.Const(20), logicalplan.Var("c"))},
	}
	op, err := pl.Plan(plan)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	rows := drain(op)
	if len(rows) != 1 {
		t.Fatalf("expected 1 chained row, got %d: %v", len(rows), rows)
	}
	if rows[0]["a"] != 1 || rows[0]["b"] != 2 || rows[0]["c"] != 3 {
		t.Fatalf("unexpected bindings: %v", rows[0])
	}
}

func TestScanCardinalityFullyBoundIsOne(t *testing.T) {
	pl, ix := newTestPlanner(t)
	ix.Insert(index.Triple{S: 1, P: 2, O: 3})
	ix.RefreshStatistics()

	pattern := scanPattern(logicalplan.Const(1), logicalplan.Const(2), logicalplan.Const(3))
	if c := pl.scanCardinality(pattern); c != 1 {
		t.Fatalf("fully bound pattern: expected cardinality 1, got %d", c)
	}
}

func TestScanCardinalityUnboundUsesTotalTriples(t *testing.T) {
	pl, ix := newTestPlanner(t)
	ix.Insert(index.Triple{S: 1, P: 2, O: 3})
	ix.Insert(index.Triple{S: 4, P: 5, O: 6})
	ix.RefreshStatistics()

	pattern := scanPattern(logicalplan.Var("s"), logicalplan.Var("p"), logicalplan.Var("o"))
	if c := pl.scanCardinality(pattern); c != 2 {
		t.Fatalf("fully unbound pattern: expected cardinality equal to total triples (2), got %d", c)
	}
}

func TestConditionSelectivityEqualityVsRange(t *testing.T) {
	eq := &logicalplan.Comparison{Op: logicalplan.OpEqual}
	rng := &logicalplan.Comparison{Op: logicalplan.OpLessThan}
	if conditionSelectivity(eq) != equalitySelectivity {
		t.Fatalf("expected equality selectivity %v, got %v", equalitySelectivity, conditionSelectivity(eq))
	}
	if conditionSelectivity(rng) != rangeSelectivity {
		t.Fatalf("expected range selectivity %v, got %v", rangeSelectivity, conditionSelectivity(rng))
	}
}

func TestPlanMemoizesIdenticalSubplans(t *testing.T) {
	pl, ix := newTestPlanner(t)
	ix.Insert(index.Triple{S: 1, P: 10, O: 2})
	ix.RefreshStatistics()

	// A fully bound pattern has no variable to seed a star, so the join is
	// planned as a binary join whose two children go through the memo.
	scan := &logicalplan.Scan{Pattern: scanPattern(logicalplan.Const(1), logicalplan.Const(10), logicalplan.Const(2))}
	plan := &logicalplan.Join{Left: scan, Right: scan}

	if _, _, err := pl.EstimateCost(plan); err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if len(pl.memo) != 2 {
		t.Fatalf("expected the repeated scan sub-plan to memoize to one entry (scan + join), got %d entries", len(pl.memo))
	}
}

func TestPlanUnregisteredBufferErrors(t *testing.T) {
	pl, _ := newTestPlanner(t)
	plan := &logicalplan.Buffer{Name: "w1", Pattern: scanPattern(logicalplan.Var("s"), logicalplan.Var("p"), logicalplan.Var("o"))}
	if _, err := pl.Plan(plan); err == nil {
		t.Fatalf("expected an error for a buffer with no registered resolver")
	}
}

func TestPlanResolvedBufferUsesResolver(t *testing.T) {
	pl, _ := newTestPlanner(t)
	called := false
	pl.ResolveBuffer("w1", func() physical.Operator {
		called = true
		return physical.NewValues([]string{"s"}, []map[string]uint32{{"s": 1}})
	})
	plan := &logicalplan.Buffer{Name: "w1", Pattern: scanPattern(logicalplan.Var("s"), logicalplan.Var("p"), logicalplan.Var("o"))}
	op, err := pl.Plan(plan)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	rows := drain(op)
	if !called || len(rows) != 1 {
		t.Fatalf("expected the registered resolver to be used, called=%v rows=%d", called, len(rows))
	}
}
