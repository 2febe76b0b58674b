package physical

import (
	"testing"

	"github.com/kbergstrom/rdfkit/internal/dictionary"
	"github.com/kbergstrom/rdfkit/internal/index"
	"github.com/kbergstrom/rdfkit/internal/logicalplan"
)

func values(vars []string, rows ...map[string]uint32) *Values {
	return NewValues(vars, rows)
}

func drain(t *testing.T, op Operator) []Row {
	t.Helper()
	var out []Row
	for op.Next() {
		out = append(out, op.Row().Clone())
	}
	if err := op.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return out
}

func TestNestedLoopJoinMatchesCompatibleRows(t *testing.T) {
	left := values([]string{"x"}, map[string]uint32{"x": 1}, map[string]uint32{"x": 2})
	right := values([]string{"x", "y"}, map[string]uint32{"x": 1, "y": 10}, map[string]uint32{"x": 3, "y": 20})

	op, err := NewNestedLoopJoin(left, right)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	rows := drain(t, op)
	if len(rows) != 1 {
		t.Fatalf("expected 1 matching row, got %d: %v", len(rows), rows)
	}
	if rows[0]["x"] != 1 || rows[0]["y"] != 10 {
		t.Fatalf("unexpected row: %v", rows[0])
	}
}

func TestNestedLoopJoinEmptyRightProducesNothing(t *testing.T) {
	left := values([]string{"x"}, map[string]uint32{"x": 1})
	right := values([]string{"x"})

	op, err := NewNestedLoopJoin(left, right)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if op.Next() {
		t.Fatalf("expected no rows when right side is empty")
	}
}

func TestHashJoinMatchesOnSharedVars(t *testing.T) {
	build := values([]string{"x", "y"},
		map[string]uint32{"x": 1, "y": 10},
		map[string]uint32{"x": 2, "y": 20},
	)
	probe := values([]string{"x", "z"},
		map[string]uint32{"x": 1, "z": 100},
		map[string]uint32{"x": 9, "z": 900},
	)

	op, err := NewHashJoin(build, probe, []string{"x"}, 2)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	rows := drain(t, op)
	if len(rows) != 1 {
		t.Fatalf("expected 1 joined row, got %d: %v", len(rows), rows)
	}
	if rows[0]["y"] != 10 || rows[0]["z"] != 100 {
		t.Fatalf("unexpected merged row: %v", rows[0])
	}
}

func TestOptimizedHashJoinPicksSmallerSideAsBuild(t *testing.T) {
	left := values([]string{"x", "y"}, map[string]uint32{"x": 1, "y": 10})
	right := values([]string{"x", "z"},
		map[string]uint32{"x": 1, "z": 100},
		map[string]uint32{"x": 1, "z": 200},
	)

	op, err := NewOptimizedHashJoin(left, right, 1, 2, []string{"x"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	rows := drain(t, op)
	if len(rows) != 2 {
		t.Fatalf("expected 2 joined rows, got %d: %v", len(rows), rows)
	}
}

func TestMergeJoinCrossesEqualKeyRuns(t *testing.T) {
	left := values([]string{"x", "y"},
		map[string]uint32{"x": 1, "y": 10},
		map[string]uint32{"x": 1, "y": 11},
		map[string]uint32{"x": 2, "y": 20},
	)
	right := values([]string{"x", "z"},
		map[string]uint32{"x": 1, "z": 100},
		map[string]uint32{"x": 1, "z": 101},
	)

	op, err := NewMergeJoin(left, right, []string{"x"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	rows := drain(t, op)
	if len(rows) != 4 {
		t.Fatalf("expected a 2x2 cross of the equal-key runs, got %d: %v", len(rows), rows)
	}
}

func TestMergeJoinNoMatchProducesNothing(t *testing.T) {
	left := values([]string{"x"}, map[string]uint32{"x": 1})
	right := values([]string{"x"}, map[string]uint32{"x": 2})

	op, err := NewMergeJoin(left, right, []string{"x"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if op.Next() {
		t.Fatalf("expected no rows for disjoint keys")
	}
}

func newTestContext(t *testing.T) (*Context, *dictionary.Dictionary, *index.Index) {
	t.Helper()
	dict := dictionary.New()
	ix := index.New()
	ctx := NewContext(ix, dict, DefaultEngineOptions(), nil)
	return ctx, dict, ix
}

func TestBindJoinSubstitutesLeftBindingsIntoRightScan(t *testing.T) {
	ctx, _, ix := newTestContext(t)
	// s1 age 30, s1 city NYC ; s2 age 40 (no matching city)
	ix.Insert(index.Triple{S: 1, P: 10, O: 30})
	ix.Insert(index.Triple{S: 1, P: 20, O: 200})
	ix.Insert(index.Triple{S: 2, P: 10, O: 40})

	left := values([]string{"s", "a"},
		map[string]uint32{"s": 1, "a": 30},
		map[string]uint32{"s": 2, "a": 40},
	)
	rightPattern := logicalplan.TriplePattern{S: logicalplan.Var("s"), P: logicalplan.Const(20), O: logicalplan.Var("c")}

	op := NewBindJoin(ctx, left, rightPattern)
	rows := drain(t, op)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row (only s1 has a city), got %d: %v", len(rows), rows)
	}
	if rows[0]["c"] != 200 {
		t.Fatalf("unexpected city binding: %v", rows[0])
	}
}

func TestBindJoinEnforcesPerRowCap(t *testing.T) {
	ctx, _, ix := newTestContext(t)
	ctx.Options.BindJoinPerRowCap = 2
	for o := uint32(0); o < 5; o++ {
		ix.Insert(index.Triple{S: 1, P: 10, O: o + 100})
	}
	left := values([]string{"s"}, map[string]uint32{"s": 1})
	rightPattern := logicalplan.TriplePattern{S: logicalplan.Var("s"), P: logicalplan.Const(10), O: logicalplan.Var("o")}

	op := NewBindJoin(ctx, left, rightPattern)
	rows := drain(t, op)
	if len(rows) != 2 {
		t.Fatalf("expected per-row cap to limit matches to 2, got %d: %v", len(rows), rows)
	}
}

func TestBindJoinEnforcesGlobalResultCap(t *testing.T) {
	ctx, _, ix := newTestContext(t)
	ctx.Options.BindJoinResultCap = 1
	ix.Insert(index.Triple{S: 1, P: 10, O: 100})
	ix.Insert(index.Triple{S: 2, P: 10, O: 200})

	left := values([]string{"s"}, map[string]uint32{"s": 1}, map[string]uint32{"s": 2})
	rightPattern := logicalplan.TriplePattern{S: logicalplan.Var("s"), P: logicalplan.Const(10), O: logicalplan.Var("o")}

	op := NewBindJoin(ctx, left, rightPattern)
	rows := drain(t, op)
	if len(rows) != 1 {
		t.Fatalf("expected global result cap to stop after 1 row, got %d: %v", len(rows), rows)
	}
}

func TestStarJoinFoldsBindJoinsOverSeed(t *testing.T) {
	ctx, _, ix := newTestContext(t)
	// subject 1 has age, city, job; subject 2 only has age.
	ix.Insert(index.Triple{S: 1, P: 10, O: 30})
	ix.Insert(index.Triple{S: 1, P: 20, O: 200})
	ix.Insert(index.Triple{S: 1, P: 30, O: 300})
	ix.Insert(index.Triple{S: 2, P: 10, O: 40})

	seed := logicalplan.TriplePattern{S: logicalplan.Var("s"), P: logicalplan.Const(10), O: logicalplan.Var("a")}
	rest := []logicalplan.TriplePattern{
		{S: logicalplan.Var("s"), P: logicalplan.Const(20), O: logicalplan.Var("c")},
		{S: logicalplan.Var("s"), P: logicalplan.Const(30), O: logicalplan.Var("j")},
	}

	op := NewStarJoin(ctx, "s", seed, rest)
	rows := drain(t, op)
	if len(rows) != 1 {
		t.Fatalf("expected exactly subject 1 to satisfy the full star, got %d: %v", len(rows), rows)
	}
	if rows[0]["a"] != 30 || rows[0]["c"] != 200 || rows[0]["j"] != 300 {
		t.Fatalf("unexpected star-join bindings: %v", rows[0])
	}
}
