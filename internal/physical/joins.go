package physical

import (
	"sort"

	"github.com/kbergstrom/rdfkit/internal/logicalplan"
)

// NestedLoopJoin combines every left row with every right row that is
// variable-compatible. Only ever a planner candidate when both sides'
// cardinalities are below EngineOptions.NestedLoopMaxCardinality; the operator itself does not enforce that — the planner does.
//
// Grounded on internal/sparql/executor/executor.go's nestedLoopJoinIterator,
// adapted to materialize the (small, by contract) right side once instead
// of rebuilding a fresh right iterator per left row.
type NestedLoopJoin struct {
	left    Operator
	right   []Row
	leftRow Row
	ri      int
	row     Row
}

func NewNestedLoopJoin(left, right Operator) (*NestedLoopJoin, error) {
	var rows []Row
	for right.Next() {
		rows = append(rows, right.Row())
	}
	if err := right.Close(); err != nil {
		return nil, err
	}
	return &NestedLoopJoin{left: left, right: rows, ri: len(rows)}, nil
}

func (j *NestedLoopJoin) Next() bool {
	if len(j.right) == 0 {
		return false
	}
	for {
		j.ri++
		if j.ri >= len(j.right) {
			if !j.left.Next() {
				return false
			}
			j.leftRow = j.left.Row()
			j.ri = 0
		}
		rightRow := j.right[j.ri]
		if j.leftRow.Compatible(rightRow) {
			j.row = j.leftRow.Merge(rightRow)
			return true
		}
	}
}

func (j *NestedLoopJoin) Row() Row     { return j.row }
func (j *NestedLoopJoin) Close() error { return j.left.Close() }

// rowKeyForVars builds a deterministic key from row's values at vars, in
// the order vars is given (vars should already be in a stable order).
func rowKeyForVars(row Row, vars []string) (string, bool) {
	out := make([]byte, 0, 8*len(vars))
	for _, v := range vars {
		id, ok := row[v]
		if !ok {
			return "", false
		}
		out = appendUint32(out, id)
		out = append(out, '|')
	}
	return string(out), true
}

// HashJoin builds a hash table on build's rows keyed by joinVars, then
// probes with probe's rows.
type HashJoin struct {
	probe    Operator
	joinVars []string
	buckets  map[string][]Row
	current  []Row
	curIdx   int
	probeRow Row
	row      Row
}

// NewHashJoin builds the hash table from build and returns a join operator
// over probe. sizeHint, if > 0, pre-sizes the bucket map, as an optimized
// hash join does when the build side's cardinality is known in advance.
func NewHashJoin(build, probe Operator, joinVars []string, sizeHint int) (*HashJoin, error) {
	buckets := make(map[string][]Row, sizeHint)
	for build.Next() {
		row := build.Row()
		key, ok := rowKeyForVars(row, joinVars)
		if !ok {
			continue
		}
		buckets[key] = append(buckets[key], row)
	}
	if err := build.Close(); err != nil {
		return nil, err
	}
	return &HashJoin{probe: probe, joinVars: joinVars, buckets: buckets, curIdx: -1}, nil
}

func (j *HashJoin) Next() bool {
	for {
		j.curIdx++
		if j.curIdx >= len(j.current) {
			if !j.probe.Next() {
				return false
			}
			j.probeRow = j.probe.Row()
			key, ok := rowKeyForVars(j.probeRow, j.joinVars)
			if !ok {
				j.current = nil
				j.curIdx = -1
				continue
			}
			j.current = j.buckets[key]
			j.curIdx = 0
			if len(j.current) == 0 {
				j.curIdx = -1
				continue
			}
		}
		buildRow := j.current[j.curIdx]
		if j.probeRow.Compatible(buildRow) {
			j.row = j.probeRow.Merge(buildRow)
			return true
		}
	}
}

func (j *HashJoin) Row() Row     { return j.row }
func (j *HashJoin) Close() error { return j.probe.Close() }

// NewOptimizedHashJoin picks the build side by cardinality (build is
// whichever of left/right has the smaller leftCard/rightCard estimate) and
// pre-sizes the bucket map accordingly. Same contract as HashJoin.
func NewOptimizedHashJoin(left, right Operator, leftCard, rightCard int64, joinVars []string) (*HashJoin, error) {
	if leftCard <= rightCard {
		return NewHashJoin(left, right, joinVars, int(leftCard))
	}
	return NewHashJoin(right, left, joinVars, int(rightCard))
}

// MergeJoin sorts both sides by their shared-variable key and performs a
// linear merge.
type MergeJoin struct {
	left, right []Row
	rowsOut     []Row
	outIdx      int
	joinVars    []string
}

func NewMergeJoin(left, right Operator, joinVars []string) (*MergeJoin, error) {
	var l, r []Row
	for left.Next() {
		l = append(l, left.Row())
	}
	if err := left.Close(); err != nil {
		return nil, err
	}
	for right.Next() {
		r = append(r, right.Row())
	}
	if err := right.Close(); err != nil {
		return nil, err
	}
	key := func(rows []Row, i int) (string, bool) { return rowKeyForVars(rows[i], joinVars) }
	sort.SliceStable(l, func(i, j int) bool { ki, _ := key(l, i); kj, _ := key(l, j); return ki < kj })
	sort.SliceStable(r, func(i, j int) bool { ki, _ := key(r, i); kj, _ := key(r, j); return ki < kj })

	mj := &MergeJoin{left: l, right: r, joinVars: joinVars}
	mj.merge()
	return mj, nil
}

// merge runs the full sort-merge in one pass and buffers the result; the
// planner builds a merge join only as a fallback when building the hash
// join fails, and this trades a little memory for a much simpler,
// clearly-correct implementation than a fully-lazy merge cursor.
func (mj *MergeJoin) merge() {
	li, ri := 0, 0
	for li < len(mj.left) && ri < len(mj.right) {
		lk, lok := rowKeyForVars(mj.left[li], mj.joinVars)
		rk, rok := rowKeyForVars(mj.right[ri], mj.joinVars)
		if !lok {
			li++
			continue
		}
		if !rok {
			ri++
			continue
		}
		switch {
		case lk < rk:
			li++
		case lk > rk:
			ri++
		default:
			// Equal-key runs: cross the two runs.
			lEnd := li
			for lEnd < len(mj.left) {
				k, ok := rowKeyForVars(mj.left[lEnd], mj.joinVars)
				if !ok || k != lk {
					break
				}
				lEnd++
			}
			rEnd := ri
			for rEnd < len(mj.right) {
				k, ok := rowKeyForVars(mj.right[rEnd], mj.joinVars)
				if !ok || k != rk {
					break
				}
				rEnd++
			}
			for a := li; a < lEnd; a++ {
				for b := ri; b < rEnd; b++ {
					if mj.left[a].Compatible(mj.right[b]) {
						mj.rowsOut = append(mj.rowsOut, mj.left[a].Merge(mj.right[b]))
					}
				}
			}
			li, ri = lEnd, rEnd
		}
	}
	mj.outIdx = -1
}

func (mj *MergeJoin) Next() bool {
	mj.outIdx++
	return mj.outIdx < len(mj.rowsOut)
}

func (mj *MergeJoin) Row() Row     { return mj.rowsOut[mj.outIdx] }
func (mj *MergeJoin) Close() error { return nil }

// BindJoin substitutes each left row's bound variables into rightPattern
// and index-scans the result, merging matches into the left row. Used when
// the right side is a scan. Enforces the global result cap
// and per-row match cap.
type BindJoin struct {
	ctx          *Context
	left         Operator
	rightPattern logicalplan.TriplePattern
	current      []Row
	leftRow      Row
	idx          int
	totalEmitted int
	row          Row
}

func NewBindJoin(ctx *Context, left Operator, rightPattern logicalplan.TriplePattern) *BindJoin {
	return &BindJoin{ctx: ctx, left: left, rightPattern: rightPattern, idx: -1}
}

// substitute replaces every variable position of pattern that left binds
// with a constant, leaving the rest as variables.
func substitute(pattern logicalplan.TriplePattern, left Row) logicalplan.TriplePattern {
	sub := func(t logicalplan.Term) logicalplan.Term {
		if t.IsVariable() {
			if id, ok := left[t.VariableName()]; ok {
				return logicalplan.Const(id)
			}
		}
		return t
	}
	return logicalplan.TriplePattern{S: sub(pattern.S), P: sub(pattern.P), O: sub(pattern.O)}
}

func (j *BindJoin) Next() bool {
	for {
		j.idx++
		if j.idx >= len(j.current) {
			if j.totalEmitted >= j.ctx.Options.BindJoinResultCap {
				return false
			}
			if !j.left.Next() {
				return false
			}
			j.leftRow = j.left.Row()
			pattern := substitute(j.rightPattern, j.leftRow)
			scan := NewIndexScan(j.ctx, pattern)
			var matches []Row
			for scan.Next() && len(matches) < j.ctx.Options.BindJoinPerRowCap {
				matches = append(matches, scan.Row())
			}
			_ = scan.Close()
			j.current = matches
			j.idx = 0
			if len(j.current) == 0 {
				j.idx = -1
				continue
			}
		}
		merged := j.leftRow.Merge(j.current[j.idx])
		j.row = merged
		j.totalEmitted++
		return true
	}
}

func (j *BindJoin) Row() Row     { return j.row }
func (j *BindJoin) Close() error { return j.left.Close() }

// StarJoin evaluates seedPattern (the most selective of the star's
// patterns, chosen by the planner) and bind-joins every remaining pattern
// against joinVar, avoiding the intermediate materialization a left-deep
// join tree would produce.
func NewStarJoin(ctx *Context, joinVar string, seedPattern logicalplan.TriplePattern, restPatterns []logicalplan.TriplePattern) Operator {
	var op Operator = NewIndexScan(ctx, seedPattern)
	for _, p := range restPatterns {
		op = NewBindJoin(ctx, op, p)
	}
	return op
}
