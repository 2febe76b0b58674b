// Package planner implements a Volcano-style memoized cost-based search
// from a logical plan (internal/logicalplan) to a physical plan
// (internal/physical). Grounded on
// internal/sparql/optimizer/optimizer.go's QueryPlan tree-of-plan-nodes
// shape, generalized from its fixed SELECT/ASK/CONSTRUCT dispatch to a
// general recursive cost search over an arbitrary logical tree, and
// extended with a cost model, memoization, and star-join detection that
// the original optimizer never implemented (it only ever produced one
// fixed-shape nested-loop plan).
package planner

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/zeebo/xxh3"

	"github.com/kbergstrom/rdfkit/internal/index"
	"github.com/kbergstrom/rdfkit/internal/logicalplan"
	"github.com/kbergstrom/rdfkit/internal/physical"
)

// Selectivity constants for the cost model.
const (
	equalitySelectivity       = 0.1
	rangeSelectivity          = 0.3
	defaultSelectivity        = 1.0
	defaultJoinSelectivity    = 0.1
	nestedLoopCardinalityCeil = 1000
)

// Planner produces physical plans from logical plans, memoizing candidate
// choices by a structural key of the sub-plan.
type Planner struct {
	ix      *index.Index
	pctx    *physical.Context
	memo    map[string]*planned
	streams map[string]func() physical.Operator
}

// planned is a memoized candidate: a cost and a thunk that builds the
// physical operator when the plan is actually executed. Building lazily
// (rather than eagerly at plan time) avoids holding live operators for
// sub-plans that lose the cost comparison.
type planned struct {
	cost  float64
	card  int64
	build func() physical.Operator
}

// New creates a Planner bound to ix for cardinality estimation and pctx
// for constructing physical operators.
func New(ix *index.Index, pctx *physical.Context) *Planner {
	return &Planner{ix: ix, pctx: pctx, memo: make(map[string]*planned)}
}

// ResolveBuffer lets a caller inject a named Buffer source resolver before
// planning a sub-plan that references Buffer nodes; planning a Buffer whose
// name has no resolver fails.
func (p *Planner) ResolveBuffer(name string, resolve func() physical.Operator) {
	if p.streams == nil {
		p.streams = make(map[string]func() physical.Operator)
	}
	p.streams[name] = resolve
}

// Plan converts a logical plan into an executable physical operator,
// picking the minimum-cost candidate at every node.
func (p *Planner) Plan(node logicalplan.Node) (physical.Operator, error) {
	pl, err := p.plan(node)
	if err != nil {
		return nil, err
	}
	return pl.build(), nil
}

// EstimateCost exposes the cost the planner would assign to node, useful
// for ordering star-join candidates and tests.
func (p *Planner) EstimateCost(node logicalplan.Node) (float64, int64, error) {
	pl, err := p.plan(node)
	if err != nil {
		return 0, 0, err
	}
	return pl.cost, pl.card, nil
}

func (p *Planner) plan(node logicalplan.Node) (*planned, error) {
	key := structuralKey(node)
	if cached, ok := p.memo[key]; ok {
		return cached, nil
	}
	pl, err := p.planNode(node)
	if err != nil {
		return nil, err
	}
	p.memo[key] = pl
	return pl, nil
}

func (p *Planner) planNode(node logicalplan.Node) (*planned, error) {
	switch n := node.(type) {
	case *logicalplan.Scan:
		return p.planScan(n.Pattern), nil
	case *logicalplan.Buffer:
		return p.planBuffer(n)
	case *logicalplan.Selection:
		return p.planSelection(n)
	case *logicalplan.Projection:
		return p.planProjection(n)
	case *logicalplan.Join:
		return p.planJoin(n)
	case *logicalplan.Bind:
		return p.planBind(n)
	case *logicalplan.Values:
		return p.planValues(n), nil
	case *logicalplan.Subquery:
		return p.planSubquery(n)
	default:
		return nil, fmt.Errorf("planner: unsupported logical node %T", node)
	}
}

// scanCardinality estimates a scan's cardinality by bound-term count,
// refined by predicate statistics when the predicate is bound.
func (p *Planner) scanCardinality(pattern logicalplan.TriplePattern) int64 {
	bound := pattern.BoundCount()
	stats := p.ix.Statistics()
	switch bound {
	case 3:
		return 1
	case 2:
		if !pattern.P.IsVariable() {
			if c, ok := stats.PredicateCount[pattern.P.ConstantID()]; ok && c > 0 {
				return min64(c, 100)
			}
		}
		return 100
	case 1:
		if !pattern.P.IsVariable() {
			if c, ok := stats.PredicateCount[pattern.P.ConstantID()]; ok {
				return c
			}
		}
		return 10000
	default:
		return stats.TotalTriples
	}
}

func (p *Planner) planScan(pattern logicalplan.TriplePattern) *planned {
	card := p.scanCardinality(pattern)
	// Cost discounted by bound components: a fully bound pattern costs the
	// least because the spo permutation is a direct existence check.
	cost := float64(card) / float64(1+pattern.BoundCount())
	return &planned{
		cost: cost,
		card: card,
		build: func() physical.Operator {
			if pattern.BoundCount() == 0 {
				return physical.NewTableScan(p.pctx, pattern)
			}
			return physical.NewIndexScan(p.pctx, pattern)
		},
	}
}

func (p *Planner) planBuffer(n *logicalplan.Buffer) (*planned, error) {
	resolve, ok := p.streams[n.Name]
	if !ok {
		return nil, fmt.Errorf("planner: no source registered for buffer %q", n.Name)
	}
	card := p.scanCardinality(n.Pattern)
	return &planned{cost: float64(card), card: card, build: resolve}, nil
}

func (p *Planner) planSelection(n *logicalplan.Selection) (*planned, error) {
	child, err := p.plan(n.Child)
	if err != nil {
		return nil, err
	}
	sel := conditionSelectivity(n.Condition)
	cost := child.cost * sel
	card := int64(float64(child.card) * sel)
	return &planned{
		cost: cost,
		card: card,
		build: func() physical.Operator {
			return physical.NewFilter(p.pctx, child.build(), n.Condition)
		},
	}, nil
}

func conditionSelectivity(expr logicalplan.Expression) float64 {
	switch e := expr.(type) {
	case *logicalplan.Comparison:
		switch e.Op {
		case logicalplan.OpEqual:
			return equalitySelectivity
		case logicalplan.OpLessThan, logicalplan.OpLessThanOrEqual,
			logicalplan.OpGreaterThan, logicalplan.OpGreaterThanOrEqual:
			return rangeSelectivity
		default:
			return defaultSelectivity
		}
	case *logicalplan.Logical:
		switch e.Op {
		case logicalplan.OpAnd:
			return conditionSelectivity(e.Left) * conditionSelectivity(e.Right)
		case logicalplan.OpOr:
			a, b := conditionSelectivity(e.Left), conditionSelectivity(e.Right)
			return a + b - a*b
		default:
			return defaultSelectivity
		}
	default:
		return defaultSelectivity
	}
}

func (p *Planner) planProjection(n *logicalplan.Projection) (*planned, error) {
	child, err := p.plan(n.Child)
	if err != nil {
		return nil, err
	}
	return &planned{
		cost: child.cost,
		card: child.card,
		build: func() physical.Operator {
			return physical.NewProjection(child.build(), n.Vars)
		},
	}, nil
}

func (p *Planner) planBind(n *logicalplan.Bind) (*planned, error) {
	child, err := p.plan(n.Child)
	if err != nil {
		return nil, err
	}
	return &planned{
		cost: child.cost + float64(child.card),
		card: child.card,
		build: func() physical.Operator {
			return physical.NewBind(p.pctx, child.build(), n.Function, n.Args, n.Output)
		},
	}, nil
}

func (p *Planner) planValues(n *logicalplan.Values) *planned {
	card := int64(len(n.Rows))
	return &planned{
		cost: float64(card),
		card: card,
		build: func() physical.Operator {
			rows := make([]map[string]uint32, len(n.Rows))
			copy(rows, n.Rows)
			return physical.NewValues(n.Vars, rows)
		},
	}
}

func (p *Planner) planSubquery(n *logicalplan.Subquery) (*planned, error) {
	inner, err := p.plan(n.Inner)
	if err != nil {
		return nil, err
	}
	return &planned{
		cost: inner.cost,
		card: inner.card,
		build: func() physical.Operator {
			return physical.NewSubquery(inner.build(), n.Vars)
		},
	}, nil
}

// planJoin detects a star shape rooted at n; otherwise falls back to a binary join between the two
// planned children, picking the cheapest algorithm for their estimated
// cardinalities.
func (p *Planner) planJoin(n *logicalplan.Join) (*planned, error) {
	if patterns, joinVar, ok := detectStar(n); ok {
		return p.planStarJoin(joinVar, patterns)
	}
	left, err := p.plan(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := p.plan(n.Right)
	if err != nil {
		return nil, err
	}
	// Cheaper side becomes the outer (left) input.
	rightNode := n.Right
	if right.cost < left.cost {
		left, right = right, left
		rightNode = n.Left
	}
	joinVars := sharedVariables(n.Left, n.Right)
	cost := left.cost + right.cost + float64(left.card)*float64(right.card)*defaultJoinSelectivity
	card := int64(float64(left.card) * float64(right.card) * defaultJoinSelectivity)
	if card < 1 {
		card = 1
	}
	leftCopy, rightCopy := left, right
	return &planned{
		cost: cost,
		card: card,
		build: func() physical.Operator {
			return p.buildBinaryJoin(leftCopy, rightCopy, joinVars, rightNode)
		},
	}, nil
}

func (p *Planner) buildBinaryJoin(left, right *planned, joinVars []string, rightNode logicalplan.Node) physical.Operator {
	if _, pattern, ok := asScan(rightNode); ok && len(joinVars) > 0 {
		return physical.NewBindJoin(p.pctx, left.build(), pattern)
	}
	nlCeil := p.pctx.Options.NestedLoopMaxCardinality
	if left.card < nlCeil && right.card < nlCeil {
		nl, err := physical.NewNestedLoopJoin(left.build(), right.build())
		if err == nil {
			return nl
		}
	}
	hj, err := physical.NewOptimizedHashJoin(left.build(), right.build(), left.card, right.card, joinVars)
	if err == nil {
		return hj
	}
	mj, _ := physical.NewMergeJoin(left.build(), right.build(), joinVars)
	return mj
}

func asScan(node logicalplan.Node) (*logicalplan.Scan, logicalplan.TriplePattern, bool) {
	if s, ok := node.(*logicalplan.Scan); ok {
		return s, s.Pattern, true
	}
	return nil, logicalplan.TriplePattern{}, false
}

// planStarJoin builds a star-join physical operator: the most selective
// pattern is scanned first, the rest bind-joined on the shared variable.
func (p *Planner) planStarJoin(joinVar string, patterns []logicalplan.TriplePattern) (*planned, error) {
	type scored struct {
		pattern logicalplan.TriplePattern
		card    int64
	}
	scoredPatterns := make([]scored, len(patterns))
	var totalCost float64
	for i, pat := range patterns {
		c := p.scanCardinality(pat)
		scoredPatterns[i] = scored{pattern: pat, card: c}
		totalCost += float64(c)
	}
	sort.SliceStable(scoredPatterns, func(i, j int) bool { return scoredPatterns[i].card < scoredPatterns[j].card })
	seed := scoredPatterns[0].pattern
	rest := make([]logicalplan.TriplePattern, 0, len(scoredPatterns)-1)
	for _, s := range scoredPatterns[1:] {
		rest = append(rest, s.pattern)
	}
	card := scoredPatterns[0].card
	return &planned{
		cost: totalCost,
		card: card,
		build: func() physical.Operator {
			return physical.NewStarJoin(p.pctx, joinVar, seed, rest)
		},
	}, nil
}

// detectStar walks a (possibly nested) left-deep Join tree rooted at n,
// collecting its leaf Scan patterns, and reports a star on the most
// frequent variable when it occurs in ≥ 2 patterns and every leaf pattern
// contains it. Only pure Scan leaves participate; any non-Scan child, or a
// leaf pattern without the star variable, backs out of star detection for
// the whole node, falling back to a binary join.
func detectStar(n *logicalplan.Join) ([]logicalplan.TriplePattern, string, bool) {
	var patterns []logicalplan.TriplePattern
	if !collectScanPatterns(n, &patterns) {
		return nil, "", false
	}
	if len(patterns) < 2 {
		return nil, "", false
	}
	counts := make(map[string]int)
	for _, pat := range patterns {
		for _, v := range pat.Variables() {
			counts[v]++
		}
	}
	bestVar, bestCount := "", 0
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < bestVar) {
			bestVar, bestCount = v, c
		}
	}
	if bestCount < 2 {
		return nil, "", false
	}
	var starred []logicalplan.TriplePattern
	for _, pat := range patterns {
		for _, v := range pat.Variables() {
			if v == bestVar {
				starred = append(starred, pat)
				break
			}
		}
	}
	if len(starred) != len(patterns) {
		return nil, "", false
	}
	return starred, bestVar, true
}

func collectScanPatterns(node logicalplan.Node, out *[]logicalplan.TriplePattern) bool {
	switch n := node.(type) {
	case *logicalplan.Scan:
		*out = append(*out, n.Pattern)
		return true
	case *logicalplan.Join:
		return collectScanPatterns(n.Left, out) && collectScanPatterns(n.Right, out)
	default:
		return false
	}
}

func sharedVariables(left, right logicalplan.Node) []string {
	lv := variablesOf(left)
	rvSet := make(map[string]bool)
	for _, v := range variablesOf(right) {
		rvSet[v] = true
	}
	var shared []string
	for _, v := range lv {
		if rvSet[v] {
			shared = append(shared, v)
		}
	}
	sort.Strings(shared)
	return shared
}

// variablesOf returns the distinct variables a logical sub-plan can bind,
// used to compute join variables and for memoization/cost purposes.
func variablesOf(node logicalplan.Node) []string {
	seen := make(map[string]bool)
	var out []string
	var walk func(n logicalplan.Node)
	walk = func(n logicalplan.Node) {
		switch x := n.(type) {
		case *logicalplan.Scan:
			for _, v := range x.Pattern.Variables() {
				if !seen[v] {
					seen[v] = true
					out = append(out, v)
				}
			}
		case *logicalplan.Buffer:
			for _, v := range x.Pattern.Variables() {
				if !seen[v] {
					seen[v] = true
					out = append(out, v)
				}
			}
		case *logicalplan.Selection:
			walk(x.Child)
		case *logicalplan.Projection:
			walk(x.Child)
		case *logicalplan.Join:
			walk(x.Left)
			walk(x.Right)
		case *logicalplan.Bind:
			walk(x.Child)
			if !seen[x.Output] {
				seen[x.Output] = true
				out = append(out, x.Output)
			}
		case *logicalplan.Values:
			for _, v := range x.Vars {
				if !seen[v] {
					seen[v] = true
					out = append(out, v)
				}
			}
		case *logicalplan.Subquery:
			for _, v := range x.Vars {
				if !seen[v] {
					seen[v] = true
					out = append(out, v)
				}
			}
		}
	}
	walk(node)
	return out
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// structuralKey serializes node into a string describing its shape (filter
// conditions and bind arguments by identity), used as the memoization key.
// Hashed with xxh3 to keep memo map keys short — the same reuse of xxh3 the
// dictionary uses for shard selection; the 64-bit hash alone is the map key,
// so a collision between two different sub-plans is not detected.
func structuralKey(node logicalplan.Node) string {
	var buf []byte
	buf = appendNodeKey(buf, node)
	h := xxh3.Hash(buf)
	return strconv.FormatUint(h, 36)
}

func appendNodeKey(buf []byte, node logicalplan.Node) []byte {
	switch n := node.(type) {
	case *logicalplan.Scan:
		buf = append(buf, "scan("...)
		buf = appendPatternKey(buf, n.Pattern)
		buf = append(buf, ')')
	case *logicalplan.Buffer:
		buf = append(buf, "buffer("...)
		buf = append(buf, n.Name...)
		buf = append(buf, ',')
		buf = appendPatternKey(buf, n.Pattern)
		buf = append(buf, ')')
	case *logicalplan.Selection:
		buf = append(buf, "sel("...)
		buf = appendNodeKey(buf, n.Child)
		buf = append(buf, fmt.Sprintf(",%p", n.Condition)...)
		buf = append(buf, ')')
	case *logicalplan.Projection:
		buf = append(buf, "proj("...)
		buf = appendNodeKey(buf, n.Child)
		for _, v := range n.Vars {
			buf = append(buf, ',')
			buf = append(buf, v...)
		}
		buf = append(buf, ')')
	case *logicalplan.Join:
		buf = append(buf, "join("...)
		buf = appendNodeKey(buf, n.Left)
		buf = append(buf, ';')
		buf = appendNodeKey(buf, n.Right)
		buf = append(buf, ')')
	case *logicalplan.Bind:
		buf = append(buf, "bind("...)
		buf = appendNodeKey(buf, n.Child)
		buf = append(buf, ',')
		buf = append(buf, n.Function...)
		buf = append(buf, ',')
		buf = append(buf, n.Output...)
		buf = append(buf, fmt.Sprintf(",%p", n.Args)...)
		buf = append(buf, ')')
	case *logicalplan.Values:
		buf = append(buf, "values("...)
		buf = append(buf, fmt.Sprint(n.Vars, n.Rows)...)
		buf = append(buf, ')')
	case *logicalplan.Subquery:
		buf = append(buf, "subq("...)
		buf = appendNodeKey(buf, n.Inner)
		for _, v := range n.Vars {
			buf = append(buf, ',')
			buf = append(buf, v...)
		}
		buf = append(buf, ')')
	default:
		buf = append(buf, fmt.Sprintf("unknown(%T)", node)...)
	}
	return buf
}

func appendPatternKey(buf []byte, p logicalplan.TriplePattern) []byte {
	appendTerm := func(b []byte, t logicalplan.Term) []byte {
		if t.IsVariable() {
			return append(append(b, '?'), t.VariableName()...)
		}
		return strconv.AppendUint(b, uint64(t.ConstantID()), 10)
	}
	buf = appendTerm(buf, p.S)
	buf = append(buf, ',')
	buf = appendTerm(buf, p.P)
	buf = append(buf, ',')
	buf = appendTerm(buf, p.O)
	return buf
}
