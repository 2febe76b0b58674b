package physical

import (
	"github.com/kbergstrom/rdfkit/internal/index"
	"github.com/kbergstrom/rdfkit/internal/logicalplan"
)

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

func bindPattern(p logicalplan.TriplePattern, t index.Triple) Row {
	row := make(Row, 3)
	if p.S.IsVariable() {
		row[p.S.VariableName()] = t.S
	}
	if p.P.IsVariable() {
		row[p.P.VariableName()] = t.P
	}
	if p.O.IsVariable() {
		row[p.O.VariableName()] = t.O
	}
	return row
}

// IndexScan scans the permutation whose leading dimensions match the
// pattern's bound components. Used whenever at least one position is
// bound.
type IndexScan struct {
	pattern logicalplan.TriplePattern
	triples []index.Triple
	pos     int
}

// NewIndexScan builds an IndexScan for pattern against ctx's index.
func NewIndexScan(ctx *Context, pattern logicalplan.TriplePattern) *IndexScan {
	s, p, o := patternIDs(pattern)
	return &IndexScan{pattern: pattern, triples: ctx.Index.Query(s, p, o), pos: -1}
}

func (s *IndexScan) Next() bool {
	s.pos++
	return s.pos < len(s.triples)
}

func (s *IndexScan) Row() Row { return bindPattern(s.pattern, s.triples[s.pos]) }

func (s *IndexScan) Close() error { return nil }

// TableScan iterates the canonical triple set directly. Used only when all
// three pattern positions are variables; the planner must
// not choose it otherwise.
type TableScan struct {
	*IndexScan
}

// NewTableScan builds a TableScan. Panics if pattern has any bound
// component — that is a planner bug, not a runtime condition.
func NewTableScan(ctx *Context, pattern logicalplan.TriplePattern) *TableScan {
	if pattern.BoundCount() != 0 {
		panic("physical: TableScan requires a fully-variable pattern")
	}
	return &TableScan{IndexScan: NewIndexScan(ctx, pattern)}
}
