package physical

import "github.com/kbergstrom/rdfkit/internal/logicalplan"

// Filter emits only child rows satisfying Condition.
type Filter struct {
	ctx       *Context
	child     Operator
	condition logicalplan.Expression
	row       Row
}

func NewFilter(ctx *Context, child Operator, condition logicalplan.Expression) *Filter {
	return &Filter{ctx: ctx, child: child, condition: condition}
}

func (f *Filter) Next() bool {
	for f.child.Next() {
		row := f.child.Row()
		if evalCondition(f.ctx, row, f.condition) {
			f.row = row
			return true
		}
	}
	return false
}

func (f *Filter) Row() Row       { return f.row }
func (f *Filter) Close() error   { return f.child.Close() }
