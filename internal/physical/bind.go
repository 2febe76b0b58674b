package physical

import (
	"github.com/kbergstrom/rdfkit/internal/logicalplan"
	"github.com/kbergstrom/rdfkit/pkg/rdf"
)

func stringTerm(s string) *rdf.Literal { return rdf.NewLiteral(s) }

// Bind evaluates a named function per row and interns the string result
// into the dictionary, binding it to Output. The only operator permitted to
// extend the dictionary.
type Bind struct {
	ctx      *Context
	child    Operator
	function string
	args     []logicalplan.Expression
	output   string
	row      Row
}

func NewBind(ctx *Context, child Operator, function string, args []logicalplan.Expression, output string) *Bind {
	return &Bind{ctx: ctx, child: child, function: function, args: args, output: output}
}

func (b *Bind) Next() bool {
	if !b.child.Next() {
		return false
	}
	row := b.child.Row()
	call := &logicalplan.FunctionCall{Name: b.function, Args: b.args}
	v, _ := evalFunctionCall(b.ctx, row, call)
	str := toString(b.ctx, v)

	out := row.Clone()
	id, err := b.ctx.Dict.Encode(stringTerm(str))
	if err == nil {
		out[b.output] = id
	}
	b.row = out
	return true
}

func (b *Bind) Row() Row     { return b.row }
func (b *Bind) Close() error { return b.child.Close() }

// Values emits literal rows over a fixed set of variables.
type Values struct {
	vars []string
	rows []map[string]uint32
	pos  int
}

func NewValues(vars []string, rows []map[string]uint32) *Values {
	return &Values{vars: vars, rows: rows, pos: -1}
}

func (v *Values) Next() bool {
	v.pos++
	return v.pos < len(v.rows)
}

func (v *Values) Row() Row {
	row := make(Row, len(v.vars))
	for k, id := range v.rows[v.pos] {
		row[k] = id
	}
	return row
}

func (v *Values) Close() error { return nil }

// Subquery executes Inner and projects Vars, acting as a scope boundary:
// variables Inner binds but does not project are invisible to the parent
// plan.
type Subquery struct {
	inner *Projection
}

func NewSubquery(inner Operator, vars []string) *Subquery {
	return &Subquery{inner: NewProjection(inner, vars)}
}

func (s *Subquery) Next() bool   { return s.inner.Next() }
func (s *Subquery) Row() Row     { return s.inner.Row() }
func (s *Subquery) Close() error { return s.inner.Close() }
