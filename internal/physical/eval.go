package physical

import (
	"strconv"

	"github.com/kbergstrom/rdfkit/internal/logicalplan"
	"github.com/kbergstrom/rdfkit/pkg/rdf"
)

// valueKind distinguishes what an evaluated expression produced.
type valueKind int

const (
	kindID valueKind = iota
	kindNumber
	kindString
)

type value struct {
	kind   valueKind
	id     uint32
	number float64
	str    string
}

// evalExpr evaluates expr against row, returning ok=false if it references
// an unbound variable or its arithmetic cannot be evaluated (an operand
// that is not a number, or division by zero) — treated as no-match rather
// than an error. Ids are not decoded here; an id the dictionary cannot
// decode only fails where toNumber or toString needs its term.
func evalExpr(ctx *Context, row Row, expr logicalplan.Expression) (value, bool) {
	switch e := expr.(type) {
	case *logicalplan.VariableExpr:
		id, ok := row[e.Name]
		if !ok {
			return value{}, false
		}
		return value{kind: kindID, id: id}, true
	case *logicalplan.ConstantExpr:
		return value{kind: kindID, id: e.ID}, true
	case *logicalplan.NumberExpr:
		return value{kind: kindNumber, number: e.Value}, true
	case *logicalplan.Arithmetic:
		return evalArithmetic(ctx, row, e)
	case *logicalplan.FunctionCall:
		return evalFunctionCall(ctx, row, e)
	default:
		return value{}, false
	}
}

func evalArithmetic(ctx *Context, row Row, e *logicalplan.Arithmetic) (value, bool) {
	l, lok := evalExpr(ctx, row, e.Left)
	r, rok := evalExpr(ctx, row, e.Right)
	if !lok || !rok {
		return value{}, false
	}
	ln, lok2 := toNumber(ctx, l)
	rn, rok2 := toNumber(ctx, r)
	if !lok2 || !rok2 {
		return value{}, false
	}
	var result float64
	switch e.Op {
	case logicalplan.OpAdd:
		result = ln + rn
	case logicalplan.OpSubtract:
		result = ln - rn
	case logicalplan.OpMultiply:
		result = ln * rn
	case logicalplan.OpDivide:
		if rn == 0 {
			return value{}, false
		}
		result = ln / rn
	}
	return value{kind: kindNumber, number: result}, true
}

func evalFunctionCall(ctx *Context, row Row, e *logicalplan.FunctionCall) (value, bool) {
	args := make([]string, 0, len(e.Args))
	for _, a := range e.Args {
		v, ok := evalExpr(ctx, row, a)
		if !ok {
			args = append(args, "")
			continue
		}
		args = append(args, toString(ctx, v))
	}
	fn, ok := ctx.Functions[e.Name]
	if !ok {
		// Unregistered function: yield the empty string rather than error.
		return value{kind: kindString, str: ""}, true
	}
	return value{kind: kindString, str: fn(args)}, true
}

func toNumber(ctx *Context, v value) (float64, bool) {
	switch v.kind {
	case kindNumber:
		return v.number, true
	case kindString:
		n, err := strconv.ParseFloat(v.str, 64)
		return n, err == nil
	case kindID:
		term, ok := ctx.Dict.Decode(v.id)
		if !ok {
			return 0, false
		}
		lit, ok := term.(*rdf.Literal)
		if !ok {
			return 0, false
		}
		n, err := strconv.ParseFloat(lit.Value, 64)
		return n, err == nil
	}
	return 0, false
}

func toString(ctx *Context, v value) string {
	switch v.kind {
	case kindString:
		return v.str
	case kindNumber:
		return strconv.FormatFloat(v.number, 'g', -1, 64)
	case kindID:
		term, ok := ctx.Dict.Decode(v.id)
		if !ok {
			return ""
		}
		if lit, ok := term.(*rdf.Literal); ok {
			return lit.Value
		}
		return term.String()
	}
	return ""
}

func valuesEqual(ctx *Context, l, r value) bool {
	if l.kind == kindID && r.kind == kindID {
		return l.id == r.id
	}
	if ln, lok := toNumber(ctx, l); lok {
		if rn, rok := toNumber(ctx, r); rok {
			return ln == rn
		}
	}
	return toString(ctx, l) == toString(ctx, r)
}

// evalCondition evaluates a boolean filter condition. A missing binding or
// unresolvable operand yields false.
func evalCondition(ctx *Context, row Row, expr logicalplan.Expression) bool {
	switch e := expr.(type) {
	case *logicalplan.Comparison:
		l, lok := evalExpr(ctx, row, e.Left)
		r, rok := evalExpr(ctx, row, e.Right)
		if !lok || !rok {
			return false
		}
		switch e.Op {
		case logicalplan.OpEqual:
			return valuesEqual(ctx, l, r)
		case logicalplan.OpNotEqual:
			return !valuesEqual(ctx, l, r)
		default:
			ln, lok2 := toNumber(ctx, l)
			rn, rok2 := toNumber(ctx, r)
			if lok2 && rok2 {
				return compareNumbers(e.Op, ln, rn)
			}
			return compareStrings(e.Op, toString(ctx, l), toString(ctx, r))
		}
	case *logicalplan.Logical:
		switch e.Op {
		case logicalplan.OpAnd:
			return evalCondition(ctx, row, e.Left) && evalCondition(ctx, row, e.Right)
		case logicalplan.OpOr:
			return evalCondition(ctx, row, e.Left) || evalCondition(ctx, row, e.Right)
		case logicalplan.OpNot:
			return !evalCondition(ctx, row, e.Left)
		}
		return false
	default:
		return false
	}
}

func compareNumbers(op logicalplan.CompareOp, l, r float64) bool {
	switch op {
	case logicalplan.OpLessThan:
		return l < r
	case logicalplan.OpLessThanOrEqual:
		return l <= r
	case logicalplan.OpGreaterThan:
		return l > r
	case logicalplan.OpGreaterThanOrEqual:
		return l >= r
	}
	return false
}

func compareStrings(op logicalplan.CompareOp, l, r string) bool {
	switch op {
	case logicalplan.OpLessThan:
		return l < r
	case logicalplan.OpLessThanOrEqual:
		return l <= r
	case logicalplan.OpGreaterThan:
		return l > r
	case logicalplan.OpGreaterThanOrEqual:
		return l >= r
	}
	return false
}
