// Package logicalplan defines the logical query plan the caller supplies to
// the engine. Query
// surface syntax (SPARQL text) is explicitly out of scope; callers build this tree directly, the way
// internal/sparql/optimizer/optimizer.go's teacher code built its
// QueryPlan tree from a parsed AST — here there is simply no parser in
// front of it.
package logicalplan

// Term is a triple-pattern or expression position: either a variable,
// identified by name, or a constant dictionary id.
type Term struct {
	variable string
	isVar    bool
	constant uint32
}

// Var builds a variable term.
func Var(name string) Term { return Term{variable: name, isVar: true} }

// Const builds a constant term from an already-encoded dictionary id.
func Const(id uint32) Term { return Term{constant: id} }

func (t Term) IsVariable() bool   { return t.isVar }
func (t Term) VariableName() string { return t.variable }
func (t Term) ConstantID() uint32 { return t.constant }

// TriplePattern is (term0, term1, term2) over subject/predicate/object.
type TriplePattern struct {
	S, P, O Term
}

// BoundCount returns how many of the pattern's three positions are
// constants, used by the planner's cardinality model.
func (p TriplePattern) BoundCount() int {
	n := 0
	if !p.S.IsVariable() {
		n++
	}
	if !p.P.IsVariable() {
		n++
	}
	if !p.O.IsVariable() {
		n++
	}
	return n
}

// Variables returns the distinct variable names referenced by the pattern.
func (p TriplePattern) Variables() []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range []Term{p.S, p.P, p.O} {
		if t.IsVariable() && !seen[t.VariableName()] {
			seen[t.VariableName()] = true
			out = append(out, t.VariableName())
		}
	}
	return out
}

// Node is a logical plan node.
type Node interface {
	logicalNode()
}

// Scan evaluates a single triple pattern against the store (or, inside an
// RSP window's sub-plan, against that window's per-firing content — see
// internal/rsp).
type Scan struct {
	Pattern TriplePattern
}

func (*Scan) logicalNode() {}

// Buffer is a named virtual source standing in for a window's or the
// static store's content. The planner resolves it through a source
// registered under Name with planner.ResolveBuffer and fails to plan it
// when none is registered; the RSP runtime registers no such source.
type Buffer struct {
	Name    string
	Pattern TriplePattern
}

func (*Buffer) logicalNode() {}

// Selection filters its child's rows by Condition.
type Selection struct {
	Child     Node
	Condition Expression
}

func (*Selection) logicalNode() {}

// Projection retains only Vars from each of its child's rows.
type Projection struct {
	Child Node
	Vars  []string
}

func (*Projection) logicalNode() {}

// Join naturally joins Left and Right over their shared variables. The
// physical join algorithm is chosen by the planner, not
// specified here.
type Join struct {
	Left, Right Node
}

func (*Join) logicalNode() {}

// Bind evaluates Function(Args...) per row and binds the result to Output,
// interning the result string into the dictionary.
type Bind struct {
	Child    Node
	Function string
	Args     []Expression
	Output   string
}

func (*Bind) logicalNode() {}

// Values emits literal rows over Vars. Rows not mentioning a variable leave
// it unbound in that row.
type Values struct {
	Vars []string
	Rows []map[string]uint32
}

func (*Values) logicalNode() {}

// Subquery executes Inner and projects Vars, acting as a scope boundary.
type Subquery struct {
	Inner Node
	Vars  []string
}

func (*Subquery) logicalNode() {}

// Expression is a filter condition or bind argument: comparison,
// and/or/not, arithmetic, or a variable/constant leaf.
type Expression interface {
	expressionNode()
}

// Comparison operators.
type CompareOp int

const (
	OpEqual CompareOp = iota
	OpNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
)

// Comparison compares Left and Right.
type Comparison struct {
	Op          CompareOp
	Left, Right Expression
}

func (*Comparison) expressionNode() {}

// LogicalOp connective.
type LogicalOp int

const (
	OpAnd LogicalOp = iota
	OpOr
	OpNot
)

// Logical combines one or two boolean sub-expressions.
type Logical struct {
	Op          LogicalOp
	Left, Right Expression // Right is nil for Not
}

func (*Logical) expressionNode() {}

// ArithOp arithmetic operator.
type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSubtract
	OpMultiply
	OpDivide
)

// Arithmetic combines two numeric sub-expressions.
type Arithmetic struct {
	Op          ArithOp
	Left, Right Expression
}

func (*Arithmetic) expressionNode() {}

// VariableExpr references a bound variable's value.
type VariableExpr struct {
	Name string
}

func (*VariableExpr) expressionNode() {}

// ConstantExpr is a constant dictionary id (for equality against a bound
// term).
type ConstantExpr struct {
	ID uint32
}

func (*ConstantExpr) expressionNode() {}

// NumberExpr is a raw numeric literal, for arithmetic and range filters
// that do not reference the dictionary.
type NumberExpr struct {
	Value float64
}

func (*NumberExpr) expressionNode() {}

// FunctionCall is a named function applied to Args: a built-in (e.g.
// CONCAT) or a user-registered function.
type FunctionCall struct {
	Name string
	Args []Expression
}

func (*FunctionCall) expressionNode() {}
