// Copyright 2024 The Myokit Go Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package expr implements the symbolic expression engine for mmt
// models.
//
// Expressions are immutable trees over numbers, variable references,
// arithmetic, transcendental functions, conditionals and derivative
// operators. The package provides numeric evaluation ([Expr.Eval]),
// unit inference ([Expr.EvalUnit]), symbolic partial differentiation
// ([Expr.PartialDerivative]), rendering in mmt surface syntax
// ([Expr.Code]), structural equality and hashing, tree rewriting
// ([Expr.Clone]) and integrity validation ([Expr.Validate]).
//
// Because trees are immutable, several per-node results (canonical
// form, hash, unit inference, validation) are computed once and
// cached. The engine is single-threaded per tree: concurrent use of a
// single tree must be synchronised externally.
package expr

import (
	"strconv"
	"strings"

	"myokit.org/go/mmt/errors"
	"myokit.org/go/mmt/token"
	"myokit.org/go/mmt/unit"
)

// Op identifies the kind of an expression node.
type Op uint8

// Values of Op.
const (
	NoOp Op = iota

	NumberOp
	NameOp
	DerivativeOp
	PartialOp
	InitOp

	PrefixPlusOp
	PrefixMinusOp

	PlusOp
	MinusOp
	MultiplyOp
	DivideOp
	QuotientOp
	RemainderOp
	PowerOp

	SqrtOp
	SinOp
	CosOp
	TanOp
	ASinOp
	ACosOp
	ATanOp
	ExpOp
	LogOp
	Log10Op
	FloorOp
	CeilOp
	AbsOp

	IfOp
	PiecewiseOp

	NotOp
	EqualOp
	NotEqualOp
	LessOp
	LessEqualOp
	GreaterOp
	GreaterEqualOp
	AndOp
	OrOp

	numOps
)

// opRep maps each Op to its mmt surface representation: the operator
// text for prefix and infix kinds, the function name for the rest.
var opRep = [numOps]string{
	NumberOp:       "number",
	NameOp:         "name",
	DerivativeOp:   "dot",
	PartialOp:      "partial",
	InitOp:         "init",
	PrefixPlusOp:   "+",
	PrefixMinusOp:  "-",
	PlusOp:         "+",
	MinusOp:        "-",
	MultiplyOp:     "*",
	DivideOp:       "/",
	QuotientOp:     "//",
	RemainderOp:    "%",
	PowerOp:        "^",
	SqrtOp:         "sqrt",
	SinOp:          "sin",
	CosOp:          "cos",
	TanOp:          "tan",
	ASinOp:         "asin",
	ACosOp:         "acos",
	ATanOp:         "atan",
	ExpOp:          "exp",
	LogOp:          "log",
	Log10Op:        "log10",
	FloorOp:        "floor",
	CeilOp:         "ceil",
	AbsOp:          "abs",
	IfOp:           "if",
	PiecewiseOp:    "piecewise",
	NotOp:          "not",
	EqualOp:        "==",
	NotEqualOp:     "!=",
	LessOp:         "<",
	LessEqualOp:    "<=",
	GreaterOp:      ">",
	GreaterEqualOp: ">=",
	AndOp:          "and",
	OrOp:           "or",
}

func (op Op) String() string {
	if op < numOps {
		return opRep[op]
	}
	return "op(" + strconv.Itoa(int(op)) + ")"
}

// Right-binding powers, used both by the renderer to decide
// parenthesisation and by the parser as operator precedences.
const (
	PrecLiteral      = 0
	PrecConditionAnd = 10
	PrecCondition    = 20
	PrecSum          = 30
	PrecProduct      = 40
	PrecPrefix       = 50
	PrecPower        = 60
	PrecCall         = 70
)

var opPrec = [numOps]int{
	NumberOp:       PrecLiteral,
	NameOp:         PrecLiteral,
	DerivativeOp:   PrecCall,
	PartialOp:      PrecCall,
	InitOp:         PrecCall,
	PrefixPlusOp:   PrecPrefix,
	PrefixMinusOp:  PrecPrefix,
	PlusOp:         PrecSum,
	MinusOp:        PrecSum,
	MultiplyOp:     PrecProduct,
	DivideOp:       PrecProduct,
	QuotientOp:     PrecProduct,
	RemainderOp:    PrecProduct,
	PowerOp:        PrecPower,
	SqrtOp:         PrecCall,
	SinOp:          PrecCall,
	CosOp:          PrecCall,
	TanOp:          PrecCall,
	ASinOp:         PrecCall,
	ACosOp:         PrecCall,
	ATanOp:         PrecCall,
	ExpOp:          PrecCall,
	LogOp:          PrecCall,
	Log10Op:        PrecCall,
	FloorOp:        PrecCall,
	CeilOp:         PrecCall,
	AbsOp:          PrecCall,
	IfOp:           PrecCall,
	PiecewiseOp:    PrecCall,
	NotOp:          PrecPrefix,
	EqualOp:        PrecCondition,
	NotEqualOp:     PrecCondition,
	LessOp:         PrecCondition,
	LessEqualOp:    PrecCondition,
	GreaterOp:      PrecCondition,
	GreaterEqualOp: PrecCondition,
	AndOp:          PrecConditionAnd,
	OrOp:           PrecConditionAnd,
}

// Precedence returns the op's right-binding power.
func (op Op) Precedence() int { return opPrec[op] }

// IsCondition reports whether op produces a boolean result.
func (op Op) IsCondition() bool {
	switch op {
	case NotOp, EqualOp, NotEqualOp, LessOp, LessEqualOp,
		GreaterOp, GreaterEqualOp, AndOp, OrOp:
		return true
	}
	return false
}

func (op Op) isLhs() bool {
	switch op {
	case NameOp, DerivativeOp, PartialOp, InitOp:
		return true
	}
	return false
}

// unitResult is a write-once cache slot for one unit-checking mode.
type unitResult struct {
	done bool
	unit *unit.Unit
	err  error
}

// An Expr is an immutable expression node.
//
// Nodes are created by the constructor functions in this package, by
// the parser, or by cloning; once constructed their attributes never
// change. The unexported fields below the caches line are lazily
// computed, write-once memos.
type Expr struct {
	op  Op
	ops []*Expr

	val    float64    // NumberOp: numeric value
	numStr string     // NumberOp: rendering of val (+ unit)
	unit   *unit.Unit // NumberOp: declared unit, nil if unspecified
	ref    interface{} // NameOp: Variable handle, or string for debugging

	tok *token.Token

	hasPartials bool
	hasInitials bool

	// caches
	cachedPolish string
	cachedHash   uint64
	hashed       bool
	units        [2]unitResult
	validated    bool
}

func newExpr(op Op, ops ...*Expr) *Expr {
	e := &Expr{op: op, ops: ops}
	for _, o := range ops {
		if o == nil {
			continue
		}
		e.hasPartials = e.hasPartials || o.hasPartials
		e.hasInitials = e.hasInitials || o.hasInitials
	}
	return e
}

// Op returns the node's kind.
func (e *Expr) Op() Op { return e.op }

// Len returns the number of operands.
func (e *Expr) Len() int { return len(e.ops) }

// Operand returns the i'th operand.
func (e *Expr) Operand(i int) *Expr { return e.ops[i] }

// Operands returns the operand list. The returned slice must not be
// modified.
func (e *Expr) Operands() []*Expr { return e.ops }

// Value returns a number node's value. It is zero for other kinds.
func (e *Expr) Value() float64 { return e.val }

// Unit returns a number node's declared unit, or nil.
func (e *Expr) Unit() *unit.Unit { return e.unit }

// Var returns the variable referenced by a name, derivative, partial
// derivative or initial-value node, and nil for every other node (and
// for name nodes holding a debug string).
func (e *Expr) Var() Variable {
	switch e.op {
	case NameOp:
		if v, ok := e.ref.(Variable); ok {
			return v
		}
	case DerivativeOp, PartialOp, InitOp:
		return e.ops[0].Var()
	}
	return nil
}

// Token returns the source token this node was parsed from, or nil.
func (e *Expr) Token() *token.Token { return e.tok }

// SetToken attaches a source token for diagnostics. It is intended for
// use by parsers directly after construction; a token can be set only
// once.
func (e *Expr) SetToken(t *token.Token) {
	if e.tok == nil {
		e.tok = t
	}
}

func (e *Expr) pos() token.Position { return e.tok.Position() }

// Constructors.
//
// Constructors panic with an integrity error when called with operands
// that violate the per-kind constraints (wrong arity, a dot() of
// something that is not a name). Such calls are programming errors:
// parsers must check their input and report errors before
// constructing.

func integrityPanic(t *token.Token, format string, args ...interface{}) {
	panic(errors.Integrity(t.Position(), format, args...))
}

// Number returns a dimensionless number node.
func Number(value float64) *Expr {
	return NumberUnit(value, nil)
}

// NumberUnit returns a number node with a declared unit. A nil unit
// leaves the number's unit unspecified.
func NumberUnit(value float64, u *unit.Unit) *Expr {
	e := newExpr(NumberOp)
	e.val = value
	e.unit = u
	e.numStr = floatString(value)
	if u != nil && !u.Equal(unit.Dimensionless) {
		e.numStr += " " + u.String()
	}
	return e
}

// Name returns a variable reference. The handle should implement
// [Variable]; a plain string is accepted for debugging but rejected by
// [Expr.Validate].
func Name(handle interface{}) *Expr {
	e := newExpr(NameOp)
	e.ref = handle
	return e
}

// Derivative returns a reference dot(x) to the time derivative of the
// named variable. The operand must be a name node.
func Derivative(x *Expr) *Expr {
	if x.op != NameOp {
		integrityPanic(x.tok, "the dot() operator can only be used on variables")
	}
	return newExpr(DerivativeOp, x)
}

// Partial returns a reference partial(x, y) to the partial derivative
// of x with respect to y. The first operand must be a name or a
// dot() derivative, the second a name or an init() initial value.
func Partial(x, y *Expr) *Expr {
	if x.op != NameOp && x.op != DerivativeOp {
		integrityPanic(x.tok, "the first argument to a partial derivative must be a variable name or dot() expression")
	}
	if y.op != NameOp && y.op != InitOp {
		integrityPanic(y.tok, "the second argument to a partial derivative must be a variable name or initial value")
	}
	e := newExpr(PartialOp, x, y)
	e.hasPartials = true
	return e
}

// Init returns a reference init(x) to the initial value of the named
// state variable.
func Init(x *Expr) *Expr {
	if x.op != NameOp {
		integrityPanic(x.tok, "the first argument to an initial value must be a variable name")
	}
	e := newExpr(InitOp, x)
	e.hasInitials = true
	return e
}

// PrefixPlus returns +x.
func PrefixPlus(x *Expr) *Expr { return newExpr(PrefixPlusOp, x) }

// PrefixMinus returns -x.
func PrefixMinus(x *Expr) *Expr { return newExpr(PrefixMinusOp, x) }

// Plus returns a + b.
func Plus(a, b *Expr) *Expr { return newExpr(PlusOp, a, b) }

// Minus returns a - b.
func Minus(a, b *Expr) *Expr { return newExpr(MinusOp, a, b) }

// Multiply returns a * b.
func Multiply(a, b *Expr) *Expr { return newExpr(MultiplyOp, a, b) }

// Divide returns a / b.
func Divide(a, b *Expr) *Expr { return newExpr(DivideOp, a, b) }

// Quotient returns the integer division a // b, rounding towards
// negative infinity.
func Quotient(a, b *Expr) *Expr { return newExpr(QuotientOp, a, b) }

// Remainder returns a % b. The result follows the sign of the divisor,
// so that a == b*(a//b) + (a%b).
func Remainder(a, b *Expr) *Expr { return newExpr(RemainderOp, a, b) }

// Power returns a ^ b.
func Power(a, b *Expr) *Expr { return newExpr(PowerOp, a, b) }

// Sqrt returns sqrt(x).
func Sqrt(x *Expr) *Expr { return newExpr(SqrtOp, x) }

// Sin returns sin(x).
func Sin(x *Expr) *Expr { return newExpr(SinOp, x) }

// Cos returns cos(x).
func Cos(x *Expr) *Expr { return newExpr(CosOp, x) }

// Tan returns tan(x).
func Tan(x *Expr) *Expr { return newExpr(TanOp, x) }

// ASin returns asin(x).
func ASin(x *Expr) *Expr { return newExpr(ASinOp, x) }

// ACos returns acos(x).
func ACos(x *Expr) *Expr { return newExpr(ACosOp, x) }

// ATan returns atan(x).
func ATan(x *Expr) *Expr { return newExpr(ATanOp, x) }

// Exp returns exp(x).
func Exp(x *Expr) *Expr { return newExpr(ExpOp, x) }

// Log returns the natural logarithm log(x).
func Log(x *Expr) *Expr { return newExpr(LogOp, x) }

// LogBase returns the base-b logarithm log(x, b) = log(x) / log(b).
func LogBase(x, b *Expr) *Expr { return newExpr(LogOp, x, b) }

// Log10 returns log10(x).
func Log10(x *Expr) *Expr { return newExpr(Log10Op, x) }

// Floor returns floor(x), rounding towards negative infinity.
func Floor(x *Expr) *Expr { return newExpr(FloorOp, x) }

// Ceil returns ceil(x), rounding towards positive infinity.
func Ceil(x *Expr) *Expr { return newExpr(CeilOp, x) }

// Abs returns abs(x).
func Abs(x *Expr) *Expr { return newExpr(AbsOp, x) }

// If returns the conditional if(cond, then, else).
func If(cond, then, els *Expr) *Expr { return newExpr(IfOp, cond, then, els) }

// Piecewise returns piecewise(c1, v1, ..., cn, vn, default). The
// number of operands must be odd and at least 3.
func Piecewise(ops ...*Expr) *Expr {
	if len(ops) < 3 {
		integrityPanic(nil, "piecewise function must have 3 or more arguments")
	}
	if len(ops)%2 == 0 {
		integrityPanic(nil, "piecewise function must have an odd number of arguments: ([condition, value]+, else_value)")
	}
	return newExpr(PiecewiseOp, ops...)
}

// Not returns the negated condition not x.
func Not(x *Expr) *Expr { return newExpr(NotOp, x) }

// Equal returns the comparison a == b.
func Equal(a, b *Expr) *Expr { return newExpr(EqualOp, a, b) }

// NotEqual returns the comparison a != b.
func NotEqual(a, b *Expr) *Expr { return newExpr(NotEqualOp, a, b) }

// Less returns the comparison a < b.
func Less(a, b *Expr) *Expr { return newExpr(LessOp, a, b) }

// LessEqual returns the comparison a <= b.
func LessEqual(a, b *Expr) *Expr { return newExpr(LessEqualOp, a, b) }

// Greater returns the comparison a > b.
func Greater(a, b *Expr) *Expr { return newExpr(GreaterOp, a, b) }

// GreaterEqual returns the comparison a >= b.
func GreaterEqual(a, b *Expr) *Expr { return newExpr(GreaterEqualOp, a, b) }

// And returns the conjunction a and b.
func And(a, b *Expr) *Expr { return newExpr(AndOp, a, b) }

// Or returns the disjunction a or b.
func Or(a, b *Expr) *Expr { return newExpr(OrOp, a, b) }

// Walk traverses the tree in depth-first pre-order, calling f for
// every node. If f returns false the node's operands are skipped.
func (e *Expr) Walk(f func(*Expr) bool) {
	if !f(e) {
		return
	}
	for _, op := range e.ops {
		op.Walk(f)
	}
}

// ContainsOp reports whether the tree contains a node of the given
// kind.
func (e *Expr) ContainsOp(op Op) bool {
	switch op {
	case PartialOp:
		return e.hasPartials
	case InitOp:
		return e.hasInitials
	}
	found := false
	e.Walk(func(x *Expr) bool {
		if x.op == op {
			found = true
		}
		return !found
	})
	return found
}

// References returns the distinct variable references (names,
// derivatives, partials and initial values) appearing in the tree.
func (e *Expr) References() []*Expr {
	var refs []*Expr
	seen := map[string]bool{}
	e.Walk(func(x *Expr) bool {
		if !x.op.isLhs() {
			return true
		}
		if k := x.key(); !seen[k] {
			seen[k] = true
			refs = append(refs, x)
		}
		return false
	})
	return refs
}

// DependsOn reports whether lhs appears directly in this expression.
// Only references appearing in the tree itself are considered; the
// right-hand sides of referenced variables are not followed.
func (e *Expr) DependsOn(lhs *Expr) bool {
	for _, r := range e.References() {
		if r.Equals(lhs) {
			return true
		}
	}
	return false
}

// IsConstant reports whether the expression contains no references, or
// only references to constant variables.
func (e *Expr) IsConstant() bool {
	for _, r := range e.References() {
		v := r.Var()
		if v == nil || !v.IsConstant() {
			return false
		}
	}
	return true
}

// IsLiteral reports whether the expression contains no references at
// all.
func (e *Expr) IsLiteral() bool {
	return len(e.References()) == 0
}

// IsConditional reports whether the tree contains an if() or
// piecewise().
func (e *Expr) IsConditional() bool {
	found := false
	e.Walk(func(x *Expr) bool {
		if x.op == IfOp || x.op == PiecewiseOp {
			found = true
		}
		return !found
	})
	return found
}

// IsNumber reports whether this node is a number (with the given
// value, if one is passed).
func (e *Expr) IsNumber(value ...float64) bool {
	return e.op == NumberOp && (len(value) == 0 || value[0] == e.val)
}

// IsName reports whether this node is a reference to the given
// variable (or to any variable, if v is nil).
func (e *Expr) IsName(v Variable) bool {
	return e.op == NameOp && (v == nil || v == e.ref)
}

// IsDerivative reports whether this node is a dot() reference to the
// given variable (or to any variable, if v is nil).
func (e *Expr) IsDerivative(v Variable) bool {
	return e.op == DerivativeOp && (v == nil || e.Var() == v)
}

// TreeString returns an indented rendering of the parse tree, for
// debugging.
func (e *Expr) TreeString() string {
	var b strings.Builder
	e.treeStr(&b, 0)
	return b.String()
}

const treeDent = 2

func (e *Expr) treeStr(b *strings.Builder, n int) {
	b.WriteString(strings.Repeat(" ", n))
	switch e.op {
	case NumberOp:
		b.WriteString(e.numStr)
	case NameOp:
		b.WriteString(e.refString(nil))
	case DerivativeOp, InitOp:
		b.WriteString(e.op.String() + "(" + e.ops[0].refString(nil) + ")")
	case PartialOp:
		b.WriteString("partial(" + e.ops[0].Code(nil) + ", " + e.ops[1].Code(nil) + ")")
	default:
		b.WriteString(opRep[e.op])
	}
	b.WriteByte('\n')
	switch e.op {
	case NumberOp, NameOp, DerivativeOp, PartialOp, InitOp:
		return
	}
	for _, op := range e.ops {
		op.treeStr(b, n+treeDent)
	}
}
