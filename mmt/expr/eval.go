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

package expr

import (
	"math"
	"strconv"
	"strings"

	"myokit.org/go/mmt/errors"
)

// Precision selects the floating point width used during evaluation.
type Precision int

const (
	// DoublePrecision evaluates with 64 bit floats.
	DoublePrecision Precision = iota

	// SinglePrecision narrows every intermediate result to 32 bits,
	// for debugging single precision simulations.
	SinglePrecision
)

// Subst maps left-hand side expressions (names, dot(), partial(),
// init()) to replacement expressions. Keys are matched structurally,
// per [Expr.Equals].
type Subst map[*Expr]*Expr

// Eval evaluates the expression and returns the result. Conditions
// evaluate to 1 and 0.
//
// Name references resolve through the substitution map first; without
// a substitute, the referenced variable's right-hand side is
// evaluated (a state variable contributes its current state value).
//
// Arithmetic and domain errors are reported as a numerical error whose
// message lists the offending sub-expression, the values of its
// operands, and the values of the variables it references.
func (e *Expr) Eval(subst Subst, prec Precision) (float64, error) {
	s := &evalState{prec: prec}
	if len(subst) > 0 {
		s.subst = make(map[string]*Expr, len(subst))
		for k, v := range subst {
			if k == nil || !k.op.isLhs() {
				return 0, errors.New("expr: substitution keys must be name, dot(), partial() or init() expressions")
			}
			if v == nil {
				return 0, errors.New("expr: substitution values must be expressions")
			}
			s.subst[k.key()] = v
		}
	}
	v, err := e.eval(s)
	if err != nil {
		if ee, ok := err.(*evalErr); ok {
			return 0, errors.Numerical(evalErrMessage(e, ee, s))
		}
		return 0, err
	}
	return v, nil
}

type evalState struct {
	subst map[string]*Expr
	prec  Precision
}

func (s *evalState) round(v float64) float64 {
	if s.prec == SinglePrecision {
		return float64(float32(v))
	}
	return v
}

// evalErr carries the precise offending sub-expression while an
// evaluation unwinds. It is translated to a numerical error before it
// reaches the public API.
type evalErr struct {
	expr *Expr
	msg  string
}

func (e *evalErr) Error() string { return e.msg }

// rhs returns the expression a reference resolves to during
// evaluation, or nil if it has none.
func (e *Expr) rhs() *Expr {
	switch e.op {
	case NameOp:
		v := e.Var()
		if v == nil {
			return nil
		}
		if v.IsState() {
			return Number(v.StateValue())
		}
		return v.RHS()
	case DerivativeOp:
		if v := e.Var(); v != nil {
			return v.RHS()
		}
	}
	return nil
}

func (e *Expr) eval(s *evalState) (float64, error) {
	switch e.op {
	case NumberOp:
		return s.round(e.val), nil

	case NameOp, DerivativeOp, PartialOp, InitOp:
		if s.subst != nil {
			if r, ok := s.subst[e.key()]; ok {
				return r.eval(s)
			}
		}
		if e.op == PartialOp || e.op == InitOp {
			return 0, &evalErr{e, opRep[e.op] + "() expressions cannot be evaluated numerically"}
		}
		rhs := e.rhs()
		if rhs == nil {
			return 0, &evalErr{e, "no value set for " + e.Code(nil)}
		}
		return rhs.eval(s)

	case PrefixPlusOp:
		return e.ops[0].eval(s)

	case PrefixMinusOp:
		v, err := e.ops[0].eval(s)
		return -v, err

	case PlusOp, MinusOp, MultiplyOp, DivideOp, QuotientOp, RemainderOp, PowerOp:
		a, err := e.ops[0].eval(s)
		if err != nil {
			return 0, err
		}
		b, err := e.ops[1].eval(s)
		if err != nil {
			return 0, err
		}
		return e.evalBinary(s, a, b)

	case SqrtOp, SinOp, CosOp, TanOp, ASinOp, ACosOp, ATanOp, ExpOp,
		Log10Op, FloorOp, CeilOp, AbsOp:
		x, err := e.ops[0].eval(s)
		if err != nil {
			return 0, err
		}
		return e.evalFunc(s, x)

	case LogOp:
		x, err := e.ops[0].eval(s)
		if err != nil {
			return 0, err
		}
		if x <= 0 {
			return 0, &evalErr{e, "logarithm of non-positive number"}
		}
		if len(e.ops) == 1 {
			return s.round(math.Log(x)), nil
		}
		b, err := e.ops[1].eval(s)
		if err != nil {
			return 0, err
		}
		if b <= 0 {
			return 0, &evalErr{e, "logarithm of non-positive number"}
		}
		if b == 1 {
			return 0, &evalErr{e, "division by zero"}
		}
		return s.round(math.Log(x) / math.Log(b)), nil

	case IfOp:
		c, err := e.ops[0].eval(s)
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return e.ops[1].eval(s)
		}
		return e.ops[2].eval(s)

	case PiecewiseOp:
		m := len(e.ops) / 2
		for i := 0; i < m; i++ {
			c, err := e.ops[2*i].eval(s)
			if err != nil {
				return 0, err
			}
			if c != 0 {
				return e.ops[2*i+1].eval(s)
			}
		}
		return e.ops[len(e.ops)-1].eval(s)

	case NotOp:
		x, err := e.ops[0].eval(s)
		if err != nil {
			return 0, err
		}
		return boolValue(x == 0), nil

	case AndOp:
		a, err := e.ops[0].eval(s)
		if err != nil {
			return 0, err
		}
		if a == 0 {
			return 0, nil
		}
		b, err := e.ops[1].eval(s)
		if err != nil {
			return 0, err
		}
		return boolValue(b != 0), nil

	case OrOp:
		a, err := e.ops[0].eval(s)
		if err != nil {
			return 0, err
		}
		if a != 0 {
			return 1, nil
		}
		b, err := e.ops[1].eval(s)
		if err != nil {
			return 0, err
		}
		return boolValue(b != 0), nil

	case EqualOp, NotEqualOp, LessOp, LessEqualOp, GreaterOp, GreaterEqualOp:
		a, err := e.ops[0].eval(s)
		if err != nil {
			return 0, err
		}
		b, err := e.ops[1].eval(s)
		if err != nil {
			return 0, err
		}
		switch e.op {
		case EqualOp:
			return boolValue(a == b), nil
		case NotEqualOp:
			return boolValue(a != b), nil
		case LessOp:
			return boolValue(a < b), nil
		case LessEqualOp:
			return boolValue(a <= b), nil
		case GreaterOp:
			return boolValue(a > b), nil
		default:
			return boolValue(a >= b), nil
		}
	}
	return 0, &evalErr{e, "cannot evaluate " + e.op.String() + " expression"}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (e *Expr) evalBinary(s *evalState, a, b float64) (float64, error) {
	switch e.op {
	case PlusOp:
		return s.round(a + b), nil
	case MinusOp:
		return s.round(a - b), nil
	case MultiplyOp:
		return s.round(a * b), nil
	case DivideOp:
		if b == 0 {
			return 0, &evalErr{e, "division by zero"}
		}
		return s.round(a / b), nil
	case QuotientOp:
		if b == 0 {
			return 0, &evalErr{e, "division by zero"}
		}
		return s.round(math.Floor(a / b)), nil
	case RemainderOp:
		if b == 0 {
			return 0, &evalErr{e, "division by zero"}
		}
		// The remainder follows the sign of the divisor, so that
		// a == b*(a//b) + (a%b).
		return s.round(a - b*math.Floor(a/b)), nil
	default: // PowerOp
		r := math.Pow(a, b)
		if math.IsNaN(r) && !math.IsNaN(a) && !math.IsNaN(b) {
			return 0, &evalErr{e, "invalid power (negative base with fractional exponent)"}
		}
		return s.round(r), nil
	}
}

func (e *Expr) evalFunc(s *evalState, x float64) (float64, error) {
	switch e.op {
	case SqrtOp:
		if x < 0 {
			return 0, &evalErr{e, "square root of negative number"}
		}
		return s.round(math.Sqrt(x)), nil
	case SinOp:
		return s.round(math.Sin(x)), nil
	case CosOp:
		return s.round(math.Cos(x)), nil
	case TanOp:
		return s.round(math.Tan(x)), nil
	case ASinOp:
		if x < -1 || x > 1 {
			return 0, &evalErr{e, "asin of value outside [-1, 1]"}
		}
		return s.round(math.Asin(x)), nil
	case ACosOp:
		if x < -1 || x > 1 {
			return 0, &evalErr{e, "acos of value outside [-1, 1]"}
		}
		return s.round(math.Acos(x)), nil
	case ATanOp:
		return s.round(math.Atan(x)), nil
	case ExpOp:
		return s.round(math.Exp(x)), nil
	case Log10Op:
		if x <= 0 {
			return 0, &evalErr{e, "logarithm of non-positive number"}
		}
		return s.round(math.Log10(x)), nil
	case FloorOp:
		return math.Floor(x), nil
	case CeilOp:
		return math.Ceil(x), nil
	default: // AbsOp
		return math.Abs(x), nil
	}
}

// evalErrMessage builds the user-facing diagnostic for an evaluation
// error: the offending sub-expression with its operand values, and the
// values of the variables it references.
func evalErrMessage(owner *Expr, ee *evalErr, s *evalState) string {
	out := []string{ee.msg}
	out = append(out, "Encountered when evaluating")
	parStr := "  " + owner.Code(nil)
	out = append(out, parStr)

	// Underline the offending sub-expression, if it appears verbatim.
	errStr := ee.expr.Code(nil)
	if start := strings.Index(parStr, errStr); start >= 0 {
		out = append(out, strings.Repeat(" ", start)+strings.Repeat("~", len(errStr)))
	}

	if len(ee.expr.ops) > 0 {
		out = append(out, "With the following operands:")
		for i, op := range ee.expr.ops {
			pre := "  (" + strconv.Itoa(i+1) + ") "
			if v, err := op.eval(s); err == nil {
				out = append(out, pre+floatString(v))
			} else {
				out = append(out, pre+"another error")
			}
		}
	}

	if refs := ee.expr.References(); len(refs) > 0 {
		out = append(out, "And the following variables:")
		for _, ref := range refs {
			name := ref.Code(nil)
			var rhs *Expr
			if s.subst != nil {
				rhs = s.subst[ref.key()]
			}
			if rhs == nil {
				rhs = ref.rhs()
			}
			if rhs == nil {
				out = append(out, "  "+name+" = unknown")
				continue
			}
			pre := "  " + name + " = "
			if rhs.op != NumberOp {
				out = append(out, pre+rhs.Code(nil))
				pre = "  " + strings.Repeat(" ", len(name)) + " = "
			}
			if v, err := rhs.eval(s); err == nil {
				out = append(out, pre+floatString(v))
			} else {
				out = append(out, pre+"another error")
			}
		}
	}
	return strings.Join(out, "\n")
}
