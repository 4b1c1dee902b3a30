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
	"strings"

	"myokit.org/go/mmt/errors"
	"myokit.org/go/mmt/unit"
)

// EvalUnit infers the unit of the expression from the units of its
// variables and literals.
//
// In strict mode every unspecified unit is treated as dimensionless,
// and the result is either a unit or an incompatible-unit error. In
// tolerant mode unspecified units propagate as nil, and errors are
// only reported between concretely known units.
//
// Unlike evaluation, unit checking walks every branch of a
// conditional: it is a static property of the whole tree. The result
// is cached per mode.
func (e *Expr) EvalUnit(mode unit.Mode) (*unit.Unit, error) {
	slot := &e.units[mode&1]
	if !slot.done {
		u, err := e.evalUnit(mode)
		if err != nil {
			if ue, ok := err.(*unitErr); ok {
				err = errors.IncompatibleUnit(ue.expr.pos(), "%s", unitErrMessage(e, ue))
			}
			slot.err = err
		} else {
			slot.unit = u
		}
		slot.done = true
	}
	return slot.unit, slot.err
}

// unitErr carries the offending sub-expression while unit inference
// unwinds. It is translated to an incompatible-unit error before it
// reaches the public API.
type unitErr struct {
	expr *Expr
	msg  string
}

func (e *unitErr) Error() string { return e.msg }

func unitErrMessage(owner *Expr, ue *unitErr) string {
	var b strings.Builder
	b.WriteString("Incompatible units")
	if pos := ue.expr.pos(); pos.IsValid() {
		b.WriteString(" at ")
		b.WriteString(pos.String())
	}
	b.WriteString(": ")
	b.WriteString(ue.msg)
	b.WriteString("\nEncountered when evaluating\n  ")
	b.WriteString(owner.Code(nil))
	return b.String()
}

func unitString(u *unit.Unit) string {
	if u == nil {
		return "undefined"
	}
	return u.String()
}

// divUnits divides a by b with tolerant nil handling: an unknown
// divisor leaves a unchanged, an unknown dividend inverts b.
func divUnits(a, b *unit.Unit) *unit.Unit {
	if b == nil {
		return a
	}
	if a == nil {
		return b.Inv()
	}
	return a.Div(b)
}

func (e *Expr) evalUnit(mode unit.Mode) (*unit.Unit, error) {
	dimless := unit.Dimensionless
	strict := mode == unit.Strict

	switch e.op {
	case NumberOp:
		if e.unit != nil {
			return e.unit, nil
		}
		if strict {
			return dimless, nil
		}
		return nil, nil

	case NameOp:
		// The unit comes from the variable's declaration, never from
		// its RHS: an undeclared unit is simply unknown (or
		// dimensionless in strict mode), and following the RHS could
		// cycle.
		if v, ok := e.ref.(Variable); ok {
			return v.Unit(mode), nil
		}
		if strict {
			return dimless, nil
		}
		return nil, nil

	case DerivativeOp:
		u1, err := e.ops[0].evalUnit(mode)
		if err != nil {
			return nil, err
		}
		var u2 *unit.Unit
		if strict {
			u2 = dimless
		}
		if v := e.Var(); v != nil && v.Model() != nil {
			u2 = v.Model().TimeUnit(mode)
		}
		return divUnits(u1, u2), nil

	case PartialOp:
		u1, err := e.ops[0].evalUnit(mode)
		if err != nil {
			return nil, err
		}
		u2, err := e.ops[1].evalUnit(mode)
		if err != nil {
			return nil, err
		}
		return divUnits(u1, u2), nil

	case InitOp, PrefixPlusOp, PrefixMinusOp, FloorOp, CeilOp, AbsOp:
		return e.ops[0].evalUnit(mode)

	case PlusOp, MinusOp:
		u1, err := e.ops[0].evalUnit(mode)
		if err != nil {
			return nil, err
		}
		u2, err := e.ops[1].evalUnit(mode)
		if err != nil {
			return nil, err
		}
		switch {
		case unit.Same(u1, u2):
			return u1, nil
		case u1 == nil:
			return u2, nil
		case u2 == nil:
			return u1, nil
		}
		word := "addition"
		if e.op == MinusOp {
			word = "subtraction"
		}
		return nil, &unitErr{e, word + " requires equal units, got " +
			unitString(u1) + " and " + unitString(u2)}

	case MultiplyOp:
		u1, err := e.ops[0].evalUnit(mode)
		if err != nil {
			return nil, err
		}
		u2, err := e.ops[1].evalUnit(mode)
		if err != nil {
			return nil, err
		}
		if u1 == nil {
			return u2, nil
		}
		if u2 == nil {
			return u1, nil
		}
		return u1.Mul(u2), nil

	case DivideOp, QuotientOp:
		u1, err := e.ops[0].evalUnit(mode)
		if err != nil {
			return nil, err
		}
		u2, err := e.ops[1].evalUnit(mode)
		if err != nil {
			return nil, err
		}
		return divUnits(u1, u2), nil

	case RemainderOp:
		u1, err := e.ops[0].evalUnit(mode)
		if err != nil {
			return nil, err
		}
		// The divisor's unit is checked but discarded: the remainder
		// of a division has the dividend's unit.
		if _, err := e.ops[1].evalUnit(mode); err != nil {
			return nil, err
		}
		return u1, nil

	case PowerOp:
		u1, err := e.ops[0].evalUnit(mode)
		if err != nil {
			return nil, err
		}
		u2, err := e.ops[1].evalUnit(mode)
		if err != nil {
			return nil, err
		}
		if strict && !u2.Equal(dimless) {
			return nil, &unitErr{e, "exponent in power must be dimensionless"}
		}
		if u1 == nil {
			return nil, nil
		}
		f, err := e.ops[1].Eval(nil, DoublePrecision)
		if err != nil {
			return nil, err
		}
		u, perr := u1.PowFloat(f)
		if perr != nil {
			return nil, &unitErr{e, perr.Error()}
		}
		return u, nil

	case SqrtOp:
		u, err := e.ops[0].evalUnit(mode)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, nil
		}
		return u.Pow(unit.R(1, 2)), nil

	case SinOp, CosOp, TanOp, ASinOp, ACosOp, ATanOp, ExpOp, Log10Op:
		u, err := e.ops[0].evalUnit(mode)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, nil
		}
		if strict && !u.Equal(dimless) {
			return nil, &unitErr{e, "function " + opRep[e.op] + "() requires a dimensionless operand"}
		}
		return dimless, nil

	case LogOp:
		u1, err := e.ops[0].evalUnit(mode)
		if err != nil {
			return nil, err
		}
		if len(e.ops) == 1 {
			if u1 == nil {
				return nil, nil
			}
			if strict && !u1.Equal(dimless) {
				return nil, &unitErr{e, "log() requires a dimensionless operand"}
			}
			return dimless, nil
		}
		u2, err := e.ops[1].evalUnit(mode)
		if err != nil {
			return nil, err
		}
		if u1 == nil && u2 == nil {
			return nil, nil
		}
		if strict && !(u1.Equal(dimless) && u2.Equal(dimless)) {
			return nil, &unitErr{e, "log() requires dimensionless operands"}
		}
		return dimless, nil

	case IfOp:
		if _, err := e.ops[0].evalUnit(mode); err != nil {
			return nil, err
		}
		u2, err := e.ops[1].evalUnit(mode)
		if err != nil {
			return nil, err
		}
		u3, err := e.ops[2].evalUnit(mode)
		if err != nil {
			return nil, err
		}
		switch {
		case unit.Same(u2, u3):
			return u2, nil
		case u2 == nil:
			return u3, nil
		case u3 == nil:
			return u2, nil
		}
		return nil, &unitErr{e, "units of `then` and `else` part of an `if` must match, got " +
			unitString(u2) + " and " + unitString(u3)}

	case PiecewiseOp:
		m := len(e.ops) / 2
		for i := 0; i < m; i++ {
			if _, err := e.ops[2*i].evalUnit(mode); err != nil {
				return nil, err
			}
		}
		var found *unit.Unit
		known := false
		for i := 0; i <= m; i++ {
			branch := e.ops[len(e.ops)-1]
			if i < m {
				branch = e.ops[2*i+1]
			}
			u, err := branch.evalUnit(mode)
			if err != nil {
				return nil, err
			}
			if u == nil {
				continue
			}
			if !known {
				found, known = u, true
			} else if !found.Equal(u) {
				return nil, &unitErr{e, "all branches of a piecewise() must have the same unit"}
			}
		}
		return found, nil

	case NotOp:
		u, err := e.ops[0].evalUnit(mode)
		if err != nil {
			return nil, err
		}
		if u != nil && !u.Equal(dimless) {
			return nil, &unitErr{e, "operator `not` expects a dimensionless operand"}
		}
		return u, nil

	case EqualOp, NotEqualOp, LessOp, LessEqualOp, GreaterOp, GreaterEqualOp:
		u1, err := e.ops[0].evalUnit(mode)
		if err != nil {
			return nil, err
		}
		u2, err := e.ops[1].evalUnit(mode)
		if err != nil {
			return nil, err
		}
		if unit.Same(u1, u2) {
			if u1 == nil {
				return nil, nil
			}
			return dimless, nil
		}
		if u1 == nil || u2 == nil {
			return dimless, nil
		}
		return nil, &unitErr{e, "condition " + opRep[e.op] + " requires equal units on both sides, got " +
			unitString(u1) + " and " + unitString(u2)}

	case AndOp, OrOp:
		u1, err := e.ops[0].evalUnit(mode)
		if err != nil {
			return nil, err
		}
		u2, err := e.ops[1].evalUnit(mode)
		if err != nil {
			return nil, err
		}
		if u1 == nil && u2 == nil {
			return nil, nil
		}
		if (u1 == nil || u1.Equal(dimless)) && (u2 == nil || u2.Equal(dimless)) {
			return dimless, nil
		}
		return nil, &unitErr{e, "operator `" + opRep[e.op] + "` expects dimensionless operands"}
	}
	return nil, &unitErr{e, "cannot infer unit of " + e.op.String() + " expression"}
}
