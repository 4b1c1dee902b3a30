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
	"myokit.org/go/mmt/errors"
	"myokit.org/go/mmt/token"
	"myokit.org/go/mmt/unit"
)

// PartialDerivative returns an expression representing the derivative
// of this expression with respect to the given name.
//
// The result may contain partial() nodes representing the derivative
// of a state or intermediary variable with respect to lhs. Terms known
// to be exactly zero are eliminated, but no further simplification is
// performed; in particular multiplications by one are preserved, as
// they can carry unit conversions.
//
// Discontinuities are ignored: floor(), ceil(), integer division and
// the branch points of conditionals differentiate to the
// right-derivative, abs(x) differentiates to x' for x >= 0 and -x'
// below, and conditionals differentiate branchwise.
//
// If the expression does not depend on lhs the result is a zero
// number. Its unit is unit(e)/unit(lhs) in tolerant mode, or absent
// when either unit is unknown.
func (e *Expr) PartialDerivative(lhs *Expr) (*Expr, error) {
	if lhs == nil || lhs.op != NameOp {
		return nil, errors.Integrity(token.NoPos,
			"partial derivatives can only be taken with respect to a variable name")
	}
	v := lhs.Var()
	if v == nil {
		return nil, errors.Integrity(lhs.pos(),
			"partial derivatives require a name that refers to a variable")
	}

	// Differentiating with respect to a constant: temporarily rebind
	// it, so that the traversal below does not short-circuit it as a
	// constant. The restore runs on every exit path.
	if v.IsConstant() {
		if tb, ok := v.(TempBinder); ok {
			restore := tb.BindTemporarily()
			defer restore()
		}
	}

	d, err := e.pd(lhs)
	if err != nil {
		return nil, err
	}
	if d == nil {
		d = NumberUnit(0, e.partialDerivUnit(lhs))
	}
	return d, nil
}

// partialDerivUnit returns the unit a derivative of this expression
// with respect to lhs should have, or nil if it cannot be determined.
func (e *Expr) partialDerivUnit(lhs *Expr) *unit.Unit {
	u1, err := e.EvalUnit(unit.Tolerant)
	if err != nil || u1 == nil {
		return nil
	}
	v := lhs.Var()
	if v == nil {
		return nil
	}
	u2 := v.Unit(unit.Tolerant)
	if u2 == nil {
		return nil
	}
	return u1.Div(u2)
}

// pd is the recursive part of PartialDerivative. It may assume lhs is
// a name referring to a non-constant variable, and returns nil for a
// derivative that is known to be exactly zero (of unknown unit).
func (e *Expr) pd(lhs *Expr) (*Expr, error) {
	switch e.op {
	case NumberOp:
		return nil, nil

	case NameOp:
		if e.Equals(lhs) {
			return NumberUnit(1, unit.Dimensionless), nil
		}
		v := e.Var()
		if v == nil {
			return nil, errors.Integrity(e.pos(),
				"cannot differentiate unlinked name %s", e.Code(nil))
		}
		// Bound variables are external inputs, and constants have been
		// rebound if they were the target: neither depends on lhs.
		if v.IsBound() || v.IsConstant() {
			return nil, nil
		}
		return Partial(e, lhs), nil

	case DerivativeOp:
		return Partial(e, lhs), nil

	case PartialOp, InitOp:
		return nil, errors.Integrity(e.pos(),
			"partial derivatives of %s() expressions are not supported", opRep[e.op])

	case PrefixPlusOp:
		d, err := e.ops[0].pd(lhs)
		if d == nil || err != nil {
			return nil, err
		}
		return PrefixPlus(d), nil

	case PrefixMinusOp:
		d, err := e.ops[0].pd(lhs)
		if d == nil || err != nil {
			return nil, err
		}
		return PrefixMinus(d), nil

	case PlusOp:
		a, b, err := e.pd2(lhs)
		if err != nil {
			return nil, err
		}
		switch {
		case a == nil:
			return b, nil
		case b == nil:
			return a, nil
		}
		return Plus(a, b), nil

	case MinusOp:
		a, b, err := e.pd2(lhs)
		if err != nil {
			return nil, err
		}
		switch {
		case b == nil:
			return a, nil
		case a == nil:
			return PrefixMinus(b), nil
		}
		return Minus(a, b), nil

	case MultiplyOp:
		a, b, err := e.pd2(lhs)
		if err != nil {
			return nil, err
		}
		f, g := e.ops[0], e.ops[1]
		switch {
		case a == nil && b == nil:
			return nil, nil
		case b == nil:
			return Multiply(a, g), nil
		case a == nil:
			return Multiply(f, b), nil
		}
		return Plus(Multiply(a, g), Multiply(f, b)), nil

	case DivideOp:
		a, b, err := e.pd2(lhs)
		if err != nil {
			return nil, err
		}
		f, g := e.ops[0], e.ops[1]
		switch {
		case a == nil && b == nil:
			return nil, nil
		case b == nil:
			// g f' / g^2 = f' / g
			return Divide(a, g), nil
		case a == nil:
			// -(f g') / g^2
			return PrefixMinus(Divide(
				Multiply(f, b),
				Power(g, Number(2)),
			)), nil
		}
		// (f' g - f g') / g^2
		return Divide(
			Minus(Multiply(a, g), Multiply(f, b)),
			Power(g, Number(2)),
		), nil

	case QuotientOp:
		// a // b is flat between its discontinuities; ignoring the
		// jumps, the derivative is zero everywhere.
		return nil, nil

	case RemainderOp:
		// a % b = a - b*floor(a/b), and floor differentiates to zero,
		// leaving a' - b'*floor(a/b).
		a, b, err := e.pd2(lhs)
		if err != nil {
			return nil, err
		}
		f, g := e.ops[0], e.ops[1]
		switch {
		case a == nil && b == nil:
			return nil, nil
		case b == nil:
			return a, nil
		case a == nil:
			return PrefixMinus(Multiply(b, Floor(Divide(f, g)))), nil
		}
		return Minus(a, Multiply(b, Floor(Divide(f, g)))), nil

	case PowerOp:
		// Derived via a^b = exp(b ln a), which is fine: a^b is only
		// defined for fractional b when a >= 0.
		a, b, err := e.pd2(lhs)
		if err != nil {
			return nil, err
		}
		f, g := e.ops[0], e.ops[1]
		switch {
		case a == nil && b == nil:
			return nil, nil
		case b == nil:
			// b * a^(b-1) * a'
			return Multiply(
				Multiply(g, Power(f, Minus(g, Number(1)))),
				a,
			), nil
		case a == nil:
			// a^b * b' / ln a
			return Divide(Multiply(e, b), Log(f)), nil
		}
		// a^b * (ln a * b' + (b/a) * a')
		return Multiply(e, Plus(
			Multiply(Log(f), b),
			Multiply(Divide(g, f), a),
		)), nil

	case SqrtOp:
		d, err := e.ops[0].pd(lhs)
		if d == nil || err != nil {
			return nil, err
		}
		return Divide(d, Multiply(Number(2), e)), nil

	case SinOp:
		d, err := e.ops[0].pd(lhs)
		if d == nil || err != nil {
			return nil, err
		}
		return Multiply(Cos(e.ops[0]), d), nil

	case CosOp:
		d, err := e.ops[0].pd(lhs)
		if d == nil || err != nil {
			return nil, err
		}
		return PrefixMinus(Multiply(Sin(e.ops[0]), d)), nil

	case TanOp:
		d, err := e.ops[0].pd(lhs)
		if d == nil || err != nil {
			return nil, err
		}
		return Divide(d, Power(Cos(e.ops[0]), Number(2))), nil

	case ASinOp:
		d, err := e.ops[0].pd(lhs)
		if d == nil || err != nil {
			return nil, err
		}
		return Divide(d, Sqrt(Minus(Number(1), Power(e.ops[0], Number(2))))), nil

	case ACosOp:
		d, err := e.ops[0].pd(lhs)
		if d == nil || err != nil {
			return nil, err
		}
		return Divide(
			PrefixMinus(d),
			Sqrt(Minus(Number(1), Power(e.ops[0], Number(2)))),
		), nil

	case ATanOp:
		d, err := e.ops[0].pd(lhs)
		if d == nil || err != nil {
			return nil, err
		}
		return Divide(d, Plus(Number(1), Power(e.ops[0], Number(2)))), nil

	case ExpOp:
		d, err := e.ops[0].pd(lhs)
		if d == nil || err != nil {
			return nil, err
		}
		return Multiply(e, d), nil

	case LogOp:
		return e.pdLog(lhs)

	case Log10Op:
		d, err := e.ops[0].pd(lhs)
		if d == nil || err != nil {
			return nil, err
		}
		return Divide(d, Multiply(e.ops[0], Log(Number(10)))), nil

	case FloorOp, CeilOp:
		// Stepwise constant; the discontinuities are ignored.
		return nil, nil

	case AbsOp:
		d, err := e.ops[0].pd(lhs)
		if d == nil || err != nil {
			return nil, err
		}
		// The zero in the comparison carries the operand's unit, not
		// the derivative's.
		u, uerr := e.ops[0].EvalUnit(unit.Tolerant)
		if uerr != nil {
			u = nil
		}
		return If(GreaterEqual(e.ops[0], NumberUnit(0, u)), d, PrefixMinus(d)), nil

	case IfOp:
		t, err := e.ops[1].pd(lhs)
		if err != nil {
			return nil, err
		}
		f, err := e.ops[2].pd(lhs)
		if err != nil {
			return nil, err
		}
		if t == nil && f == nil {
			return nil, nil
		}
		if t != nil && f != nil {
			return If(e.ops[0], t, f), nil
		}
		zero := NumberUnit(0, e.partialDerivUnit(lhs))
		if t == nil {
			return If(e.ops[0], zero, f), nil
		}
		return If(e.ops[0], t, zero), nil

	case PiecewiseOp:
		m := len(e.ops) / 2
		dops := make([]*Expr, m+1)
		allNil := true
		for i := 0; i <= m; i++ {
			branch := e.ops[len(e.ops)-1]
			if i < m {
				branch = e.ops[2*i+1]
			}
			d, err := branch.pd(lhs)
			if err != nil {
				return nil, err
			}
			dops[i] = d
			allNil = allNil && d == nil
		}
		if allNil {
			return nil, nil
		}
		var zero *Expr
		for i, d := range dops {
			if d == nil {
				if zero == nil {
					zero = NumberUnit(0, e.partialDerivUnit(lhs))
				}
				dops[i] = zero
			}
		}
		ops := make([]*Expr, len(e.ops))
		for i := 0; i < m; i++ {
			ops[2*i] = e.ops[2*i]
			ops[2*i+1] = dops[i]
		}
		ops[len(ops)-1] = dops[m]
		return Piecewise(ops...), nil
	}

	// Conditions: a boolean has no derivative.
	return nil, errors.Integrity(e.pos(),
		"conditions do not have partial derivatives")
}

// pd2 differentiates both operands of a binary node.
func (e *Expr) pd2(lhs *Expr) (a, b *Expr, err error) {
	a, err = e.ops[0].pd(lhs)
	if err != nil {
		return nil, nil, err
	}
	b, err = e.ops[1].pd(lhs)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

// pdLog handles the one and two argument forms of log().
func (e *Expr) pdLog(lhs *Expr) (*Expr, error) {
	if len(e.ops) == 1 {
		d, err := e.ops[0].pd(lhs)
		if d == nil || err != nil {
			return nil, err
		}
		return Divide(d, e.ops[0]), nil
	}

	// log(b, a) = ln b / ln a.
	b, a := e.ops[0], e.ops[1]
	db, err := b.pd(lhs)
	if err != nil {
		return nil, err
	}
	da, err := a.pd(lhs)
	if err != nil {
		return nil, err
	}
	switch {
	case db == nil && da == nil:
		return nil, nil
	case da == nil:
		// b' / (b ln a)
		return Divide(db, Multiply(b, Log(a))), nil
	case db == nil:
		// -(a' ln b) / (a ln(a)^2)
		return PrefixMinus(Divide(
			Multiply(da, Log(b)),
			Multiply(a, Power(Log(a), Number(2))),
		)), nil
	}
	// b' / (b ln a) - (a' ln b) / (a ln(a)^2)
	return Minus(
		Divide(db, Multiply(b, Log(a))),
		Divide(
			Multiply(da, Log(b)),
			Multiply(a, Power(Log(a), Number(2))),
		),
	), nil
}
