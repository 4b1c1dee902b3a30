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
	"testing"

	"github.com/go-quicktest/qt"
	"github.com/google/go-cmp/cmp/cmpopts"

	"myokit.org/go/mmt/errors"
	"myokit.org/go/mmt/unit"
)

// derive differentiates e with respect to x and evaluates the result
// with x substituted by at.
func derive(t *testing.T, e *Expr, x *Expr, at float64) float64 {
	t.Helper()
	d, err := e.PartialDerivative(x)
	qt.Assert(t, qt.IsNil(err))
	v, err := d.Eval(Subst{x: Number(at)}, DoublePrecision)
	qt.Assert(t, qt.IsNil(err))
	return v
}

func TestDerivativeBasics(t *testing.T) {
	xv := &testVar{name: "x"}
	x := Name(xv)
	n := func(v float64) *Expr { return Number(v) }

	// d(x*x)/dx at x=3.
	qt.Assert(t, qt.Equals(derive(t, Multiply(x, x), x, 3), 6.0))
	qt.Assert(t, qt.Equals(derive(t, Plus(x, n(2)), x, 3), 1.0))
	qt.Assert(t, qt.Equals(derive(t, Minus(n(2), x), x, 3), -1.0))
	qt.Assert(t, qt.Equals(derive(t, PrefixMinus(x), x, 3), -1.0))
	qt.Assert(t, qt.Equals(derive(t, Divide(x, n(2)), x, 3), 0.5))
	qt.Assert(t, qt.Equals(derive(t, Divide(n(1), x), x, 2), -0.25))
	qt.Assert(t, qt.Equals(derive(t, Power(x, n(3)), x, 2), 12.0))
	qt.Assert(t, qt.Equals(derive(t, Sqrt(x), x, 25), 0.1))
	qt.Assert(t, qt.Equals(derive(t, Exp(x), x, 0), 1.0))
	qt.Assert(t, qt.Equals(derive(t, Log(x), x, 4), 0.25))
	qt.Assert(t, qt.Equals(derive(t, Sin(x), x, 0), 1.0))
	qt.Assert(t, qt.Equals(derive(t, Cos(x), x, 0), 0.0))
	qt.Assert(t, qt.Equals(derive(t, Remainder(x, n(3)), x, 4), 1.0))
}

func TestDerivativeZeroElimination(t *testing.T) {
	xv := &testVar{name: "x", unit: unit.Second}
	x := Name(xv)
	bv := &testVar{name: "b", bound: true, unit: unit.Volt}

	// An expression that does not depend on x differentiates to a
	// zero carrying unit(e)/unit(x).
	e := Plus(Number(2), Name(bv))
	d, err := e.PartialDerivative(x)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(d.IsNumber(0)))
	qt.Assert(t, qt.IsTrue(d.Unit().Equal(unit.Volt.Div(unit.Second))))

	// With unknown units the zero carries none.
	d, err = Number(5).PartialDerivative(Name(&testVar{name: "y"}))
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(d.IsNumber(0)))
	qt.Assert(t, qt.IsNil(d.Unit()))

	// Discontinuous kinds differentiate to zero outright.
	for _, e := range []*Expr{
		Quotient(x, Number(3)),
		Floor(x),
		Ceil(x),
	} {
		d, err := e.PartialDerivative(x)
		qt.Assert(t, qt.IsNil(err))
		qt.Assert(t, qt.IsTrue(d.IsNumber(0)), qt.Commentf("derivative of %s", e))
	}
}

func TestDerivativeNames(t *testing.T) {
	xv := &testVar{name: "x"}
	x := Name(xv)

	// dx/dx = 1, dimensionless.
	d, err := x.PartialDerivative(x)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(d.IsNumber(1)))
	qt.Assert(t, qt.IsTrue(d.Unit().IsDimensionless()))

	// A free intermediary variable leaves a partial() symbol.
	yv := &testVar{name: "y", qname: "c.y"}
	d, err = Name(yv).PartialDerivative(x)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(d.Op(), PartialOp))
	qt.Assert(t, qt.Equals(d.Code(nil), "partial(c.y, x)"))

	// A dot() reference leaves a partial() of the derivative.
	sv := &testVar{name: "s", qname: "c.s", state: true}
	d, err = Derivative(Name(sv)).PartialDerivative(x)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(d.Code(nil), "partial(dot(c.s), x)"))
}

func TestDerivativeOfConstantTarget(t *testing.T) {
	cv := &testVar{name: "c", constant: true, rhs: Number(4)}
	c := Name(cv)

	// The constant target is temporarily rebound, so that it is not
	// short-circuited as a constant; afterwards the binding is
	// restored.
	d, err := Multiply(Number(2), c).PartialDerivative(c)
	qt.Assert(t, qt.IsNil(err))
	v, err := d.Eval(nil, DoublePrecision)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v, 2.0))
	qt.Assert(t, qt.IsFalse(cv.bound))
	qt.Assert(t, qt.IsTrue(cv.IsConstant()))

	// Other constants still short-circuit to zero terms.
	ov := &testVar{name: "o", constant: true, rhs: Number(9)}
	d, err = Multiply(Name(ov), c).PartialDerivative(c)
	qt.Assert(t, qt.IsNil(err))
	v, err = d.Eval(nil, DoublePrecision)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v, 9.0))
}

func TestDerivativeConditionals(t *testing.T) {
	xv := &testVar{name: "x"}
	x := Name(xv)
	n := func(v float64) *Expr { return Number(v) }

	// if() differentiates branchwise.
	e := If(Less(x, n(0)), Multiply(n(2), x), Multiply(n(3), x))
	qt.Assert(t, qt.Equals(derive(t, e, x, -1), 2.0))
	qt.Assert(t, qt.Equals(derive(t, e, x, 1), 3.0))

	// A branch that does not depend on x becomes a typed zero.
	e = If(Less(x, n(0)), Multiply(n(2), x), n(7))
	d, err := e.PartialDerivative(x)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(d.Op(), IfOp))
	qt.Assert(t, qt.IsTrue(d.Operand(2).IsNumber(0)))

	e = Piecewise(Less(x, n(0)), Multiply(n(2), x), n(7))
	d, err = e.PartialDerivative(x)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(d.Op(), PiecewiseOp))
	qt.Assert(t, qt.IsTrue(d.Operand(2).IsNumber(0)))
	v, err := d.Eval(Subst{x: n(-1)}, DoublePrecision)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v, 2.0))

	// abs() turns into a sign-switching conditional.
	d, err = Abs(Multiply(n(2), x)).PartialDerivative(x)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(d.Op(), IfOp))
	v, err = d.Eval(Subst{x: n(3)}, DoublePrecision)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v, 2.0))
	v, err = d.Eval(Subst{x: n(-3)}, DoublePrecision)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v, -2.0))
}

func TestDerivativePower(t *testing.T) {
	xv := &testVar{name: "x"}
	x := Name(xv)
	n := func(v float64) *Expr { return Number(v) }

	// Exponent depends on x: the reduced form a^b * b' / ln(a) is
	// used.
	d, err := Power(n(2), x).PartialDerivative(x)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(d.Equals(
		Divide(Multiply(Power(n(2), x), Number(1)), Log(n(2))))))
	v, err := d.Eval(Subst{x: n(3)}, DoublePrecision)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.CmpEquals(v, 8/mathLog2, floatNear))

	// Both sides depend on x: x^x at 1 differentiates to 1.
	d, err = Power(x, x).PartialDerivative(x)
	qt.Assert(t, qt.IsNil(err))
	v, err = d.Eval(Subst{x: n(1)}, DoublePrecision)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v, 1.0))
}

func TestDerivativeContract(t *testing.T) {
	xv := &testVar{name: "x"}
	x := Name(xv)

	// Only names can be differentiation targets.
	_, err := Number(1).PartialDerivative(Number(2))
	qt.Assert(t, qt.IsTrue(errors.IsIntegrity(err)))
	_, err = Number(1).PartialDerivative(nil)
	qt.Assert(t, qt.IsTrue(errors.IsIntegrity(err)))

	// Conditions and already-reduced derivative symbols cannot be
	// differentiated.
	_, err = Equal(x, Number(1)).PartialDerivative(x)
	qt.Assert(t, qt.IsTrue(errors.IsIntegrity(err)))
	sv := &testVar{name: "s", state: true}
	_, err = Multiply(Number(2), Partial(Name(sv), x)).PartialDerivative(x)
	qt.Assert(t, qt.IsTrue(errors.IsIntegrity(err)))
	_, err = Multiply(Number(2), Init(Name(sv))).PartialDerivative(x)
	qt.Assert(t, qt.IsTrue(errors.IsIntegrity(err)))
}

func TestDerivativeNoNewPartials(t *testing.T) {
	// If every reference is bound or constant, the derivative of a
	// partial-free tree stays partial-free.
	bv := &testVar{name: "b", bound: true}
	cv := &testVar{name: "c", constant: true, rhs: Number(2)}
	xv := &testVar{name: "x"}
	x := Name(xv)

	e := Plus(Multiply(Name(bv), x), Name(cv))
	qt.Assert(t, qt.IsFalse(e.ContainsOp(PartialOp)))
	d, err := e.PartialDerivative(x)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsFalse(d.ContainsOp(PartialOp)))
}

// Multiplications by one are preserved: they can carry unit
// conversions.
func TestDerivativeKeepsUnitMultiplications(t *testing.T) {
	xv := &testVar{name: "x"}
	x := Name(xv)

	d, err := Multiply(Number(1), x).PartialDerivative(x)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(d.Equals(Multiply(Number(1), Number(1)))))
}

const mathLog2 = 0.6931471805599453

var floatNear = cmpopts.EquateApprox(0, 1e-12)
