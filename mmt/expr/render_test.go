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

	"myokit.org/go/mmt/unit"
)

func TestFloatString(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{5, "5"},
		{5.0, "5"},
		{-5, "-5"},
		{1.5, "1.5"},
		{0.001, "0.001"},
		{1e-5, "1e-5"},
		{1e-7, "1e-7"},
		{100000, "100000"},
		{1e16, "1e16"},
		{1e100, "1e100"},
		{1.25e-8, "1.25e-8"},
		{0, "0"},
	}
	for _, tc := range tests {
		qt.Assert(t, qt.Equals(floatString(tc.in), tc.want), qt.Commentf("%v", tc.in))
	}
}

func TestNumberCode(t *testing.T) {
	qt.Assert(t, qt.Equals(Number(5).Code(nil), "5"))
	qt.Assert(t, qt.Equals(NumberUnit(5, unit.Volt).Code(nil), "5 [V]"))
	qt.Assert(t, qt.Equals(NumberUnit(5, unit.MustParse("mV")).Code(nil), "5 [mV]"))
	qt.Assert(t, qt.Equals(NumberUnit(5, unit.Dimensionless).Code(nil), "5"))
}

func TestParenthesisation(t *testing.T) {
	n := func(v float64) *Expr { return Number(v) }
	tests := []struct {
		expr *Expr
		want string
	}{
		// Right-associative parenthesisation of - and /.
		{Minus(n(1), Minus(n(2), n(3))), "1 - (2 - 3)"},
		{Minus(Minus(n(1), n(2)), n(3)), "1 - 2 - 3"},
		{Divide(n(1), Divide(n(2), n(3))), "1 / (2 / 3)"},
		{Divide(Divide(n(1), n(2)), n(3)), "1 / 2 / 3"},

		// Lower precedence operands need brackets on either side.
		{Multiply(n(2), Plus(n(5), n(3))), "2 * (5 + 3)"},
		{Multiply(Plus(n(5), n(3)), n(2)), "(5 + 3) * 2"},
		{Plus(n(1), Multiply(n(2), n(3))), "1 + 2 * 3"},

		// Power binds tighter than prefix minus.
		{PrefixMinus(Power(n(2), n(3))), "-2 ^ 3"},
		{PrefixMinus(Plus(n(1), n(2))), "-(1 + 2)"},
		{PrefixMinus(n(1)), "-1"},
		{PrefixPlus(n(1)), "+1"},
		{Power(PrefixMinus(n(2)), n(3)), "(-2) ^ 3"},
		{Power(Power(n(2), n(3)), n(2)), "2 ^ 3 ^ 2"},
		{Power(n(2), Power(n(3), n(2))), "2 ^ (3 ^ 2)"},

		// Function arguments never need brackets.
		{Sqrt(Plus(n(1), n(2))), "sqrt(1 + 2)"},
		{LogBase(n(256), n(2)), "log(256, 2)"},

		// Conditions.
		{Not(Equal(n(1), n(1))), "not (1 == 1)"},
		{And(Equal(n(2), n(2)), Not(Greater(n(1), n(2)))), "2 == 2 and not (1 > 2)"},
		{If(Less(n(1), n(2)), n(1), n(2)), "if(1 < 2, 1, 2)"},
		{Piecewise(Less(n(1), n(2)), n(1), n(2)), "piecewise(1 < 2, 1, 2)"},

		{Quotient(n(7), n(3)), "7 // 3"},
		{Remainder(n(7), n(3)), "7 % 3"},
	}
	for _, tc := range tests {
		qt.Assert(t, qt.Equals(tc.expr.Code(nil), tc.want))
	}
}

func TestNameRendering(t *testing.T) {
	v := &testVar{name: "V", qname: "membrane.V"}
	nested := &testVar{name: "alpha", qname: "ina.m.alpha", nested: true}

	// Qualified name without component context.
	qt.Assert(t, qt.Equals(Name(v).Code(nil), "membrane.V"))

	// Nested variables render short names.
	qt.Assert(t, qt.Equals(Name(nested).Code(nil), "alpha"))

	// An alias defined on the context component wins.
	c := &testComp{name: "ina", aliases: map[Variable]string{v: "Vm"}}
	qt.Assert(t, qt.Equals(Name(v).Code(c), "Vm"))
	qt.Assert(t, qt.Equals(Plus(Name(v), Number(1)).Code(c), "Vm + 1"))

	// Debug strings are marked as such.
	qt.Assert(t, qt.Equals(Name("hello").Code(nil), "str:hello"))
}

func TestLhsRendering(t *testing.T) {
	v := &testVar{name: "V", qname: "membrane.V", state: true}
	w := &testVar{name: "w", qname: "c.w"}

	qt.Assert(t, qt.Equals(Derivative(Name(v)).Code(nil), "dot(membrane.V)"))
	qt.Assert(t, qt.Equals(Init(Name(v)).Code(nil), "init(membrane.V)"))
	qt.Assert(t, qt.Equals(
		Partial(Name(v), Name(w)).Code(nil), "partial(membrane.V, c.w)"))
}

func TestPolish(t *testing.T) {
	x := &testVar{name: "x", state: true}

	// Deterministic and structure-only.
	e := Plus(Number(1), Multiply(Number(2), Number(3)))
	qt.Assert(t, qt.Equals(e.Polish(), "+ 1 * 2 3"))
	qt.Assert(t, qt.Equals(e.Polish(), e.Clone(nil, false).Polish()))

	qt.Assert(t, qt.Equals(PrefixMinus(Number(1)).Polish(), "~ 1"))
	qt.Assert(t, qt.Equals(Sqrt(Number(25)).Polish(), "sqrt 1 25"))
	qt.Assert(t, qt.Equals(
		If(Less(Number(1), Number(2)), Number(3), Number(4)).Polish(),
		"if 3 < 1 2 3 4"))

	// partial() writes a separator between its operands, so that
	// adjacent identities cannot run together.
	p := Partial(Name(x), Name(x)).Polish()
	qt.Assert(t, qt.Matches(p, `partial var:0x[0-9a-f]+ var:0x[0-9a-f]+`))
}

func TestTreeString(t *testing.T) {
	e := Plus(Number(5), Multiply(Number(2), Number(3)))
	qt.Assert(t, qt.Equals(e.TreeString(), "+\n  5\n  *\n    2\n    3\n"))
}
