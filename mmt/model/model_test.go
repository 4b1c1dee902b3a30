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

package model

import (
	"testing"

	"github.com/go-quicktest/qt"

	"myokit.org/go/mmt/expr"
	"myokit.org/go/mmt/unit"
)

// build creates a small two-component model:
//
//	[engine]  time (bound, ms)
//	[membrane]  V (state, mV), C = 1 [uF]
func build(t *testing.T) (*Model, *Variable, *Variable) {
	t.Helper()
	m := New("test")

	engine, err := m.AddComponent("engine")
	qt.Assert(t, qt.IsNil(err))
	tv, err := engine.AddVariable("time")
	qt.Assert(t, qt.IsNil(err))
	tv.SetUnit(unit.MustParse("ms"))
	m.BindTime(tv)

	membrane, err := m.AddComponent("membrane")
	qt.Assert(t, qt.IsNil(err))
	v, err := membrane.AddVariable("V")
	qt.Assert(t, qt.IsNil(err))
	v.SetUnit(unit.MustParse("mV"))
	v.Promote(-84.5)

	c, err := membrane.AddVariable("C")
	qt.Assert(t, qt.IsNil(err))
	c.SetUnit(unit.MustParse("uF"))
	c.SetRHS(expr.Number(1))

	return m, v, c
}

func TestNaming(t *testing.T) {
	m, v, c := build(t)

	qt.Assert(t, qt.Equals(v.Name(), "V"))
	qt.Assert(t, qt.Equals(v.QName(nil), "membrane.V"))
	qt.Assert(t, qt.Equals(v.QName(v.Component()), "V"))
	qt.Assert(t, qt.Equals(c.QName(nil), "membrane.C"))

	// Nested variables chain their parent's qualified name.
	i, err := v.AddVariable("i")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(i.IsNested()))
	qt.Assert(t, qt.Equals(i.QName(nil), "membrane.V.i"))
	qt.Assert(t, qt.Equals(m.Get("membrane.V.i"), i))
}

func TestLookup(t *testing.T) {
	m, v, _ := build(t)

	got, ok := m.Lookup("membrane.V")
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(got, expr.Variable(v)))

	_, ok = m.Lookup("membrane.missing")
	qt.Assert(t, qt.IsFalse(ok))
	_, ok = m.Lookup("V")
	qt.Assert(t, qt.IsFalse(ok))
}

func TestDuplicateNames(t *testing.T) {
	m, _, _ := build(t)
	_, err := m.AddComponent("membrane")
	qt.Assert(t, qt.ErrorMatches(err, `.*duplicate component name.*`))
	_, err = m.Component("membrane").AddVariable("V")
	qt.Assert(t, qt.ErrorMatches(err, `.*duplicate variable name.*`))
	_, err = m.Component("membrane").AddVariable("bad name")
	qt.Assert(t, qt.ErrorMatches(err, `.*invalid name.*`))
}

func TestFlags(t *testing.T) {
	_, v, c := build(t)

	qt.Assert(t, qt.IsTrue(v.IsState()))
	qt.Assert(t, qt.IsFalse(v.IsConstant()))
	qt.Assert(t, qt.Equals(v.StateValue(), -84.5))

	qt.Assert(t, qt.IsFalse(c.IsState()))
	qt.Assert(t, qt.IsTrue(c.IsConstant()))

	// A variable whose RHS references a state is not constant.
	d := c
	d.SetRHS(expr.Multiply(expr.Number(2), expr.Name(v)))
	qt.Assert(t, qt.IsFalse(d.IsConstant()))
}

func TestTimeUnit(t *testing.T) {
	m, _, _ := build(t)
	qt.Assert(t, qt.IsTrue(m.TimeUnit(unit.Tolerant).Equal(unit.MustParse("ms"))))

	empty := New("empty")
	qt.Assert(t, qt.IsNil(empty.TimeUnit(unit.Tolerant)))
	qt.Assert(t, qt.IsTrue(empty.TimeUnit(unit.Strict).IsDimensionless()))
}

func TestAliases(t *testing.T) {
	m, v, _ := build(t)
	ina, err := m.AddComponent("ina")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsNil(ina.AddAlias("Vm", v)))

	alias, ok := ina.AliasFor(v)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(alias, "Vm"))

	// The renderer picks the alias up through the component context.
	qt.Assert(t, qt.Equals(expr.Name(v).Code(ina), "Vm"))
	qt.Assert(t, qt.Equals(expr.Name(v).Code(nil), "membrane.V"))

	// Aliases within the owning component are rejected.
	err = m.Component("membrane").AddAlias("me", v)
	qt.Assert(t, qt.ErrorMatches(err, `.*same component.*`))
}

func TestBindTemporarily(t *testing.T) {
	_, _, c := build(t)

	qt.Assert(t, qt.IsTrue(c.IsConstant()))
	restore := c.BindTemporarily()
	qt.Assert(t, qt.IsTrue(c.IsBound()))
	qt.Assert(t, qt.IsFalse(c.IsConstant()))
	restore()
	qt.Assert(t, qt.IsFalse(c.IsBound()))
	qt.Assert(t, qt.IsTrue(c.IsConstant()))

	// Nested rebinding picks distinct labels.
	r1 := c.BindTemporarily()
	label1 := c.Binding()
	r2 := c.BindTemporarily()
	qt.Assert(t, qt.IsFalse(c.Binding() == label1))
	r2()
	qt.Assert(t, qt.Equals(c.Binding(), label1))
	r1()
	qt.Assert(t, qt.IsFalse(c.IsBound()))
}

func TestComponentsOrder(t *testing.T) {
	m, _, _ := build(t)
	var names []string
	for _, c := range m.Components() {
		names = append(names, c.Name())
	}
	qt.Assert(t, qt.DeepEquals(names, []string{"engine", "membrane"}))
}

func TestEngineIntegration(t *testing.T) {
	_, v, c := build(t)

	// dot(V) = -(V + 10) / C, exercised through the engine.
	rhs := expr.Divide(
		expr.PrefixMinus(expr.Plus(expr.Name(v), expr.NumberUnit(10, unit.MustParse("mV")))),
		expr.Name(c),
	)
	v.SetRHS(rhs)
	qt.Assert(t, qt.IsNil(rhs.Validate()))

	// Evaluation pulls the state value through the handle.
	got, err := rhs.Eval(nil, expr.DoublePrecision)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(got, 74.5))

	// Unit inference uses declared units: mV / uF.
	u, err := rhs.EvalUnit(unit.Tolerant)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(u.Equal(unit.MustParse("mV/uF"))))
}
