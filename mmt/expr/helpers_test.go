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

import "myokit.org/go/mmt/unit"

// testModel is a minimal model for engine tests.
type testModel struct {
	timeUnit *unit.Unit
}

func (m *testModel) TimeUnit(mode unit.Mode) *unit.Unit {
	if m.timeUnit == nil && mode == unit.Strict {
		return unit.Dimensionless
	}
	return m.timeUnit
}

// testVar is a minimal variable handle for engine tests.
type testVar struct {
	name     string
	qname    string
	unit     *unit.Unit
	state    bool
	stateVal float64
	bound    bool
	nested   bool
	constant bool
	rhs      *Expr
	model    *testModel
}

func (v *testVar) Name() string { return v.name }

func (v *testVar) QName(c Component) string {
	if v.qname != "" {
		return v.qname
	}
	return v.name
}

func (v *testVar) Unit(mode unit.Mode) *unit.Unit {
	if v.unit == nil && mode == unit.Strict {
		return unit.Dimensionless
	}
	return v.unit
}

func (v *testVar) IsState() bool    { return v.state }
func (v *testVar) IsConstant() bool { return v.constant && !v.bound }
func (v *testVar) IsBound() bool    { return v.bound }
func (v *testVar) IsNested() bool   { return v.nested }

func (v *testVar) StateValue() float64 { return v.stateVal }
func (v *testVar) RHS() *Expr          { return v.rhs }

func (v *testVar) Model() Model {
	if v.model == nil {
		return nil
	}
	return v.model
}

func (v *testVar) BindTemporarily() (restore func()) {
	prev := v.bound
	v.bound = true
	return func() { v.bound = prev }
}

var (
	_ Variable   = (*testVar)(nil)
	_ TempBinder = (*testVar)(nil)
)

// testComp is a minimal component for renderer tests.
type testComp struct {
	name    string
	aliases map[Variable]string
}

func (c *testComp) AliasFor(v Variable) (string, bool) {
	alias, ok := c.aliases[v]
	return alias, ok
}
