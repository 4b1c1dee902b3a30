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

// Package model implements the variable container consumed by the
// expression engine.
//
// A Model owns components; a component owns variables and aliases;
// variables own their defining right-hand sides and may own nested
// child variables. Expressions hold non-owning handles into the
// container, so a model must outlive every expression tree built over
// its variables.
package model

import (
	"fmt"
	"strconv"
	"strings"

	"myokit.org/go/mmt/expr"
	"myokit.org/go/mmt/unit"
)

// A Model is a named collection of components.
type Model struct {
	name     string
	comps    map[string]*Component
	order    []string
	time     *Variable
	labelSeq int
}

// New creates an empty model.
func New(name string) *Model {
	return &Model{name: name, comps: map[string]*Component{}}
}

// Name returns the model's name.
func (m *Model) Name() string { return m.name }

// AddComponent adds a component with the given name.
func (m *Model) AddComponent(name string) (*Component, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if _, ok := m.comps[name]; ok {
		return nil, fmt.Errorf("model: duplicate component name %q", name)
	}
	c := &Component{model: m, name: name, vars: map[string]*Variable{}, aliases: map[string]*Variable{}}
	m.comps[name] = c
	m.order = append(m.order, name)
	return c, nil
}

// Component returns the named component, or nil.
func (m *Model) Component(name string) *Component { return m.comps[name] }

// Components returns the model's components in creation order.
func (m *Model) Components() []*Component {
	cs := make([]*Component, len(m.order))
	for i, n := range m.order {
		cs[i] = m.comps[n]
	}
	return cs
}

// BindTime marks v as the model's time variable. The variable is bound
// to the external time input and its declared unit becomes the model's
// time unit.
func (m *Model) BindTime(v *Variable) {
	v.binding = "time"
	m.time = v
}

// TimeUnit returns the unit of the model's time variable. With no time
// variable, or no declared unit on it, the unit is unknown (nil in
// tolerant mode, dimensionless in strict mode).
func (m *Model) TimeUnit(mode unit.Mode) *unit.Unit {
	if m == nil || m.time == nil {
		if mode == unit.Strict {
			return unit.Dimensionless
		}
		return nil
	}
	return m.time.Unit(mode)
}

// UnusedLabel returns a binding label not currently used by any
// variable in the model.
func (m *Model) UnusedLabel() string {
	for {
		m.labelSeq++
		label := "__label_" + strconv.Itoa(m.labelSeq)
		if !m.labelUsed(label) {
			return label
		}
	}
}

func (m *Model) labelUsed(label string) bool {
	for _, c := range m.comps {
		for _, v := range c.vars {
			if v.bindingUsed(label) {
				return true
			}
		}
	}
	return false
}

// Get returns the variable with the given qualified dotted name, or
// nil.
func (m *Model) Get(qname string) *Variable {
	parts := strings.Split(qname, ".")
	if len(parts) < 2 {
		return nil
	}
	c := m.comps[parts[0]]
	if c == nil {
		return nil
	}
	v := c.vars[parts[1]]
	for _, p := range parts[2:] {
		if v == nil {
			return nil
		}
		v = v.kids[p]
	}
	return v
}

// Lookup resolves a dotted name to a variable handle for the parser.
func (m *Model) Lookup(qname string) (expr.Variable, bool) {
	if v := m.Get(qname); v != nil {
		return v, true
	}
	return nil, false
}

func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("model: empty name")
	}
	for i, r := range name {
		ok := r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') ||
			(i > 0 && '0' <= r && r <= '9')
		if !ok {
			return fmt.Errorf("model: invalid name %q", name)
		}
	}
	return nil
}

// A Component is a named grouping of variables.
type Component struct {
	model   *Model
	name    string
	vars    map[string]*Variable
	order   []string
	aliases map[string]*Variable
}

// Name returns the component's name.
func (c *Component) Name() string { return c.name }

// Model returns the enclosing model.
func (c *Component) Model() *Model { return c.model }

// AddVariable adds a top-level variable to the component.
func (c *Component) AddVariable(name string) (*Variable, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if _, ok := c.vars[name]; ok {
		return nil, fmt.Errorf("model: duplicate variable name %q in component %q", name, c.name)
	}
	v := &Variable{comp: c, name: name, kids: map[string]*Variable{}}
	c.vars[name] = v
	c.order = append(c.order, name)
	return v, nil
}

// Variable returns the named variable, or nil.
func (c *Component) Variable(name string) *Variable { return c.vars[name] }

// Variables returns the component's variables in creation order.
func (c *Component) Variables() []*Variable {
	vs := make([]*Variable, len(c.order))
	for i, n := range c.order {
		vs[i] = c.vars[n]
	}
	return vs
}

// AddAlias defines a local alias for a variable from another
// component.
func (c *Component) AddAlias(alias string, v *Variable) error {
	if err := checkName(alias); err != nil {
		return err
	}
	if v.comp == c {
		return fmt.Errorf("model: alias %q refers to a variable of the same component", alias)
	}
	if _, ok := c.aliases[alias]; ok {
		return fmt.Errorf("model: duplicate alias %q in component %q", alias, c.name)
	}
	c.aliases[alias] = v
	return nil
}

// AliasFor returns the alias this component defines for the given
// variable, if any. It implements the renderer's component contract.
func (c *Component) AliasFor(v expr.Variable) (string, bool) {
	for alias, av := range c.aliases {
		if expr.Variable(av) == v {
			return alias, true
		}
	}
	return "", false
}

// A Variable holds a declared unit, an optional defining right-hand
// side, and state/binding flags. It implements the engine's variable
// handle contract.
type Variable struct {
	comp     *Component
	parent   *Variable // non-nil for nested variables
	name     string
	unit     *unit.Unit
	rhs      *expr.Expr
	state    bool
	stateVal float64
	binding  string
	kids     map[string]*Variable
	kidOrder []string
}

// Name returns the variable's short name.
func (v *Variable) Name() string { return v.name }

// QName returns the fully qualified dotted name. If c is the
// variable's own component the component prefix is dropped.
func (v *Variable) QName(c expr.Component) string {
	if v.parent != nil {
		return v.parent.QName(c) + "." + v.name
	}
	if c != nil && expr.Component(v.comp) == c {
		return v.name
	}
	return v.comp.name + "." + v.name
}

// Component returns the owning component.
func (v *Variable) Component() *Component { return v.comp }

// Unit returns the declared unit: nil when undeclared in tolerant
// mode, dimensionless in strict mode.
func (v *Variable) Unit(mode unit.Mode) *unit.Unit {
	if v.unit == nil && mode == unit.Strict {
		return unit.Dimensionless
	}
	return v.unit
}

// SetUnit declares the variable's unit. A nil unit leaves it
// undeclared.
func (v *Variable) SetUnit(u *unit.Unit) { v.unit = u }

// IsState reports whether the variable is a state variable.
func (v *Variable) IsState() bool { return v.state }

// IsBound reports whether the variable takes its value from an
// external input.
func (v *Variable) IsBound() bool { return v.binding != "" }

// Binding returns the label of the external input the variable is
// bound to, or the empty string.
func (v *Variable) Binding() string { return v.binding }

// SetBinding binds the variable to an external input. An empty label
// removes the binding.
func (v *Variable) SetBinding(label string) { v.binding = label }

// IsNested reports whether the variable is nested inside another
// variable's scope.
func (v *Variable) IsNested() bool { return v.parent != nil }

// IsConstant reports whether the variable has a constant value: not a
// state, not bound, and defined by a constant expression or by no
// expression at all.
func (v *Variable) IsConstant() bool {
	if v.state || v.binding != "" {
		return false
	}
	if v.rhs == nil {
		return true
	}
	return v.rhs.IsConstant()
}

// Promote turns the variable into a state variable with the given
// initial state value.
func (v *Variable) Promote(stateValue float64) {
	v.state = true
	v.stateVal = stateValue
}

// StateValue returns the current value of a state variable.
func (v *Variable) StateValue() float64 { return v.stateVal }

// SetStateValue updates the current value of a state variable.
func (v *Variable) SetStateValue(val float64) { v.stateVal = val }

// RHS returns the defining right-hand side. For a state variable this
// is the right-hand side of its dot() equation.
func (v *Variable) RHS() *expr.Expr { return v.rhs }

// SetRHS sets the defining right-hand side.
func (v *Variable) SetRHS(e *expr.Expr) { v.rhs = e }

// Model returns the enclosing model.
func (v *Variable) Model() expr.Model { return v.comp.model }

// AddVariable adds a nested child variable.
func (v *Variable) AddVariable(name string) (*Variable, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if _, ok := v.kids[name]; ok {
		return nil, fmt.Errorf("model: duplicate variable name %q in %q", name, v.QName(nil))
	}
	kid := &Variable{comp: v.comp, parent: v, name: name, kids: map[string]*Variable{}}
	v.kids[name] = kid
	v.kidOrder = append(v.kidOrder, name)
	return kid, nil
}

// BindTemporarily marks the variable as externally bound and returns a
// function restoring the previous binding. The differentiator uses
// this to stop a constant target from being short-circuited.
func (v *Variable) BindTemporarily() (restore func()) {
	prev := v.binding
	v.binding = v.comp.model.UnusedLabel()
	return func() { v.binding = prev }
}

func (v *Variable) bindingUsed(label string) bool {
	if v.binding == label {
		return true
	}
	for _, kid := range v.kids {
		if kid.bindingUsed(label) {
			return true
		}
	}
	return false
}

var (
	_ expr.Variable   = (*Variable)(nil)
	_ expr.Model      = (*Model)(nil)
	_ expr.Component  = (*Component)(nil)
	_ expr.TempBinder = (*Variable)(nil)
)
