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

// Variable is the contract the engine requires of variable handles.
// Handles are opaque references into an externally owned model
// container; the container must outlive every expression tree that
// refers into it. Expression identity uses handle identity, so two
// distinct variables that share a spelling remain distinguishable.
//
// Handles must be pointer-shaped (a pointer, or an interface holding
// one): the canonical form of a name node encodes the handle's
// identity.
type Variable interface {
	// Name returns the variable's short local identifier.
	Name() string

	// QName returns the fully qualified dotted name, shortened
	// relative to the given component if one is passed.
	QName(c Component) string

	// Unit returns the variable's declared unit. In tolerant mode an
	// undeclared unit is nil; in strict mode it is dimensionless.
	Unit(mode unit.Mode) *unit.Unit

	// IsState reports whether the variable's time derivative is
	// defined by an equation.
	IsState() bool

	// IsConstant reports whether the variable has a constant value.
	IsConstant() bool

	// IsBound reports whether the variable takes its value from an
	// external input rather than from an equation.
	IsBound() bool

	// IsNested reports whether the variable is nested inside another
	// variable's scope.
	IsNested() bool

	// StateValue returns the variable's current state value. It is
	// undefined for non-state variables.
	StateValue() float64

	// RHS returns the variable's defining expression. For a state
	// variable this is the right-hand side of its dot() equation, which
	// the engine uses for dot(x); a name referring to a state evaluates
	// to the current state value instead.
	RHS() *Expr

	// Model returns the enclosing model, or nil for free-standing
	// variables.
	Model() Model
}

// Model is the engine's view of the enclosing model container.
type Model interface {
	// TimeUnit returns the unit of the model's time variable. In
	// tolerant mode an unknown time unit is nil; in strict mode it is
	// dimensionless.
	TimeUnit(mode unit.Mode) *unit.Unit
}

// Component is the renderer's view of a named variable grouping. It is
// used to shorten qualified names and resolve aliases.
type Component interface {
	// AliasFor returns the local alias this component defines for the
	// given variable, if any.
	AliasFor(v Variable) (string, bool)
}

// TempBinder is implemented by variable handles that support a
// temporary external binding. The differentiator rebinds a constant
// target variable for the duration of the traversal, so that the
// variable is not short-circuited as a constant, and restores it on
// every exit path.
type TempBinder interface {
	// BindTemporarily marks the variable as externally bound and
	// returns a function restoring the previous binding.
	BindTemporarily() (restore func())
}
