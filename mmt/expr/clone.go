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

// Clone returns a structurally equal copy of the expression, with two
// optional transformations applied during the traversal.
//
// If subst is not nil, any node equal to one of its keys is replaced
// by the corresponding value. Substitution is terminal: the
// replacement is emitted as-is, without further substitution or
// expansion.
//
// If expand is true, any name whose variable is not a state is
// replaced by a clone of the variable's right-hand side, with the same
// substitutions and expansion applied recursively. Variables listed in
// retain are kept as names; entries may be [Variable] handles, short
// or qualified name strings, or name expressions.
func (e *Expr) Clone(subst Subst, expand bool, retain ...interface{}) *Expr {
	var s map[string]*Expr
	if len(subst) > 0 {
		s = make(map[string]*Expr, len(subst))
		for k, v := range subst {
			if k != nil && v != nil {
				s[k.key()] = v
			}
		}
	}
	return e.clone(s, expand, retain)
}

func (e *Expr) clone(subst map[string]*Expr, expand bool, retain []interface{}) *Expr {
	if subst != nil {
		if r, ok := subst[e.key()]; ok {
			return r
		}
	}

	switch e.op {
	case NumberOp:
		return NumberUnit(e.val, e.unit)

	case NameOp:
		if v, ok := e.ref.(Variable); ok && expand && !v.IsState() && !e.retained(v, retain) {
			if rhs := v.RHS(); rhs != nil {
				return rhs.clone(subst, expand, retain)
			}
		}
		return Name(e.ref)
	}

	ops := make([]*Expr, len(e.ops))
	for i, op := range e.ops {
		ops[i] = op.clone(subst, expand, retain)
	}
	c := newExpr(e.op, ops...)
	c.hasPartials = c.hasPartials || e.op == PartialOp
	c.hasInitials = c.hasInitials || e.op == InitOp
	return c
}

// retained reports whether the variable (or this name expression) is
// listed in the retain set.
func (e *Expr) retained(v Variable, retain []interface{}) bool {
	for _, r := range retain {
		switch r := r.(type) {
		case Variable:
			if r == v {
				return true
			}
		case string:
			if r == v.Name() || r == v.QName(nil) {
				return true
			}
		case *Expr:
			if e.Equals(r) {
				return true
			}
		}
	}
	return false
}
