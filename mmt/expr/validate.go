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

import "myokit.org/go/mmt/errors"

// Validate checks the integrity of the tree: operands are present,
// kind-specific constraints hold, and no node appears as its own
// transitive child. Results are cached per node, so revalidating a
// tree that shares subtrees with an already validated one is cheap.
func (e *Expr) Validate() error {
	return e.validate(make(map[*Expr]bool))
}

func (e *Expr) validate(trail map[*Expr]bool) error {
	if e.validated {
		return nil
	}

	// The trail holds ancestor identities. Identity is enough: even
	// with equal duplicate nodes, following a cycle leads back to the
	// same objects eventually. The canonical form is not safe to use
	// before validation has passed.
	if trail[e] {
		return errors.Integrity(e.pos(), "cyclical expression found")
	}
	trail[e] = true
	defer delete(trail, e)

	for _, op := range e.ops {
		if op == nil {
			return errors.Integrity(e.pos(), "expression operands must be expression nodes")
		}
	}

	switch e.op {
	case NameOp:
		// A string payload is allowed at construction for debugging,
		// but not in a validated tree.
		if _, ok := e.ref.(Variable); !ok {
			return errors.Integrity(e.pos(),
				"name value %q does not implement the variable interface", e.refString(nil))
		}

	case DerivativeOp:
		v := e.Var()
		if v == nil || !v.IsState() {
			return errors.Integrity(e.pos(),
				"derivatives can only be defined for state variables")
		}

	case PartialOp:
		if op := e.ops[0].op; op != NameOp && op != DerivativeOp {
			return errors.Integrity(e.pos(),
				"the first argument to a partial derivative must be a variable name or dot() expression")
		}
		if op := e.ops[1].op; op != NameOp && op != InitOp {
			return errors.Integrity(e.pos(),
				"the second argument to a partial derivative must be a variable name or initial value")
		}

	case InitOp:
		v := e.Var()
		if v == nil || !v.IsState() {
			return errors.Integrity(e.pos(),
				"initial values can only be defined for state variables")
		}

	case PiecewiseOp:
		if len(e.ops) < 3 || len(e.ops)%2 == 0 {
			return errors.Integrity(e.pos(),
				"piecewise function must have an odd number of arguments, 3 or more")
		}
	}

	for _, op := range e.ops {
		if err := op.validate(trail); err != nil {
			return err
		}
	}

	e.validated = true
	return nil
}
