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
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// floatString renders a float in mmt literal syntax: shortest decimal
// form, with the exponent normalised (1e-05 becomes 1e-5, 1e+05
// becomes 1e5, 1e+00 becomes 1).
func floatString(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	i := strings.IndexByte(s, 'e')
	if i < 0 {
		return s
	}
	exp, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return s
	}
	if exp == 0 {
		return s[:i]
	}
	return s[:i] + "e" + strconv.Itoa(exp)
}

// Code returns the expression in mmt surface syntax. Name nodes render
// as the variable's short name when nested, as an alias when the given
// component defines one, and as the qualified name otherwise.
func (e *Expr) Code(c Component) string {
	var b strings.Builder
	e.code(&b, c)
	return b.String()
}

// String returns the expression in mmt syntax without component
// context.
func (e *Expr) String() string { return e.Code(nil) }

// refString renders a name node's handle.
func (e *Expr) refString(c Component) string {
	switch ref := e.ref.(type) {
	case Variable:
		if ref.IsNested() {
			return ref.Name()
		}
		if c != nil {
			if alias, ok := c.AliasFor(ref); ok {
				return alias
			}
		}
		return ref.QName(c)
	case string:
		return "str:" + ref
	default:
		return fmt.Sprint(ref)
	}
}

// Bracket reports whether the given operand, which must be one of this
// node's operands, needs parentheses around it when rendered inside
// this node.
func (e *Expr) Bracket(op *Expr) bool {
	for i, x := range e.ops {
		if x == op {
			return e.bracket(i)
		}
	}
	panic("expr: given operand is not used in this expression")
}

func (e *Expr) bracket(i int) bool {
	rbp := e.ops[i].op.Precedence()
	if rbp == PrecLiteral {
		return false
	}
	switch {
	case e.op == PrefixPlusOp, e.op == PrefixMinusOp, e.op == NotOp:
		return rbp < e.op.Precedence()
	case e.op.Precedence() >= PrecCall:
		// Functions and leaves bring their own parentheses.
		return false
	case i == 0:
		return rbp < e.op.Precedence()
	default:
		return rbp <= e.op.Precedence()
	}
}

func (e *Expr) code(b *strings.Builder, c Component) {
	switch e.op {
	case NumberOp:
		b.WriteString(e.numStr)

	case NameOp:
		b.WriteString(e.refString(c))

	case DerivativeOp, InitOp:
		b.WriteString(opRep[e.op])
		b.WriteByte('(')
		e.ops[0].code(b, c)
		b.WriteByte(')')

	case PartialOp:
		b.WriteString("partial(")
		e.ops[0].code(b, c)
		b.WriteString(", ")
		e.ops[1].code(b, c)
		b.WriteByte(')')

	case PrefixPlusOp, PrefixMinusOp, NotOp:
		b.WriteString(opRep[e.op])
		if e.op == NotOp {
			b.WriteByte(' ')
		}
		e.codeOperand(b, c, 0)

	case PlusOp, MinusOp, MultiplyOp, DivideOp, QuotientOp, RemainderOp,
		PowerOp, EqualOp, NotEqualOp, LessOp, LessEqualOp, GreaterOp,
		GreaterEqualOp, AndOp, OrOp:
		e.codeOperand(b, c, 0)
		b.WriteByte(' ')
		b.WriteString(opRep[e.op])
		b.WriteByte(' ')
		e.codeOperand(b, c, 1)

	default:
		// Functions and conditionals: name(arg, ...).
		b.WriteString(opRep[e.op])
		b.WriteByte('(')
		for i, op := range e.ops {
			if i > 0 {
				b.WriteString(", ")
			}
			op.code(b, c)
		}
		b.WriteByte(')')
	}
}

func (e *Expr) codeOperand(b *strings.Builder, c Component, i int) {
	if e.bracket(i) {
		b.WriteByte('(')
		e.ops[i].code(b, c)
		b.WriteByte(')')
	} else {
		e.ops[i].code(b, c)
	}
}

// Polish returns the expression's canonical form: a prefix (Polish)
// encoding, each operator written before its operands, in which
// variable references are written by handle identity, not by name.
// The canonical form is the basis of [Expr.Equals] and [Expr.Hash]. It
// never invokes evaluation or unit inference, but it visits every
// operand and so does not terminate on a cyclic tree.
func (e *Expr) Polish() string {
	if e.cachedPolish == "" {
		var b strings.Builder
		e.polish(&b)
		e.cachedPolish = b.String()
	}
	return e.cachedPolish
}

func (e *Expr) polish(b *strings.Builder) {
	switch e.op {
	case NumberOp:
		b.WriteString(e.numStr)

	case NameOp:
		switch ref := e.ref.(type) {
		case string:
			b.WriteString("str:")
			b.WriteString(ref)
		default:
			// Handle identity, not name: two distinct variables that
			// share a spelling stay distinguishable.
			fmt.Fprintf(b, "var:%p", ref)
		}

	case DerivativeOp, InitOp:
		b.WriteString(opRep[e.op])
		b.WriteByte(' ')
		e.ops[0].polish(b)

	case PartialOp:
		b.WriteString("partial ")
		e.ops[0].polish(b)
		b.WriteByte(' ')
		e.ops[1].polish(b)

	case PrefixPlusOp:
		e.ops[0].polish(b)

	case PrefixMinusOp:
		b.WriteString("~ ")
		e.ops[0].polish(b)

	case NotOp:
		b.WriteString("not ")
		e.ops[0].polish(b)

	case PlusOp, MinusOp, MultiplyOp, DivideOp, QuotientOp, RemainderOp,
		PowerOp, EqualOp, NotEqualOp, LessOp, LessEqualOp, GreaterOp,
		GreaterEqualOp, AndOp, OrOp:
		b.WriteString(opRep[e.op])
		b.WriteByte(' ')
		e.ops[0].polish(b)
		b.WriteByte(' ')
		e.ops[1].polish(b)

	default:
		// Functions and conditionals: name, arity, operands.
		b.WriteString(opRep[e.op])
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(len(e.ops)))
		for _, op := range e.ops {
			b.WriteByte(' ')
			op.polish(b)
		}
	}
}

// key returns the identity used for substitution maps: kind plus
// canonical form, matching [Expr.Equals].
func (e *Expr) key() string {
	return strconv.Itoa(int(e.op)) + "|" + e.Polish()
}

// Equals reports structural equality: same kind and same canonical
// form.
func (e *Expr) Equals(o *Expr) bool {
	if e == o {
		return true
	}
	if e == nil || o == nil || e.op != o.op {
		return false
	}
	return e.Polish() == o.Polish()
}

// Hash returns a hash of the canonical form, so that equal expressions
// hash equally. The result is cached.
func (e *Expr) Hash() uint64 {
	if !e.hashed {
		h := fnv.New64a()
		h.Write([]byte(e.Polish()))
		e.cachedHash = h.Sum64()
		e.hashed = true
	}
	return e.cachedHash
}
