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

// Package parser parses mmt surface syntax into expression trees.
//
// The parser is a top-down operator-precedence parser driven by the
// same right-binding powers the renderer uses, so that parsing and
// rendering are inverses of each other.
package parser

import (
	"math"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"myokit.org/go/mmt/errors"
	"myokit.org/go/mmt/expr"
	"myokit.org/go/mmt/token"
	"myokit.org/go/mmt/unit"
)

// Scope resolves dotted names to variable handles.
type Scope interface {
	Lookup(qname string) (expr.Variable, bool)
}

// Config configures a parse.
type Config struct {
	// Filename is used in error positions.
	Filename string

	// Scope resolves names. With a nil scope any name is an error.
	Scope Scope
}

// ParseExpression parses a single expression.
func ParseExpression(src string, cfg *Config) (*expr.Expr, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	toks, err := scan(src, cfg.Filename)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, cfg: cfg}
	e, err := p.parse(expr.PrecLiteral)
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, errors.Integrity(t.pos, "unexpected %q after expression", t.text)
	}
	return e, nil
}

type tokKind uint8

const (
	tokEOF tokKind = iota
	tokNumber
	tokIdent
	tokUnit // bracketed unit text, without the brackets
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type tok struct {
	kind tokKind
	text string
	pos  token.Position
}

func scan(src, filename string) ([]tok, error) {
	var toks []tok
	line, col := 1, 1
	emit := func(kind tokKind, text string) {
		toks = append(toks, tok{kind, text, token.Position{Filename: filename, Line: line, Column: col}})
	}
	i := 0
	advance := func(n int) {
		for ; n > 0; n-- {
			if src[i] == '\n' {
				line, col = line+1, 1
			} else {
				col++
			}
			i++
		}
	}
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			advance(1)

		case c >= '0' && c <= '9' || c == '.' && i+1 < len(src) && isDigit(src[i+1]):
			n := scanNumber(src[i:])
			emit(tokNumber, src[i:i+n])
			advance(n)

		case isIdentStart(c):
			n := scanIdent(src[i:])
			emit(tokIdent, src[i:i+n])
			advance(n)

		case c == '[':
			j := strings.IndexByte(src[i:], ']')
			if j < 0 {
				return nil, errors.Integrity(token.Position{Filename: filename, Line: line, Column: col},
					"missing ']' in unit specification")
			}
			emit(tokUnit, src[i+1:i+j])
			advance(j + 1)

		case c == '(':
			emit(tokLParen, "(")
			advance(1)

		case c == ')':
			emit(tokRParen, ")")
			advance(1)

		case c == ',':
			emit(tokComma, ",")
			advance(1)

		default:
			n := scanOp(src[i:])
			if n == 0 {
				return nil, errors.Integrity(token.Position{Filename: filename, Line: line, Column: col},
					"unexpected character %q", string(c))
			}
			emit(tokOp, src[i:i+n])
			advance(n)
		}
	}
	toks = append(toks, tok{tokEOF, "", token.Position{Filename: filename, Line: line, Column: col}})
	return toks, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

func scanNumber(s string) int {
	n := 0
	for n < len(s) && (isDigit(s[n]) || s[n] == '.') {
		n++
	}
	if n < len(s) && (s[n] == 'e' || s[n] == 'E') {
		m := n + 1
		if m < len(s) && (s[m] == '+' || s[m] == '-') {
			m++
		}
		if m < len(s) && isDigit(s[m]) {
			for n = m; n < len(s) && isDigit(s[n]); n++ {
			}
		}
	}
	return n
}

// scanIdent scans a possibly dotted name such as membrane.V.
func scanIdent(s string) int {
	n := 0
	for n < len(s) && isIdentPart(s[n]) {
		n++
	}
	for n+1 < len(s) && s[n] == '.' && isIdentStart(s[n+1]) {
		n++
		for n < len(s) && isIdentPart(s[n]) {
			n++
		}
	}
	return n
}

func scanOp(s string) int {
	switch {
	case strings.HasPrefix(s, "//"), strings.HasPrefix(s, "=="),
		strings.HasPrefix(s, "!="), strings.HasPrefix(s, "<="),
		strings.HasPrefix(s, ">="):
		return 2
	}
	switch s[0] {
	case '+', '-', '*', '/', '%', '^', '<', '>':
		return 1
	}
	return 0
}

type parser struct {
	toks []tok
	i    int
	cfg  *Config
}

func (p *parser) peek() tok { return p.toks[p.i] }

func (p *parser) next() tok {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) expect(kind tokKind, what string) (tok, error) {
	t := p.next()
	if t.kind != kind {
		return t, errors.Integrity(t.pos, "expected %s, got %q", what, t.text)
	}
	return t, nil
}

// lbp returns the token's left-binding power: how strongly it binds an
// expression to its left.
func (p *parser) lbp(t tok) int {
	switch t.kind {
	case tokOp:
		switch t.text {
		case "+", "-":
			return expr.PrecSum
		case "*", "/", "//", "%":
			return expr.PrecProduct
		case "^":
			return expr.PrecPower
		case "==", "!=", "<", "<=", ">", ">=":
			return expr.PrecCondition
		}
	case tokIdent:
		switch t.text {
		case "and", "or":
			return expr.PrecConditionAnd
		}
	}
	return 0
}

// parse parses an expression whose operators bind more strongly than
// rbp.
func (p *parser) parse(rbp int) (*expr.Expr, error) {
	left, err := p.nud()
	if err != nil {
		return nil, err
	}
	for p.lbp(p.peek()) > rbp {
		left, err = p.led(left)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

// nud parses a token in prefix position.
func (p *parser) nud() (*expr.Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return p.number(t)

	case tokIdent:
		switch t.text {
		case "not":
			x, err := p.parse(expr.PrecPrefix)
			if err != nil {
				return nil, err
			}
			return p.tag(expr.Not(x), t), nil
		case "and", "or":
			return nil, errors.Integrity(t.pos, "unexpected %q", t.text)
		}
		if p.peek().kind == tokLParen {
			return p.call(t)
		}
		return p.name(t)

	case tokLParen:
		e, err := p.parse(expr.PrecLiteral)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return e, nil

	case tokOp:
		switch t.text {
		case "+", "-":
			x, err := p.parse(expr.PrecPrefix)
			if err != nil {
				return nil, err
			}
			if t.text == "-" {
				return p.tag(expr.PrefixMinus(x), t), nil
			}
			return p.tag(expr.PrefixPlus(x), t), nil
		}
	}
	return nil, errors.Integrity(t.pos, "unexpected %q", t.text)
}

// led parses a token in infix position.
func (p *parser) led(left *expr.Expr) (*expr.Expr, error) {
	t := p.next()
	right, err := p.parse(p.lbp(t))
	if err != nil {
		return nil, err
	}
	var e *expr.Expr
	switch t.text {
	case "+":
		e = expr.Plus(left, right)
	case "-":
		e = expr.Minus(left, right)
	case "*":
		e = expr.Multiply(left, right)
	case "/":
		e = expr.Divide(left, right)
	case "//":
		e = expr.Quotient(left, right)
	case "%":
		e = expr.Remainder(left, right)
	case "^":
		e = expr.Power(left, right)
	case "==":
		e = expr.Equal(left, right)
	case "!=":
		e = expr.NotEqual(left, right)
	case "<":
		e = expr.Less(left, right)
	case "<=":
		e = expr.LessEqual(left, right)
	case ">":
		e = expr.Greater(left, right)
	case ">=":
		e = expr.GreaterEqual(left, right)
	case "and":
		e = expr.And(left, right)
	case "or":
		e = expr.Or(left, right)
	default:
		return nil, errors.Integrity(t.pos, "unexpected %q", t.text)
	}
	return p.tag(e, t), nil
}

// number parses a numeric literal with an optional bracketed unit. The
// literal itself goes through an arbitrary-precision decimal, so that
// out-of-range values are caught here rather than producing infinities
// at evaluation time.
func (p *parser) number(t tok) (*expr.Expr, error) {
	d, _, err := apd.NewFromString(t.text)
	if err != nil {
		return nil, errors.Integrity(t.pos, "invalid number %q", t.text)
	}
	f, err := d.Float64()
	if err != nil || math.IsInf(f, 0) {
		return nil, errors.Integrity(t.pos, "number %q out of range", t.text)
	}
	var u *unit.Unit
	if p.peek().kind == tokUnit {
		ut := p.next()
		u, err = unit.Parse(ut.text)
		if err != nil {
			return nil, errors.Integrity(ut.pos, "%v", err)
		}
	}
	return p.tag(expr.NumberUnit(f, u), t), nil
}

// name resolves a dotted name against the scope.
func (p *parser) name(t tok) (*expr.Expr, error) {
	if p.cfg.Scope != nil {
		if v, ok := p.cfg.Scope.Lookup(t.text); ok {
			return p.tag(expr.Name(v), t), nil
		}
	}
	return nil, errors.Integrity(t.pos, "unknown variable %q", t.text)
}

// call parses name(arg, ...) forms: functions, conditionals and the
// dot/init/partial operators.
func (p *parser) call(t tok) (*expr.Expr, error) {
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	var args []*expr.Expr
	for {
		if len(args) == 0 && p.peek().kind == tokRParen {
			break
		}
		arg, err := p.parse(expr.PrecLiteral)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.peek().kind != tokComma {
			break
		}
		p.next()
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}

	n := len(args)
	need := func(want int) error {
		if n != want {
			return errors.Integrity(t.pos, "%s() takes %d argument(s), got %d", t.text, want, n)
		}
		return nil
	}

	var e *expr.Expr
	switch t.text {
	case "sqrt", "sin", "cos", "tan", "asin", "acos", "atan", "exp",
		"log10", "floor", "ceil", "abs", "not":
		if err := need(1); err != nil {
			return nil, err
		}
		switch t.text {
		case "sqrt":
			e = expr.Sqrt(args[0])
		case "sin":
			e = expr.Sin(args[0])
		case "cos":
			e = expr.Cos(args[0])
		case "tan":
			e = expr.Tan(args[0])
		case "asin":
			e = expr.ASin(args[0])
		case "acos":
			e = expr.ACos(args[0])
		case "atan":
			e = expr.ATan(args[0])
		case "exp":
			e = expr.Exp(args[0])
		case "log10":
			e = expr.Log10(args[0])
		case "floor":
			e = expr.Floor(args[0])
		case "ceil":
			e = expr.Ceil(args[0])
		case "abs":
			e = expr.Abs(args[0])
		case "not":
			e = expr.Not(args[0])
		}

	case "log":
		switch n {
		case 1:
			e = expr.Log(args[0])
		case 2:
			e = expr.LogBase(args[0], args[1])
		default:
			return nil, errors.Integrity(t.pos, "log() takes 1 or 2 arguments, got %d", n)
		}

	case "if":
		if err := need(3); err != nil {
			return nil, err
		}
		e = expr.If(args[0], args[1], args[2])

	case "piecewise":
		if n < 3 || n%2 == 0 {
			return nil, errors.Integrity(t.pos,
				"piecewise() takes an odd number of arguments, 3 or more, got %d", n)
		}
		e = expr.Piecewise(args...)

	case "dot":
		if err := need(1); err != nil {
			return nil, err
		}
		if args[0].Op() != expr.NameOp {
			return nil, errors.Integrity(t.pos, "dot() can only be used on variables")
		}
		e = expr.Derivative(args[0])

	case "init":
		if err := need(1); err != nil {
			return nil, err
		}
		if args[0].Op() != expr.NameOp {
			return nil, errors.Integrity(t.pos, "init() can only be used on variables")
		}
		e = expr.Init(args[0])

	case "partial":
		if err := need(2); err != nil {
			return nil, err
		}
		if op := args[0].Op(); op != expr.NameOp && op != expr.DerivativeOp {
			return nil, errors.Integrity(t.pos,
				"the first argument to partial() must be a variable name or dot() expression")
		}
		if op := args[1].Op(); op != expr.NameOp && op != expr.InitOp {
			return nil, errors.Integrity(t.pos,
				"the second argument to partial() must be a variable name or init() expression")
		}
		e = expr.Partial(args[0], args[1])

	default:
		return nil, errors.Integrity(t.pos, "unknown function %q", t.text)
	}
	return p.tag(e, t), nil
}

// tag attaches the source token to a freshly built node.
func (p *parser) tag(e *expr.Expr, t tok) *expr.Expr {
	e.SetToken(&token.Token{Text: t.text, Pos: t.pos})
	return e
}
