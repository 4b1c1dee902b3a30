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

// Package unit implements the unit algebra used by mmt expressions.
//
// A Unit is a product of the seven SI base dimensions (kg, m, s, A, K,
// cd, mol) with rational exponents, together with a decimal multiplier
// stored as its base-10 logarithm. Units are immutable values; all
// operations return new units.
//
// A nil *Unit means "unknown". The distinction matters in tolerant
// unit-checking mode, where unknown units propagate without raising
// errors. See [Mode].
package unit

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Mode selects how unspecified units are treated during unit checking.
type Mode int

const (
	// Tolerant propagates unknown units as unknown (nil), reporting
	// incompatibility only between concretely known units.
	Tolerant Mode = iota

	// Strict treats unspecified units as dimensionless.
	Strict
)

func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}
	return "tolerant"
}

// A Rat is a small rational number used for unit exponents. The zero
// value is 0.
type Rat struct {
	num, den int
}

// R returns the rational n/d in lowest terms. It panics if d is zero.
func R(n, d int) Rat {
	if d == 0 {
		panic("unit: rational with zero denominator")
	}
	if d < 0 {
		n, d = -n, -d
	}
	if g := gcd(abs(n), d); g > 1 {
		n, d = n/g, d/g
	}
	return Rat{n, d}
}

// Int returns the rational n/1.
func Int(n int) Rat { return Rat{n, 1} }

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

// norm maps the zero value onto 0/1 so that Rats are comparable with ==.
func (r Rat) norm() Rat {
	if r.den == 0 {
		return Rat{r.num, 1}
	}
	return r
}

// Num returns the numerator.
func (r Rat) Num() int { return r.norm().num }

// Den returns the denominator. It is always positive.
func (r Rat) Den() int { return r.norm().den }

// IsZero reports whether r is zero.
func (r Rat) IsZero() bool { return r.num == 0 }

// IsInt reports whether r is an integer.
func (r Rat) IsInt() bool { return r.norm().den == 1 }

// Add returns r + s.
func (r Rat) Add(s Rat) Rat {
	r, s = r.norm(), s.norm()
	return R(r.num*s.den+s.num*r.den, r.den*s.den)
}

// Sub returns r - s.
func (r Rat) Sub(s Rat) Rat { return r.Add(s.Neg()) }

// Mul returns r * s.
func (r Rat) Mul(s Rat) Rat {
	r, s = r.norm(), s.norm()
	return R(r.num*s.num, r.den*s.den)
}

// Neg returns -r.
func (r Rat) Neg() Rat {
	r = r.norm()
	return Rat{-r.num, r.den}
}

// Float returns the value of r as a float64.
func (r Rat) Float() float64 {
	r = r.norm()
	return float64(r.num) / float64(r.den)
}

func (r Rat) String() string {
	r = r.norm()
	if r.den == 1 {
		return strconv.Itoa(r.num)
	}
	return fmt.Sprintf("(%d/%d)", r.num, r.den)
}

// ratFromFloat converts f to a rational with a small denominator, using
// a continued fraction expansion. It fails for values that are not
// close to any such rational (e.g. exponents computed from arbitrary
// expressions).
func ratFromFloat(f float64) (Rat, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Rat{}, fmt.Errorf("exponent %v is not a rational number", f)
	}
	const maxDen = 1000
	const tol = 1e-9
	h0, h1 := 0, 1
	k0, k1 := 1, 0
	x := f
	for i := 0; i < 40; i++ {
		a := int(math.Floor(x))
		h0, h1 = h1, a*h1+h0
		k0, k1 = k1, a*k1+k0
		if k1 > maxDen {
			break
		}
		if math.Abs(f-float64(h1)/float64(k1)) < tol {
			return R(h1, k1), nil
		}
		frac := x - float64(a)
		if frac < 1e-12 {
			break
		}
		x = 1 / frac
	}
	return Rat{}, fmt.Errorf("exponent %v is not a rational number", f)
}

// The base dimensions, in storage order.
const (
	dimKg = iota
	dimM
	dimS
	dimA
	dimK
	dimCd
	dimMol
	nDims
)

// A Unit is an immutable product of base dimensions with rational
// exponents and a decimal multiplier.
//
// The zero Unit is dimensionless with multiplier 1.
type Unit struct {
	exps  [nDims]Rat
	log10 float64
}

// Dimensionless is the unit with all-zero exponents and multiplier 1.
var Dimensionless = &Unit{}

func base(dim int) *Unit {
	u := &Unit{}
	u.exps[dim] = Int(1)
	return u
}

// scaled returns a copy of u with e added to the base-10 logarithm of
// its multiplier.
func (u *Unit) scaled(e float64) *Unit {
	v := *u
	v.log10 += e
	return &v
}

// Exponent returns the exponent of the given base dimension
// (0 = kg … 6 = mol).
func (u *Unit) Exponent(dim int) Rat { return u.exps[dim].norm() }

// Multiplier returns the unit's scale factor.
func (u *Unit) Multiplier() float64 { return math.Pow(10, u.log10) }

// Log10 returns the base-10 logarithm of the unit's scale factor.
func (u *Unit) Log10() float64 { return u.log10 }

// IsDimensionless reports whether all exponents are zero and the
// multiplier is 1.
func (u *Unit) IsDimensionless() bool {
	for _, e := range u.exps {
		if !e.IsZero() {
			return false
		}
	}
	return closeLog(u.log10, 0)
}

func closeLog(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

// Equal reports whether u and o have the same exponents and multiplier.
func (u *Unit) Equal(o *Unit) bool {
	for i := range u.exps {
		if u.exps[i].norm() != o.exps[i].norm() {
			return false
		}
	}
	return closeLog(u.log10, o.log10)
}

// Same reports whether a and b are equal, treating nil as a distinct
// "unknown" value equal only to itself.
func Same(a, b *Unit) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

// Mul returns the product u * o.
func (u *Unit) Mul(o *Unit) *Unit {
	v := &Unit{log10: u.log10 + o.log10}
	for i := range v.exps {
		v.exps[i] = u.exps[i].Add(o.exps[i])
	}
	return v
}

// Div returns the quotient u / o.
func (u *Unit) Div(o *Unit) *Unit { return u.Mul(o.Inv()) }

// Inv returns the reciprocal 1 / u.
func (u *Unit) Inv() *Unit {
	v := &Unit{log10: -u.log10}
	for i := range v.exps {
		v.exps[i] = u.exps[i].Neg()
	}
	return v
}

// Pow returns u raised to the rational power r.
func (u *Unit) Pow(r Rat) *Unit {
	v := &Unit{log10: u.log10 * r.Float()}
	for i := range v.exps {
		v.exps[i] = u.exps[i].Mul(r)
	}
	return v
}

// PowFloat returns u raised to the power f. The exponent must be (close
// to) a rational with a small denominator; anything else is an error.
func (u *Unit) PowFloat(f float64) (*Unit, error) {
	r, err := ratFromFloat(f)
	if err != nil {
		return nil, err
	}
	return u.Pow(r), nil
}

// String returns the unit in bracketed mmt syntax, e.g. "[mV]" or
// "[kg*m/s^2]".
func (u *Unit) String() string {
	return "[" + u.Format() + "]"
}

// Format returns the unit without brackets. Named units (and SI
// prefixed forms of them) are preferred; otherwise a canonical product
// of base dimensions is written, with the multiplier appended in
// parentheses when it is not 1.
func (u *Unit) Format() string {
	if s, ok := lookupName(u); ok {
		return s
	}
	var num, den []string
	for i, e := range u.exps {
		e = e.norm()
		if e.IsZero() {
			continue
		}
		name := dimNames[i]
		switch {
		case e == Int(1):
			num = append(num, name)
		case e.num > 0:
			num = append(num, name+"^"+e.String())
		case e.Neg() == Int(1):
			den = append(den, name)
		default:
			den = append(den, name+"^"+e.Neg().String())
		}
	}
	s := strings.Join(num, "*")
	if s == "" {
		s = "1"
	}
	if len(den) > 0 {
		s += "/" + strings.Join(den, "/")
	}
	if !closeLog(u.log10, 0) {
		s += " (" + strconv.FormatFloat(u.Multiplier(), 'g', -1, 64) + ")"
	}
	return s
}

var dimNames = [nDims]string{"kg", "m", "s", "A", "K", "cd", "mol"}
