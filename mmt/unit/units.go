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

package unit

import "math"

// Predefined units. Base dimensions first, then the derived units that
// commonly appear in cardiac cell models.
var (
	Kilogram = base(dimKg)
	Meter    = base(dimM)
	Second   = base(dimS)
	Ampere   = base(dimA)
	Kelvin   = base(dimK)
	Candela  = base(dimCd)
	Mole     = base(dimMol)

	Gram = Kilogram.scaled(-3)

	Hertz   = Second.Inv()
	Newton  = Kilogram.Mul(Meter).Div(Second.Pow(Int(2)))
	Pascal  = Newton.Div(Meter.Pow(Int(2)))
	Joule   = Newton.Mul(Meter)
	Watt    = Joule.Div(Second)
	Coulomb = Ampere.Mul(Second)
	Volt    = Watt.Div(Ampere)
	Farad   = Coulomb.Div(Volt)
	Siemens = Ampere.Div(Volt)
	Ohm     = Volt.Div(Ampere)

	Liter = Meter.Pow(Int(3)).scaled(-3)
	Molar = Mole.Div(Liter)
)

// named is the parse and format registry. Order matters for formatting:
// the first unit whose exponents match is used for reverse lookup.
var named = []struct {
	name       string
	unit       *Unit
	prefixable bool
}{
	{"g", Gram, true},
	{"m", Meter, true},
	{"s", Second, true},
	{"A", Ampere, true},
	{"K", Kelvin, true},
	{"cd", Candela, true},
	{"mol", Mole, true},
	{"V", Volt, true},
	{"S", Siemens, true},
	{"F", Farad, true},
	{"ohm", Ohm, true},
	{"Hz", Hertz, true},
	{"N", Newton, true},
	{"Pa", Pascal, true},
	{"J", Joule, true},
	{"W", Watt, true},
	{"C", Coulomb, true},
	{"L", Liter, true},
	{"M", Molar, true},
	{"kg", Kilogram, false},
	{"1", Dimensionless, false},
}

// SI prefixes by base-10 exponent.
var prefixes = map[string]int{
	"y": -24, "z": -21, "a": -18, "f": -15, "p": -12, "n": -9,
	"u": -6, "m": -3, "c": -2, "d": -1, "da": 1, "h": 2, "k": 3,
	"M": 6, "G": 9, "T": 12, "P": 15, "E": 18, "Z": 21, "Y": 24,
}

var prefixByExp = map[int]string{}

func init() {
	for p, e := range prefixes {
		// Prefer the shorter prefix for duplicated exponents.
		if q, ok := prefixByExp[e]; !ok || len(p) < len(q) {
			prefixByExp[e] = p
		}
	}
}

// lookupUnit resolves a (possibly prefixed) unit name.
func lookupUnit(name string) (*Unit, bool) {
	for _, n := range named {
		if n.name == name {
			return n.unit, true
		}
	}
	// Try prefix + name.
	for _, n := range named {
		if !n.prefixable || !hasSuffix(name, n.name) {
			continue
		}
		if e, ok := prefixes[name[:len(name)-len(n.name)]]; ok {
			return n.unit.scaled(float64(e)), true
		}
	}
	return nil, false
}

func hasSuffix(s, suffix string) bool {
	return len(s) > len(suffix) && s[len(s)-len(suffix):] == suffix
}

// lookupName finds a named (or SI prefixed named) representation of u.
func lookupName(u *Unit) (string, bool) {
	for _, n := range named {
		if !sameExps(u, n.unit) {
			continue
		}
		d := u.log10 - n.unit.log10
		if closeLog(d, 0) {
			return n.name, true
		}
		if !n.prefixable {
			continue
		}
		if e := int(math.Round(d)); closeLog(d, float64(e)) {
			if p, ok := prefixByExp[e]; ok {
				return p + n.name, true
			}
		}
	}
	return "", false
}

func sameExps(a, b *Unit) bool {
	for i := range a.exps {
		if a.exps[i].norm() != b.exps[i].norm() {
			return false
		}
	}
	return true
}
