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

package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"myokit.org/go/mmt/expr"
	"myokit.org/go/mmt/model"
	"myokit.org/go/mmt/unit"
)

// varDecl is one entry of the --vars file.
type varDecl struct {
	Value float64 `yaml:"value"`
	Unit  string  `yaml:"unit"`
	State bool    `yaml:"state"`
}

// varScope adapts a model built from a --vars file to the parser's
// scope interface. Unqualified names live in an "env" component.
type varScope struct {
	model *model.Model
}

func (s *varScope) Lookup(qname string) (expr.Variable, bool) {
	if v, ok := s.model.Lookup(qname); ok {
		return v, true
	}
	if !strings.Contains(qname, ".") {
		return s.model.Lookup("env." + qname)
	}
	return nil, false
}

// Find returns the declared variable with the given (possibly
// unqualified) name.
func (s *varScope) Find(qname string) (expr.Variable, bool) {
	return s.Lookup(qname)
}

// loadVars builds a model from a YAML variable declaration file. An
// empty filename yields an empty scope.
func loadVars(filename string) (*varScope, error) {
	m := model.New("cli")
	scope := &varScope{model: m}
	if filename == "" {
		return scope, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var decls map[string]varDecl
	if err := yaml.Unmarshal(data, &decls); err != nil {
		return nil, fmt.Errorf("%s: %v", filename, err)
	}

	// Sort for deterministic creation order and error reporting.
	names := make([]string, 0, len(decls))
	for name := range decls {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		decl := decls[name]
		compName, varName := "env", name
		if i := strings.LastIndex(name, "."); i >= 0 {
			compName, varName = name[:i], name[i+1:]
		}
		c := m.Component(compName)
		if c == nil {
			if c, err = m.AddComponent(compName); err != nil {
				return nil, fmt.Errorf("%s: %v", filename, err)
			}
		}
		v, err := c.AddVariable(varName)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", filename, err)
		}
		if decl.Unit != "" {
			u, err := unit.Parse(decl.Unit)
			if err != nil {
				return nil, fmt.Errorf("%s: variable %s: %v", filename, name, err)
			}
			v.SetUnit(u)
		}
		if decl.State {
			v.Promote(decl.Value)
		} else {
			v.SetRHS(expr.Number(decl.Value))
		}
		if varName == "time" {
			m.BindTime(v)
		}
		log.Debugf("declared %s = %v", name, decl.Value)
	}
	return scope, nil
}
