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

// Package cmd implements the mmt command line tool.
package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"myokit.org/go/mmt/expr"
	"myokit.org/go/mmt/parser"
)

type flags struct {
	logLevel string
	varsFile string
}

// New creates the root command.
func New() *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:   "mmt",
		Short: "mmt works with expressions of the mmt modelling language",
		Long: `mmt parses, evaluates, unit-checks and differentiates expressions
written in the mmt modelling language.

Variables referenced by an expression are declared in a YAML file
passed with --vars, mapping qualified names to a value, an optional
unit, and an optional state flag:

    membrane.V:
      value: -84.5
      unit: mV
      state: true
    ina.gNa:
      value: 16
`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := log.ParseLevel(f.logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q", f.logLevel)
			}
			log.SetLevel(lvl)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.logLevel, "loglevel", "warn", "log level (debug, info, warn, error)")
	pf.StringVar(&f.varsFile, "vars", "", "YAML file declaring the variables used in the expression")

	root.AddCommand(
		newEvalCmd(&f),
		newUnitsCmd(&f),
		newDerivCmd(&f),
		newFmtCmd(&f),
	)
	return root
}

// parseArg loads the variable declarations, if any, and parses the
// expression argument against them.
func parseArg(f *flags, src string) (*expr.Expr, *varScope, error) {
	scope, err := loadVars(f.varsFile)
	if err != nil {
		return nil, nil, err
	}
	log.Debugf("parsing %q", src)
	cfg := &parser.Config{Scope: scope}
	e, err := parser.ParseExpression(src, cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, nil, err
	}
	return e, scope, nil
}
