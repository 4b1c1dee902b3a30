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
	"strconv"

	"github.com/spf13/cobra"

	"myokit.org/go/mmt/expr"
)

func newEvalCmd(f *flags) *cobra.Command {
	var single bool
	cmd := &cobra.Command{
		Use:   "eval <expression>",
		Short: "evaluate an expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := parseArg(f, args[0])
			if err != nil {
				return err
			}
			prec := expr.DoublePrecision
			if single {
				prec = expr.SinglePrecision
			}
			v, err := e.Eval(nil, prec)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(v, 'g', -1, 64))
			return nil
		},
	}
	cmd.Flags().BoolVar(&single, "single", false, "evaluate in single precision")
	return cmd
}
