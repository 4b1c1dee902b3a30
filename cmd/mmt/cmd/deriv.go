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

	"github.com/spf13/cobra"

	"myokit.org/go/mmt/expr"
)

func newDerivCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deriv <expression> <variable>",
		Short: "take the partial derivative of an expression",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, scope, err := parseArg(f, args[0])
			if err != nil {
				return err
			}
			v, ok := scope.Find(args[1])
			if !ok {
				return fmt.Errorf("unknown variable %q", args[1])
			}
			d, err := e.PartialDerivative(expr.Name(v))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), d.Code(nil))
			return nil
		},
	}
	return cmd
}
