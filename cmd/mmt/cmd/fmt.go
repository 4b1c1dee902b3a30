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
)

func newFmtCmd(f *flags) *cobra.Command {
	var tree bool
	cmd := &cobra.Command{
		Use:   "fmt <expression>",
		Short: "parse an expression and print its canonical rendering",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := parseArg(f, args[0])
			if err != nil {
				return err
			}
			if tree {
				fmt.Fprint(cmd.OutOrStdout(), e.TreeString())
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), e.Code(nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&tree, "tree", false, "print the parse tree instead")
	return cmd
}
