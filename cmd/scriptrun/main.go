// Copyright 2025 The Rivaas Authors
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

// Command scriptrun is the CLI surface named in spec.md §6, supplemented
// per SPEC_FULL.md from original_source/dino/src/cli/*.rs: init scaffolds a
// new project, build produces a cached bundle artifact, run builds then
// serves it. Grounded on the teacher's use of cobra-style command
// registration conventions (one file per subcommand, a root command that
// wires them together) and on dino/src/cli/mod.rs's three-subcommand shape.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "scriptrun",
		Short: "Multi-tenant function-as-a-service host",
	}
	root.AddCommand(newInitCmd())
	root.AddCommand(newBuildCmd())
	root.AddCommand(newRunCmd())
	return root
}
