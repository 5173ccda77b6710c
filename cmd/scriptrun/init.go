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

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const mainTSTemplate = `async function hello(req) {
	return {
		status: 200,
		headers: {"content-type": "application/json"},
		body: JSON.stringify(req),
	};
}
`

const gitignoreTemplate = ".build/\n"

func configYAMLTemplate(name string) string {
	return fmt.Sprintf(`name: %s
routes:
  /api/hello/{id}:
    - method: GET
      handler: hello
`, name)
}

// newInitCmd scaffolds a project directory with a config.yml + main.ts
// pair, per SPEC_FULL.md's supplemented init subcommand (grounded on
// dino/src/cli/init.rs's init_project, minus its interactive prompt and
// git2 repository initialization, neither of which this system's
// dependency stack carries).
func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <project-name>",
		Short: "Scaffold a new project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			dir := "."
			entries, err := os.ReadDir(dir)
			if err != nil {
				return fmt.Errorf("reading current directory: %w", err)
			}
			if len(entries) > 0 {
				dir = name
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("creating project directory: %w", err)
				}
			}

			if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(configYAMLTemplate(name)), 0o644); err != nil {
				return fmt.Errorf("writing config.yml: %w", err)
			}
			if err := os.WriteFile(filepath.Join(dir, "main.ts"), []byte(mainTSTemplate), 0o644); err != nil {
				return fmt.Errorf("writing main.ts: %w", err)
			}
			if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignoreTemplate), 0o644); err != nil {
				return fmt.Errorf("writing .gitignore: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Initialized project %q in %s\n", name, dir)
			return nil
		},
	}
}
