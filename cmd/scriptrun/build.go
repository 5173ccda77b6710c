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

	"github.com/spf13/cobra"

	"github.com/scriptrun/scriptrun/internal/bundler"
)

const buildDir = ".build"

// newBuildCmd is grounded on dino/src/cli/build.rs's BuildOpts: bundle the
// current directory and report the artifact path, reusing a cached
// artifact if the project hash hasn't changed.
func newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build the project into a cached bundle artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolving current directory: %w", err)
			}

			path, err := bundler.BuildProject(cwd, buildDir)
			if err != nil {
				return fmt.Errorf("build failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Build success: %s\n", path)
			return nil
		},
	}
}
