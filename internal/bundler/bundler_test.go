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

package bundler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashProject_Deterministic(t *testing.T) {
	hash1, err := HashProject("testdata/prj", 16)
	require.NoError(t, err)
	require.Len(t, hash1, 16)

	hash2, err := HashProject("testdata/prj", 16)
	require.NoError(t, err)
	require.Equal(t, hash1, hash2)
}

func TestHashProject_TruncatesToRequestedLength(t *testing.T) {
	hash, err := HashProject("testdata/prj", 12)
	require.NoError(t, err)
	require.Len(t, hash, 12)
}

func TestFilesWithExts_ListsSortedTsJsJson(t *testing.T) {
	files, err := filesWithExts("testdata/prj", hashedExts)
	require.NoError(t, err)
	require.Equal(t, []string{
		"testdata/prj/a.ts",
		"testdata/prj/main.js",
		"testdata/prj/test1/b.ts",
		"testdata/prj/test1/c.js",
		"testdata/prj/test2/test3/d.json",
	}, files)
}

// Mirrors the IIFE shape asserted by bundler/src/lib.rs's
// bundle_ts_should_work: no whitespace between statements, a trailing
// object literal mapping each handler name to itself.
func TestBundle_ProducesSelfInvokingExpression(t *testing.T) {
	bundle, err := Bundle("testdata/prj")
	require.NoError(t, err)

	require.True(t, len(bundle) > 0)
	require.Contains(t, bundle, "(function(){")
	require.Contains(t, bundle, "return{execute:execute,main:main};})();")
	require.Contains(t, bundle, "async function execute(name)")
	require.Contains(t, bundle, "async function main(req)")
}

func TestBundle_MissingEntrypointFails(t *testing.T) {
	_, err := Bundle("testdata/empty")
	require.Error(t, err)
}

func TestExtractTopLevelFunctions_IgnoresNestedBraces(t *testing.T) {
	src := `
function outer(req) {
	if (req.ok) {
		return { status: 200 };
	}
	return { status: 500 };
}
`
	fns := extractTopLevelFunctions(src)
	require.Len(t, fns, 1)
	require.Equal(t, "outer", fns[0].Name)
}
