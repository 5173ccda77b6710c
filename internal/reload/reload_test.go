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

package reload

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scriptrun/scriptrun/internal/applog"
	"github.com/scriptrun/scriptrun/internal/config"
	"github.com/scriptrun/scriptrun/internal/dispatch"
	"github.com/scriptrun/scriptrun/internal/tenantrouter"
	"github.com/scriptrun/scriptrun/internal/worker"
)

const v1Main = `async function hello(req) { return {status:200, body:"v1"}; }`
const v2Main = `async function hello(req) { return {status:200, body:"v2"}; }`

const configYAML = `
name: test-project
routes:
  /api/hello/{id}:
    - method: GET
      handler: hello
`

func writeProject(t *testing.T, dir, mainSrc string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.js"), []byte(mainSrc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(configYAML), 0o644))
}

func newCoordinatorForTest(t *testing.T, dir string) (*Coordinator, *dispatch.TenantSet, *worker.Registry) {
	t.Helper()

	project, err := config.Load(filepath.Join(dir, "config.yml"))
	require.NoError(t, err)

	bundle := "(function(){" + v1Main + "return{hello:hello};})();"

	sw, err := tenantrouter.New(bundle, project.Routes.Patterns, project.Routes.ByPath)
	require.NoError(t, err)

	tenants := dispatch.NewTenantSet()
	tenants.Add("localhost", sw)

	workers := worker.NewRegistry(applog.Noop())
	require.NoError(t, workers.Spawn("localhost", bundle))

	c, err := New("localhost", dir, tenants, workers, applog.Noop())
	require.NoError(t, err)
	return c, tenants, workers
}

func TestCoordinator_RebuildSwapsRouterAndReplacesWorker(t *testing.T) {
	dir := t.TempDir()
	writeProject(t, dir, v1Main)

	c, tenants, workers := newCoordinatorForTest(t, dir)
	defer c.watcher.Close()

	before, ok := workers.Lookup("localhost")
	require.True(t, ok)

	// Update the source on disk, then call rebuild directly (bypassing the
	// debounce timer, which is exercised separately).
	writeProject(t, dir, v2Main)
	c.rebuild()

	sw, ok := tenants.Lookup("localhost")
	require.True(t, ok)
	snap := sw.Load()
	require.Contains(t, snap.Code, "v2")

	w, ok := workers.Lookup("localhost")
	require.True(t, ok)
	require.NotNil(t, w)
	require.NotSame(t, before, w)
}

func TestCoordinator_DebouncesBurstsOfEvents(t *testing.T) {
	dir := t.TempDir()
	writeProject(t, dir, v1Main)

	oldDebounce := DebounceInterval
	DebounceInterval = 50 * time.Millisecond
	defer func() { DebounceInterval = oldDebounce }()

	c, tenants, _ := newCoordinatorForTest(t, dir)

	rebuilds := make(chan struct{}, 8)
	c.onRebuilt = func() { rebuilds <- struct{}{} }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	for i := 0; i < 5; i++ {
		writeProject(t, dir, v2Main)
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-rebuilds:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a rebuild after debounce window")
	}

	select {
	case <-rebuilds:
		t.Fatal("a burst of changes should coalesce into a single rebuild")
	case <-time.After(200 * time.Millisecond):
	}

	sw, ok := tenants.Lookup("localhost")
	require.True(t, ok)
	require.Contains(t, sw.Load().Code, "v2")
}

func TestRelevant_FiltersByExtensionAndConfigName(t *testing.T) {
	require.True(t, relevant("main.ts"))
	require.True(t, relevant("main.js"))
	require.True(t, relevant("config.yml"))
	require.True(t, relevant("/a/b/config.yml"))
	require.False(t, relevant("README.md"))
	require.False(t, relevant("data.json"))
}
