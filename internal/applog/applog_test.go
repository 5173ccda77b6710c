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

package applog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewJSON_WritesStructuredRecordsWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSON(&buf, slog.LevelInfo)

	logger.Info("request served", "status", 200, "host", "a.example.com")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "request served", record["msg"])
	require.EqualValues(t, 200, record["status"])
	require.Equal(t, "a.example.com", record["host"])
}

func TestNewJSON_RespectsLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSON(&buf, slog.LevelWarn)

	logger.Debug("should be dropped")
	logger.Info("should also be dropped")
	require.Empty(t, buf.String())

	logger.Warn("should appear")
	require.Contains(t, buf.String(), "should appear")
}

func TestNewText_WritesKeyValueLines(t *testing.T) {
	var buf bytes.Buffer
	logger := NewText(&buf, slog.LevelInfo)

	logger.Error("worker crashed", "host", "b.example.com")

	out := buf.String()
	require.Contains(t, out, "msg=\"worker crashed\"")
	require.Contains(t, out, "host=b.example.com")
}

func TestNoop_DiscardsEverything(t *testing.T) {
	logger := Noop()
	require.NotPanics(t, func() {
		logger.Debug("x")
		logger.Info("x")
		logger.Warn("x")
		logger.Error("x")
	})
}

func TestWithHost_TagsEveryRecordWithHost(t *testing.T) {
	var buf bytes.Buffer
	base := NewJSON(&buf, slog.LevelInfo)
	tagged := WithHost(base, "tenant.example.com")

	tagged.Info("handled", "path", "/x")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "tenant.example.com", record["host"])
	require.Equal(t, "/x", record["path"])
}

func TestWithHost_AppliesToAllLevels(t *testing.T) {
	var buf bytes.Buffer
	base := NewJSON(&buf, slog.LevelInfo)
	tagged := WithHost(base, "c.example.com")

	tagged.Warn("w")
	tagged.Error("e")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var record map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &record))
		require.Equal(t, "c.example.com", record["host"])
	}
}
