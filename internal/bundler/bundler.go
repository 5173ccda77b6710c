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

// Package bundler builds the self-invoking JS expression a tenant's worker
// evaluates and computes the deterministic content hash used to name and
// cache build artifacts. Grounded on original_source/bundler/src/lib.rs
// (the IIFE output contract, exercised by its bundle_ts_should_work test)
// and original_source/dino/src/utils.rs (calc_project_hash/build_project).
// It does not transpile TypeScript syntax — spec.md scopes that out — but
// the wrapping contract the rest of the system depends on is real.
package bundler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/scriptrun/scriptrun/internal/apperror"
)

// hashedExts mirrors dino/src/utils.rs's calc_project_hash: every ts/js/json
// file under the project root contributes to the hash, in sorted path
// order so the hash is reproducible across filesystems and OSes.
var hashedExts = []string{"ts", "js", "json"}

// HashProject returns the first hashLen hex characters of the BLAKE3 digest
// over every ts/js/json file under dir, concatenated in sorted path order.
func HashProject(dir string, hashLen int) (string, error) {
	files, err := filesWithExts(dir, hashedExts)
	if err != nil {
		return "", apperror.Wrap(apperror.KindBundlingError, "collecting project files", err)
	}

	h := blake3.New()
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return "", apperror.Wrap(apperror.KindBundlingError, fmt.Sprintf("reading %s", f), err)
		}
		if _, err := h.Write(data); err != nil {
			return "", apperror.Wrap(apperror.KindBundlingError, fmt.Sprintf("hashing %s", f), err)
		}
	}

	sum := h.Sum(nil)
	hex := fmt.Sprintf("%x", sum)
	if hashLen > 0 && hashLen < len(hex) {
		hex = hex[:hashLen]
	}
	return hex, nil
}

func filesWithExts(dir string, exts []string) ([]string, error) {
	var out []string
	extSet := make(map[string]bool, len(exts))
	for _, e := range exts {
		extSet["."+e] = true
	}

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if extSet[filepath.Ext(path)] {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// Bundle concatenates every top-level function declaration found in the
// project's entrypoint (main.ts, falling back to main.js) into a single
// IIFE evaluating to an object mapping each function's name to itself, per
// bundler/src/lib.rs's contract: "(function(){...;return{name:fn,...};})();"
// with no whitespace inserted between statements.
func Bundle(dir string) (string, error) {
	entry, err := findEntrypoint(dir)
	if err != nil {
		return "", err
	}
	src, err := os.ReadFile(entry)
	if err != nil {
		return "", apperror.Wrap(apperror.KindBundlingError, fmt.Sprintf("reading %s", entry), err)
	}

	fns := extractTopLevelFunctions(string(src))
	if len(fns) == 0 {
		return "", apperror.New(apperror.KindBundlingError, fmt.Sprintf("%s declares no top-level functions", entry))
	}

	var body strings.Builder
	body.WriteString("(function(){")
	for _, fn := range fns {
		body.WriteString(fn.Source)
	}
	body.WriteString("return{")
	for i, fn := range fns {
		if i > 0 {
			body.WriteString(",")
		}
		body.WriteString(fn.Name)
		body.WriteString(":")
		body.WriteString(fn.Name)
	}
	body.WriteString("};})();")
	return body.String(), nil
}

// BuildProject is the CLI's `build` subcommand (spec.md §6, supplemented
// per SPEC_FULL.md from dino/src/utils.rs's build_project): hash the
// project, skip bundling entirely if `<buildDir>/<hash>.mjs` already
// exists, otherwise bundle and write both the bundle and a copy of the
// project's config.yml alongside it under the same hash.
func BuildProject(dir, buildDir string) (bundlePath string, err error) {
	hash, err := HashProject(dir, 16)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return "", apperror.Wrap(apperror.KindBundlingError, fmt.Sprintf("creating %s", buildDir), err)
	}

	bundlePath = filepath.Join(buildDir, hash+".mjs")
	if _, statErr := os.Stat(bundlePath); statErr == nil {
		return bundlePath, nil
	}

	content, err := Bundle(dir)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(bundlePath, []byte(content), 0o644); err != nil {
		return "", apperror.Wrap(apperror.KindBundlingError, fmt.Sprintf("writing %s", bundlePath), err)
	}

	configPath := filepath.Join(buildDir, hash+".yml")
	src, err := os.ReadFile(filepath.Join(dir, "config.yml"))
	if err != nil {
		return "", apperror.Wrap(apperror.KindBundlingError, "reading config.yml", err)
	}
	if err := os.WriteFile(configPath, src, 0o644); err != nil {
		return "", apperror.Wrap(apperror.KindBundlingError, fmt.Sprintf("writing %s", configPath), err)
	}

	return bundlePath, nil
}

func findEntrypoint(dir string) (string, error) {
	for _, name := range []string{"main.ts", "main.js"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", apperror.New(apperror.KindBundlingError, fmt.Sprintf("no main.ts or main.js found under %s", dir))
}

// function is one extracted top-level declaration.
type function struct {
	Name   string
	Source string
}

// extractTopLevelFunctions scans for `function name(` and `async function
// name(` at brace-depth zero and captures each declaration's full source
// by counting braces to the matching close. This is a deliberately small
// scanner, not a JS parser: it is sufficient for the bundler's scope
// (wrapping already-valid handler functions), not for arbitrary syntax.
func extractTopLevelFunctions(src string) []function {
	var fns []function
	depth := 0
	i := 0
	for i < len(src) {
		c := src[i]
		switch c {
		case '{':
			depth++
			i++
		case '}':
			depth--
			i++
		default:
			if depth == 0 {
				if name, bodyStart, ok := matchFunctionHeader(src, i); ok {
					end := matchBraceEnd(src, bodyStart)
					if end > 0 {
						fns = append(fns, function{Name: name, Source: src[i:end]})
						i = end
						continue
					}
				}
			}
			i++
		}
	}
	return fns
}

// matchFunctionHeader checks whether src[i:] begins a top-level function
// declaration (optionally "async "), returning the declared name and the
// index of its opening brace.
func matchFunctionHeader(src string, i int) (name string, braceIdx int, ok bool) {
	rest := src[i:]
	if strings.HasPrefix(rest, "async") && i+5 < len(src) && isSpace(src[i+5]) {
		rest = strings.TrimLeft(rest[5:], " \t\r\n")
	}
	if !strings.HasPrefix(rest, "function") {
		return "", 0, false
	}
	rest = rest[len("function"):]
	rest = strings.TrimLeft(rest, " \t\r\n")

	j := 0
	for j < len(rest) && isIdentChar(rest[j]) {
		j++
	}
	if j == 0 {
		return "", 0, false
	}
	fnName := rest[:j]

	paren := strings.IndexByte(rest[j:], '(')
	if paren == -1 {
		return "", 0, false
	}
	brace := strings.IndexByte(rest[j+paren:], '{')
	if brace == -1 {
		return "", 0, false
	}
	absoluteBraceIdx := i + (len(src[i:]) - len(rest)) + j + paren + brace
	return fnName, absoluteBraceIdx, true
}

func matchBraceEnd(src string, braceIdx int) int {
	depth := 0
	for i := braceIdx; i < len(src); i++ {
		switch src[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

func isIdentChar(b byte) bool {
	return b == '_' || b == '$' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}
