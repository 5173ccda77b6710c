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

// Package config loads a tenant's project configuration file: the project
// name and its ordered route table. Grounded on dino-server/src/config.rs;
// YAML parsing mirrors the teacher's use of gopkg.in/yaml.v3.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/scriptrun/scriptrun/internal/apperror"
)

// Method is one of the fixed set of HTTP methods spec.md §3 enumerates.
type Method string

const (
	MethodGET     Method = "GET"
	MethodPOST    Method = "POST"
	MethodPUT     Method = "PUT"
	MethodDELETE  Method = "DELETE"
	MethodPATCH   Method = "PATCH"
	MethodHEAD    Method = "HEAD"
	MethodOPTIONS Method = "OPTIONS"
	MethodCONNECT Method = "CONNECT"
	MethodTRACE   Method = "TRACE"
)

// ParseMethod normalises a method string case-insensitively, per spec.md's
// "Unknown method names are a load error."
func ParseMethod(s string) (Method, error) {
	switch strings.ToUpper(s) {
	case string(MethodGET):
		return MethodGET, nil
	case string(MethodPOST):
		return MethodPOST, nil
	case string(MethodPUT):
		return MethodPUT, nil
	case string(MethodDELETE):
		return MethodDELETE, nil
	case string(MethodPATCH):
		return MethodPATCH, nil
	case string(MethodHEAD):
		return MethodHEAD, nil
	case string(MethodOPTIONS):
		return MethodOPTIONS, nil
	case string(MethodCONNECT):
		return MethodCONNECT, nil
	case string(MethodTRACE):
		return MethodTRACE, nil
	default:
		return "", apperror.New(apperror.KindConfigLoadError, fmt.Sprintf("unsupported method %q", s))
	}
}

// Route is one (method, handler) pair attached to a path pattern. Insertion
// order is preserved from the YAML but doesn't affect matching.
type Route struct {
	Method  Method
	Handler string
}

type routeYAML struct {
	Method  string `yaml:"method"`
	Handler string `yaml:"handler"`
}

// Routes is the ordered path-pattern -> route-list mapping from the YAML
// `routes` block. yaml.v3 preserves mapping key order through MapSlice-like
// decoding via yaml.Node, which Parse uses below to keep source order
// for human-readable diffing even though matching doesn't depend on it.
type Routes struct {
	Patterns []string
	ByPath   map[string][]Route
}

// Project is the parsed contents of a tenant's config.yml.
type Project struct {
	Name   string
	Routes Routes
}

// rawProject mirrors the YAML shape before method strings are validated.
// Routes is kept as a raw yaml.Node and decoded manually below so that
// source order (Patterns) survives even though yaml.v3 would otherwise
// collapse a map[string]... into unordered Go map iteration.
type rawProject struct {
	Name   string    `yaml:"name"`
	Routes yaml.Node `yaml:"routes"`
}

// Load reads and parses a project config file from path.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindConfigLoadError, "failed to read config file", err)
	}
	return Parse(data)
}

// Parse parses YAML config bytes into a Project.
func Parse(data []byte) (*Project, error) {
	var raw rawProject
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, apperror.Wrap(apperror.KindConfigLoadError, "invalid yaml", err)
	}

	if raw.Routes.Kind != 0 && raw.Routes.Kind != yaml.MappingNode {
		return nil, apperror.New(apperror.KindConfigLoadError, "routes must be a mapping")
	}

	routes := Routes{ByPath: make(map[string][]Route)}
	for i := 0; i+1 < len(raw.Routes.Content); i += 2 {
		pathNode := raw.Routes.Content[i]
		listNode := raw.Routes.Content[i+1]

		var entries []routeYAML
		if err := listNode.Decode(&entries); err != nil {
			return nil, apperror.Wrap(apperror.KindConfigLoadError, fmt.Sprintf("invalid route list for %q", pathNode.Value), err)
		}

		parsed := make([]Route, 0, len(entries))
		for _, e := range entries {
			m, err := ParseMethod(e.Method)
			if err != nil {
				return nil, err
			}
			parsed = append(parsed, Route{Method: m, Handler: e.Handler})
		}

		if _, exists := routes.ByPath[pathNode.Value]; exists {
			return nil, apperror.New(apperror.KindConfigLoadError, fmt.Sprintf("duplicate route pattern %q", pathNode.Value))
		}
		routes.Patterns = append(routes.Patterns, pathNode.Value)
		routes.ByPath[pathNode.Value] = parsed
	}

	return &Project{Name: raw.Name, Routes: routes}, nil
}
