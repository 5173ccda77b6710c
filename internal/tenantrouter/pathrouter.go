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

// Package tenantrouter implements the per-tenant path/method router and its
// atomically swappable holder (spec.md §3, §4.1, §4.2). The trie shape is
// grounded on the teacher's router/radix.go (per-segment edges, a dedicated
// node type per segment kind); the two-phase match (path, then method) is
// grounded on dino-server/src/router.rs's AppRouter.match_it, which returns
// a path-miss and a method-miss as distinct outcomes so the dispatcher can
// tell 404 from 405 apart.
package tenantrouter

import (
	"fmt"
	"strings"

	"github.com/scriptrun/scriptrun/internal/apperror"
	"github.com/scriptrun/scriptrun/internal/config"
)

// paramEdge is the single dynamic-segment child of a node (a radix tree
// node has at most one, since two different capture names at the same
// position would be ambiguous).
type paramEdge struct {
	name string
	node *node
}

// wildcardEdge is the optional catch-all child that terminates a pattern.
type wildcardEdge struct {
	name string
	node *node
}

// node is one segment position in the trie.
type node struct {
	literal  map[string]*node
	param    *paramEdge
	wildcard *wildcardEdge
	route    *MethodRoute // non-nil exactly on nodes where a pattern terminates
}

func (n *node) literalChild(seg string) *node {
	if n.literal == nil {
		n.literal = make(map[string]*node, 4)
	}
	child, ok := n.literal[seg]
	if !ok {
		child = &node{}
		n.literal[seg] = child
	}
	return child
}

// PathRouter is the immutable radix trie over PathPattern with MethodRoute
// leaves (spec.md §3's "a radix trie keyed on PathPattern").
type PathRouter struct {
	root *node
}

// MatchResult is the outcome of a successful path+method match.
type MatchResult struct {
	Handler string
	Params  map[string]string
}

// Sentinel match outcomes, distinguished so the dispatcher can map them to
// 404 vs 405 per spec.md §4.5.
var (
	ErrNoPathMatch      = apperror.New(apperror.KindRoutePathNotFound, "no path pattern matches")
	ErrMethodNotAllowed = apperror.New(apperror.KindRouteMethodNotAllowed, "method not permitted for this path")
)

func splitSegments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// segmentKind classifies one pattern segment.
func segmentKind(seg string) (kind string, name string) {
	if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") && len(seg) >= 2 {
		inner := seg[1 : len(seg)-1]
		if strings.HasPrefix(inner, "*") {
			return "wildcard", inner[1:]
		}
		return "param", inner
	}
	return "literal", seg
}

// BuildPathRouter builds a PathRouter from an ordered sequence of
// (pattern, routes) pairs, per spec.md §4.1's `build`. Insertion order does
// not affect matching but duplicate patterns and malformed segments fail
// the build.
func BuildPathRouter(patterns []string, byPath map[string][]config.Route) (*PathRouter, error) {
	root := &node{}
	seen := make(map[string]bool, len(patterns))

	for _, pattern := range patterns {
		if seen[pattern] {
			return nil, apperror.New(apperror.KindConfigLoadError, fmt.Sprintf("duplicate route pattern %q", pattern))
		}
		seen[pattern] = true

		segments := splitSegments(pattern)
		cur := root
		for i, seg := range segments {
			kind, name := segmentKind(seg)
			switch kind {
			case "literal":
				if name == "" {
					return nil, apperror.New(apperror.KindConfigLoadError, fmt.Sprintf("invalid pattern %q: empty segment", pattern))
				}
				cur = cur.literalChild(name)
			case "param":
				if name == "" {
					return nil, apperror.New(apperror.KindConfigLoadError, fmt.Sprintf("invalid pattern %q: empty capture name", pattern))
				}
				if cur.param == nil {
					cur.param = &paramEdge{name: name, node: &node{}}
				} else if cur.param.name != name {
					return nil, apperror.New(apperror.KindConfigLoadError,
						fmt.Sprintf("invalid pattern %q: conflicting capture name %q at this position (expected %q)", pattern, name, cur.param.name))
				}
				cur = cur.param.node
			case "wildcard":
				if i != len(segments)-1 {
					return nil, apperror.New(apperror.KindConfigLoadError, fmt.Sprintf("invalid pattern %q: wildcard must be the last segment", pattern))
				}
				if cur.wildcard == nil {
					cur.wildcard = &wildcardEdge{name: name, node: &node{}}
				}
				cur = cur.wildcard.node
			}
		}

		if cur.route != nil {
			return nil, apperror.New(apperror.KindConfigLoadError, fmt.Sprintf("duplicate route pattern %q", pattern))
		}
		mr := newMethodRoute(byPath[pattern])
		cur.route = &mr
	}

	return &PathRouter{root: root}, nil
}

// Match descends the trie on `/`-delimited segments (spec.md §4.1). On a
// path miss it returns ErrNoPathMatch; on a path hit with no MethodRoute
// entry for method it returns ErrMethodNotAllowed.
func (r *PathRouter) Match(method config.Method, path string) (MatchResult, error) {
	segments := splitSegments(path)
	params := make(map[string]string)

	leaf := matchNode(r.root, segments, params)
	if leaf == nil || leaf.route == nil {
		return MatchResult{}, ErrNoPathMatch
	}

	handler, ok := leaf.route.Get(method)
	if !ok {
		return MatchResult{}, ErrMethodNotAllowed
	}
	return MatchResult{Handler: handler, Params: params}, nil
}

// matchNode performs the most-specific-first descent: literal children win
// over the capture child, which wins over the wildcard child, with
// backtracking on a deeper miss (spec.md §3: "literals beat captures beat
// wildcards").
func matchNode(n *node, segments []string, params map[string]string) *node {
	if len(segments) == 0 {
		if n.route != nil {
			return n
		}
		// A wildcard registered at this position can still match zero
		// remaining segments (e.g. pattern "/static/{*rest}" against "/static").
		if n.wildcard != nil {
			params[n.wildcard.name] = ""
			if n.wildcard.node.route != nil {
				return n.wildcard.node
			}
			delete(params, n.wildcard.name)
		}
		return nil
	}

	head, rest := segments[0], segments[1:]

	if n.literal != nil {
		if child, ok := n.literal[head]; ok {
			if found := matchNode(child, rest, params); found != nil {
				return found
			}
		}
	}

	if n.param != nil {
		prev, had := params[n.param.name]
		params[n.param.name] = head
		if found := matchNode(n.param.node, rest, params); found != nil {
			return found
		}
		if had {
			params[n.param.name] = prev
		} else {
			delete(params, n.param.name)
		}
	}

	if n.wildcard != nil {
		params[n.wildcard.name] = strings.Join(segments, "/")
		if n.wildcard.node.route != nil {
			return n.wildcard.node
		}
		delete(params, n.wildcard.name)
	}

	return nil
}
