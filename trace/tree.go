// SPDX-License-Identifier: Apache-2.0
//
// Copyright 2025 Binaek Sarkar
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package trace records a tree of engine operations (linking, evaluation,
// settlement) for hosts that want step-through diagnostics. It is purely
// observational: nothing in the engine consults a trace node.
package trace

import (
	"fmt"
	"time"

	"github.com/sentrie-sh/esmrt/ast"
)

// Node captures a single engine step in the diagnostic tree.
type Node struct {
	// Kind is a high-level category: "link", "evaluate", "module",
	// "statement", "await", "settle".
	Kind string `json:"kind"`

	// Op is the sub-kind or subject (a module specifier, a statement
	// type, a promise state).
	Op string `json:"op,omitempty"`

	// Duration is the time taken for this step.
	Duration time.Duration `json:"duration,omitempty"`

	// Node is the AST node associated with this step, if any.
	Node ast.Node `json:"-"`

	// Meta holds step-specific metadata (e.g. dfs indices, async order).
	Meta map[string]any `json:"meta,omitempty"`

	// Children are the nested steps under this node.
	Children []*Node `json:"children,omitempty"`

	// Result is the exported Go value this step produced.
	Result any `json:"result,omitempty"`

	// Err (if set) is the error message produced during this step.
	Err string `json:"err,omitempty"`
}

type DoneFn func()

// New creates a node with meta and returns it with a completion callback
// that stamps the duration.
func New(kind, op string, n ast.Node, meta map[string]any) (*Node, DoneFn) {
	x := &Node{Kind: kind, Op: op, Node: n, Meta: meta}
	start := time.Now()
	return x, func() {
		x.Duration = time.Since(start)
	}
}

// Skipped marks a step that was recognized but not traced in depth.
func Skipped(kind string, n ast.Node) *Node {
	return &Node{Kind: kind, Op: "skipped", Node: n, Meta: map[string]any{"type": fmt.Sprintf("%T", n)}}
}

// Attach adds children and returns self for chaining.
func (n *Node) Attach(children ...*Node) *Node {
	if len(children) == 0 {
		return n
	}
	n.Children = append(n.Children, children...)
	return n
}

// SetResult sets the node's result and returns self.
func (n *Node) SetResult(v any) *Node {
	n.Result = v
	return n
}

// SetErr annotates the node with an error string.
func (n *Node) SetErr(err error) *Node {
	if err != nil {
		n.Err = err.Error()
	}
	return n
}
