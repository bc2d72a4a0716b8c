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

package module

import (
	"context"
	"fmt"
	"time"

	"github.com/binaek/gocoll/collection"
	"github.com/binaek/perch"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/sentrie-sh/esmrt/ast"
	"github.com/sentrie-sh/esmrt/dag"
)

// resolveCacheTTL is effectively "forever" for the lifetime of one Graph:
// ResolveExport is referentially transparent and the graph's shape never
// mutates after modules are added, so nothing ever needs to be evicted
// early.
const resolveCacheTTL = 365 * 24 * time.Hour

// Graph is the arena of module records for one engine instance. It owns
// module identity (handles), the host contract, and the Executor the
// linker/evaluator delegate statement execution to.
type Graph struct {
	host     Host
	executor Executor

	modules []*CyclicModuleRecord

	resolveCache *perch.Perch[*ResolvedBinding]

	nextAsyncEvalOrder int

	// cond is an optional diagnostic view over the requestedModules edges,
	// built on demand by Condensation(); it is not consulted by Link or
	// Evaluate, which do their own DFS bookkeeping.
	cond dag.G[specifierNode]
}

// NewGraph creates an empty module graph bound to host and executor.
func NewGraph(host Host, executor Executor) *Graph {
	return &Graph{
		host:         host,
		executor:     executor,
		resolveCache: perch.New[*ResolvedBinding](4096),
		cond:         dag.New[specifierNode](),
	}
}

// AddModule registers a parsed module body and returns its record. The
// caller is responsible for later resolving it from
// Host.ResolveImportedModule for any (referrer, specifier) pair that
// should reach it; the graph itself does not deduplicate by specifier,
// that is the host's contract.
func (g *Graph) AddModule(specifier string, body []ast.Statement, imports []ast.ImportEntry, local, indirect, star []ast.ExportEntry, hasTLA bool) *CyclicModuleRecord {
	m := newRecord(specifier, body, imports, local, indirect, star, hasTLA)
	m.handle = Handle(len(g.modules))
	g.modules = append(g.modules, m)
	g.cond.AddNode(specifierNode(specifier))
	for _, dep := range m.RequestedModules {
		g.cond.AddNode(specifierNode(dep))
		_ = g.cond.AddEdge(specifierNode(specifier), specifierNode(dep)) // self-import edges are the only failure mode; diagnostic view only
	}
	return m
}

// byHandle dereferences a stable handle back to its record.
func (g *Graph) byHandle(h Handle) *CyclicModuleRecord {
	if h < 0 || int(h) >= len(g.modules) {
		return nil
	}
	return g.modules[h]
}

// specifierNode lets the generic directed-graph helper (dag.G) operate
// over module specifiers for the SCC-condensation diagnostic view;
// Condensation is advisory and never consulted by the real linker.
type specifierNode string

func (n specifierNode) String() string { return string(n) }

// Condensation exposes the dag toposort/cycle-detection helper as a
// read-only diagnostic over the import graph's specifier edges: a
// topological order when the graph is acyclic, or the first cycle found.
// This does not replace InnerModuleLinking's own DFS; it is a convenience
// for hosts that want to print or assert on the graph shape up front.
func (g *Graph) Condensation() (order []string, cycle []string) {
	toStrings := func(nodes []specifierNode) []string {
		return collection.Map(
			collection.From(nodes...),
			func(n specifierNode) string { return string(n) },
		).Elements()
	}
	if sorted, err := g.cond.TopoSort(); err == nil {
		return toStrings(sorted), nil
	}
	return nil, toStrings(g.cond.DetectFirstCycle())
}

func cacheKey(m *CyclicModuleRecord, name string) string {
	h, err := hashstructure.Hash(struct {
		Handle Handle
		Name   string
	}{m.handle, name}, hashstructure.FormatV2, nil)
	if err != nil {
		// Hashing a (Handle, string) pair cannot fail; this only guards
		// against a future field addition that breaks hashstructure's
		// assumptions.
		return fmt.Sprintf("%d:%s", m.handle, name)
	}
	return fmt.Sprintf("%x", h)
}

func (g *Graph) resolveExportCached(ctx context.Context, m *CyclicModuleRecord, name string) (*ResolvedBinding, error) {
	v, _, err := g.resolveCache.Get(ctx, cacheKey(m, name), resolveCacheTTL, func(ctx context.Context, _ string) (*ResolvedBinding, error) {
		return g.resolveExport(m, name, make(map[resolveKey]bool))
	})
	return v, err
}
