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

	"github.com/sentrie-sh/esmrt/ast"
)

// ResolvedBinding is the result of ResolveExport: either a concrete
// (module, bindingName) pair, the Ambiguous sentinel, or nil
// (absent/unresolved).
type ResolvedBinding struct {
	Module      *CyclicModuleRecord
	BindingName string
}

// Ambiguous is the sentinel ResolveExport returns when two distinct star
// re-exports disagree on a name.
var Ambiguous = &ResolvedBinding{BindingName: "\x00ambiguous"}

// IsAmbiguous reports whether b is the Ambiguous sentinel.
func IsAmbiguous(b *ResolvedBinding) bool { return b == Ambiguous }

// resolveKey is a (module, name) pair used for ResolveExport's
// circularity guard: a pair already in the resolve set is reported
// unresolved instead of recursing forever.
type resolveKey struct {
	handle Handle
	name   string
}

// GetExportedNames (tc39.es/ecma262/#sec-getexportednames) returns the
// ordered list of names m exports, breaking `export *` cycles and
// preserving first-seen order. "default" never propagates through a
// star export.
func (g *Graph) GetExportedNames(m *CyclicModuleRecord, visited map[Handle]bool) []string {
	if visited == nil {
		visited = make(map[Handle]bool)
	}
	if visited[m.handle] {
		return nil
	}
	visited[m.handle] = true

	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	}

	for _, e := range m.LocalExportEntries {
		add(e.ExportName)
	}
	for _, e := range m.IndirectExportEntries {
		add(e.ExportName)
	}
	for _, e := range m.StarExportEntries {
		target, err := g.host.ResolveImportedModule(m, e.ModuleRequest)
		if err != nil {
			continue
		}
		for _, name := range g.GetExportedNames(target, visited) {
			if name == "default" {
				continue
			}
			add(name)
		}
	}
	return names
}

// ResolveExport is the cached public entry point for the ResolveExport
// algorithm (tc39.es/ecma262/#sec-resolveexport). Repeated calls with
// the same arguments return the same result.
func (g *Graph) ResolveExport(m *CyclicModuleRecord, name string) (*ResolvedBinding, error) {
	return g.resolveExportCached(context.Background(), m, name)
}

// resolveExport is the uncached recursive algorithm; ResolveExport wraps it
// with memoization keyed by (module, name) since the graph's shape is fixed
// once linking begins.
func (g *Graph) resolveExport(m *CyclicModuleRecord, name string, resolveSet map[resolveKey]bool) (*ResolvedBinding, error) {
	key := resolveKey{m.handle, name}
	if resolveSet[key] {
		return nil, nil // circularity -> unresolved
	}
	resolveSet[key] = true

	for _, e := range m.LocalExportEntries {
		if e.ExportName == name {
			local := e.LocalName
			if local == "" {
				local = e.ExportName
			}
			return &ResolvedBinding{Module: m, BindingName: local}, nil
		}
	}

	for _, e := range m.IndirectExportEntries {
		if e.ExportName != name {
			continue
		}
		target, err := g.host.ResolveImportedModule(m, e.ModuleRequest)
		if err != nil {
			return nil, err
		}
		if e.ImportName == ast.NamespaceImportName {
			return &ResolvedBinding{Module: target, BindingName: ast.NamespaceBindingName}, nil
		}
		return g.resolveExport(target, e.ImportName, resolveSet)
	}

	if name == "default" {
		return nil, nil
	}

	var star *ResolvedBinding
	for _, e := range m.StarExportEntries {
		target, err := g.host.ResolveImportedModule(m, e.ModuleRequest)
		if err != nil {
			return nil, err
		}
		resolution, err := g.resolveExport(target, name, resolveSet)
		if err != nil {
			return nil, err
		}
		if IsAmbiguous(resolution) {
			return Ambiguous, nil
		}
		if resolution == nil {
			continue
		}
		if star == nil {
			star = resolution
			continue
		}
		if star.Module != resolution.Module || star.BindingName != resolution.BindingName {
			return Ambiguous, nil
		}
	}
	return star, nil
}
