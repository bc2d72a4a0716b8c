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
	"github.com/dop251/goja"
	"github.com/sentrie-sh/esmrt/ast"
	"github.com/sentrie-sh/esmrt/completion"
	"github.com/sentrie-sh/esmrt/promise"
)

// Handle is a stable arena index for a module. Back-references between
// modules (asyncParentModules, cycleRoot) are Handles, not pointers:
// edges into the arena rather than owning references, which keeps the
// graph's cycles from becoming Go reference cycles.
type Handle int

// noHandle is the sentinel for "no cycle root assigned yet".
const noHandle Handle = -1

// CyclicModuleRecord is the per-module state of the cyclic module
// algorithms (tc39.es/ecma262/#sec-cyclic-module-records).
type CyclicModuleRecord struct {
	handle    Handle
	Specifier string
	Body      []ast.Statement

	Status      Status
	Environment *Environment
	namespaceMu bool // guards lazy namespace creation (see namespace.go)
	namespace   goja.Value

	RequestedModules      []string // ordered, de-duplicated import specifiers
	ImportEntries         []ast.ImportEntry
	LocalExportEntries    []ast.ExportEntry
	IndirectExportEntries []ast.ExportEntry
	StarExportEntries     []ast.ExportEntry

	dfsIndex         int
	dfsAncestorIndex int

	HasTLA                bool
	asyncEvaluation       bool
	asyncEvalOrder        int
	pendingAsyncDeps      int
	asyncParentModules    []Handle
	cycleRoot             Handle

	topLevelCapability *promise.Capability
	evalError          *completion.Record
}

// Handle returns the module's stable arena handle.
func (m *CyclicModuleRecord) Handle() Handle { return m.handle }

// newRecord builds an Unlinked module record from a parsed module body. The
// caller (Graph.AddModule) assigns the handle.
func newRecord(specifier string, body []ast.Statement, imports []ast.ImportEntry, local, indirect, star []ast.ExportEntry, hasTLA bool) *CyclicModuleRecord {
	requested := orderedRequestedModules(imports, indirect, star)
	return &CyclicModuleRecord{
		Specifier:             specifier,
		Body:                  body,
		Status:                Unlinked,
		RequestedModules:      requested,
		ImportEntries:         imports,
		LocalExportEntries:    local,
		IndirectExportEntries: indirect,
		StarExportEntries:     star,
		dfsIndex:              unsetIndex,
		dfsAncestorIndex:      unsetIndex,
		HasTLA:                hasTLA,
		cycleRoot:             noHandle,
	}
}

// orderedRequestedModules collects the unique module-request specifiers
// across imports and re-exports, preserving first-seen order.
func orderedRequestedModules(imports []ast.ImportEntry, indirect, star []ast.ExportEntry) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(spec string) {
		if spec == "" {
			return
		}
		if _, ok := seen[spec]; ok {
			return
		}
		seen[spec] = struct{}{}
		out = append(out, spec)
	}
	for _, e := range imports {
		add(e.ModuleRequest)
	}
	for _, e := range indirect {
		add(e.ModuleRequest)
	}
	for _, e := range star {
		add(e.ModuleRequest)
	}
	return out
}
