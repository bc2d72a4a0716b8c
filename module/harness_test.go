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
	"github.com/pkg/errors"
	"github.com/sentrie-sh/esmrt/ast"
	"github.com/sentrie-sh/esmrt/completion"
	"github.com/sentrie-sh/esmrt/promise"
)

// testHost resolves specifiers out of a flat registry and backs the realm
// contract with a private goja runtime and queue.
type testHost struct {
	rt      *goja.Runtime
	queue   *promise.Queue
	modules map[string]*CyclicModuleRecord
}

func newTestHost() *testHost {
	return &testHost{
		rt:      goja.New(),
		queue:   promise.NewQueue(),
		modules: make(map[string]*CyclicModuleRecord),
	}
}

func (h *testHost) ResolveImportedModule(_ *CyclicModuleRecord, specifier string) (*CyclicModuleRecord, error) {
	m, ok := h.modules[specifier]
	if !ok {
		return nil, errors.Errorf("unresolvable module %q", specifier)
	}
	return m, nil
}

func (h *testHost) NewTypeError(message string) goja.Value   { return h.rt.NewTypeError(message) }
func (h *testHost) NewRangeError(message string) goja.Value  { return h.rt.NewTypeError(message) }
func (h *testHost) NewSyntaxError(message string) goja.Value { return h.rt.NewTypeError(message) }
func (h *testHost) Runtime() *goja.Runtime                   { return h.rt }
func (h *testHost) Queue() *promise.Queue                    { return h.queue }

// fakeExecutor records the order module bodies run in and lets a test
// script per-module behavior: a synchronous throw, or an async body whose
// capability the test settles later.
type fakeExecutor struct {
	host *testHost

	order   []string
	throwOn map[string]string               // specifier -> thrown message
	asyncCaps map[string]*promise.Capability // specifier -> the capability handed to an async body
}

func newFakeExecutor(h *testHost) *fakeExecutor {
	return &fakeExecutor{
		host:      h,
		throwOn:   make(map[string]string),
		asyncCaps: make(map[string]*promise.Capability),
	}
}

func (f *fakeExecutor) Execute(m *CyclicModuleRecord, cap *promise.Capability) completion.Record {
	f.order = append(f.order, m.Specifier)
	if msg, ok := f.throwOn[m.Specifier]; ok {
		thrown := completion.NewThrow(f.host.rt.NewTypeError(msg), nil)
		if cap != nil {
			cap.Reject(thrown.Value)
		}
		return thrown
	}
	if cap != nil {
		if m.HasTLA {
			// park: the test settles the capability to simulate the body's
			// awaited promise resolving
			f.asyncCaps[m.Specifier] = cap
		} else {
			cap.Resolve(goja.Undefined())
		}
	}
	return completion.NewNormal(nil)
}

type graphBuilder struct {
	host *testHost
	exec *fakeExecutor
	g    *Graph
}

func newGraphBuilder() *graphBuilder {
	h := newTestHost()
	exec := newFakeExecutor(h)
	return &graphBuilder{host: h, exec: exec, g: NewGraph(h, exec)}
}

type moduleSpec struct {
	specifier string
	imports   []ast.ImportEntry
	local     []ast.ExportEntry
	indirect  []ast.ExportEntry
	star      []ast.ExportEntry
	hasTLA    bool
}

func (b *graphBuilder) add(ms moduleSpec) *CyclicModuleRecord {
	m := b.g.AddModule(ms.specifier, nil, ms.imports, ms.local, ms.indirect, ms.star, ms.hasTLA)
	b.host.modules[ms.specifier] = m
	return m
}

func importOf(from, name string) ast.ImportEntry {
	return ast.ImportEntry{ModuleRequest: from, ImportName: name, LocalName: name}
}

func localExport(name string) ast.ExportEntry {
	return ast.ExportEntry{ExportName: name, LocalName: name}
}

func starExport(from string) ast.ExportEntry {
	return ast.ExportEntry{ExportName: "*", ModuleRequest: from}
}
