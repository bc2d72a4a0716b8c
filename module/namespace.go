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
	"github.com/fatih/structs"
	"github.com/sentrie-sh/esmrt/ast"
)

// GetModuleNamespace builds the module namespace exotic object
// (tc39.es/ecma262/#sec-module-namespace-exotic-objects): every exported
// name is exposed as a read-only, live-binding accessor property, built
// lazily once per module and cached.
func (g *Graph) GetModuleNamespace(m *CyclicModuleRecord) (goja.Value, error) {
	if m.namespaceMu && m.namespace != nil {
		return m.namespace, nil
	}

	obj := g.host.Runtime().NewObject()
	m.namespaceMu = true
	m.namespace = obj // assign before populating: a self-referential `export *` cycle must see a stable (if incomplete) object, not recurse forever.

	for _, name := range g.GetExportedNames(m, nil) {
		resolved, err := g.ResolveExport(m, name)
		if err != nil {
			return nil, err
		}
		if resolved == nil || IsAmbiguous(resolved) {
			continue // an unresolved or ambiguous name is simply omitted from the namespace view
		}
		if err := defineNamespaceAccessor(g, obj, name, resolved); err != nil {
			return nil, err
		}
	}

	return obj, nil
}

func defineNamespaceAccessor(g *Graph, obj *goja.Object, name string, resolved *ResolvedBinding) error {
	rt := g.host.Runtime()

	// `export * as ns` resolves to the namespace sentinel, not a binding in
	// the target's environment; the property is the target's own namespace
	// object, mirroring the import binding in initializeEnvironment.
	if resolved.BindingName == ast.NamespaceBindingName {
		getter := rt.ToValue(func(goja.FunctionCall) goja.Value {
			ns, err := g.GetModuleNamespace(resolved.Module)
			if err != nil {
				return goja.Undefined()
			}
			return ns
		})
		return obj.DefineAccessorProperty(name, getter, nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	}

	getter := rt.ToValue(func(goja.FunctionCall) goja.Value {
		v, err := resolved.Module.Environment.GetBindingValue(resolved.BindingName, func(target *CyclicModuleRecord) (goja.Value, error) {
			return g.GetModuleNamespace(target)
		})
		if err != nil {
			return goja.Undefined()
		}
		if name == "default" {
			if flat := StructToNamespaceProperties(v.Export()); flat != nil {
				return rt.ToValue(flat)
			}
		}
		return v
	})
	return obj.DefineAccessorProperty(name, getter, nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
}

// StructToNamespaceProperties flattens a Go struct default export (e.g. one
// produced by a host-side builtin module) into a plain name/value map; the
// "default" namespace accessor exposes the flattened map instead of the
// opaque struct wrapper.
func StructToNamespaceProperties(v any) map[string]any {
	if !structs.IsStruct(v) {
		return nil
	}
	return structs.Map(v)
}
