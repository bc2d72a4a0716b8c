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
	"github.com/sentrie-sh/esmrt/ast"
	"github.com/sentrie-sh/esmrt/tokens"
	"github.com/sentrie-sh/esmrt/xerr"
)

// Link (tc39.es/ecma262/#sec-moduledeclarationlinking) runs
// InnerModuleLinking over an empty stack starting at index 0. On failure
// every module left on the stack is rolled back to Unlinked; on success
// the stack is empty and m.Status is Linked (the check below also accepts
// Unlinked). A module that is already EvaluatingAsync or Evaluated is
// not touched by the DFS and fails that check with an invariant error.
func (g *Graph) Link(m *CyclicModuleRecord) error {
	var stack []*CyclicModuleRecord
	_, err := g.innerModuleLinking(m, &stack, 0)
	if err != nil {
		for _, s := range stack {
			s.Status = Unlinked
			s.Environment = nil
			s.dfsIndex = unsetIndex
			s.dfsAncestorIndex = unsetIndex
		}
		return err
	}
	if len(stack) != 0 {
		return xerr.ErrInvariant("Link left %d modules on the stack after success", len(stack))
	}
	if m.Status != Linked && m.Status != Unlinked {
		return xerr.ErrInvariant("Link left %s in status %s", m.Specifier, m.Status)
	}
	return nil
}

// innerModuleLinking implements InnerModuleLinking
// (tc39.es/ecma262/#sec-InnerModuleLinking).
func (g *Graph) innerModuleLinking(m *CyclicModuleRecord, stack *[]*CyclicModuleRecord, index int) (int, error) {
	switch m.Status {
	case Linking, Linked, EvaluatingAsync, Evaluated:
		return index, nil
	}
	if m.Status != Unlinked {
		return index, xerr.ErrInvariant("InnerModuleLinking called on %s in status %s", m.Specifier, m.Status)
	}

	m.Status = Linking
	m.dfsIndex = index
	m.dfsAncestorIndex = index
	index++
	*stack = append(*stack, m)

	for _, spec := range m.RequestedModules {
		target, err := g.host.ResolveImportedModule(m, spec)
		if err != nil {
			return index, err
		}
		if target.Status == Unlinked {
			index, err = g.innerModuleLinking(target, stack, index)
			if err != nil {
				return index, err
			}
		}
		switch target.Status {
		case Linking, Linked, Evaluated:
		default:
			return index, xerr.ErrInvariant("dependency %s of %s left in status %s after linking", target.Specifier, m.Specifier, target.Status)
		}
		if target.Status == Linking {
			if !onStack(*stack, target) {
				return index, xerr.ErrInvariant("dependency %s of %s marked Linking but not on the DFS stack", target.Specifier, m.Specifier)
			}
			if target.dfsAncestorIndex < m.dfsAncestorIndex {
				m.dfsAncestorIndex = target.dfsAncestorIndex
			}
		}
	}

	if err := g.initializeEnvironment(m); err != nil {
		return index, err
	}

	if count := countOnStack(*stack, m); count != 1 {
		return index, xerr.ErrInvariant("%s appears %d times on the DFS stack", m.Specifier, count)
	}
	if m.dfsAncestorIndex > m.dfsIndex {
		return index, xerr.ErrInvariant("%s has dfsAncestorIndex %d > dfsIndex %d", m.Specifier, m.dfsAncestorIndex, m.dfsIndex)
	}

	if m.dfsAncestorIndex == m.dfsIndex {
		for {
			n := len(*stack)
			popped := (*stack)[n-1]
			*stack = (*stack)[:n-1]
			popped.Status = Linked
			if popped == m {
				break
			}
		}
	}

	return index, nil
}

func onStack(stack []*CyclicModuleRecord, m *CyclicModuleRecord) bool {
	for _, s := range stack {
		if s == m {
			return true
		}
	}
	return false
}

func countOnStack(stack []*CyclicModuleRecord, m *CyclicModuleRecord) int {
	n := 0
	for _, s := range stack {
		if s == m {
			n++
		}
	}
	return n
}

// initializeEnvironment implements InitializeEnvironment
// (tc39.es/ecma262/#sec-source-text-module-record-initialize-environment):
// pre-resolve indirect exports, build the module's environment, bind
// imports (including namespace and import-binding indirection), then
// hoist var/lexical/function declarations from the body.
func (g *Graph) initializeEnvironment(m *CyclicModuleRecord) error {
	for _, e := range m.IndirectExportEntries {
		target, err := g.host.ResolveImportedModule(m, e.ModuleRequest)
		if err != nil {
			return err
		}
		if e.ImportName == ast.NamespaceImportName {
			continue
		}
		resolved, err := g.ResolveExport(target, e.ImportName)
		if err != nil {
			return err
		}
		if resolved == nil {
			return xerr.ErrSyntax(moduleRange(m), "indirect export %q of %q could not be resolved in %q", e.ExportName, m.Specifier, e.ModuleRequest)
		}
		if IsAmbiguous(resolved) {
			return xerr.ErrSyntax(moduleRange(m), "indirect export %q of %q is ambiguous", e.ExportName, m.Specifier)
		}
	}

	m.Environment = NewEnvironment(nil)

	for _, e := range m.ImportEntries {
		target, err := g.host.ResolveImportedModule(m, e.ModuleRequest)
		if err != nil {
			return err
		}
		if e.ImportName == ast.NamespaceImportName {
			m.Environment.declareNamespace(e.LocalName, target)
			continue
		}
		resolved, err := g.ResolveExport(target, e.ImportName)
		if err != nil {
			return err
		}
		if resolved == nil {
			return xerr.ErrSyntax(moduleRange(m), "import %q from %q could not be resolved", e.ImportName, e.ModuleRequest)
		}
		if IsAmbiguous(resolved) {
			return xerr.ErrSyntax(moduleRange(m), "import %q from %q is ambiguous", e.ImportName, e.ModuleRequest)
		}
		if resolved.BindingName == ast.NamespaceBindingName {
			m.Environment.declareNamespace(e.LocalName, resolved.Module)
			continue
		}
		m.Environment.declareImport(e.LocalName, resolved.Module.Environment, resolved.BindingName)
	}

	HoistDeclarations(m.Environment, m.Body)
	return nil
}

// HoistDeclarations walks a top-level statement list declaring
// var/let/const/function bindings. It does not recurse into nested
// function bodies (those get their own environment when called) but does
// walk block/if/loop nesting for `var`, matching ECMAScript's
// function-scoped var hoisting.
func HoistDeclarations(env *Environment, body []ast.Statement) {
	for _, s := range body {
		hoistStatement(env, s, true)
	}
}

func hoistStatement(env *Environment, s ast.Statement, topLevel bool) {
	switch st := s.(type) {
	case *ast.VariableStatement:
		switch st.Kind {
		case ast.VariableVar:
			for _, d := range st.Declarations {
				env.DeclareVar(d.Name)
			}
		case ast.VariableLet:
			// lexicals are block-scoped: only var escapes a nested block
			if topLevel {
				for _, d := range st.Declarations {
					env.DeclareLexical(d.Name, false)
				}
			}
		case ast.VariableConst:
			if topLevel {
				for _, d := range st.Declarations {
					env.DeclareLexical(d.Name, true)
				}
			}
		}
	case *ast.FunctionDeclaration:
		if topLevel {
			env.declareFunction(st.Name)
		}
	case *ast.BlockStatement:
		for _, inner := range st.Body {
			hoistStatement(env, inner, false)
		}
	case *ast.IfStatement:
		hoistStatement(env, st.Consequent, false)
		if st.Alternate != nil {
			hoistStatement(env, st.Alternate, false)
		}
	case *ast.LabeledStatement:
		hoistStatement(env, st.Body, topLevel)
	case *ast.WhileStatement:
		hoistStatement(env, st.Body, false)
	case *ast.DoWhileStatement:
		hoistStatement(env, st.Body, false)
	case *ast.ForStatement:
		if st.Init != nil {
			hoistStatement(env, st.Init, false)
		}
		hoistStatement(env, st.Body, false)
	}
}

func moduleRange(m *CyclicModuleRecord) tokens.Range {
	return tokens.Range{File: m.Specifier}
}
