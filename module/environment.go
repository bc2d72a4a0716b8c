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
	"github.com/sentrie-sh/esmrt/tokens"
	"github.com/sentrie-sh/esmrt/xerr"
)

// BindingKind distinguishes how a binding's value is produced: hoisted
// declarations hold their value directly, import/namespace bindings read
// through to another module.
type BindingKind int

const (
	// BindingVar is a mutable binding initialized to undefined.
	BindingVar BindingKind = iota
	// BindingLet is a mutable binding, uninitialized until its declaration
	// statement runs (TDZ).
	BindingLet
	// BindingConst is an immutable binding, uninitialized until its
	// declaration statement runs.
	BindingConst
	// BindingFunction is a mutable binding reserved uninitialized during
	// hoisting; the statement executor initializes it to a function object
	// before any statement of the body runs.
	BindingFunction
	// BindingImport aliases a binding in another module's environment,
	// resolved once at link time ("a pointer-like binding").
	BindingImport
	// BindingNamespace aliases a module's namespace object (immutable).
	BindingNamespace
)

// binding is one entry in an Environment. Import/namespace bindings never
// hold a value directly — they read through target/targetModule every time,
// giving live-binding semantics (a later assignment in the defining module
// is visible to every importer).
type binding struct {
	kind        BindingKind
	mutable     bool
	initialized bool
	value       goja.Value

	target     *Environment       // BindingImport: defining module's environment
	targetName string             // BindingImport: name inside target
	namespace  *CyclicModuleRecord // BindingNamespace: module to project
}

// Environment is a module-scoped lexical record. It extends the realm's
// global environment, represented here simply as a reachable outer
// Environment (nil for the realm root).
type Environment struct {
	outer    *Environment
	bindings map[string]*binding
}

// NewEnvironment creates a fresh environment extending outer.
func NewEnvironment(outer *Environment) *Environment {
	return &Environment{outer: outer, bindings: make(map[string]*binding)}
}

// DeclareVar hoists a var binding, initialized to undefined (idempotent:
// re-declaring an existing var is a no-op, matching hoisting semantics).
func (e *Environment) DeclareVar(name string) {
	if _, ok := e.bindings[name]; ok {
		return
	}
	e.bindings[name] = &binding{kind: BindingVar, mutable: true, initialized: true, value: goja.Undefined()}
}

// DeclareLexical hoists a let/const binding, uninitialized (TDZ).
func (e *Environment) DeclareLexical(name string, constant bool) {
	e.bindings[name] = &binding{kind: pick(constant, BindingConst, BindingLet), mutable: !constant}
}

func pick(cond bool, t, f BindingKind) BindingKind {
	if cond {
		return t
	}
	return f
}

// declareFunction reserves a function binding's slot at link time. The
// module package has no evaluator of its own (non-control-flow
// evaluation belongs to the host), so it cannot build the actual
// function object during InitializeEnvironment; the binding starts
// uninitialized and the statement executor fills it in with a real
// function value (via InitializeBinding) on its first pass over the
// body, before any statement runs. Hoisting itself never depends on an
// evaluator.
func (e *Environment) declareFunction(name string) {
	e.bindings[name] = &binding{kind: BindingFunction, mutable: true}
}

// declareImport creates an import binding aliasing (target, targetName).
func (e *Environment) declareImport(localName string, target *Environment, targetName string) {
	e.bindings[localName] = &binding{kind: BindingImport, target: target, targetName: targetName}
}

// declareNamespace binds localName to the live namespace object of m.
func (e *Environment) declareNamespace(localName string, m *CyclicModuleRecord) {
	e.bindings[localName] = &binding{kind: BindingNamespace, namespace: m}
}

// GetBindingValue resolves name, following import indirection. namespaceOf
// is called to materialize a namespace object lazily (wired to
// Graph.GetModuleNamespace by the linker).
func (e *Environment) GetBindingValue(name string, namespaceOf func(*CyclicModuleRecord) (goja.Value, error)) (goja.Value, error) {
	b, env := e.lookup(name)
	if b == nil {
		return nil, xerr.ErrInvariant("unbound identifier %q", name)
	}
	switch b.kind {
	case BindingImport:
		return b.target.GetBindingValue(b.targetName, namespaceOf)
	case BindingNamespace:
		return namespaceOf(b.namespace)
	default:
		if !b.initialized {
			return nil, xerr.ErrInvariant("read of %q before its temporal-dead-zone initialization", name)
		}
		_ = env
		return b.value, nil
	}
}

// InitializeBinding sets a let/const/function binding's value for the
// first time (lifting it out of the TDZ).
func (e *Environment) InitializeBinding(name string, v goja.Value) error {
	b, ok := e.bindings[name]
	if !ok {
		return xerr.ErrInvariant("initialize of undeclared binding %q", name)
	}
	b.value = v
	b.initialized = true
	return nil
}

// SetBindingValue assigns an existing mutable binding. Import and namespace
// bindings are never assignable directly by their importer.
func (e *Environment) SetBindingValue(name string, v goja.Value) error {
	b, _ := e.lookup(name)
	if b == nil {
		return xerr.ErrInvariant("assignment to unbound identifier %q", name)
	}
	if b.kind == BindingImport || b.kind == BindingNamespace {
		return xerr.ErrType(tokens.Range{}, "assignment to imported binding %q", name)
	}
	if !b.mutable && b.initialized {
		return xerr.ErrType(tokens.Range{}, "assignment to constant %q", name)
	}
	b.value = v
	b.initialized = true
	return nil
}

// lookup walks outer environments for name, returning the owning
// environment for diagnostics.
func (e *Environment) lookup(name string) (*binding, *Environment) {
	for env := e; env != nil; env = env.outer {
		if b, ok := env.bindings[name]; ok {
			return b, env
		}
	}
	return nil, nil
}

// IsInitialized reports whether name is declared directly in e and already
// holds a value (i.e. is out of its temporal dead zone).
func (e *Environment) IsInitialized(name string) bool {
	b, ok := e.bindings[name]
	return ok && b.initialized
}

// Has reports whether name is declared directly in e (not outer scopes).
func (e *Environment) Has(name string) bool {
	_, ok := e.bindings[name]
	return ok
}
