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

// Package engine implements the statement list executor and the await
// bridge, and ties them to the module package's linker/evaluator through
// the module.Executor contract.
//
// The non-control-flow expression evaluator, the object model, and
// environment-record plumbing beyond bindings used here are external
// collaborators; engine consumes exactly one narrow interface,
// Evaluator, to reach them.
package engine

import (
	"github.com/dop251/goja"
	"github.com/sentrie-sh/esmrt/ast"
	"github.com/sentrie-sh/esmrt/module"
)

// Evaluator is the host's non-control-flow expression evaluator. The
// engine never inspects an ast.Expression's internals except
// *ast.AwaitExpression and *ast.Literal, which it owns directly;
// everything else is handed to Evaluator.
//
// Eval must report its own host-raised exceptions in a form the
// statement executor can map at the statement boundary: a
// *goja.Exception or xerr.JavaScriptException carrying a JS value maps to
// a Throw completion with that value; an xerr type or range error maps to
// a Throw of a TypeError/RangeError built by the realm; any other error is
// treated as a host bug and surfaced unmodified (the executor panics with
// it).
type Evaluator interface {
	Eval(env *module.Environment, expr ast.Expression) (goja.Value, error)

	// Truthy reports whether v is truthy under the realm's ToBoolean
	// coercion, used by If/While/DoWhile/For.
	Truthy(v goja.Value) bool

	// MakeFunction builds the callable object a hoisted top-level
	// FunctionDeclaration's binding is initialized to. The returned
	// function closes over env; invoking it is the host's
	// responsibility, but a host that wants its body's own `await`s to
	// suspend through this package's await bridge calls back into
	// Engine.ExecuteFunctionBody to run params/body.
	MakeFunction(env *module.Environment, name string, params []string, body []ast.Statement) (goja.Value, error)
}
