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

package engine

import (
	"github.com/dop251/goja"
	"github.com/sentrie-sh/esmrt/ast"
	"github.com/sentrie-sh/esmrt/completion"
	"github.com/sentrie-sh/esmrt/module"
	"github.com/sentrie-sh/esmrt/promise"
)

// compiledStatement pairs a statement with its fast-resolve
// precomputation: a statement-position literal's completion computed at
// build time and reused on every execution. fast is nil for anything but
// a bare literal expression statement.
type compiledStatement struct {
	stmt ast.Statement
	fast *completion.Record
}

// compiledBody is the immutable, build-once representation of a top-level
// statement list (a module body or a function body). It is cached on the
// Engine keyed by module.Handle for module bodies; function bodies compile
// on every call since MakeFunction's closures aren't addressable by handle.
type compiledBody struct {
	stmts []compiledStatement
}

func (e *Engine) compile(body []ast.Statement) *compiledBody {
	cb := &compiledBody{stmts: make([]compiledStatement, len(body))}
	for i, s := range body {
		cb.stmts[i] = compiledStatement{stmt: s, fast: e.fastResolveLiteral(s)}
	}
	return cb
}

// fastResolveLiteral precomputes the completion of a statement that is
// nothing but a bare literal (e.g. a stray `"use strict";`-shaped
// directive prologue entry) so later executions skip the host Evaluator
// round-trip entirely.
func (e *Engine) fastResolveLiteral(s ast.Statement) *completion.Record {
	es, ok := s.(*ast.ExpressionStatement)
	if !ok {
		return nil
	}
	lit, ok := es.Expr.(*ast.Literal)
	if !ok {
		return nil
	}
	c := completion.NewNormal(e.rt.ToValue(lit.Value))
	return &c
}

// fastResolveApplies reports whether the fast-resolve optimization is
// live right now: debug mode disables it, and WithFastResolve can switch
// it off outright.
func (e *Engine) fastResolveApplies() bool {
	return !e.debug && !e.fastResolveDisabled
}

func (e *Engine) compiledFor(h module.Handle, body []ast.Statement) *compiledBody {
	if cb, ok := e.compiled[h]; ok {
		return cb
	}
	cb := e.compile(body)
	e.compiled[h] = cb
	return cb
}

// Execute implements module.Executor, the seam InnerModuleEvaluation and
// ExecuteAsync (module/evaluator.go) use to run a module's top-level body
// without this package importing module back. cap is non-nil exactly
// when the call comes from ExecuteAsync, i.e. the module has top-level
// await; a module without it that waited on async dependencies runs with
// a nil cap. This method hands the activation's settlement straight to
// cap when there is one.
func (e *Engine) Execute(m *module.CyclicModuleRecord, cap *promise.Capability) completion.Record {
	cb := e.compiledFor(m.Handle(), m.Body)
	materializeFunctions(e, m.Environment, m.Body)

	act := newActivation(e, cb, m.Environment, cap)
	res := act.run()
	e.settleActivation(act, res)
	return res.completion
}

// ExecuteFunctionBody runs an arbitrary statement list (a function body)
// under its own environment, returning a promise that settles with the
// function's return value (or undefined) the same way a module's
// top-level await does. Hosts call this from their Call-expression
// evaluation when invoking a function whose body may contain `await`.
func (e *Engine) ExecuteFunctionBody(body []ast.Statement, env *module.Environment) *promise.Promise {
	cap := promise.NewCapability(e.rt, e.queue)
	module.HoistDeclarations(env, body)
	materializeFunctions(e, env, body)
	cb := e.compile(body)
	act := newActivation(e, cb, env, cap)
	res := act.run()
	e.settleActivation(act, res)
	return cap.Promise
}

// settleActivation resolves or rejects act.cap from a completed (i.e. not
// Suspended) run/resume, mapping Return's value (or Normal fold-through)
// to fulfillment and Throw to rejection. A Suspended completion is not
// settled here: the park table (await.go) owns resuming the activation and
// will call settleActivation again once it finally completes.
func (e *Engine) settleActivation(act *activation, res execResult) {
	if res.completion.Kind == completion.Normal && res.completion.Suspended {
		e.park.register(act, res.suspendAt)
		return
	}
	if act.cap == nil {
		return
	}
	switch res.completion.Kind {
	case completion.Throw:
		act.cap.Reject(res.completion.Value)
	default: // Normal or Return
		v := res.completion.Value
		if v == nil {
			v = goja.Undefined()
		}
		act.cap.Resolve(v)
	}
}

// materializeFunctions builds the real function object for every
// top-level FunctionDeclaration and initializes its already-reserved
// binding (module/linker.go's HoistDeclarations only reserved the slot,
// since the module package has no evaluator of its own). Idempotent: a
// binding that is already initialized — e.g. Execute running again on an
// async module's ancestor chain — is left alone.
func materializeFunctions(e *Engine, env *module.Environment, body []ast.Statement) {
	for _, s := range body {
		fd, ok := s.(*ast.FunctionDeclaration)
		if !ok {
			continue
		}
		if env.IsInitialized(fd.Name) {
			continue
		}
		fn, err := e.eval.MakeFunction(env, fd.Name, fd.Params, fd.Body)
		if err != nil {
			panic(err)
		}
		if err := env.InitializeBinding(fd.Name, fn); err != nil {
			panic(err)
		}
	}
}
