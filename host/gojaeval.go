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

package host

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"github.com/sentrie-sh/esmrt/ast"
	"github.com/sentrie-sh/esmrt/engine"
	"github.com/sentrie-sh/esmrt/module"
	"github.com/sentrie-sh/esmrt/xerr"
)

// GojaEvaluator is the reference non-control-flow expression evaluator: it
// compiles ast.Source text with goja, feeding the module-scope bindings
// the text names in Refs as function parameters. Control flow never
// reaches it; await, statements, and completions stay in the engine.
type GojaEvaluator struct {
	realm *Realm
	eng   *engine.Engine

	compiled map[*ast.Source]goja.Callable
}

// NewEvaluator builds the evaluator for realm. Bind must be called with
// the engine before the first module body runs, so that functions built
// by MakeFunction can drive their own bodies (and awaits) through it.
func NewEvaluator(realm *Realm) *GojaEvaluator {
	return &GojaEvaluator{realm: realm, compiled: make(map[*ast.Source]goja.Callable)}
}

// Bind attaches the engine the evaluator calls back into.
func (ev *GojaEvaluator) Bind(eng *engine.Engine) { ev.eng = eng }

// Eval implements engine.Evaluator.
func (ev *GojaEvaluator) Eval(env *module.Environment, expr ast.Expression) (goja.Value, error) {
	rt := ev.realm.rt
	switch x := expr.(type) {
	case *ast.Literal:
		return rt.ToValue(x.Value), nil
	case *ast.Opaque:
		v, err := x.Eval()
		if err != nil {
			return nil, err
		}
		return rt.ToValue(v), nil
	case *ast.Source:
		return ev.evalSource(env, x)
	default:
		return nil, xerr.ErrInvariant("evaluator handed an expression it does not own: %T", expr)
	}
}

// evalSource compiles x.Text into a function taking x.Refs as parameters
// (compiled once per node), reads the referenced bindings out of env, and
// calls it. goja exceptions pass through unwrapped so the statement
// executor can map the carried JS value to a Throw completion.
func (ev *GojaEvaluator) evalSource(env *module.Environment, x *ast.Source) (goja.Value, error) {
	fn, ok := ev.compiled[x]
	if !ok {
		var err error
		fn, err = ev.compileSource(x)
		if err != nil {
			return nil, err
		}
		ev.compiled[x] = fn
	}

	args := make([]goja.Value, 0, len(x.Refs))
	for _, ref := range x.Refs {
		v, err := env.GetBindingValue(ref, ev.namespaceOf)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	return fn(goja.Undefined(), args...)
}

func (ev *GojaEvaluator) compileSource(x *ast.Source) (goja.Callable, error) {
	src := fmt.Sprintf("(function(%s) { return (%s); })", strings.Join(x.Refs, ", "), x.Text)
	v, err := ev.realm.rt.RunScript(x.Range.File, src)
	if err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, xerr.ErrInvariant("compiled expression did not produce a function: %q", x.Text)
	}
	return fn, nil
}

func (ev *GojaEvaluator) namespaceOf(m *module.CyclicModuleRecord) (goja.Value, error) {
	if ev.eng == nil {
		return nil, xerr.ErrInvariant("evaluator not bound to an engine")
	}
	return ev.eng.GetModuleNamespace(m)
}

// Truthy implements engine.Evaluator via the realm's ToBoolean coercion.
func (ev *GojaEvaluator) Truthy(v goja.Value) bool {
	if v == nil {
		return false
	}
	return v.ToBoolean()
}

// MakeFunction implements engine.Evaluator. The returned callable binds
// its parameters in a fresh environment extending env and drives the body
// through the engine, so an await inside it suspends cooperatively; the
// call's result is therefore always a promise.
func (ev *GojaEvaluator) MakeFunction(env *module.Environment, name string, params []string, body []ast.Statement) (goja.Value, error) {
	rt := ev.realm.rt
	fn := func(call goja.FunctionCall) goja.Value {
		fenv := module.NewEnvironment(env)
		for i, p := range params {
			fenv.DeclareVar(p)
			if err := fenv.SetBindingValue(p, call.Argument(i)); err != nil {
				panic(rt.NewGoError(err))
			}
		}
		p := ev.eng.ExecuteFunctionBody(body, fenv)
		return rt.ToValue(p)
	}
	return rt.ToValue(fn), nil
}
