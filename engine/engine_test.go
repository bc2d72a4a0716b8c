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
	"testing"

	"github.com/dop251/goja"
	"github.com/pkg/errors"
	"github.com/sentrie-sh/esmrt/ast"
	"github.com/sentrie-sh/esmrt/module"
	"github.com/sentrie-sh/esmrt/promise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubHost satisfies module.Host for engine-level tests; module resolution
// is never exercised here.
type stubHost struct {
	rt    *goja.Runtime
	queue *promise.Queue
}

func newStubHost() *stubHost {
	return &stubHost{rt: goja.New(), queue: promise.NewQueue()}
}

func (h *stubHost) ResolveImportedModule(_ *module.CyclicModuleRecord, specifier string) (*module.CyclicModuleRecord, error) {
	return nil, errors.Errorf("unexpected resolution of %q", specifier)
}
func (h *stubHost) NewTypeError(message string) goja.Value   { return h.rt.NewTypeError(message) }
func (h *stubHost) NewRangeError(message string) goja.Value  { return h.rt.NewTypeError(message) }
func (h *stubHost) NewSyntaxError(message string) goja.Value { return h.rt.NewTypeError(message) }
func (h *stubHost) Runtime() *goja.Runtime                   { return h.rt }
func (h *stubHost) Queue() *promise.Queue                    { return h.queue }

// stubEval resolves ast.Source expressions from a table keyed by source
// text, so tests can script expression behavior without a JS front end.
type stubEval struct {
	rt    *goja.Runtime
	fns   map[string]func(env *module.Environment) (goja.Value, error)
	calls int
}

func newStubEval(rt *goja.Runtime) *stubEval {
	return &stubEval{rt: rt, fns: make(map[string]func(env *module.Environment) (goja.Value, error))}
}

func (s *stubEval) Eval(env *module.Environment, expr ast.Expression) (goja.Value, error) {
	s.calls++
	switch x := expr.(type) {
	case *ast.Literal:
		return s.rt.ToValue(x.Value), nil
	case *ast.Opaque:
		v, err := x.Eval()
		if err != nil {
			return nil, err
		}
		return s.rt.ToValue(v), nil
	case *ast.Source:
		fn, ok := s.fns[x.Text]
		if !ok {
			return nil, errors.Errorf("no stub for expression %q", x.Text)
		}
		return fn(env)
	default:
		return nil, errors.Errorf("unexpected expression %T", expr)
	}
}

func (s *stubEval) Truthy(v goja.Value) bool {
	return v != nil && v.ToBoolean()
}

func (s *stubEval) MakeFunction(env *module.Environment, name string, params []string, body []ast.Statement) (goja.Value, error) {
	return s.rt.ToValue(name), nil
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *stubHost, *stubEval) {
	t.Helper()
	h := newStubHost()
	ev := newStubEval(h.rt)
	return New(h.rt, h, ev, opts...), h, ev
}

func exprStmt(text string, refs ...string) ast.Statement {
	return &ast.ExpressionStatement{Expr: &ast.Source{Text: text, Refs: refs}}
}

func TestStatementListValueIsLastNonEmpty(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	body := []ast.Statement{
		&ast.ExpressionStatement{Expr: &ast.Literal{Value: "first"}},
		&ast.EmptyStatement{},
		&ast.ExpressionStatement{Expr: &ast.Literal{Value: int64(42)}},
		&ast.EmptyStatement{},
	}

	p := eng.ExecuteFunctionBody(body, module.NewEnvironment(nil))

	require.Equal(t, promise.Fulfilled, p.State())
	assert.Equal(t, int64(42), p.Value().ToInteger())
}

func TestStatementListValueDefaultsToUndefined(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	body := []ast.Statement{&ast.EmptyStatement{}}

	p := eng.ExecuteFunctionBody(body, module.NewEnvironment(nil))

	require.Equal(t, promise.Fulfilled, p.State())
	assert.Equal(t, goja.Undefined(), p.Value())
}

func TestFastResolveSkipsEvaluator(t *testing.T) {
	eng, _, ev := newTestEngine(t)
	body := []ast.Statement{
		&ast.ExpressionStatement{Expr: &ast.Literal{Value: "cached"}},
	}

	p := eng.ExecuteFunctionBody(body, module.NewEnvironment(nil))

	require.Equal(t, promise.Fulfilled, p.State())
	assert.Equal(t, "cached", p.Value().Export())
	assert.Zero(t, ev.calls, "a bare literal statement must not reach the evaluator")
}

func TestDebugModeDisablesFastResolve(t *testing.T) {
	eng, _, ev := newTestEngine(t, WithDebug(true))
	body := []ast.Statement{
		&ast.ExpressionStatement{Expr: &ast.Literal{Value: "observed"}},
	}

	p := eng.ExecuteFunctionBody(body, module.NewEnvironment(nil))

	require.Equal(t, promise.Fulfilled, p.State())
	assert.Equal(t, "observed", p.Value().Export())
	assert.Equal(t, 1, ev.calls, "debug mode must observably execute every statement")
}

func TestThrowStatementRejects(t *testing.T) {
	eng, h, ev := newTestEngine(t)
	boom := h.rt.NewTypeError("boom")
	ev.fns["boom"] = func(*module.Environment) (goja.Value, error) { return boom, nil }

	body := []ast.Statement{
		&ast.ThrowStatement{Argument: &ast.Source{Text: "boom"}},
	}
	p := eng.ExecuteFunctionBody(body, module.NewEnvironment(nil))

	require.Equal(t, promise.Rejected, p.State())
	assert.Equal(t, boom, p.Value())
}

func TestReturnStatementCarriesValue(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	body := []ast.Statement{
		&ast.ReturnStatement{Argument: &ast.Literal{Value: "done"}},
		&ast.ExpressionStatement{Expr: &ast.Literal{Value: "unreached"}},
	}
	p := eng.ExecuteFunctionBody(body, module.NewEnvironment(nil))

	require.Equal(t, promise.Fulfilled, p.State())
	assert.Equal(t, "done", p.Value().Export())
}

func TestWhileLoopWithBreak(t *testing.T) {
	eng, h, ev := newTestEngine(t)
	i := 0
	ev.fns["cond"] = func(*module.Environment) (goja.Value, error) { return h.rt.ToValue(true), nil }
	ev.fns["step"] = func(*module.Environment) (goja.Value, error) {
		i++
		return h.rt.ToValue(i), nil
	}

	body := []ast.Statement{
		&ast.WhileStatement{
			Test: &ast.Source{Text: "cond"},
			Body: &ast.BlockStatement{Body: []ast.Statement{
				exprStmt("step"),
				&ast.IfStatement{
					Test:       &ast.Source{Text: "cond"},
					Consequent: &ast.BreakStatement{},
				},
			}},
		},
	}
	p := eng.ExecuteFunctionBody(body, module.NewEnvironment(nil))

	require.Equal(t, promise.Fulfilled, p.State())
	assert.Equal(t, 1, i, "break must leave the loop after the first iteration")
}

func TestLabeledBreakUnwindsToLabel(t *testing.T) {
	eng, h, ev := newTestEngine(t)
	inner := 0
	ev.fns["cond"] = func(*module.Environment) (goja.Value, error) { return h.rt.ToValue(true), nil }
	ev.fns["inner"] = func(*module.Environment) (goja.Value, error) {
		inner++
		return h.rt.ToValue(inner), nil
	}

	body := []ast.Statement{
		&ast.LabeledStatement{
			Label: "outer",
			Body: &ast.WhileStatement{
				Label: "outer",
				Test:  &ast.Source{Text: "cond"},
				Body: &ast.BlockStatement{Body: []ast.Statement{
					exprStmt("inner"),
					&ast.BreakStatement{Label: "outer"},
					exprStmt("inner"),
				}},
			},
		},
		&ast.ExpressionStatement{Expr: &ast.Literal{Value: "after"}},
	}
	p := eng.ExecuteFunctionBody(body, module.NewEnvironment(nil))

	require.Equal(t, promise.Fulfilled, p.State())
	assert.Equal(t, 1, inner)
	assert.Equal(t, "after", p.Value().Export())
}

func TestBlockLexicalDeclaresAtExecution(t *testing.T) {
	eng, _, ev := newTestEngine(t)
	var seen []int64
	ev.fns["use(v)"] = func(env *module.Environment) (goja.Value, error) {
		v, err := env.GetBindingValue("v", nil)
		if err != nil {
			return nil, err
		}
		seen = append(seen, v.ToInteger())
		return v, nil
	}

	body := []ast.Statement{
		&ast.BlockStatement{Body: []ast.Statement{
			&ast.VariableStatement{Kind: ast.VariableConst, Declarations: []ast.VariableDeclarator{
				{Name: "v", Init: &ast.Literal{Value: int64(9)}},
			}},
			exprStmt("use(v)", "v"),
		}},
	}
	p := eng.ExecuteFunctionBody(body, module.NewEnvironment(nil))

	require.Equal(t, promise.Fulfilled, p.State())
	assert.Equal(t, []int64{9}, seen)
}

func TestLoopBodyConstRedeclaresEachIteration(t *testing.T) {
	eng, h, ev := newTestEngine(t)
	i := 0
	ev.fns["cond"] = func(*module.Environment) (goja.Value, error) { return h.rt.ToValue(i < 2), nil }
	ev.fns["next"] = func(*module.Environment) (goja.Value, error) {
		i++
		return h.rt.ToValue(i), nil
	}
	var seen []int64
	ev.fns["use(v)"] = func(env *module.Environment) (goja.Value, error) {
		v, err := env.GetBindingValue("v", nil)
		if err != nil {
			return nil, err
		}
		seen = append(seen, v.ToInteger())
		return v, nil
	}

	body := []ast.Statement{
		&ast.WhileStatement{
			Test: &ast.Source{Text: "cond"},
			Body: &ast.BlockStatement{Body: []ast.Statement{
				&ast.VariableStatement{Kind: ast.VariableConst, Declarations: []ast.VariableDeclarator{
					{Name: "v", Init: &ast.Source{Text: "next"}},
				}},
				exprStmt("use(v)", "v"),
			}},
		},
	}
	p := eng.ExecuteFunctionBody(body, module.NewEnvironment(nil))

	require.Equal(t, promise.Fulfilled, p.State())
	assert.Equal(t, []int64{1, 2}, seen, "each iteration gets a freshly declared const")
}

func TestAwaitNonPromisePassesThrough(t *testing.T) {
	eng, h, ev := newTestEngine(t)
	ev.fns["plain"] = func(*module.Environment) (goja.Value, error) { return h.rt.ToValue(7), nil }

	body := []ast.Statement{
		&ast.ExpressionStatement{Expr: &ast.AwaitExpression{Argument: &ast.Source{Text: "plain"}}},
	}
	p := eng.ExecuteFunctionBody(body, module.NewEnvironment(nil))

	require.Equal(t, promise.Fulfilled, p.State())
	assert.Equal(t, int64(7), p.Value().ToInteger())
	assert.Zero(t, eng.Parked())
}

func TestAwaitSettledPromiseDoesNotSuspend(t *testing.T) {
	eng, h, ev := newTestEngine(t)
	cap := eng.RegisterPromise()
	cap.Resolve(h.rt.ToValue("ready"))
	ev.fns["p"] = func(*module.Environment) (goja.Value, error) { return h.rt.ToValue(cap.Promise), nil }

	body := []ast.Statement{
		&ast.ExpressionStatement{Expr: &ast.AwaitExpression{Argument: &ast.Source{Text: "p"}}},
	}
	p := eng.ExecuteFunctionBody(body, module.NewEnvironment(nil))

	require.Equal(t, promise.Fulfilled, p.State())
	assert.Equal(t, "ready", p.Value().Export())
	assert.Zero(t, eng.Parked())
}

func TestAwaitSuspendsAndResumesWithSettledValue(t *testing.T) {
	eng, h, ev := newTestEngine(t)
	cap := eng.RegisterPromise()
	ev.fns["f()"] = func(*module.Environment) (goja.Value, error) { return h.rt.ToValue(cap.Promise), nil }

	observed := int64(0)
	ev.fns["record(x)"] = func(env *module.Environment) (goja.Value, error) {
		v, err := env.GetBindingValue("x", nil)
		if err != nil {
			return nil, err
		}
		observed = v.ToInteger()
		return v, nil
	}

	body := []ast.Statement{
		&ast.VariableStatement{Kind: ast.VariableConst, Declarations: []ast.VariableDeclarator{
			{Name: "x", Init: &ast.AwaitExpression{Argument: &ast.Source{Text: "f()"}}},
		}},
		exprStmt("record(x)", "x"),
	}
	p := eng.ExecuteFunctionBody(body, module.NewEnvironment(nil))

	assert.Equal(t, promise.Pending, p.State())
	assert.Equal(t, int64(0), observed, "nothing after the await may run before settlement")
	assert.Equal(t, 1, eng.Parked())

	cap.Resolve(h.rt.ToValue(1))
	eng.RunAvailableContinuations()

	assert.Equal(t, int64(1), observed)
	require.Equal(t, promise.Fulfilled, p.State())
	assert.Zero(t, eng.Parked())
}

func TestAwaitRejectedPromiseThrowsAtAwait(t *testing.T) {
	eng, h, ev := newTestEngine(t)
	cap := eng.RegisterPromise()
	boom := h.rt.NewTypeError("nope")
	ev.fns["f()"] = func(*module.Environment) (goja.Value, error) { return h.rt.ToValue(cap.Promise), nil }

	body := []ast.Statement{
		&ast.ExpressionStatement{Expr: &ast.AwaitExpression{Argument: &ast.Source{Text: "f()"}}},
		&ast.ExpressionStatement{Expr: &ast.Literal{Value: "unreached"}},
	}
	p := eng.ExecuteFunctionBody(body, module.NewEnvironment(nil))
	require.Equal(t, promise.Pending, p.State())

	cap.Reject(boom)
	eng.RunAvailableContinuations()

	require.Equal(t, promise.Rejected, p.State())
	assert.Equal(t, boom, p.Value())
	assert.Zero(t, eng.Parked())
}

func TestSequentialAwaitsSuspendTwice(t *testing.T) {
	eng, h, ev := newTestEngine(t)
	first := eng.RegisterPromise()
	second := eng.RegisterPromise()
	ev.fns["first"] = func(*module.Environment) (goja.Value, error) { return h.rt.ToValue(first.Promise), nil }
	ev.fns["second"] = func(*module.Environment) (goja.Value, error) { return h.rt.ToValue(second.Promise), nil }

	body := []ast.Statement{
		&ast.VariableStatement{Kind: ast.VariableLet, Declarations: []ast.VariableDeclarator{
			{Name: "a", Init: &ast.AwaitExpression{Argument: &ast.Source{Text: "first"}}},
		}},
		&ast.VariableStatement{Kind: ast.VariableLet, Declarations: []ast.VariableDeclarator{
			{Name: "b", Init: &ast.AwaitExpression{Argument: &ast.Source{Text: "second"}}},
		}},
		&ast.ReturnStatement{Argument: &ast.Source{Text: "sum", Refs: []string{"a", "b"}}},
	}
	ev.fns["sum"] = func(env *module.Environment) (goja.Value, error) {
		a, err := env.GetBindingValue("a", nil)
		if err != nil {
			return nil, err
		}
		b, err := env.GetBindingValue("b", nil)
		if err != nil {
			return nil, err
		}
		return h.rt.ToValue(a.ToInteger() + b.ToInteger()), nil
	}

	p := eng.ExecuteFunctionBody(body, module.NewEnvironment(nil))
	require.Equal(t, promise.Pending, p.State())

	first.Resolve(h.rt.ToValue(10))
	eng.RunAvailableContinuations()
	require.Equal(t, promise.Pending, p.State(), "still parked on the second await")

	second.Resolve(h.rt.ToValue(32))
	eng.RunAvailableContinuations()

	require.Equal(t, promise.Fulfilled, p.State())
	assert.Equal(t, int64(42), p.Value().ToInteger())
}

func TestAwaitInsideBlockResumesInPlace(t *testing.T) {
	eng, h, ev := newTestEngine(t)
	cap := eng.RegisterPromise()
	ev.fns["p"] = func(*module.Environment) (goja.Value, error) { return h.rt.ToValue(cap.Promise), nil }

	ran := []string{}
	mark := func(name string) func(*module.Environment) (goja.Value, error) {
		return func(*module.Environment) (goja.Value, error) {
			ran = append(ran, name)
			return h.rt.ToValue(name), nil
		}
	}
	ev.fns["before"] = mark("before")
	ev.fns["after"] = mark("after")
	ev.fns["tail"] = mark("tail")

	body := []ast.Statement{
		&ast.BlockStatement{Body: []ast.Statement{
			exprStmt("before"),
			&ast.ExpressionStatement{Expr: &ast.AwaitExpression{Argument: &ast.Source{Text: "p"}}},
			exprStmt("after"),
		}},
		exprStmt("tail"),
	}
	p := eng.ExecuteFunctionBody(body, module.NewEnvironment(nil))

	assert.Equal(t, []string{"before"}, ran)
	require.Equal(t, promise.Pending, p.State())

	cap.Resolve(goja.Undefined())
	eng.RunAvailableContinuations()

	assert.Equal(t, []string{"before", "after", "tail"}, ran)
	require.Equal(t, promise.Fulfilled, p.State())
}
