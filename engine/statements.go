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
	"github.com/pkg/errors"
	"github.com/sentrie-sh/esmrt/ast"
	"github.com/sentrie-sh/esmrt/completion"
	"github.com/sentrie-sh/esmrt/xerr"
)

// thrownValue wraps a JS value produced by a rejected await or a `throw`
// statement so it can travel through Go's error channel without the
// runtime re-wrapping it as a host error: a JS-originated exception maps
// straight to a Throw completion carrying that exact value.
type thrownValue struct{ value goja.Value }

func (t *thrownValue) Error() string { return "javascript exception" }

// execStatement dispatches one statement, either fresh (resume == nil) or
// resuming a previously suspended one (resume != nil, per the resumePath
// conventions documented on that type).
func (a *activation) execStatement(stmt ast.Statement, resume *resumePath) execResult {
	switch st := stmt.(type) {
	case *ast.ExpressionStatement:
		v, suspended, err := a.evalTop(st.Expr, resume)
		if suspended {
			return execResult{completion: completion.NewSuspended()}
		}
		if err != nil {
			return execResult{completion: a.throwFrom(err, st)}
		}
		return execResult{completion: completion.NewNormal(v)}

	case *ast.ReturnStatement:
		if st.Argument == nil {
			return execResult{completion: completion.NewReturn(nil)}
		}
		v, suspended, err := a.evalTop(st.Argument, resume)
		if suspended {
			return execResult{completion: completion.NewSuspended()}
		}
		if err != nil {
			return execResult{completion: a.throwFrom(err, st)}
		}
		return execResult{completion: completion.NewReturn(v)}

	case *ast.ThrowStatement:
		v, suspended, err := a.evalTop(st.Argument, resume)
		if suspended {
			return execResult{completion: completion.NewSuspended()}
		}
		if err != nil {
			return execResult{completion: a.throwFrom(err, st)}
		}
		return execResult{completion: completion.NewThrow(v, st)}

	case *ast.BreakStatement:
		return execResult{completion: completion.NewBreak(st.Label)}

	case *ast.ContinueStatement:
		return execResult{completion: completion.NewContinue(st.Label)}

	case *ast.EmptyStatement:
		return execResult{completion: completion.NewNormal(nil)}

	case *ast.VariableStatement:
		return a.execVariableStatement(st, resume)

	case *ast.FunctionDeclaration:
		// Hoisted and materialized before the body ran (executor.go); a
		// FunctionDeclaration encountered during the fold is a no-op.
		return execResult{completion: completion.NewNormal(nil)}

	case *ast.BlockStatement:
		res := a.execList(st.Body, resume)
		if res.completion.Kind == completion.Normal && res.completion.Suspended {
			return execResult{completion: res.completion, suspendAt: res.suspendAt}
		}
		return res

	case *ast.LabeledStatement:
		return a.execLabeled(st, resume)

	case *ast.IfStatement:
		return a.execIf(st, resume)

	case *ast.WhileStatement:
		return a.execWhile(st, resume)

	case *ast.DoWhileStatement:
		return a.execDoWhile(st, resume)

	case *ast.ForStatement:
		return a.execFor(st, resume)

	default:
		panic(xerr.ErrInvariant("unhandled statement type %T", stmt))
	}
}

// throwFrom maps an error from evalTop to a Throw completion at the
// statement boundary: a *thrownValue or goja.Exception carries the exact
// JS value that must propagate; a type/range error from the host is
// rebuilt with the realm's intrinsics; anything else is a host bug and
// is surfaced unmodified: the executor panics with err itself rather
// than turning it into a JS-visible throw.
func (a *activation) throwFrom(err error, src ast.Node) completion.Record {
	if tv, ok := err.(*thrownValue); ok {
		return completion.NewThrow(tv.value, src)
	}
	if exc, ok := err.(*goja.Exception); ok {
		return completion.NewThrow(exc.Value(), src)
	}
	if je, ok := xerr.AsJavaScriptException(err); ok {
		return completion.NewThrow(je.ExceptionValue(), src)
	}
	var te xerr.TypeErrorKind
	if errors.As(err, &te) {
		return completion.NewThrow(a.engine.rt.NewTypeError(err.Error()), src)
	}
	var re xerr.RangeErrorKind
	if errors.As(err, &re) {
		return completion.NewThrow(a.engine.newRangeError(err.Error()), src)
	}
	panic(err)
}

// evalTop evaluates expr at statement position, the one place the core
// looks inside an Expression itself: when expr is exactly an
// *ast.AwaitExpression, the Await Bridge takes over instead of handing it
// to the host Evaluator. resume, when non-nil, means this exact
// expression previously suspended and must now complete with the
// activation's pending settled value instead of re-evaluating anything.
func (a *activation) evalTop(expr ast.Expression, resume *resumePath) (goja.Value, bool, error) {
	aw, isAwait := expr.(*ast.AwaitExpression)
	if !isAwait {
		v, err := a.engine.eval.Eval(a.env, expr)
		return v, false, err
	}

	if resume != nil {
		if a.pendingIsErr {
			return nil, false, &thrownValue{value: a.pendingErr}
		}
		return a.pendingValue, false, nil
	}

	argVal, err := a.engine.eval.Eval(a.env, aw.Argument)
	if err != nil {
		return nil, false, err
	}
	return a.engine.awaitValue(a, argVal)
}

// execVariableStatement runs a var/let/const declaration. Only the first
// declarator may be mid-suspension on resume: a statement suspends at
// one expression position, and multiple initializers each containing
// their own top-level await are not representable.
func (a *activation) execVariableStatement(st *ast.VariableStatement, resume *resumePath) execResult {
	for i, d := range st.Declarations {
		var declResume *resumePath
		if resume != nil && i == 0 {
			declResume = resume
		}
		if d.Init == nil {
			if st.Kind != ast.VariableVar {
				a.declareBlockLexical(st, d.Name)
				if err := a.env.InitializeBinding(d.Name, goja.Undefined()); err != nil {
					panic(err)
				}
			}
			continue
		}
		v, suspended, err := a.evalTop(d.Init, declResume)
		if suspended {
			return execResult{completion: completion.NewSuspended()}
		}
		if err != nil {
			return execResult{completion: a.throwFrom(err, st)}
		}
		if st.Kind == ast.VariableVar {
			if err := a.env.SetBindingValue(d.Name, v); err != nil {
				panic(err)
			}
		} else {
			a.declareBlockLexical(st, d.Name)
			if err := a.env.InitializeBinding(d.Name, v); err != nil {
				panic(err)
			}
		}
	}
	return execResult{completion: completion.NewNormal(nil)}
}

// declareBlockLexical declares a let/const binding that hoisting skipped:
// only top-level lexicals are hoisted into the module environment, so a
// declaration inside a nested block claims its slot when it runs.
// Re-executing the block (a loop body) re-declares, giving each pass a
// fresh binding.
func (a *activation) declareBlockLexical(st *ast.VariableStatement, name string) {
	if a.env.Has(name) && !a.env.IsInitialized(name) {
		// hoisted top-level lexical still in its dead zone: initialize it
		// rather than shadowing the hoisted slot
		return
	}
	a.env.DeclareLexical(name, st.Kind == ast.VariableConst)
}

func (a *activation) execLabeled(st *ast.LabeledStatement, resume *resumePath) execResult {
	res := a.execStatement(st.Body, resume)
	if res.completion.Kind == completion.Break && res.completion.Label == st.Label {
		return execResult{completion: completion.NewNormal(res.completion.Value)}
	}
	return res
}

func (a *activation) execIf(st *ast.IfStatement, resume *resumePath) execResult {
	if resume != nil {
		branch := st.Consequent
		if resume.altBranch {
			branch = st.Alternate
		}
		nested := resume.nested
		if nested == nil {
			nested = &resumePath{}
		}
		res := a.execStatement(branch, nested)
		if res.completion.Kind == completion.Normal && res.completion.Suspended {
			return execResult{completion: res.completion, suspendAt: &resumePath{altBranch: resume.altBranch, nested: res.suspendAt}}
		}
		return res
	}

	tv, suspended, err := a.evalTop(st.Test, nil)
	if suspended {
		// An await directly in a Test position isn't representable by
		// this statement's own resumePath (If has no "Test" slot in its
		// addressing); out of this core's supported scope.
		panic(xerr.ErrInvariant("await is not supported in an if-statement test expression"))
	}
	if err != nil {
		return execResult{completion: a.throwFrom(err, st)}
	}

	var branch ast.Statement
	var alt bool
	if a.engine.eval.Truthy(tv) {
		branch = st.Consequent
	} else if st.Alternate != nil {
		branch = st.Alternate
		alt = true
	} else {
		return execResult{completion: completion.NewNormal(nil)}
	}

	res := a.execStatement(branch, nil)
	if res.completion.Kind == completion.Normal && res.completion.Suspended {
		return execResult{completion: res.completion, suspendAt: &resumePath{altBranch: alt, nested: res.suspendAt}}
	}
	return res
}

// loopOutcome classifies a loop body's completion: done reports whether
// the loop as a whole must stop and return result to its caller; when
// done is false, the loop continues (the completion was a Normal fold or
// an unlabeled/matching-label Continue).
func loopOutcome(label string, c completion.Record) (result execResult, done bool) {
	switch c.Kind {
	case completion.Break:
		if c.Label == "" || c.Label == label {
			return execResult{completion: completion.NewNormal(c.Value)}, true
		}
		return execResult{completion: c}, true
	case completion.Continue:
		if c.Label == "" || c.Label == label {
			return execResult{}, false
		}
		return execResult{completion: c}, true
	case completion.Return, completion.Throw:
		return execResult{completion: c}, true
	default:
		return execResult{}, false
	}
}

func (a *activation) execWhile(st *ast.WhileStatement, resume *resumePath) execResult {
	if resume != nil {
		bodyRes := a.execStatement(st.Body, resume)
		if bodyRes.completion.Kind == completion.Normal && bodyRes.completion.Suspended {
			return execResult{completion: bodyRes.completion, suspendAt: bodyRes.suspendAt}
		}
		if out, done := loopOutcome(st.Label, bodyRes.completion); done {
			return out
		}
	}

	for {
		tv, suspended, err := a.evalTop(st.Test, nil)
		if suspended {
			panic(xerr.ErrInvariant("await is not supported in a while-statement test expression"))
		}
		if err != nil {
			return execResult{completion: a.throwFrom(err, st)}
		}
		if !a.engine.eval.Truthy(tv) {
			return execResult{completion: completion.NewNormal(a.lastValue)}
		}

		bodyRes := a.execStatement(st.Body, nil)
		if bodyRes.completion.Kind == completion.Normal && bodyRes.completion.Suspended {
			return execResult{completion: bodyRes.completion, suspendAt: bodyRes.suspendAt}
		}
		if out, done := loopOutcome(st.Label, bodyRes.completion); done {
			return out
		}
	}
}

func (a *activation) execDoWhile(st *ast.DoWhileStatement, resume *resumePath) execResult {
	runBody := resume != nil
	childResume := resume

	for {
		if runBody || resume == nil {
			bodyRes := a.execStatement(st.Body, childResume)
			childResume = nil
			if bodyRes.completion.Kind == completion.Normal && bodyRes.completion.Suspended {
				return execResult{completion: bodyRes.completion, suspendAt: bodyRes.suspendAt}
			}
			if out, done := loopOutcome(st.Label, bodyRes.completion); done {
				return out
			}
		}
		runBody = true

		tv, suspended, err := a.evalTop(st.Test, nil)
		if suspended {
			panic(xerr.ErrInvariant("await is not supported in a do-while-statement test expression"))
		}
		if err != nil {
			return execResult{completion: a.throwFrom(err, st)}
		}
		if !a.engine.eval.Truthy(tv) {
			return execResult{completion: completion.NewNormal(a.lastValue)}
		}
	}
}

func (a *activation) execFor(st *ast.ForStatement, resume *resumePath) execResult {
	if resume == nil && st.Init != nil {
		initRes := a.execStatement(st.Init, nil)
		if initRes.completion.Kind == completion.Normal && initRes.completion.Suspended {
			panic(xerr.ErrInvariant("await is not supported in a for-statement init clause"))
		}
		if initRes.completion.IsAbrupt() {
			return initRes
		}
	}

	if resume != nil {
		bodyRes := a.execStatement(st.Body, resume)
		if bodyRes.completion.Kind == completion.Normal && bodyRes.completion.Suspended {
			return execResult{completion: bodyRes.completion, suspendAt: bodyRes.suspendAt}
		}
		if out, done := loopOutcome(st.Label, bodyRes.completion); done {
			return out
		}
		if err := a.forUpdate(st); err != nil {
			return execResult{completion: a.throwFrom(err, st)}
		}
	}

	for {
		if st.Test != nil {
			tv, suspended, err := a.evalTop(st.Test, nil)
			if suspended {
				panic(xerr.ErrInvariant("await is not supported in a for-statement test expression"))
			}
			if err != nil {
				return execResult{completion: a.throwFrom(err, st)}
			}
			if !a.engine.eval.Truthy(tv) {
				return execResult{completion: completion.NewNormal(a.lastValue)}
			}
		}

		bodyRes := a.execStatement(st.Body, nil)
		if bodyRes.completion.Kind == completion.Normal && bodyRes.completion.Suspended {
			return execResult{completion: bodyRes.completion, suspendAt: bodyRes.suspendAt}
		}
		if out, done := loopOutcome(st.Label, bodyRes.completion); done {
			return out
		}

		if err := a.forUpdate(st); err != nil {
			return execResult{completion: a.throwFrom(err, st)}
		}
	}
}

func (a *activation) forUpdate(st *ast.ForStatement) error {
	if st.Update == nil {
		return nil
	}
	_, suspended, err := a.evalTop(st.Update, nil)
	if suspended {
		panic(xerr.ErrInvariant("await is not supported in a for-statement update clause"))
	}
	return err
}
