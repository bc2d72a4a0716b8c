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

// resumePath is a coroutine-style resume point: a path through nested
// statement lists and single-child control statements down to the one
// leaf expression position that suspended. Each list level (a
// module/function body, a BlockStatement) contributes index; IfStatement
// additionally contributes altBranch; loops and LabeledStatement are
// transparent pass-throughs that reuse their single child's path
// unchanged.
// A leaf statement's own resume marker is the empty &resumePath{} — its
// fields are meaningless there, since dispatch to "resume my own awaited
// expression" is driven by the static Go type at that position, not by
// anything this struct carries.
type resumePath struct {
	index     int
	altBranch bool
	nested    *resumePath
}

// execResult is what execStatement/execList return: the completion that
// resulted and, only when completion.Suspended, the path to resume from.
type execResult struct {
	completion completion.Record
	suspendAt  *resumePath
}

// activation is one run of a statement list: a coroutine-style object
// storing its statement-list position plus resume value, keyed by
// (execution context, resume point). It is created fresh by every call
// to Execute/ExecuteFunctionBody; the fast-resolve cache lives on the
// immutable compiledBody instead, so activations never leak state
// between unrelated Execute calls and every Execute is restartable.
type activation struct {
	engine *Engine
	body   *compiledBody
	env    *module.Environment
	cap    *promise.Capability // settled when the whole activation finishes; nil for a synchronous, non-TLA body

	lastValue goja.Value

	// suspendOn is the pending promise the last awaitValue call parked on;
	// consumed by parkTable.register immediately after the unwind.
	suspendOn *promise.Promise

	// pendingValue/pendingErr carry the settled value across a resume; set
	// only by resumeFrom immediately before re-entering execCompiledList.
	pendingValue goja.Value
	pendingErr   goja.Value
	pendingIsErr bool
}

// newActivation builds a fresh activation over body/env. cap may be nil.
func newActivation(e *Engine, body *compiledBody, env *module.Environment, cap *promise.Capability) *activation {
	return &activation{engine: e, body: body, env: env, cap: cap}
}

// run executes the activation's top-level body from the start.
func (a *activation) run() execResult {
	return a.execCompiledList(a.body.stmts, nil)
}

// resumeFrom re-enters the activation at path with settled substituted
// for the await expression that suspended it: the fold restarts at the
// statement that suspended, with the await's value in place.
func (a *activation) resumeFrom(path *resumePath, settled goja.Value, isErr bool) execResult {
	a.pendingValue = settled
	a.pendingIsErr = isErr
	if isErr {
		a.pendingErr = settled
	}
	return a.execCompiledList(a.body.stmts, path)
}

// execCompiledList folds the activation's top-level compiled statements,
// consulting each one's fast-resolve cache unless debug mode or an
// active resume/build-time miss requires falling back to full
// execution.
func (a *activation) execCompiledList(stmts []compiledStatement, resume *resumePath) execResult {
	startIdx := 0
	if resume != nil {
		startIdx = resume.index
	}

	for i := startIdx; i < len(stmts); i++ {
		cs := stmts[i]

		if resume == nil && cs.fast != nil && a.engine.fastResolveApplies() {
			c := *cs.fast
			if c.Value != nil {
				a.lastValue = c.Value
			}
			continue
		}

		var childResume *resumePath
		if resume != nil && i == startIdx {
			childResume = resume.nested
			if childResume == nil {
				childResume = &resumePath{} // leaf marker: resume this statement's own await
			}
		}

		res := a.execStatement(cs.stmt, childResume)
		if res.completion.Kind == completion.Normal && res.completion.Suspended {
			return execResult{completion: res.completion, suspendAt: &resumePath{index: i, nested: res.suspendAt}}
		}
		if res.completion.IsAbrupt() {
			return execResult{completion: res.completion.WithValue(a.lastValue)}
		}
		if res.completion.Value != nil {
			a.lastValue = res.completion.Value
		}
	}
	return execResult{completion: completion.NewNormal(a.lastValue)}
}

// execList folds a nested, uncompiled statement list (a BlockStatement's
// body). Fast-resolve does not apply below the top level: nested
// literal-only statement blocks are rare enough that recomputing the
// check inline costs nothing worth caching.
func (a *activation) execList(stmts []ast.Statement, resume *resumePath) execResult {
	startIdx := 0
	if resume != nil {
		startIdx = resume.index
	}

	for i := startIdx; i < len(stmts); i++ {
		var childResume *resumePath
		if resume != nil && i == startIdx {
			childResume = resume.nested
			if childResume == nil {
				childResume = &resumePath{}
			}
		}

		res := a.execStatement(stmts[i], childResume)
		if res.completion.Kind == completion.Normal && res.completion.Suspended {
			return execResult{completion: res.completion, suspendAt: &resumePath{index: i, nested: res.suspendAt}}
		}
		if res.completion.IsAbrupt() {
			return execResult{completion: res.completion.WithValue(a.lastValue)}
		}
		if res.completion.Value != nil {
			a.lastValue = res.completion.Value
		}
	}
	return execResult{completion: completion.NewNormal(a.lastValue)}
}
