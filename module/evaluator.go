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
	"log/slog"
	"sort"

	"github.com/dop251/goja"
	"github.com/sentrie-sh/esmrt/completion"
	"github.com/sentrie-sh/esmrt/promise"
	"github.com/sentrie-sh/esmrt/xerr"
)

// Evaluate implements module Evaluate
// (tc39.es/ecma262/#sec-moduleevaluation). It always returns a promise,
// even for a module with no top-level await: Evaluate(Link(m)) with no
// TLA is synchronously Fulfilled before Evaluate returns.
func (g *Graph) Evaluate(m *CyclicModuleRecord) (*promise.Promise, error) {
	if m.Status == EvaluatingAsync || m.Status == Evaluated {
		target := m
		if root := g.byHandle(m.cycleRoot); root != nil {
			target = root
		}
		if target != m {
			return g.Evaluate(target)
		}
		// target == m: this module IS its own cycle root; fall through to
		// use its own topLevelCapability below instead of recursing forever.
	} else if m.Status != Linked {
		return nil, xerr.ErrInvariant("Evaluate called on %q in status %s", m.Specifier, m.Status)
	}

	if m.topLevelCapability != nil {
		return m.topLevelCapability.Promise, nil
	}

	if m.Status != Linked {
		// Evaluated/EvaluatingAsync with no capability and no distinct
		// cycle root to redirect to: the module was never the target of an
		// Evaluate call (e.g. it was only ever a dependency that the
		// graph drove via InnerModuleEvaluation's "Linked" fallback
		// branch). Give it one now so the embedder still gets a promise.
		cap := promise.NewCapability(g.host.Runtime(), g.host.Queue())
		m.topLevelCapability = cap
		if m.evalError != nil {
			cap.Reject(m.evalError.Value)
		} else {
			cap.Resolve(goja.Undefined())
		}
		return cap.Promise, nil
	}

	cap := promise.NewCapability(g.host.Runtime(), g.host.Queue())
	m.topLevelCapability = cap

	var stack []*CyclicModuleRecord
	_, thrown := g.innerModuleEvaluation(m, &stack, 0)
	if thrown != nil {
		for _, s := range stack {
			s.evalError = thrown
			s.Status = Evaluated
		}
		cap.Reject(thrown.Value)
		return cap.Promise, nil
	}

	if !m.asyncEvaluation {
		cap.Resolve(goja.Undefined())
	}
	// else: asyncEvaluation is true, the driver (AsyncModuleExecutionFulfilled
	// / AsyncModuleExecutionRejected) settles this capability later.
	return cap.Promise, nil
}

// innerModuleEvaluation implements InnerModuleEvaluation
// (tc39.es/ecma262/#sec-innermoduleevaluation). It returns the updated
// DFS index and, non-nil, the Throw completion that must propagate to
// the caller.
func (g *Graph) innerModuleEvaluation(m *CyclicModuleRecord, stack *[]*CyclicModuleRecord, index int) (int, *completion.Record) {
	switch m.Status {
	case EvaluatingAsync, Evaluated:
		if m.evalError != nil {
			return index, m.evalError
		}
		return index, nil
	case Evaluating:
		return index, nil
	}
	if m.Status != Linked {
		panic(xerr.ErrInvariant("InnerModuleEvaluation called on %q in status %s", m.Specifier, m.Status))
	}

	m.Status = Evaluating
	m.dfsIndex = index
	m.dfsAncestorIndex = index
	m.pendingAsyncDeps = 0
	index++
	*stack = append(*stack, m)

	for _, spec := range m.RequestedModules {
		dep, err := g.host.ResolveImportedModule(m, spec)
		if err != nil {
			return index, g.errorThrow(err)
		}

		var thrown *completion.Record
		index, thrown = g.innerModuleEvaluation(dep, stack, index)
		if thrown != nil {
			return index, thrown
		}

		switch dep.Status {
		case Linked:
			// The host may have evaluated this dependency independently of
			// our own walk. Drive it now.
			p, err := g.Evaluate(dep)
			if err != nil {
				panic(err)
			}
			g.host.Queue().RunAvailable()
			if p.State() == promise.Rejected {
				rec := completion.NewThrow(p.Value(), nil)
				return index, &rec
			}
		case Evaluating:
			if dep.dfsAncestorIndex < m.dfsAncestorIndex {
				m.dfsAncestorIndex = dep.dfsAncestorIndex
			}
		default: // EvaluatingAsync or Evaluated
			root := dep
			if r := g.byHandle(dep.cycleRoot); r != nil {
				root = r
			}
			if root.Status == EvaluatingAsync {
				m.pendingAsyncDeps++
				root.asyncParentModules = append(root.asyncParentModules, m.handle)
			}
		}
	}

	if m.pendingAsyncDeps > 0 || m.HasTLA {
		m.asyncEvaluation = true
		m.asyncEvalOrder = g.nextAsyncEvalOrder
		g.nextAsyncEvalOrder++
		// With dependencies still async-evaluating the body must not run
		// yet: the fulfilled fan-out executes it once the last dependency
		// settles. Executing it here would run it twice.
		if m.pendingAsyncDeps == 0 {
			g.executeAsync(m)
		}
	} else if c := g.executor.Execute(m, nil); c.Kind == completion.Throw {
		return index, &c
	}

	if count := countOnStack(*stack, m); count != 1 {
		panic(xerr.ErrInvariant("%q appears %d times on the evaluation stack", m.Specifier, count))
	}
	if m.dfsAncestorIndex > m.dfsIndex {
		panic(xerr.ErrInvariant("%q has dfsAncestorIndex %d > dfsIndex %d", m.Specifier, m.dfsAncestorIndex, m.dfsIndex))
	}

	if m.dfsAncestorIndex == m.dfsIndex {
		for {
			n := len(*stack)
			popped := (*stack)[n-1]
			*stack = (*stack)[:n-1]
			if popped.asyncEvaluation {
				popped.Status = EvaluatingAsync
			} else {
				popped.Status = Evaluated
			}
			popped.cycleRoot = m.handle
			if popped == m {
				break
			}
		}
	}

	return index, nil
}

// executeAsync implements ExecuteAsyncModule
// (tc39.es/ecma262/#sec-execute-async-module): build a capability, attach
// the two driver reactions, then hand the capability to the executor.
// The executor settles cap itself when the module's top-level body
// finishes (Normal or Throw); the reactions attached here fire off the
// engine's continuation queue once that happens.
func (g *Graph) executeAsync(m *CyclicModuleRecord) {
	cap := promise.NewCapability(g.host.Runtime(), g.host.Queue())
	promise.PerformPromiseThen(cap.Promise,
		func(goja.Value) (goja.Value, error) {
			g.AsyncModuleExecutionFulfilled(m)
			return goja.Undefined(), nil
		},
		func(v goja.Value) (goja.Value, error) {
			g.AsyncModuleExecutionRejected(m, v)
			return goja.Undefined(), nil
		},
		nil,
	)
	g.executor.Execute(m, cap)
}

// AsyncModuleExecutionFulfilled implements
// tc39.es/ecma262/#sec-async-module-execution-fulfilled.
func (g *Graph) AsyncModuleExecutionFulfilled(m *CyclicModuleRecord) {
	if m.Status == Evaluated {
		if m.evalError == nil {
			slog.Error("async module reached Evaluated with no evalError ahead of AsyncModuleExecutionFulfilled", slog.String("module", m.Specifier))
		}
		return
	}
	if m.Status != EvaluatingAsync || !m.asyncEvaluation || m.evalError != nil {
		panic(xerr.ErrInvariant("AsyncModuleExecutionFulfilled invariant violated for %q (status=%s asyncEvaluation=%v evalError=%v)", m.Specifier, m.Status, m.asyncEvaluation, m.evalError))
	}

	m.Status = Evaluated
	if m.topLevelCapability != nil {
		m.topLevelCapability.Resolve(goja.Undefined())
	}

	var ancestors []*CyclicModuleRecord
	seen := make(map[Handle]bool)
	g.gatherAvailableAncestors(m, &ancestors, seen)
	sort.SliceStable(ancestors, func(i, j int) bool { return ancestors[i].asyncEvalOrder < ancestors[j].asyncEvalOrder })

	for _, anc := range ancestors {
		if anc.HasTLA {
			g.executeAsync(anc)
			continue
		}
		c := g.executor.Execute(anc, nil)
		if c.Kind == completion.Throw {
			g.AsyncModuleExecutionRejected(anc, c.Value)
			continue
		}
		anc.Status = Evaluated
		if anc.topLevelCapability != nil {
			anc.topLevelCapability.Resolve(goja.Undefined())
		}
	}
}

// gatherAvailableAncestors implements GatherAvailableAncestors
// (tc39.es/ecma262/#sec-gather-available-ancestors): for each async
// parent of m, decrement its pending-dependency counter; once it reaches
// zero (and the parent hasn't already errored) the parent becomes
// executable, and, if it has no TLA of its own, its own ancestors are
// checked in turn.
func (g *Graph) gatherAvailableAncestors(m *CyclicModuleRecord, out *[]*CyclicModuleRecord, seen map[Handle]bool) {
	for _, ph := range m.asyncParentModules {
		parent := g.byHandle(ph)
		if parent == nil {
			continue
		}
		parent.pendingAsyncDeps--
		if parent.pendingAsyncDeps != 0 {
			continue
		}
		if parent.evalError != nil {
			continue
		}
		if seen[parent.handle] {
			continue
		}
		seen[parent.handle] = true
		*out = append(*out, parent)
		if !parent.HasTLA {
			g.gatherAvailableAncestors(parent, out, seen)
		}
	}
}

// AsyncModuleExecutionRejected implements
// tc39.es/ecma262/#sec-async-module-execution-rejected. It is
// idempotent: a module already Evaluated with evalError set is a no-op.
func (g *Graph) AsyncModuleExecutionRejected(m *CyclicModuleRecord, err goja.Value) {
	if m.Status == Evaluated && m.evalError != nil {
		return
	}
	rec := completion.NewThrow(err, nil)
	m.evalError = &rec
	m.Status = Evaluated

	for _, ph := range m.asyncParentModules {
		if parent := g.byHandle(ph); parent != nil {
			g.AsyncModuleExecutionRejected(parent, err)
		}
	}

	if m.topLevelCapability != nil {
		m.topLevelCapability.Reject(err)
	}
}

// errorThrow converts a host-raised Go error (e.g. a failed module
// resolution) into a Throw completion. The value carried is a GoError
// wrapping err, since the realm's runtime is the only thing that can build
// a proper JS error object from it.
func (g *Graph) errorThrow(err error) *completion.Record {
	rec := completion.NewThrow(g.host.Runtime().NewGoError(err), nil)
	return &rec
}
