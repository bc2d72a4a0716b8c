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
	"log/slog"

	"github.com/dop251/goja"
	"github.com/sentrie-sh/esmrt/promise"
)

// asPromise unwraps a goja value that carries one of this engine's own
// promises. A host evaluator that produces a promise (RegisterPromise, an
// async function call, a module's top-level capability) hands it across as
// rt.ToValue(p), so Export() gives the *promise.Promise back.
func asPromise(v goja.Value) *promise.Promise {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	p, _ := obj.Export().(*promise.Promise)
	return p
}

// awaitValue is the await bridge. Given the already-evaluated awaited value
// v it returns (result, suspended, err):
//   - v is not a promise: returned as-is.
//   - v is a settled promise: the settled value, or the rejection reason as
//     a thrown error.
//   - v is pending: drain the continuation queue once, since a queued
//     reaction may settle it synchronously. If it is still pending, stash
//     the promise on the activation and report suspension; the caller
//     unwinds and settleActivation parks the computation keyed by it.
func (e *Engine) awaitValue(a *activation, v goja.Value) (goja.Value, bool, error) {
	p := asPromise(v)
	if p == nil {
		return v, false, nil
	}

	if p.State() == promise.Pending {
		e.queue.RunAvailable()
	}

	switch p.State() {
	case promise.Fulfilled:
		return p.Value(), false, nil
	case promise.Rejected:
		return nil, false, &thrownValue{value: p.Value()}
	default:
		a.suspendOn = p
		return nil, true, nil
	}
}

// parkTable tracks activations parked on a pending promise. Resumption is
// driven entirely by the promise's own reactions; the table exists so the
// engine can report how many computations are in flight (a host draining
// its event loop wants to know when it may stop).
type parkTable struct {
	count int
}

func newParkTable() *parkTable {
	return &parkTable{}
}

// register parks act at path, keyed by the promise awaitValue stashed on
// it. When that promise settles, the reaction re-enters the activation at
// the same point with the settled value substituted for the await; a
// resumption that suspends again simply parks again.
func (t *parkTable) register(act *activation, path *resumePath) {
	p := act.suspendOn
	act.suspendOn = nil
	if p == nil {
		slog.Error("activation suspended with no promise to park on")
		return
	}

	t.count++
	resume := func(v goja.Value, isErr bool) {
		t.count--
		res := act.resumeFrom(path, v, isErr)
		act.engine.settleActivation(act, res)
	}
	promise.PerformPromiseThen(p,
		func(v goja.Value) (goja.Value, error) {
			resume(v, false)
			return goja.Undefined(), nil
		},
		func(v goja.Value) (goja.Value, error) {
			resume(v, true)
			return goja.Undefined(), nil
		},
		nil,
	)
}

// Parked reports how many activations are currently suspended awaiting a
// promise.
func (e *Engine) Parked() int { return e.park.count }
