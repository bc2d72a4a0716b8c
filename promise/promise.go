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

// Package promise implements the promise state machine:
// Pending->Fulfilled/Rejected transitions, FIFO reaction scheduling
// through a single engine continuation queue, and idempotent
// resolve/reject capabilities.
//
// The shape here is a classic completable-promise design (state as an
// enum, a mutex-guarded reaction list, idempotent settlement) but
// reactions never run inline: PerformPromiseThen and resolve/reject only
// ever *enqueue* onto a Queue, preserving the ECMAScript microtask
// ordering guarantee.
package promise

import (
	"sync"

	"github.com/dop251/goja"
)

// State is one of {Pending, Fulfilled, Rejected}.
type State int

const (
	Pending State = iota
	Fulfilled
	Rejected
)

func (s State) String() string {
	switch s {
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	default:
		return "pending"
	}
}

// reaction pairs handlers with the capability that should be settled with
// their outcome once the owning promise settles. A nil capability is a
// fire-and-forget reaction (used by the async module driver's
// ExecuteAsync hooks).
type reaction struct {
	onFulfill  func(goja.Value) (goja.Value, error)
	onReject   func(goja.Value) (goja.Value, error)
	capability *Capability
}

// Promise owns state, a settled value (absent while Pending), and the
// fulfill/reject reaction queues.
type Promise struct {
	rt    *goja.Runtime
	queue *Queue

	mu               sync.Mutex
	state            State
	value            goja.Value
	fulfillReactions []*reaction
	rejectReactions  []*reaction
}

// New creates a Pending promise bound to queue. Most callers want
// NewCapability instead, which also returns resolve/reject.
func New(rt *goja.Runtime, queue *Queue) *Promise {
	return &Promise{rt: rt, queue: queue, state: Pending}
}

// State returns the promise's current state under lock.
func (p *Promise) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Value returns the settled value. Precondition: State() != Pending.
func (p *Promise) Value() goja.Value {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Capability is a PromiseCapability: the triple (promise, resolve,
// reject), per tc39.es/ecma262/#sec-promisecapability-records. Resolve
// and Reject are idempotent: the second call, by either, is a no-op.
type Capability struct {
	Promise *Promise

	settledMu sync.Mutex
	settled   bool
}

// NewCapability implements NewPromiseCapability
// (tc39.es/ecma262/#sec-newpromisecapability).
func NewCapability(rt *goja.Runtime, queue *Queue) *Capability {
	return &Capability{Promise: New(rt, queue)}
}

// claim marks the capability settled exactly once; it returns true the
// first time it is called and false on every subsequent call from either
// Resolve or Reject. This is what keeps a module's topLevelCapability
// settled exactly once even when resolve and reject are raced.
func (c *Capability) claim() bool {
	c.settledMu.Lock()
	defer c.settledMu.Unlock()
	if c.settled {
		return false
	}
	c.settled = true
	return true
}

// Resolve implements the capability's resolve function. If x is itself a
// thenable, resolution is deferred: a PromiseResolveThenableJob-style task
// is enqueued that calls x.then(resolve, reject) and forwards the outcome.
// Resolving a promise with itself rejects it with a TypeError
// (tc39.es/ecma262/#sec-promise-resolve-functions).
func (c *Capability) Resolve(x goja.Value) {
	if !c.claim() {
		return
	}

	if obj, ok := x.(*goja.Object); ok {
		if same, ok := obj.Export().(*Promise); ok && same == c.Promise {
			c.settleReject(c.Promise.rt.NewTypeError("resolve called with the promise it would settle"))
			return
		}
		if then, ok := goja.AssertFunction(obj.Get("then")); ok {
			c.Promise.queue.Enqueue(func() { c.callThenable(then, obj) })
			return
		}
	}
	c.settleFulfill(x)
}

// Reject implements the capability's reject function.
func (c *Capability) Reject(e goja.Value) {
	if !c.claim() {
		return
	}
	c.settleReject(e)
}

func (c *Capability) callThenable(then goja.Callable, thisObj *goja.Object) {
	rt := c.Promise.rt
	settled := false
	resolveFn := rt.ToValue(func(call goja.FunctionCall) goja.Value {
		if !settled {
			settled = true
			c.settleFulfill(call.Argument(0))
		}
		return goja.Undefined()
	})
	rejectFn := rt.ToValue(func(call goja.FunctionCall) goja.Value {
		if !settled {
			settled = true
			c.settleReject(call.Argument(0))
		}
		return goja.Undefined()
	})

	if _, err := then(thisObj, resolveFn, rejectFn); err != nil && !settled {
		settled = true
		c.settleReject(errorToValue(rt, err))
	}
}

func (c *Capability) settleFulfill(v goja.Value) {
	p := c.Promise
	p.mu.Lock()
	if p.state != Pending {
		p.mu.Unlock()
		return
	}
	p.state = Fulfilled
	p.value = v
	reactions := p.fulfillReactions
	p.fulfillReactions = nil
	p.rejectReactions = nil
	p.mu.Unlock()

	for _, r := range reactions {
		r := r
		p.queue.Enqueue(func() { runReaction(r, true, v) })
	}
}

func (c *Capability) settleReject(e goja.Value) {
	p := c.Promise
	p.mu.Lock()
	if p.state != Pending {
		p.mu.Unlock()
		return
	}
	p.state = Rejected
	p.value = e
	reactions := p.rejectReactions
	p.fulfillReactions = nil
	p.rejectReactions = nil
	p.mu.Unlock()

	for _, r := range reactions {
		r := r
		p.queue.Enqueue(func() { runReaction(r, false, e) })
	}
}

// PerformPromiseThen (tc39.es/ecma262/#sec-performpromisethen) enqueues
// reactions, or, if the promise is already settled, schedules the
// matching reaction immediately (still only onto the queue, never run
// synchronously). resultCapability may be nil for a fire-and-forget
// reaction (used by the async module driver's ExecuteAsync hooks).
func PerformPromiseThen(
	p *Promise,
	onFulfilled func(goja.Value) (goja.Value, error),
	onRejected func(goja.Value) (goja.Value, error),
	resultCapability *Capability,
) *Promise {
	r := &reaction{onFulfill: onFulfilled, onReject: onRejected, capability: resultCapability}

	p.mu.Lock()
	switch p.state {
	case Pending:
		p.fulfillReactions = append(p.fulfillReactions, r)
		p.rejectReactions = append(p.rejectReactions, r)
		p.mu.Unlock()
	case Fulfilled:
		v := p.value
		p.mu.Unlock()
		p.queue.Enqueue(func() { runReaction(r, true, v) })
	case Rejected:
		v := p.value
		p.mu.Unlock()
		p.queue.Enqueue(func() { runReaction(r, false, v) })
	}

	if resultCapability != nil {
		return resultCapability.Promise
	}
	return nil
}

func runReaction(r *reaction, fulfilled bool, v goja.Value) {
	handler := r.onReject
	if fulfilled {
		handler = r.onFulfill
	}
	if handler == nil {
		if r.capability == nil {
			return
		}
		if fulfilled {
			r.capability.Resolve(v)
		} else {
			r.capability.Reject(v)
		}
		return
	}

	out, err := handler(v)
	if r.capability == nil {
		return
	}
	if err != nil {
		r.capability.Reject(errorToValue(r.capability.Promise.rt, err))
		return
	}
	r.capability.Resolve(out)
}

// errorToValue recovers the JS value carried by a goja.Exception, or wraps
// a plain Go error as a host error object.
func errorToValue(rt *goja.Runtime, err error) goja.Value {
	if exc, ok := err.(*goja.Exception); ok {
		return exc.Value()
	}
	return rt.NewGoError(err)
}
