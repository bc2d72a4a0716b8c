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
	"github.com/google/uuid"
	"github.com/sentrie-sh/esmrt/module"
	"github.com/sentrie-sh/esmrt/promise"
)

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithDebug forces the engine into debug mode: the fast-resolve
// optimization is suppressed so every statement is observably executed.
func WithDebug(debug bool) Option {
	return func(e *Engine) { e.debug = debug }
}

// WithFastResolve toggles the FastResolve optimization outright,
// independent of debug mode (wired to ESMRT_DISABLE_FASTRESOLVE by the
// host package's Config).
func WithFastResolve(enabled bool) Option {
	return func(e *Engine) { e.fastResolveDisabled = !enabled }
}

// Engine is one single-threaded runtime instance: one active execution
// context, no shared-memory parallelism with another Engine. It owns the
// module graph, the promise continuation queue, and the statement
// executor/await bridge that drive module bodies.
type Engine struct {
	ID string // per-instance id, minted with google/uuid, used in log attributes

	rt    *goja.Runtime
	queue *promise.Queue
	graph *module.Graph
	eval  Evaluator

	debug               bool
	fastResolveDisabled bool

	compiled map[module.Handle]*compiledBody
	park     *parkTable
}

// New builds an Engine bound to a runtime, a host, and the non-control-flow
// expression evaluator it delegates to. The Engine itself implements
// module.Executor, closing the loop so the module graph can drive
// statement execution without importing this package.
func New(rt *goja.Runtime, host module.Host, eval Evaluator, opts ...Option) *Engine {
	e := &Engine{
		ID:       uuid.NewString(),
		rt:       rt,
		queue:    host.Queue(),
		eval:     eval,
		compiled: make(map[module.Handle]*compiledBody),
		park:     newParkTable(),
	}
	e.graph = module.NewGraph(host, e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Graph exposes the underlying module graph for AddModule and
// Condensation; Link/Evaluate/GetModuleNamespace below are the
// embedder-facing wrappers over it.
func (e *Engine) Graph() *module.Graph { return e.graph }

// Runtime returns the bound goja.Runtime.
func (e *Engine) Runtime() *goja.Runtime { return e.rt }

// Link is the embedder-facing idempotent link of a module graph.
func (e *Engine) Link(m *module.CyclicModuleRecord) error {
	return e.graph.Link(m)
}

// Evaluate runs m, which must already be linked (see Link), always
// returning a promise. It drains the
// continuation queue once synchronously after kicking off evaluation so
// that a module with no top-level await observably settles before
// Evaluate returns.
func (e *Engine) Evaluate(m *module.CyclicModuleRecord) (*promise.Promise, error) {
	p, err := e.graph.Evaluate(m)
	if err != nil {
		return nil, err
	}
	e.RunAvailableContinuations()
	return p, nil
}

// RegisterPromise returns a fresh capability: the host-side handle for
// bridging external async completion into JS.
func (e *Engine) RegisterPromise() *promise.Capability {
	return promise.NewCapability(e.rt, e.queue)
}

// GetModuleNamespace returns m's namespace exotic object.
func (e *Engine) GetModuleNamespace(m *module.CyclicModuleRecord) (goja.Value, error) {
	return e.graph.GetModuleNamespace(m)
}

// newRangeError builds a RangeError through the realm's own intrinsic
// constructor, falling back to a TypeError if the intrinsic is missing.
func (e *Engine) newRangeError(message string) goja.Value {
	ctor := e.rt.Get("RangeError")
	if ctor != nil {
		if obj, err := e.rt.New(ctor, e.rt.ToValue(message)); err == nil {
			return obj
		}
	}
	return e.rt.NewTypeError(message)
}

// RunAvailableContinuations drains the engine's single FIFO continuation
// queue: reactions registered by promise settlement, and resumptions
// registered by the await bridge when a parked computation's promise
// settles.
func (e *Engine) RunAvailableContinuations() int {
	return e.queue.RunAvailable()
}
