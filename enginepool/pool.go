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

// Package enginepool pools isolated engine instances. Each engine is
// single-threaded internally, so a host serving concurrent evaluate calls
// acquires a whole engine per call instead of sharing module-graph state
// across goroutines.
package enginepool

import (
	"context"

	"github.com/jackc/puddle/v2"
	"github.com/sentrie-sh/esmrt/engine"
)

// Factory builds one fully wired engine: runtime, realm, evaluator, and
// any modules the host registers up front.
type Factory func(ctx context.Context) (*engine.Engine, error)

// Pool hands out engines to at most MaxSize concurrent borrowers.
type Pool struct {
	pool *puddle.Pool[*engine.Engine]
}

// New builds a pool over factory. destructor may be nil.
func New(factory Factory, destructor func(*engine.Engine), maxSize int32) (*Pool, error) {
	cfg := &puddle.Config[*engine.Engine]{
		Constructor: func(ctx context.Context) (*engine.Engine, error) {
			return factory(ctx)
		},
		Destructor: func(e *engine.Engine) {
			if destructor != nil {
				destructor(e)
			}
		},
		MaxSize: maxSize,
	}
	p, err := puddle.NewPool(cfg)
	if err != nil {
		return nil, err
	}
	return &Pool{pool: p}, nil
}

// Warm constructs one engine eagerly, verifying the factory works before
// the first borrower shows up.
func (p *Pool) Warm(ctx context.Context) error {
	return p.pool.CreateResource(ctx)
}

// Lease is one borrowed engine. Release returns it to the pool.
type Lease struct {
	res *puddle.Resource[*engine.Engine]
}

// Engine returns the leased engine.
func (l *Lease) Engine() *engine.Engine { return l.res.Value() }

// Release returns the engine to the pool for the next borrower.
func (l *Lease) Release() { l.res.Release() }

// Acquire borrows an engine, blocking until one is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	res, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Lease{res: res}, nil
}

// Close destroys all idle engines and prevents further acquisition.
func (p *Pool) Close() { p.pool.Close() }
