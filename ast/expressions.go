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

package ast

import "github.com/sentrie-sh/esmrt/tokens"

// AwaitExpression is the one expression shape the engine owns outright:
// everything else is the host evaluator's business, but `await` is the
// suspension point the await bridge implements.
type AwaitExpression struct {
	Range    tokens.Range
	Argument Expression
}

func (e *AwaitExpression) Position() tokens.Range { return e.Range }
func (*AwaitExpression) expressionNode()          {}

// Literal is a statement-position constant the fast-resolve optimization
// can precompute at build time: a bare string/number literal used as a
// whole expression statement. Anything else is opaque to the engine and
// must be evaluated by the host.
type Literal struct {
	Range tokens.Range
	Value any // string, float64, bool, or nil
}

func (e *Literal) Position() tokens.Range { return e.Range }
func (*Literal) expressionNode()          {}

// Source is a host-compilable expression: raw source text for the realm's
// expression evaluator, along with the free identifiers the text reads
// from the module scope. The core never looks at Text; only a host
// evaluator does.
type Source struct {
	Range tokens.Range
	Text  string
	Refs  []string
}

func (e *Source) Position() tokens.Range { return e.Range }
func (*Source) expressionNode()          {}

// Opaque wraps a host-owned expression the core cannot see inside. Hosts
// that plug their own evaluator return nodes implementing Expression
// directly instead; Opaque exists so this package compiles standalone and
// so tests can stub an expression without importing a host package.
type Opaque struct {
	Range tokens.Range
	Eval  func() (any, error) // host closure; used only by the reference evaluator
}

func (e *Opaque) Position() tokens.Range { return e.Range }
func (*Opaque) expressionNode()          {}
