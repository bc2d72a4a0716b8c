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

// Package completion implements the Completion Record specification type
// (tc39.es/ecma262/#sec-completion-record-specification-type): the
// uniform result carrier every statement executor returns. Modeled as a
// tagged union rather than Go exceptions, so Break/Continue/Return/Throw
// are plain control-flow data instead of panics.
package completion

import (
	"github.com/dop251/goja"
	"github.com/sentrie-sh/esmrt/ast"
)

// Kind is the completion's control-flow tag.
type Kind int

const (
	Normal Kind = iota
	Break
	Continue
	Return
	Throw
)

func (k Kind) String() string {
	switch k {
	case Normal:
		return "normal"
	case Break:
		return "break"
	case Continue:
		return "continue"
	case Return:
		return "return"
	case Throw:
		return "throw"
	default:
		return "unknown"
	}
}

// Record is a CompletionRecord. Value may be nil (absent).
// Source is the AST element the completion is attributed to, for
// diagnostics; it may be nil.
//
// Invariant: a Throw completion always carries a non-nil Value (the error
// object) — see NewThrow, the only constructor for Kind == Throw.
type Record struct {
	Kind   Kind
	Value  goja.Value
	Label  string   // Break/Continue target label; empty if unlabeled
	Source ast.Node // may be nil

	// Suspended marks a Normal completion produced by the await bridge
	// parking on a pending promise. The executor must stop
	// its fold on seeing this, the same as any non-Normal completion,
	// without treating it as a Normal value to propagate.
	Suspended bool
}

// NewNormal builds a Normal completion. v may be nil (absent value).
func NewNormal(v goja.Value) Record {
	return Record{Kind: Normal, Value: v}
}

// NewSuspended builds the Normal/suspended completion the executor sees
// when the await bridge parks on a pending promise.
func NewSuspended() Record {
	return Record{Kind: Normal, Suspended: true}
}

// NewBreak builds a Break completion, optionally labeled.
func NewBreak(label string) Record {
	return Record{Kind: Break, Label: label}
}

// NewContinue builds a Continue completion, optionally labeled.
func NewContinue(label string) Record {
	return Record{Kind: Continue, Label: label}
}

// NewReturn builds a Return completion. v may be nil (absent value, i.e.
// `return;`).
func NewReturn(v goja.Value) Record {
	return Record{Kind: Return, Value: v}
}

// NewThrow builds a Throw completion. v must never be nil: a Throw always
// carries a value (the error object).
func NewThrow(v goja.Value, src ast.Node) Record {
	if v == nil {
		v = goja.Undefined()
	}
	return Record{Kind: Throw, Value: v, Source: src}
}

// IsAbrupt reports whether the completion is anything other than a plain,
// non-suspended Normal completion, i.e. whether a statement-list fold must
// stop on it.
func (r Record) IsAbrupt() bool {
	return r.Kind != Normal || r.Suspended
}

// WithValue returns a copy of r carrying v when r's own value is absent.
// This is UpdateEmpty (tc39.es/ecma262/#sec-updateempty): a
// Break/Continue/Return with no value inherits the statement list's last
// successful value.
func (r Record) WithValue(v goja.Value) Record {
	if r.Value != nil {
		return r
	}
	r.Value = v
	return r
}
