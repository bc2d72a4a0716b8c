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

// Package ast defines the narrow AST surface the engine consumes. The
// lexer/parser and the non-control-flow expression evaluator are external
// collaborators: this package only fixes the shapes the statement
// executor, the await bridge, and the module records need to agree on
// with whatever produced the tree.
package ast

import "github.com/sentrie-sh/esmrt/tokens"

// Node is implemented by every statement and expression node.
type Node interface {
	Position() tokens.Range
}

// Statement is a control-flow-bearing AST node executed by the statement
// list executor. Concrete kinds are declared in statements.go.
type Statement interface {
	Node
	statementNode()
}

// Expression is an opaque marker for nodes the host's non-control-flow
// evaluator understands. The core never inspects an Expression's internals
// except for the one shape it owns itself: AwaitExpression.
type Expression interface {
	Node
	expressionNode()
}

// Module is the parsed form consumed by the module linker: the top-level
// statement list plus the classified import/export entries
// (tc39.es/ecma262/#sec-source-text-module-records).
type Module struct {
	// Specifier is this module's resolved identity (used as map/graph key).
	Specifier string

	Body []Statement

	ImportEntries       []ImportEntry
	LocalExportEntries  []ExportEntry
	IndirectExportEntries []ExportEntry
	StarExportEntries   []ExportEntry

	// HasTLA indicates the body contains a top-level await.
	HasTLA bool
}
