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

package host

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/sentrie-sh/esmrt/ast"
	"github.com/sentrie-sh/esmrt/tokens"
)

// The JSON module format is the reference parser contract: a pre-parsed
// module description a front end emits and the realm consumes. The real
// lexer/parser lives outside this repository; this format lets the CLI
// and tests drive the full link/evaluate/await pipeline without one.
//
// Expressions are source text plus the module-scope names they read
// ("refs"); statements mirror the statement shapes the executor folds.

type jsonModule struct {
	Specifier string            `json:"specifier,omitempty"`
	HasTLA    bool              `json:"hasTLA,omitempty"`
	Imports   []jsonImportEntry `json:"imports,omitempty"`
	Exports   jsonExports       `json:"exports,omitempty"`
	Body      []jsonStatement   `json:"body,omitempty"`
}

type jsonImportEntry struct {
	From   string `json:"from"`
	Import string `json:"import"` // "*" for a namespace import
	Local  string `json:"local"`
}

type jsonExports struct {
	Local    []jsonExportEntry `json:"local,omitempty"`
	Indirect []jsonExportEntry `json:"indirect,omitempty"`
	Star     []string          `json:"star,omitempty"` // module requests
}

type jsonExportEntry struct {
	Name   string `json:"name"`
	Local  string `json:"local,omitempty"`  // local exports
	From   string `json:"from,omitempty"`   // indirect exports
	Import string `json:"import,omitempty"` // indirect exports
}

type jsonStatement struct {
	Kind string `json:"kind"`

	// expr / return / throw
	Expr *jsonExpression `json:"expr,omitempty"`

	// var
	DeclKind string            `json:"declKind,omitempty"` // var | let | const
	Decls    []jsonDeclarator  `json:"decls,omitempty"`

	// if
	Test       *jsonExpression `json:"test,omitempty"`
	Then       []jsonStatement `json:"then,omitempty"`
	Else       []jsonStatement `json:"else,omitempty"`

	// block / function body
	Body []jsonStatement `json:"body,omitempty"`

	// while
	Label string `json:"label,omitempty"`

	// function
	Name   string   `json:"name,omitempty"`
	Params []string `json:"params,omitempty"`
}

type jsonDeclarator struct {
	Name string          `json:"name"`
	Init *jsonExpression `json:"init,omitempty"`
}

type jsonExpression struct {
	// Source text with free identifiers, or a bare literal, or an await
	// of a nested expression. Exactly one of these forms is set.
	Source  string          `json:"source,omitempty"`
	Refs    []string        `json:"refs,omitempty"`
	Literal any             `json:"literal,omitempty"`
	IsLit   bool            `json:"isLiteral,omitempty"`
	Await   *jsonExpression `json:"await,omitempty"`
}

// ParseJSONModule is a ParseFunc over the JSON module format.
func ParseJSONModule(specifier string, source string) (*ast.Module, error) {
	var jm jsonModule
	if err := json.Unmarshal([]byte(source), &jm); err != nil {
		return nil, errors.Wrapf(err, "parse module %q", specifier)
	}
	if jm.Specifier == "" {
		jm.Specifier = specifier
	}
	return buildModule(&jm)
}

func buildModule(jm *jsonModule) (*ast.Module, error) {
	m := &ast.Module{
		Specifier: jm.Specifier,
		HasTLA:    jm.HasTLA,
	}

	for _, ie := range jm.Imports {
		m.ImportEntries = append(m.ImportEntries, ast.ImportEntry{
			ModuleRequest: ie.From,
			ImportName:    ie.Import,
			LocalName:     ie.Local,
		})
	}
	for _, le := range jm.Exports.Local {
		local := le.Local
		if local == "" {
			local = le.Name
		}
		m.LocalExportEntries = append(m.LocalExportEntries, ast.ExportEntry{
			ExportName: le.Name,
			LocalName:  local,
		})
	}
	for _, ind := range jm.Exports.Indirect {
		m.IndirectExportEntries = append(m.IndirectExportEntries, ast.ExportEntry{
			ExportName:    ind.Name,
			ModuleRequest: ind.From,
			ImportName:    ind.Import,
		})
	}
	for _, star := range jm.Exports.Star {
		m.StarExportEntries = append(m.StarExportEntries, ast.ExportEntry{
			ExportName:    "*",
			ModuleRequest: star,
		})
	}

	body, err := buildStatements(jm.Specifier, jm.Body)
	if err != nil {
		return nil, err
	}
	m.Body = body
	return m, nil
}

func buildStatements(file string, in []jsonStatement) ([]ast.Statement, error) {
	var out []ast.Statement
	for i := range in {
		s, err := buildStatement(file, &in[i])
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func buildStatement(file string, js *jsonStatement) (ast.Statement, error) {
	rng := tokens.Range{File: file}
	switch js.Kind {
	case "expr":
		expr, err := buildExpression(file, js.Expr)
		if err != nil {
			return nil, err
		}
		return &ast.ExpressionStatement{Range: rng, Expr: expr}, nil

	case "return":
		var expr ast.Expression
		if js.Expr != nil {
			var err error
			expr, err = buildExpression(file, js.Expr)
			if err != nil {
				return nil, err
			}
		}
		return &ast.ReturnStatement{Range: rng, Argument: expr}, nil

	case "throw":
		expr, err := buildExpression(file, js.Expr)
		if err != nil {
			return nil, err
		}
		return &ast.ThrowStatement{Range: rng, Argument: expr}, nil

	case "var":
		kind := ast.VariableVar
		switch js.DeclKind {
		case "let":
			kind = ast.VariableLet
		case "const":
			kind = ast.VariableConst
		case "", "var":
		default:
			return nil, errors.Errorf("%s: unknown declaration kind %q", file, js.DeclKind)
		}
		st := &ast.VariableStatement{Range: rng, Kind: kind}
		for _, d := range js.Decls {
			var init ast.Expression
			if d.Init != nil {
				var err error
				init, err = buildExpression(file, d.Init)
				if err != nil {
					return nil, err
				}
			}
			st.Declarations = append(st.Declarations, ast.VariableDeclarator{Name: d.Name, Init: init})
		}
		return st, nil

	case "if":
		test, err := buildExpression(file, js.Test)
		if err != nil {
			return nil, err
		}
		thenBody, err := buildStatements(file, js.Then)
		if err != nil {
			return nil, err
		}
		st := &ast.IfStatement{Range: rng, Test: test, Consequent: &ast.BlockStatement{Range: rng, Body: thenBody}}
		if len(js.Else) > 0 {
			elseBody, err := buildStatements(file, js.Else)
			if err != nil {
				return nil, err
			}
			st.Alternate = &ast.BlockStatement{Range: rng, Body: elseBody}
		}
		return st, nil

	case "while":
		test, err := buildExpression(file, js.Test)
		if err != nil {
			return nil, err
		}
		body, err := buildStatements(file, js.Body)
		if err != nil {
			return nil, err
		}
		return &ast.WhileStatement{Range: rng, Label: js.Label, Test: test, Body: &ast.BlockStatement{Range: rng, Body: body}}, nil

	case "block":
		body, err := buildStatements(file, js.Body)
		if err != nil {
			return nil, err
		}
		return &ast.BlockStatement{Range: rng, Body: body}, nil

	case "function":
		body, err := buildStatements(file, js.Body)
		if err != nil {
			return nil, err
		}
		return &ast.FunctionDeclaration{Range: rng, Name: js.Name, Params: js.Params, Body: body}, nil

	case "empty":
		return &ast.EmptyStatement{Range: rng}, nil

	default:
		return nil, errors.Errorf("%s: unknown statement kind %q", file, js.Kind)
	}
}

func buildExpression(file string, je *jsonExpression) (ast.Expression, error) {
	if je == nil {
		return nil, errors.Errorf("%s: missing expression", file)
	}
	rng := tokens.Range{File: file}
	switch {
	case je.Await != nil:
		arg, err := buildExpression(file, je.Await)
		if err != nil {
			return nil, err
		}
		return &ast.AwaitExpression{Range: rng, Argument: arg}, nil
	case je.IsLit:
		return &ast.Literal{Range: rng, Value: je.Literal}, nil
	case je.Source != "":
		return &ast.Source{Range: rng, Text: je.Source, Refs: je.Refs}, nil
	default:
		return nil, errors.Errorf("%s: expression has no form", file)
	}
}
