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
	"testing"

	"github.com/pkg/errors"
	"github.com/sentrie-sh/esmrt/ast"
	"github.com/sentrie-sh/esmrt/xerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkDiamondLeavesAllLinked(t *testing.T) {
	b := newGraphBuilder()
	d := b.add(moduleSpec{specifier: "d", local: []ast.ExportEntry{localExport("d")}})
	bb := b.add(moduleSpec{specifier: "b", imports: []ast.ImportEntry{importOf("d", "d")}, local: []ast.ExportEntry{localExport("b")}})
	c := b.add(moduleSpec{specifier: "c", imports: []ast.ImportEntry{importOf("d", "d")}, local: []ast.ExportEntry{localExport("c")}})
	a := b.add(moduleSpec{specifier: "a", imports: []ast.ImportEntry{importOf("b", "b"), importOf("c", "c")}})

	require.NoError(t, b.g.Link(a))

	for _, m := range []*CyclicModuleRecord{a, bb, c, d} {
		assert.Equal(t, Linked, m.Status, m.Specifier)
		assert.NotNil(t, m.Environment, m.Specifier)
		assert.LessOrEqual(t, m.dfsAncestorIndex, m.dfsIndex, m.Specifier)
	}
}

func TestLinkIsIdempotent(t *testing.T) {
	b := newGraphBuilder()
	a := b.add(moduleSpec{specifier: "a"})

	require.NoError(t, b.g.Link(a))
	env := a.Environment
	require.NoError(t, b.g.Link(a))
	assert.Same(t, env, a.Environment, "relinking must not rebuild the environment")
}

func TestLinkCycleSealsOneSCC(t *testing.T) {
	b := newGraphBuilder()
	a := b.add(moduleSpec{specifier: "a", star: []ast.ExportEntry{starExport("b")}, local: []ast.ExportEntry{localExport("x")}})
	bb := b.add(moduleSpec{specifier: "b", star: []ast.ExportEntry{starExport("a")}, local: []ast.ExportEntry{localExport("y")}})

	require.NoError(t, b.g.Link(a))

	assert.Equal(t, Linked, a.Status)
	assert.Equal(t, Linked, bb.Status)
	// the cycle shares one root: the later-visited module's ancestor index
	// collapses onto the earlier one
	assert.Equal(t, a.dfsIndex, a.dfsAncestorIndex)
	assert.Equal(t, a.dfsIndex, bb.dfsAncestorIndex)
}

func TestLinkFailureRollsBackToUnlinked(t *testing.T) {
	b := newGraphBuilder()
	leaf := b.add(moduleSpec{specifier: "leaf", imports: []ast.ImportEntry{importOf("missing", "x")}})
	mid := b.add(moduleSpec{specifier: "mid", star: []ast.ExportEntry{starExport("leaf")}})
	root := b.add(moduleSpec{specifier: "root", star: []ast.ExportEntry{starExport("mid")}})

	err := b.g.Link(root)
	require.Error(t, err)

	for _, m := range []*CyclicModuleRecord{root, mid, leaf} {
		assert.Equal(t, Unlinked, m.Status, m.Specifier)
		assert.Nil(t, m.Environment, m.Specifier)
		assert.Equal(t, unsetIndex, m.dfsIndex, m.Specifier)
		assert.Equal(t, unsetIndex, m.dfsAncestorIndex, m.Specifier)
	}
}

func TestLinkUnresolvedImportIsSyntaxError(t *testing.T) {
	b := newGraphBuilder()
	lib := b.add(moduleSpec{specifier: "lib", local: []ast.ExportEntry{localExport("present")}})
	_ = lib
	app := b.add(moduleSpec{specifier: "app", imports: []ast.ImportEntry{importOf("lib", "absent")}})

	err := b.g.Link(app)
	require.Error(t, err)

	var se xerr.SyntaxErrorKind
	assert.True(t, errors.As(err, &se), "unresolved import must surface as a syntax error, got %v", err)
	assert.Equal(t, Unlinked, app.Status)
}

func TestLinkAmbiguousStarImportIsSyntaxError(t *testing.T) {
	b := newGraphBuilder()
	b.add(moduleSpec{specifier: "x", local: []ast.ExportEntry{localExport("foo")}})
	b.add(moduleSpec{specifier: "y", local: []ast.ExportEntry{localExport("foo")}})
	b.add(moduleSpec{specifier: "z", star: []ast.ExportEntry{starExport("x"), starExport("y")}})
	w := b.add(moduleSpec{specifier: "w", imports: []ast.ImportEntry{importOf("z", "foo")}})

	err := b.g.Link(w)
	require.Error(t, err)

	var se xerr.SyntaxErrorKind
	assert.True(t, errors.As(err, &se), "ambiguous import must surface as a syntax error, got %v", err)
}

func TestHoistingBindsDeclarations(t *testing.T) {
	b := newGraphBuilder()
	body := []ast.Statement{
		&ast.VariableStatement{Kind: ast.VariableVar, Declarations: []ast.VariableDeclarator{{Name: "v"}}},
		&ast.VariableStatement{Kind: ast.VariableLet, Declarations: []ast.VariableDeclarator{{Name: "l"}}},
		&ast.VariableStatement{Kind: ast.VariableConst, Declarations: []ast.VariableDeclarator{{Name: "c"}}},
		&ast.FunctionDeclaration{Name: "fn"},
		&ast.BlockStatement{Body: []ast.Statement{
			&ast.VariableStatement{Kind: ast.VariableVar, Declarations: []ast.VariableDeclarator{{Name: "nested"}}},
			&ast.VariableStatement{Kind: ast.VariableLet, Declarations: []ast.VariableDeclarator{{Name: "blockLet"}}},
			&ast.VariableStatement{Kind: ast.VariableConst, Declarations: []ast.VariableDeclarator{{Name: "blockConst"}}},
		}},
	}
	m := b.g.AddModule("hoist", body, nil, nil, nil, nil, false)
	b.host.modules["hoist"] = m

	require.NoError(t, b.g.Link(m))

	env := m.Environment
	for _, name := range []string{"v", "l", "c", "fn", "nested"} {
		assert.True(t, env.Has(name), name)
	}
	// var is initialized to undefined by hoisting; let/const sit in the TDZ
	assert.True(t, env.IsInitialized("v"))
	assert.True(t, env.IsInitialized("nested"))
	assert.False(t, env.IsInitialized("l"))
	assert.False(t, env.IsInitialized("c"))
	assert.False(t, env.IsInitialized("fn"))

	// block-scoped lexicals must not hoist out of their block
	assert.False(t, env.Has("blockLet"))
	assert.False(t, env.Has("blockConst"))
}
