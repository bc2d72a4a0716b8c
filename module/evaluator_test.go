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

	"github.com/dop251/goja"
	"github.com/sentrie-sh/esmrt/ast"
	"github.com/sentrie-sh/esmrt/promise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func TestEvaluateDiamondRunsInTopologicalOrder(t *testing.T) {
	b := newGraphBuilder()
	b.add(moduleSpec{specifier: "d", local: []ast.ExportEntry{localExport("d")}})
	b.add(moduleSpec{specifier: "b", imports: []ast.ImportEntry{importOf("d", "d")}, local: []ast.ExportEntry{localExport("b")}})
	b.add(moduleSpec{specifier: "c", imports: []ast.ImportEntry{importOf("d", "d")}, local: []ast.ExportEntry{localExport("c")}})
	a := b.add(moduleSpec{specifier: "a", imports: []ast.ImportEntry{importOf("b", "b"), importOf("c", "c")}})

	require.NoError(t, b.g.Link(a))
	p, err := b.g.Evaluate(a)
	require.NoError(t, err)
	b.host.queue.RunAvailable()

	require.Equal(t, promise.Fulfilled, p.State())
	assert.Equal(t, goja.Undefined(), p.Value())

	order := b.exec.order
	require.Len(t, order, 4, "each module body runs exactly once")
	assert.Less(t, indexOf(order, "d"), indexOf(order, "b"))
	assert.Less(t, indexOf(order, "d"), indexOf(order, "c"))
	assert.Less(t, indexOf(order, "b"), indexOf(order, "a"))
	assert.Less(t, indexOf(order, "c"), indexOf(order, "a"))

	for _, spec := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, Evaluated, b.host.modules[spec].Status, spec)
	}
}

func TestEvaluateReturnsTheSamePromise(t *testing.T) {
	b := newGraphBuilder()
	a := b.add(moduleSpec{specifier: "a"})

	require.NoError(t, b.g.Link(a))
	p1, err := b.g.Evaluate(a)
	require.NoError(t, err)
	p2, err := b.g.Evaluate(a)
	require.NoError(t, err)

	assert.Same(t, p1, p2)
}

func TestEvaluateNoTLASettlesSynchronously(t *testing.T) {
	b := newGraphBuilder()
	a := b.add(moduleSpec{specifier: "a"})

	require.NoError(t, b.g.Link(a))
	p, err := b.g.Evaluate(a)
	require.NoError(t, err)

	// observable before any queue drain
	assert.Equal(t, promise.Fulfilled, p.State())
	assert.Equal(t, goja.Undefined(), p.Value())
}

func TestEvaluateThrowMarksStackEvaluatedWithError(t *testing.T) {
	b := newGraphBuilder()
	b.add(moduleSpec{specifier: "dep", local: []ast.ExportEntry{localExport("x")}})
	a := b.add(moduleSpec{specifier: "a", imports: []ast.ImportEntry{importOf("dep", "x")}})
	b.exec.throwOn["a"] = "boom"

	require.NoError(t, b.g.Link(a))
	p, err := b.g.Evaluate(a)
	require.NoError(t, err)

	require.Equal(t, promise.Rejected, p.State())
	assert.Equal(t, Evaluated, a.Status)
	require.NotNil(t, a.evalError)

	// a second Evaluate observes the remembered error through the same
	// capability
	p2, err := b.g.Evaluate(a)
	require.NoError(t, err)
	assert.Same(t, p, p2)
	assert.Equal(t, promise.Rejected, p2.State())
}

func TestTLAPropagationFulfills(t *testing.T) {
	b := newGraphBuilder()
	l := b.add(moduleSpec{specifier: "l", local: []ast.ExportEntry{localExport("x")}, hasTLA: true})
	m := b.add(moduleSpec{specifier: "m", imports: []ast.ImportEntry{importOf("l", "x")}})

	require.NoError(t, b.g.Link(m))
	p, err := b.g.Evaluate(m)
	require.NoError(t, err)
	b.host.queue.RunAvailable()

	assert.Equal(t, promise.Pending, p.State())
	assert.Equal(t, EvaluatingAsync, l.Status)
	assert.Equal(t, EvaluatingAsync, m.Status)
	// m must not have run yet: its only dependency is still async-evaluating
	assert.Equal(t, []string{"l"}, b.exec.order)

	cap := b.exec.asyncCaps["l"]
	require.NotNil(t, cap, "l's async body must have parked on a capability")
	cap.Resolve(goja.Undefined())
	b.host.queue.RunAvailable()

	assert.Equal(t, Evaluated, l.Status)
	assert.Equal(t, Evaluated, m.Status)
	assert.Equal(t, []string{"l", "m"}, b.exec.order)
	require.Equal(t, promise.Fulfilled, p.State())
	assert.Equal(t, goja.Undefined(), p.Value())
}

func TestTLARejectionPropagates(t *testing.T) {
	b := newGraphBuilder()
	l := b.add(moduleSpec{specifier: "l", local: []ast.ExportEntry{localExport("x")}, hasTLA: true})
	m := b.add(moduleSpec{specifier: "m", imports: []ast.ImportEntry{importOf("l", "x")}})

	require.NoError(t, b.g.Link(m))
	p, err := b.g.Evaluate(m)
	require.NoError(t, err)
	b.host.queue.RunAvailable()
	require.Equal(t, promise.Pending, p.State())

	boom := b.host.rt.NewTypeError("rejected upstream")
	b.exec.asyncCaps["l"].Reject(boom)
	b.host.queue.RunAvailable()

	assert.Equal(t, Evaluated, l.Status)
	require.NotNil(t, l.evalError)
	assert.Equal(t, Evaluated, m.Status)
	require.NotNil(t, m.evalError)

	require.Equal(t, promise.Rejected, p.State())
	assert.Equal(t, boom, p.Value())

	// a later Evaluate redirects through the cycle root and yields the
	// same rejected promise
	p2, err := b.g.Evaluate(m)
	require.NoError(t, err)
	assert.Same(t, p, p2)
}

func TestTLAFanOutRunsAncestorsInAsyncEvalOrder(t *testing.T) {
	b := newGraphBuilder()
	b.add(moduleSpec{specifier: "l", local: []ast.ExportEntry{localExport("x")}, hasTLA: true})
	b.add(moduleSpec{specifier: "b", imports: []ast.ImportEntry{importOf("l", "x")}, local: []ast.ExportEntry{localExport("b")}})
	b.add(moduleSpec{specifier: "c", imports: []ast.ImportEntry{importOf("l", "x")}, local: []ast.ExportEntry{localExport("c")}})
	a := b.add(moduleSpec{specifier: "a", imports: []ast.ImportEntry{importOf("b", "b"), importOf("c", "c")}})

	require.NoError(t, b.g.Link(a))
	p, err := b.g.Evaluate(a)
	require.NoError(t, err)
	b.host.queue.RunAvailable()
	require.Equal(t, promise.Pending, p.State())
	assert.Equal(t, []string{"l"}, b.exec.order)

	b.exec.asyncCaps["l"].Resolve(goja.Undefined())
	b.host.queue.RunAvailable()

	// b was assigned a lower asyncEvalOrder than c (visited first), and a
	// runs only after both of its async dependencies settled
	assert.Equal(t, []string{"l", "b", "c", "a"}, b.exec.order)
	require.Equal(t, promise.Fulfilled, p.State())
	for _, spec := range []string{"l", "b", "c", "a"} {
		assert.Equal(t, Evaluated, b.host.modules[spec].Status, spec)
	}
}

func TestAsyncRejectionIsIdempotent(t *testing.T) {
	b := newGraphBuilder()
	l := b.add(moduleSpec{specifier: "l", hasTLA: true})

	require.NoError(t, b.g.Link(l))
	p, err := b.g.Evaluate(l)
	require.NoError(t, err)
	b.host.queue.RunAvailable()
	require.Equal(t, promise.Pending, p.State())

	boom := b.host.rt.NewTypeError("once")
	b.g.AsyncModuleExecutionRejected(l, boom)
	b.g.AsyncModuleExecutionRejected(l, b.host.rt.NewTypeError("twice"))

	require.NotNil(t, l.evalError)
	assert.Equal(t, boom, l.evalError.Value)
	assert.Equal(t, promise.Rejected, p.State())
	assert.Equal(t, boom, p.Value())
}
