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

package trace

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStampsDuration(t *testing.T) {
	n, done := New("evaluate", "main", nil, map[string]any{"order": 0})
	done()

	assert.Equal(t, "evaluate", n.Kind)
	assert.Equal(t, "main", n.Op)
	assert.GreaterOrEqual(t, n.Duration.Nanoseconds(), int64(0))
	assert.Equal(t, 0, n.Meta["order"])
}

func TestAttachChains(t *testing.T) {
	root, _ := New("link", "main", nil, nil)
	child, _ := New("module", "dep", nil, nil)

	got := root.Attach(child).Attach()
	require.Same(t, root, got)
	require.Len(t, root.Children, 1)
	assert.Same(t, child, root.Children[0])
}

func TestSetErrAndResult(t *testing.T) {
	n, _ := New("statement", "throw", nil, nil)
	n.SetResult("v").SetErr(errors.New("nope"))

	assert.Equal(t, "v", n.Result)
	assert.Equal(t, "nope", n.Err)

	n2, _ := New("statement", "ok", nil, nil)
	n2.SetErr(nil)
	assert.Empty(t, n2.Err)
}
