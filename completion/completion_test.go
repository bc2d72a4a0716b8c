package completion

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewThrowNeverHasNilValue(t *testing.T) {
	rt := goja.New()
	c := NewThrow(nil, nil)
	require.Equal(t, Throw, c.Kind)
	assert.NotNil(t, c.Value)
	assert.Equal(t, rt.ToValue(goja.Undefined()), c.Value)
}

func TestWithValueOnlyFillsAbsent(t *testing.T) {
	rt := goja.New()
	filled := rt.ToValue("already-there")
	carried := rt.ToValue("carried")

	r := NewReturn(nil).WithValue(carried)
	assert.Equal(t, carried, r.Value)

	r2 := NewReturn(filled).WithValue(carried)
	assert.Equal(t, filled, r2.Value)
}

func TestIsAbrupt(t *testing.T) {
	assert.False(t, NewNormal(nil).IsAbrupt())
	assert.True(t, NewSuspended().IsAbrupt())
	assert.True(t, NewBreak("").IsAbrupt())
	assert.True(t, NewContinue("lbl").IsAbrupt())
	assert.True(t, NewReturn(nil).IsAbrupt())
	assert.True(t, NewThrow(nil, nil).IsAbrupt())
}
