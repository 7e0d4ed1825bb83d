package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewCompareAndEqual(t *testing.T) {
	a := Of([]byte("apple"))
	b := Of([]byte("apple"))
	c := Of([]byte("banana"))

	assert.True(t, a.Equal(b))
	assert.Equal(t, 0, a.Compare(b))
	assert.Negative(t, a.Compare(c))
	assert.Positive(t, c.Compare(a))
}

func TestViewToOwnedIsIndependent(t *testing.T) {
	src := []byte("mutable")
	v := Of(src)
	owned := v.ToOwned()

	src[0] = 'X'

	require.Equal(t, "mutable", string(owned))
	assert.Equal(t, "Xutable", string(v.Data()))
}

func TestViewToOwnedNil(t *testing.T) {
	var v View
	assert.Nil(t, v.ToOwned())
}

func TestViewHashIsDeterministicAndSensitiveToContent(t *testing.T) {
	h1 := Of([]byte("apple")).Hash()
	h2 := Of([]byte("apple")).Hash()
	h3 := Of([]byte("applf")).Hash()

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}

func TestViewSize(t *testing.T) {
	assert.Equal(t, 0, Of(nil).Size())
	assert.Equal(t, 3, Of([]byte("abc")).Size())
}
