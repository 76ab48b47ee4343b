package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape_NumElementsAndStrides(t *testing.T) {
	s := Shape{2, 3, 4}
	assert.Equal(t, 24, s.NumElements())
	assert.Equal(t, []int{12, 4, 1}, s.ComputeStrides())
	assert.Equal(t, 1, Shape{}.NumElements())
}

func TestShape_Validate(t *testing.T) {
	require.NoError(t, Shape{1, 3, 7, 7}.Validate())
	assert.Error(t, Shape{1, 0, 7}.Validate())
	assert.Error(t, Shape{-1}.Validate())
}

func TestShape_NCHW(t *testing.T) {
	n, c, h, w := Shape{1, 3, 5, 7}.NCHW()
	assert.Equal(t, []int{1, 3, 5, 7}, []int{n, c, h, w})
	assert.True(t, Shape{1, 3, 5, 7}.IsSpatial())
	assert.False(t, Shape{1, 1000}.IsSpatial())
	assert.Panics(t, func() { Shape{2, 3}.NCHW() })
}

func TestFromSlice(t *testing.T) {
	x, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	require.NoError(t, err)
	assert.Equal(t, float32(6), x.At(1, 2))
	assert.Equal(t, float32(2), x.At(0, 1))

	_, err = FromSlice([]float32{1, 2}, Shape{2, 3})
	assert.Error(t, err)
}

func TestSetAndBounds(t *testing.T) {
	x := Zeros(Shape{1, 2, 2, 2})
	x.Set(5, 0, 1, 1, 0)
	assert.Equal(t, float32(5), x.Data()[6])
	assert.Panics(t, func() { x.At(0, 2, 0, 0) })
	assert.Panics(t, func() { x.At(0, 0) })
}

func TestReshapeSharesData(t *testing.T) {
	x := Full(Shape{1, 4}, 2)
	y := x.Reshape(2, 2)
	y.Set(9, 1, 1)
	assert.Equal(t, float32(9), x.At(0, 3))
	assert.Panics(t, func() { x.Reshape(3) })
}

func TestCloneIsDeep(t *testing.T) {
	x := Full(Shape{3}, 1)
	y := x.Clone()
	y.Data()[0] = 7
	assert.Equal(t, float32(1), x.Data()[0])
}

func TestSumAndArgMax(t *testing.T) {
	x, err := FromSlice([]float32{0.5, -1, 3, 2}, Shape{4})
	require.NoError(t, err)
	assert.InDelta(t, 4.5, x.Sum(), 1e-9)
	assert.Equal(t, 2, x.ArgMax())
}
