package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeAttrHelpers(t *testing.T) {
	value := ConstantInt64s("v", []int64{7})
	n := &Node{
		Name: "n",
		Op:   "Constant",
		Attrs: []Attribute{
			{Name: "axis", Type: AttrInt, I: 2},
			{Name: "alpha", Type: AttrFloat, F: 0.25},
			{Name: "axes", Type: AttrInts, Ints: []int64{0, 1}},
			{Name: "value", Type: AttrTensor, T: value},
		},
	}

	assert.Equal(t, int64(2), n.AttrInt("axis", -1))
	assert.Equal(t, int64(-1), n.AttrInt("missing", -1))
	assert.Equal(t, float32(0.25), n.AttrFloat("alpha", 0))
	assert.Equal(t, float32(1.5), n.AttrFloat("missing", 1.5))
	assert.Equal(t, []int64{0, 1}, n.AttrInts("axes"))
	assert.Nil(t, n.AttrInts("missing"))
	assert.Same(t, value, n.AttrTensor("value"))
	assert.Nil(t, n.AttrTensor("missing"))
}

func TestTensorPayloadAccessors(t *testing.T) {
	var runtime Tensor
	runtime.Name = "x"
	runtime.DType = Float32
	runtime.Shape = []int64{2, DynamicDim}

	assert.False(t, runtime.IsConstant())
	assert.False(t, runtime.HasStaticShape())
	assert.Equal(t, int64(-1), runtime.NumElements())
	_, ok := runtime.Float32s()
	assert.False(t, ok)

	c := ConstantFloat32s("c", []int64{2, 2}, []float32{1, 2, 3, 4})
	assert.True(t, c.IsConstant())
	assert.True(t, c.HasStaticShape())
	assert.Equal(t, int64(4), c.NumElements())

	vals, ok := c.Float32s()
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3, 4}, vals)

	// Wrong dtype decode refuses.
	_, ok = c.Int64s()
	assert.False(t, ok)
}

func TestDataTypeStrings(t *testing.T) {
	assert.Equal(t, "float32", Float32.String())
	assert.Equal(t, "int64", Int64.String())
	assert.Equal(t, "undefined", Undefined.String())

	assert.Equal(t, 4, Float32.Size())
	assert.Equal(t, 8, Int64.Size())
	assert.Equal(t, 0, Undefined.Size())
}
