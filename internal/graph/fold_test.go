package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFoldConstants_AddInt64(t *testing.T) {
	c1 := ConstantInt64s("c1", []int64{1, 2, 3})
	c2 := ConstantInt64s("c2", []int64{10, 20, 30})
	out := &Tensor{Name: "sum"}

	g := &Graph{
		Outputs: []*Tensor{out},
		Nodes: []*Node{
			{Name: "add", Op: "Add", Inputs: []*Tensor{c1, c2}, Outputs: []*Tensor{out}},
		},
	}

	folded, err := g.FoldConstants(FoldOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, folded)
	assert.Empty(t, g.Nodes)

	vals, ok := out.Int64s()
	require.True(t, ok)
	assert.Equal(t, []int64{11, 22, 33}, vals)
}

func TestFoldConstants_ScalarBroadcast(t *testing.T) {
	c := ConstantFloat32s("c", []int64{3}, []float32{1, 2, 3})
	two := ConstantFloat32s("two", []int64{}, []float32{2})
	out := &Tensor{Name: "scaled"}

	g := &Graph{
		Outputs: []*Tensor{out},
		Nodes: []*Node{
			{Name: "mul", Op: "Mul", Inputs: []*Tensor{c, two}, Outputs: []*Tensor{out}},
		},
	}

	folded, err := g.FoldConstants(FoldOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, folded)

	vals, ok := out.Float32s()
	require.True(t, ok)
	assert.Equal(t, []float32{2, 4, 6}, vals)
	assert.Equal(t, []int64{3}, out.Shape)
}

func TestFoldConstants_NonConstantInputSkipped(t *testing.T) {
	x := &Tensor{Name: "x", DType: Float32, Shape: []int64{3}}
	c := ConstantFloat32s("c", []int64{3}, []float32{1, 2, 3})
	out := &Tensor{Name: "out"}

	g := &Graph{
		Inputs:  []*Tensor{x},
		Outputs: []*Tensor{out},
		Nodes: []*Node{
			{Name: "add", Op: "Add", Inputs: []*Tensor{x, c}, Outputs: []*Tensor{out}},
		},
	}

	folded, err := g.FoldConstants(FoldOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, folded)
	assert.Len(t, g.Nodes, 1)
	assert.False(t, out.IsConstant())
}

func TestFoldConstants_ShapeGated(t *testing.T) {
	x := &Tensor{Name: "x", DType: Float32, Shape: []int64{2, 3, 4}}
	s := &Tensor{Name: "s"}

	g := &Graph{
		Inputs:  []*Tensor{x},
		Outputs: []*Tensor{s},
		Nodes: []*Node{
			{Name: "shape", Op: "Shape", Inputs: []*Tensor{x}, Outputs: []*Tensor{s}},
		},
	}

	// Without FoldShapes the Shape node stays.
	folded, err := g.FoldConstants(FoldOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, folded)
	require.Len(t, g.Nodes, 1)

	// With FoldShapes it materializes the static shape.
	folded, err = g.FoldConstants(FoldOptions{FoldShapes: true})
	require.NoError(t, err)
	assert.Equal(t, 1, folded)

	vals, ok := s.Int64s()
	require.True(t, ok)
	assert.Equal(t, []int64{2, 3, 4}, vals)
}

func TestFoldConstants_ShapeSubgraphInOneSweep(t *testing.T) {
	// Shape -> Gather -> Concat, the common dynamic-reshape idiom. All
	// three fold in one sweep because folding walks in topological order.
	x := &Tensor{Name: "x", DType: Float32, Shape: []int64{2, 3}}
	s := &Tensor{Name: "s"}
	idx := ConstantInt64s("idx", []int64{0})
	batch := &Tensor{Name: "batch"}
	rest := ConstantInt64s("rest", []int64{6})
	spec := &Tensor{Name: "spec"}
	y := &Tensor{Name: "y"}

	g := &Graph{
		Inputs:  []*Tensor{x},
		Outputs: []*Tensor{y},
		Nodes: []*Node{
			{Name: "shape", Op: "Shape", Inputs: []*Tensor{x}, Outputs: []*Tensor{s}},
			{Name: "gather", Op: "Gather", Inputs: []*Tensor{s, idx}, Outputs: []*Tensor{batch}},
			{Name: "concat", Op: "Concat", Inputs: []*Tensor{batch, rest}, Outputs: []*Tensor{spec},
				Attrs: []Attribute{{Name: "axis", Type: AttrInt, I: 0}}},
			{Name: "reshape", Op: "Reshape", Inputs: []*Tensor{x, spec}, Outputs: []*Tensor{y}},
		},
	}

	folded, err := g.FoldConstants(FoldOptions{FoldShapes: true})
	require.NoError(t, err)
	assert.Equal(t, 3, folded, "shape chain folds; the data reshape stays")
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, "reshape", g.Nodes[0].Name)

	vals, ok := spec.Int64s()
	require.True(t, ok)
	assert.Equal(t, []int64{2, 6}, vals)
}

func TestFoldConstants_ReshapeInfersDim(t *testing.T) {
	c := ConstantFloat32s("c", []int64{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	spec := ConstantInt64s("spec", []int64{3, -1})
	out := &Tensor{Name: "out"}

	g := &Graph{
		Outputs: []*Tensor{out},
		Nodes: []*Node{
			{Name: "reshape", Op: "Reshape", Inputs: []*Tensor{c, spec}, Outputs: []*Tensor{out}},
		},
	}

	folded, err := g.FoldConstants(FoldOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, folded)
	assert.Equal(t, []int64{3, 2}, out.Shape)

	vals, ok := out.Float32s()
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, vals, "reshape keeps the payload")
}

func TestFoldConstants_Transpose(t *testing.T) {
	c := ConstantFloat32s("c", []int64{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	out := &Tensor{Name: "out"}

	g := &Graph{
		Outputs: []*Tensor{out},
		Nodes: []*Node{
			{Name: "transpose", Op: "Transpose", Inputs: []*Tensor{c}, Outputs: []*Tensor{out}},
		},
	}

	folded, err := g.FoldConstants(FoldOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, folded)
	assert.Equal(t, []int64{3, 2}, out.Shape)

	vals, ok := out.Float32s()
	require.True(t, ok)
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, vals)
}

func TestFoldConstants_Cast(t *testing.T) {
	c := ConstantInt64s("c", []int64{1, 2, 3})
	out := &Tensor{Name: "out"}

	g := &Graph{
		Outputs: []*Tensor{out},
		Nodes: []*Node{
			{Name: "cast", Op: "Cast", Inputs: []*Tensor{c}, Outputs: []*Tensor{out},
				Attrs: []Attribute{{Name: "to", Type: AttrInt, I: int64(Float32)}}},
		},
	}

	folded, err := g.FoldConstants(FoldOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, folded)

	vals, ok := out.Float32s()
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, vals)
}

func TestFoldConstants_ZeroInputIdentitySkipped(t *testing.T) {
	// Invalid models can carry an Identity with no inputs; folding must
	// leave it alone rather than crash.
	out := &Tensor{Name: "out"}
	g := &Graph{
		Outputs: []*Tensor{out},
		Nodes:   []*Node{{Name: "id", Op: "Identity", Outputs: []*Tensor{out}}},
	}

	folded, err := g.FoldConstants(FoldOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, folded)
	assert.Len(t, g.Nodes, 1)
	assert.False(t, out.IsConstant())
}

func TestFoldConstants_GatherScalarIndex(t *testing.T) {
	c := ConstantInt64s("c", []int64{10, 20, 30})
	idx := &Tensor{Name: "idx"}
	idx.SetInt64s([]int64{}, []int64{1})
	out := &Tensor{Name: "out"}

	g := &Graph{
		Outputs: []*Tensor{out},
		Nodes: []*Node{
			{Name: "gather", Op: "Gather", Inputs: []*Tensor{c, idx}, Outputs: []*Tensor{out}},
		},
	}

	folded, err := g.FoldConstants(FoldOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, folded)

	// Rank 0 stays rank 0: the shape is empty but known.
	require.NotNil(t, out.Shape)
	assert.Empty(t, out.Shape)
	assert.True(t, out.HasStaticShape())

	vals, ok := out.Int64s()
	require.True(t, ok)
	assert.Equal(t, []int64{20}, vals)
}

func TestFoldConstants_SliceRank1(t *testing.T) {
	c := ConstantInt64s("c", []int64{10, 20, 30, 40})
	starts := ConstantInt64s("starts", []int64{1})
	ends := ConstantInt64s("ends", []int64{3})
	out := &Tensor{Name: "out"}

	g := &Graph{
		Outputs: []*Tensor{out},
		Nodes: []*Node{
			{Name: "slice", Op: "Slice", Inputs: []*Tensor{c, starts, ends}, Outputs: []*Tensor{out}},
		},
	}

	folded, err := g.FoldConstants(FoldOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, folded)

	vals, ok := out.Int64s()
	require.True(t, ok)
	assert.Equal(t, []int64{20, 30}, vals)
}

func TestFoldConstants_UnsqueezeFromInput(t *testing.T) {
	c := ConstantInt64s("c", []int64{7})
	axes := ConstantInt64s("axes", []int64{0})
	out := &Tensor{Name: "out"}

	g := &Graph{
		Outputs: []*Tensor{out},
		Nodes: []*Node{
			{Name: "unsqueeze", Op: "Unsqueeze", Inputs: []*Tensor{c, axes}, Outputs: []*Tensor{out}},
		},
	}

	folded, err := g.FoldConstants(FoldOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, folded)
	assert.Equal(t, []int64{1, 1}, out.Shape)
}
