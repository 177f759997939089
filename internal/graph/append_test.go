package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chainGraph builds input -> (one node per op) -> output with fresh tensors.
func chainGraph(input, output string, ops ...string) *Graph {
	in := &Tensor{Name: input}
	g := &Graph{Inputs: []*Tensor{in}}
	cur := in
	for i, op := range ops {
		out := &Tensor{Name: output}
		if i < len(ops)-1 {
			out.Name = input + "_mid"
		}
		g.Nodes = append(g.Nodes, &Node{
			Name:    op + "_node",
			Op:      op,
			Inputs:  []*Tensor{cur},
			Outputs: []*Tensor{out},
		})
		cur = out
	}
	g.Outputs = []*Tensor{cur}
	return g
}

func TestAppend_NodeCountAndOutputs(t *testing.T) {
	a := chainGraph("x", "z", "Relu", "Sigmoid")
	b := chainGraph("p", "q", "Tanh")
	bOutputs := b.Outputs

	wantNodes := len(a.Nodes) + len(b.Nodes) + len(a.Outputs)

	merged, err := Append(a, b)
	require.NoError(t, err)

	assert.Same(t, a, merged, "Append returns the first graph")
	assert.Len(t, merged.Nodes, wantNodes, "original nodes plus one bridge per connection")
	assert.Equal(t, bOutputs, merged.Outputs, "declared outputs come from the second graph")
}

func TestAppend_BridgeNaming(t *testing.T) {
	a := chainGraph("x", "z", "Relu")
	b := chainGraph("p", "q", "Tanh")

	merged, err := Append(a, b)
	require.NoError(t, err)

	var bridge *Node
	for _, n := range merged.Nodes {
		if n.Op == "Identity" {
			bridge = n
		}
	}
	require.NotNil(t, bridge)
	assert.Equal(t, "Identity_z_p", bridge.Name)
	require.Len(t, bridge.Inputs, 1)
	require.Len(t, bridge.Outputs, 1)
	assert.Equal(t, "z", bridge.Inputs[0].Name)
	assert.Equal(t, "p", bridge.Outputs[0].Name)
}

func TestAppend_TopologicalOrderAcrossSeam(t *testing.T) {
	a := chainGraph("x", "z", "Relu")
	b := chainGraph("p", "q", "Tanh")

	merged, err := Append(a, b)
	require.NoError(t, err)

	pos := make(map[string]int, len(merged.Nodes))
	for i, n := range merged.Nodes {
		pos[n.Name] = i
	}
	assert.Less(t, pos["Relu_node"], pos["Identity_z_p"], "producer before bridge")
	assert.Less(t, pos["Identity_z_p"], pos["Tanh_node"], "bridge before consumer")
}

func TestAppend_ConsumesSecondGraph(t *testing.T) {
	a := chainGraph("x", "z", "Relu")
	b := chainGraph("p", "q", "Tanh")

	_, err := Append(a, b)
	require.NoError(t, err)

	assert.Empty(t, b.Nodes, "b becomes a husk")
	assert.Empty(t, b.Inputs)
	assert.Empty(t, b.Outputs)
}

func TestAppend_CountMismatch(t *testing.T) {
	a := chainGraph("x", "z", "Relu")
	extra := &Tensor{Name: "z2"}
	a.Outputs = append(a.Outputs, extra)
	b := chainGraph("p", "q", "Tanh")

	aNodes, bNodes := len(a.Nodes), len(b.Nodes)

	_, err := Append(a, b)
	require.Error(t, err)

	var mismatch *ShapeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 2, mismatch.Outputs)
	assert.Equal(t, 1, mismatch.Inputs)

	// The check precedes any mutation.
	assert.Len(t, a.Nodes, aNodes)
	assert.Len(t, b.Nodes, bNodes)
	assert.Len(t, a.Outputs, 2)
	assert.Len(t, b.Inputs, 1)
}

func TestAppend_MultipleConnections(t *testing.T) {
	// a: one node with two outputs, both declared.
	o1, o2 := &Tensor{Name: "o1"}, &Tensor{Name: "o2"}
	in := &Tensor{Name: "x"}
	a := &Graph{
		Inputs:  []*Tensor{in},
		Outputs: []*Tensor{o1, o2},
		Nodes: []*Node{
			{Name: "split", Op: "Split", Inputs: []*Tensor{in}, Outputs: []*Tensor{o1, o2}},
		},
	}

	// b: two declared inputs joined into one output.
	p1, p2 := &Tensor{Name: "p1"}, &Tensor{Name: "p2"}
	sum := &Tensor{Name: "sum"}
	b := &Graph{
		Inputs:  []*Tensor{p1, p2},
		Outputs: []*Tensor{sum},
		Nodes: []*Node{
			{Name: "join", Op: "Add", Inputs: []*Tensor{p1, p2}, Outputs: []*Tensor{sum}},
		},
	}

	merged, err := Append(a, b)
	require.NoError(t, err)

	assert.Len(t, merged.Nodes, 1+1+2, "one bridge per output/input pair")

	names := make([]string, 0, len(merged.Nodes))
	for _, n := range merged.Nodes {
		names = append(names, n.Name)
	}
	assert.Contains(t, names, "Identity_o1_p1")
	assert.Contains(t, names, "Identity_o2_p2")
}

func TestAppend_MergedTensorNamespace(t *testing.T) {
	a := chainGraph("x", "z", "Relu")
	b := chainGraph("p", "q", "Tanh")

	merged, err := Append(a, b)
	require.NoError(t, err)

	tensors := merged.Tensors()
	for _, name := range []string{"x", "z", "p", "q"} {
		assert.Contains(t, tensors, name)
	}
}

func TestAppend_CycleAfterStitch(t *testing.T) {
	// Stitching a graph onto itself through shared tensors creates a cycle.
	x, y := &Tensor{Name: "x"}, &Tensor{Name: "y"}
	a := &Graph{
		Inputs:  []*Tensor{x},
		Outputs: []*Tensor{y},
		Nodes:   []*Node{{Name: "f", Op: "Relu", Inputs: []*Tensor{x}, Outputs: []*Tensor{y}}},
	}
	b := &Graph{
		Inputs:  []*Tensor{y},
		Outputs: []*Tensor{x},
		Nodes:   []*Node{{Name: "g", Op: "Relu", Inputs: []*Tensor{y}, Outputs: []*Tensor{x}}},
	}

	_, err := Append(a, b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCycle))
}
