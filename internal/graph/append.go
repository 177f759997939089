package graph

import "fmt"

// ShapeMismatchError reports that two graphs cannot be stitched because the
// first graph's output count differs from the second graph's input count.
// No name or dtype matching is attempted; stitching is positional.
type ShapeMismatchError struct {
	Outputs int // declared outputs of the first graph
	Inputs  int // declared inputs of the second graph
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("number of outputs (%d) does not match number of inputs (%d)", e.Outputs, e.Inputs)
}

// Append stitches b onto a: every declared output of a is connected to the
// positionally matching declared input of b through an Identity bridge node.
// The caller is responsible for positional alignment of the two boundaries.
//
// Append mutates a and returns it. Ownership of b's nodes transfers to the
// merged graph; b is emptied and must not be reused. The precondition check
// runs before any mutation, so a failed call leaves both graphs intact.
//
// No shape inference is performed on the merged graph; run Refine afterwards
// if shapes across the seam are needed.
func Append(a, b *Graph) (*Graph, error) {
	if len(a.Outputs) != len(b.Inputs) {
		return nil, &ShapeMismatchError{Outputs: len(a.Outputs), Inputs: len(b.Inputs)}
	}

	a.Nodes = append(a.Nodes, b.Nodes...)

	// Bridge the seam: one Identity per positional output/input pair. The
	// bridge forwards a's output tensor into b's input tensor without
	// requiring the two to be the same object.
	for i, out := range a.Outputs {
		in := b.Inputs[i]
		a.Nodes = append(a.Nodes, &Node{
			Name:    fmt.Sprintf("Identity_%s_%s", out.Name, in.Name),
			Op:      "Identity",
			Inputs:  []*Tensor{out},
			Outputs: []*Tensor{in},
		})
	}

	a.Outputs = b.Outputs
	if b.Opset > a.Opset {
		a.Opset = b.Opset
	}

	// b's nodes now belong to a.
	b.Nodes = nil
	b.Inputs = nil
	b.Outputs = nil

	// Naive concatenation does not guarantee execution order across the seam.
	if err := a.Toposort(); err != nil {
		return nil, err
	}
	return a, nil
}
