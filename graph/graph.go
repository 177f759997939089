// Package graph provides the in-memory computation graph used for ONNX
// surgery with the surgeon toolkit.
//
// A Graph is an ordered list of operator Nodes plus the declared boundary
// Tensors. Graphs are exclusively owned: a graph may be mutated by one
// caller at a time, and Append consumes its second argument.
//
// # Example Usage
//
//	import (
//	    "github.com/born-ml/surgeon/graph"
//	    "github.com/born-ml/surgeon/onnx"
//	)
//
//	backbone, _ := onnx.ImportFile("backbone.onnx")
//	head, _ := onnx.ImportFile("head.onnx")
//
//	// Connect backbone outputs to head inputs, positionally.
//	merged, err := graph.Append(backbone, head)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// head is now an empty husk; merged owns every node.
//	_ = merged
package graph

import (
	internalgraph "github.com/born-ml/surgeon/internal/graph"
)

// Graph is a directed acyclic computation graph.
type Graph = internalgraph.Graph

// Node is a single operation in a graph.
type Node = internalgraph.Node

// Tensor is a named value slot referenced by nodes.
type Tensor = internalgraph.Tensor

// Attribute is a named operator parameter.
type Attribute = internalgraph.Attribute

// DataType identifies a tensor element type (ONNX codes).
type DataType = internalgraph.DataType

// Tensor element types.
const (
	Undefined = internalgraph.Undefined
	Float32   = internalgraph.Float32
	Int32     = internalgraph.Int32
	Int64     = internalgraph.Int64
	Float64   = internalgraph.Float64
	Bool      = internalgraph.Bool
)

// DynamicDim marks a dimension whose size is not statically known.
const DynamicDim = internalgraph.DynamicDim

// ShapeMismatchError reports a stitching cardinality mismatch.
type ShapeMismatchError = internalgraph.ShapeMismatchError

// FoldOptions configures constant folding.
type FoldOptions = internalgraph.FoldOptions

// ErrCycle is returned when a graph cannot be topologically ordered.
var ErrCycle = internalgraph.ErrCycle

// ErrShapeFoldingUnsupported is the fatal folding-capability error.
var ErrShapeFoldingUnsupported = internalgraph.ErrShapeFoldingUnsupported

// Append stitches b onto a, connecting a's declared outputs to b's declared
// inputs positionally through Identity bridge nodes, and returns a.
//
// The output/input counts must match; a *ShapeMismatchError is returned
// otherwise, before either graph is mutated. On success a is mutated in
// place, b's nodes transfer to a, and b is emptied; it must not be reused.
//
// Append performs no shape inference; see [onnx.Refine].
func Append(a, b *Graph) (*Graph, error) {
	return internalgraph.Append(a, b)
}

// ConstantInt64s builds a rank-1 int64 constant tensor.
func ConstantInt64s(name string, vals []int64) *Tensor {
	return internalgraph.ConstantInt64s(name, vals)
}

// ConstantFloat32s builds a float32 constant tensor with the given shape.
func ConstantFloat32s(name string, shape []int64, vals []float32) *Tensor {
	return internalgraph.ConstantFloat32s(name, shape, vals)
}
