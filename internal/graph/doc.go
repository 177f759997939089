// Package graph implements an in-memory computation graph for ONNX surgery.
//
// A Graph holds an ordered list of operator Nodes together with the declared
// input and output Tensors. Tensors are shared value slots: a node references
// the tensors it consumes and produces, it does not own them. Nodes are owned
// by exactly one graph at a time; Append transfers node ownership between
// graphs.
//
// Key operations:
//   - Toposort: re-establish a valid execution order (graphs must stay acyclic)
//   - Cleanup: drop nodes that do not contribute to any declared output
//   - Append: stitch two graphs together with Identity bridge nodes
//   - FoldConstants: replace fully-constant subgraphs with constant tensors
package graph
