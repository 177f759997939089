// Package onnx provides ONNX interchange functionality for the surgeon
// graph-surgery toolkit.
//
// This package reads and writes the ONNX protobuf format with a hand-written
// wire codec (no external protobuf dependency), converts between the
// serialized form and [graph.Graph], and implements static shape inference
// plus the iterative refinement loop that alternates cleanup, inference and
// constant folding.
//
// # Example Usage
//
//	import (
//	    "github.com/born-ml/surgeon/graph"
//	    "github.com/born-ml/surgeon/onnx"
//	)
//
//	backbone, err := onnx.ImportFile("backbone.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	head, err := onnx.ImportFile("head.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	merged, err := graph.Append(backbone, head)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Best-effort: infer shapes across the seam and fold constants.
//	merged, err = onnx.Refine(merged)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := onnx.WriteFile("merged.onnx", onnx.Export(merged)); err != nil {
//	    log.Fatal(err)
//	}
package onnx

import (
	internalgraph "github.com/born-ml/surgeon/internal/graph"
	internalonnx "github.com/born-ml/surgeon/internal/onnx"
)

// ModelProto is the top-level serialized ONNX model.
type ModelProto = internalonnx.ModelProto

// GraphProto is the serialized computation graph.
type GraphProto = internalonnx.GraphProto

// NodeProto is a serialized operation.
type NodeProto = internalonnx.NodeProto

// TensorProto is a serialized constant tensor.
type TensorProto = internalonnx.TensorProto

// ValueInfoProto declares a tensor's type information.
type ValueInfoProto = internalonnx.ValueInfoProto

// Parse parses an ONNX model from protobuf wire-format bytes.
func Parse(data []byte) (*ModelProto, error) {
	return internalonnx.Parse(data)
}

// ParseFile parses an ONNX model from a file path.
func ParseFile(path string) (*ModelProto, error) {
	return internalonnx.ParseFile(path)
}

// Serialize encodes an ONNX model to protobuf wire-format bytes.
func Serialize(m *ModelProto) []byte {
	return internalonnx.Serialize(m)
}

// WriteFile serializes an ONNX model to a file.
func WriteFile(path string, m *ModelProto) error {
	return internalonnx.WriteFile(path, m)
}

// Import converts a parsed model into a working graph.
func Import(m *ModelProto) (*internalgraph.Graph, error) {
	return internalonnx.Import(m)
}

// ImportFile parses an ONNX file and converts it into a working graph.
func ImportFile(path string) (*internalgraph.Graph, error) {
	m, err := internalonnx.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return internalonnx.Import(m)
}

// Export converts a working graph back to the serialized model form.
func Export(g *internalgraph.Graph) *ModelProto {
	return internalonnx.Export(g)
}

// InferShapes statically propagates tensor shapes and element types through
// the model, recording results as value_info annotations. Operators the
// propagator does not understand are skipped without error.
func InferShapes(m *ModelProto) error {
	return internalonnx.InferShapes(m)
}

// RefineOptions configures the refinement loop.
type RefineOptions = internalonnx.RefineOptions

// ConstantFolder abstracts the folding capability the refiner drives.
type ConstantFolder = internalonnx.ConstantFolder

// DefaultRefineOptions returns the default refinement options.
func DefaultRefineOptions() RefineOptions {
	return internalonnx.DefaultRefineOptions()
}

// Refine repeatedly cleans up the graph, re-sorts it, infers shapes and
// folds constants until a pass changes nothing (at most three passes).
// Refinement is best-effort: failed inference attempts are non-fatal. The
// refined graph is returned; callers must use the return value.
//
// Example:
//
//	merged, err = onnx.Refine(merged)
//	if err != nil {
//	    // The constant folder cannot fold shapes; upgrade it.
//	    log.Fatal(err)
//	}
func Refine(g *internalgraph.Graph, opts ...RefineOptions) (*internalgraph.Graph, error) {
	return internalonnx.Refine(g, opts...)
}

// ModelInfo contains metadata about an ONNX model without loading it.
//
// Use [GetModelInfo] to quickly inspect a model file.
type ModelInfo = internalonnx.ModelInfo

// GetModelInfo extracts metadata from an ONNX file.
//
// Example:
//
//	info, err := onnx.GetModelInfo("model.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Producer: %s\n", info.ProducerName)
//	fmt.Printf("Opset: %d\n", info.OpsetVersion)
//	fmt.Printf("Inputs: %v\n", info.InputNames)
//	fmt.Printf("Outputs: %v\n", info.OutputNames)
func GetModelInfo(path string) (*ModelInfo, error) {
	return internalonnx.GetModelInfo(path)
}
