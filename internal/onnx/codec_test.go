package onnx

import (
	"bytes"
	"testing"
)

// buildAddModel builds a minimal model: Z = X + Y with an int64 initializer.
func buildAddModel() *ModelProto {
	dims := func(ds ...int64) *TensorShapeProto {
		s := &TensorShapeProto{}
		for _, d := range ds {
			s.Dims = append(s.Dims, DimensionProto{DimValue: d})
		}
		return s
	}
	vi := func(name string, elem int32, shape *TensorShapeProto) ValueInfoProto {
		return ValueInfoProto{
			Name: name,
			Type: &TypeProto{TensorType: &TensorTypeProto{ElemType: elem, Shape: shape}},
		}
	}

	return &ModelProto{
		IRVersion:       8,
		ProducerName:    "surgeon",
		ProducerVersion: "0.1.0",
		OpsetImport:     []OperatorSetID{{Domain: "", Version: 13}},
		Graph: &GraphProto{
			Name: "add_graph",
			Nodes: []NodeProto{
				{
					Name:    "add0",
					OpType:  "Add",
					Inputs:  []string{"X", "Y"},
					Outputs: []string{"Z"},
				},
			},
			Inputs:  []ValueInfoProto{vi("X", TensorProtoFloat, dims(1, 3)), vi("Y", TensorProtoFloat, dims(1, 3))},
			Outputs: []ValueInfoProto{vi("Z", TensorProtoFloat, dims(1, 3))},
			Initializers: []TensorProto{
				{Name: "W", DataType: TensorProtoInt64, Dims: []int64{2}, RawData: []byte{2, 0, 0, 0, 0, 0, 0, 0, 3, 0, 0, 0, 0, 0, 0, 0}},
			},
		},
	}
}

// TestRoundTripAddModel verifies Serialize/Parse reproduce the model.
func TestRoundTripAddModel(t *testing.T) {
	data := Serialize(buildAddModel())

	model, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if model.IRVersion != 8 {
		t.Errorf("Expected IR version 8, got %d", model.IRVersion)
	}
	if model.ProducerName != "surgeon" {
		t.Errorf("Expected producer 'surgeon', got %q", model.ProducerName)
	}
	if len(model.OpsetImport) != 1 || model.OpsetImport[0].Version != 13 {
		t.Errorf("Expected opset 13, got %+v", model.OpsetImport)
	}

	if model.Graph == nil {
		t.Fatal("Graph is nil")
	}
	if model.Graph.Name != "add_graph" {
		t.Errorf("Expected graph name 'add_graph', got %q", model.Graph.Name)
	}
	if len(model.Graph.Nodes) != 1 {
		t.Fatalf("Expected 1 node, got %d", len(model.Graph.Nodes))
	}

	node := model.Graph.Nodes[0]
	if node.OpType != "Add" {
		t.Errorf("Expected OpType 'Add', got %q", node.OpType)
	}
	if len(node.Inputs) != 2 || node.Inputs[0] != "X" || node.Inputs[1] != "Y" {
		t.Errorf("Unexpected inputs: %v", node.Inputs)
	}
	if len(node.Outputs) != 1 || node.Outputs[0] != "Z" {
		t.Errorf("Unexpected outputs: %v", node.Outputs)
	}

	if len(model.Graph.Initializers) != 1 {
		t.Fatalf("Expected 1 initializer, got %d", len(model.Graph.Initializers))
	}
	init := model.Graph.Initializers[0]
	if init.Name != "W" || init.DataType != TensorProtoInt64 {
		t.Errorf("Unexpected initializer: %+v", init)
	}
	if len(init.Dims) != 1 || init.Dims[0] != 2 {
		t.Errorf("Expected dims [2], got %v", init.Dims)
	}
	if !bytes.Equal(init.RawData, buildAddModel().Graph.Initializers[0].RawData) {
		t.Error("Raw data did not round-trip")
	}
}

// TestRoundTripValueInfoShapes verifies dim_value and dim_param handling.
func TestRoundTripValueInfoShapes(t *testing.T) {
	m := buildAddModel()
	m.Graph.Inputs[0].Type.TensorType.Shape.Dims[0] = DimensionProto{DimParam: "batch"}

	model, err := Parse(Serialize(m))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	in := model.Graph.Inputs[0]
	if in.Name != "X" {
		t.Fatalf("Expected input 'X', got %q", in.Name)
	}
	shape := in.Type.TensorType.Shape
	if len(shape.Dims) != 2 {
		t.Fatalf("Expected 2 dims, got %d", len(shape.Dims))
	}
	if shape.Dims[0].DimParam != "batch" {
		t.Errorf("Expected dim_param 'batch', got %q", shape.Dims[0].DimParam)
	}
	if shape.Dims[1].DimValue != 3 {
		t.Errorf("Expected dim_value 3, got %d", shape.Dims[1].DimValue)
	}
}

// TestRoundTripAttributes verifies attribute encoding, including negative
// ints (ten-byte varints on the wire).
func TestRoundTripAttributes(t *testing.T) {
	m := buildAddModel()
	m.Graph.Nodes[0].Attributes = []AttributeProto{
		{Name: "axis", Type: AttributeProtoInt, I: -1},
		{Name: "alpha", Type: AttributeProtoFloat, F: 0.5},
		{Name: "mode", Type: AttributeProtoString, S: []byte("constant")},
		{Name: "axes", Type: AttributeProtoInts, Ints: []int64{0, -2, 4}},
		{Name: "value", Type: AttributeProtoTensor, T: &TensorProto{
			Name:     "v",
			DataType: TensorProtoInt64,
			Dims:     []int64{1},
			RawData:  []byte{7, 0, 0, 0, 0, 0, 0, 0},
		}},
	}

	model, err := Parse(Serialize(m))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	attrs := model.Graph.Nodes[0].Attributes
	if len(attrs) != 5 {
		t.Fatalf("Expected 5 attributes, got %d", len(attrs))
	}
	if attrs[0].Name != "axis" || attrs[0].I != -1 {
		t.Errorf("axis attribute did not round-trip: %+v", attrs[0])
	}
	if attrs[1].F != 0.5 {
		t.Errorf("Expected alpha 0.5, got %f", attrs[1].F)
	}
	if string(attrs[2].S) != "constant" {
		t.Errorf("Expected mode 'constant', got %q", attrs[2].S)
	}
	if len(attrs[3].Ints) != 3 || attrs[3].Ints[1] != -2 {
		t.Errorf("ints attribute did not round-trip: %v", attrs[3].Ints)
	}
	if attrs[4].T == nil || attrs[4].T.Name != "v" || attrs[4].T.DataType != TensorProtoInt64 {
		t.Errorf("tensor attribute did not round-trip: %+v", attrs[4].T)
	}
}

// TestParseTruncated verifies graceful failure on truncated input.
func TestParseTruncated(t *testing.T) {
	data := Serialize(buildAddModel())
	if _, err := Parse(data[:len(data)/2]); err == nil {
		t.Error("Expected error for truncated input")
	}
}

// TestParseEmpty verifies an empty buffer parses to an empty model.
func TestParseEmpty(t *testing.T) {
	model, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if model.Graph != nil {
		t.Error("Expected nil graph for empty input")
	}
}
