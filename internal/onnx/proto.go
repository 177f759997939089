package onnx

// Hand-written ONNX protobuf structures, trimmed to the subset the surgery
// layer needs. Field numbers live in the codec (parser.go / writer.go).

// ModelProto is the top-level ONNX model.
type ModelProto struct {
	IRVersion       int64
	OpsetImport     []OperatorSetID
	ProducerName    string
	ProducerVersion string
	Domain          string
	ModelVersion    int64
	Graph           *GraphProto
}

// GraphProto is the serialized computation graph.
type GraphProto struct {
	Name         string
	Nodes        []NodeProto
	Inputs       []ValueInfoProto
	Outputs      []ValueInfoProto
	Initializers []TensorProto    // Constant weight tensors
	ValueInfo    []ValueInfoProto // Shape annotations for intermediate tensors
}

// NodeProto is a single operation referencing tensors by name.
type NodeProto struct {
	Name       string
	OpType     string
	Inputs     []string
	Outputs    []string
	Attributes []AttributeProto
	Domain     string
}

// TensorProto is a constant tensor. RawData is the common encoding; the
// typed fields are the legacy per-type encodings.
type TensorProto struct {
	Name      string
	DataType  int32
	Dims      []int64
	RawData   []byte
	FloatData []float32
	Int32Data []int32
	Int64Data []int64
}

// ValueInfoProto declares a tensor's type information.
type ValueInfoProto struct {
	Name string
	Type *TypeProto
}

// TypeProto wraps the tensor type (the only type kind handled here).
type TypeProto struct {
	TensorType *TensorTypeProto
}

// TensorTypeProto holds element type and shape.
type TensorTypeProto struct {
	ElemType int32
	Shape    *TensorShapeProto
}

// TensorShapeProto is an ordered list of dimensions.
type TensorShapeProto struct {
	Dims []DimensionProto
}

// DimensionProto is one dimension: a static value or a symbolic parameter.
type DimensionProto struct {
	DimValue int64
	DimParam string
}

// AttributeProto is a node attribute.
type AttributeProto struct {
	Name    string
	Type    int32
	F       float32
	I       int64
	S       []byte
	T       *TensorProto
	Floats  []float32
	Ints    []int64
	Strings [][]byte
}

// OperatorSetID pins an operator domain to an opset version.
type OperatorSetID struct {
	Domain  string
	Version int64
}

// ONNX data types (TensorProto.DataType).
const (
	TensorProtoUndefined = 0
	TensorProtoFloat     = 1  // float32
	TensorProtoUint8     = 2  // uint8
	TensorProtoInt8      = 3  // int8
	TensorProtoUint16    = 4  // uint16
	TensorProtoInt16     = 5  // int16
	TensorProtoInt32     = 6  // int32
	TensorProtoInt64     = 7  // int64
	TensorProtoString    = 8  // string
	TensorProtoBool      = 9  // bool
	TensorProtoFloat16   = 10 // float16
	TensorProtoDouble    = 11 // float64
	TensorProtoUint32    = 12 // uint32
	TensorProtoUint64    = 13 // uint64
)

// ONNX attribute types (AttributeProto.Type).
const (
	AttributeProtoUndefined = 0
	AttributeProtoFloat     = 1
	AttributeProtoInt       = 2
	AttributeProtoString    = 3
	AttributeProtoTensor    = 4
	AttributeProtoGraph     = 5
	AttributeProtoFloats    = 6
	AttributeProtoInts      = 7
	AttributeProtoStrings   = 8
)
