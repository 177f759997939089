package graph

import (
	"encoding/binary"
	"math"
)

// DataType identifies a tensor element type. The values match the ONNX
// TensorProto data type codes so conversion to the interchange format is a
// plain cast.
type DataType int32

// Tensor element types.
const (
	Undefined DataType = 0
	Float32   DataType = 1
	Uint8     DataType = 2
	Int8      DataType = 3
	Uint16    DataType = 4
	Int16     DataType = 5
	Int32     DataType = 6
	Int64     DataType = 7
	Bool      DataType = 9
	Float16   DataType = 10
	Float64   DataType = 11
)

// Size returns the element size in bytes, or 0 for unknown types.
func (d DataType) Size() int {
	switch d {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Uint16, Int16, Float16:
		return 2
	case Uint8, Int8, Bool:
		return 1
	default:
		return 0
	}
}

// String returns a human-readable type name.
func (d DataType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Int8:
		return "int8"
	case Uint16:
		return "uint16"
	case Int16:
		return "int16"
	case Bool:
		return "bool"
	case Float16:
		return "float16"
	default:
		return "undefined"
	}
}

// DynamicDim marks a dimension whose size is not statically known.
const DynamicDim int64 = -1

// Tensor is a named value slot in a computation graph.
//
// Shape is nil when the rank is unknown; individual entries are DynamicDim
// when only that dimension is unknown. Data holds the little-endian constant
// payload for initializer tensors and is nil for runtime values.
type Tensor struct {
	Name  string
	DType DataType
	Shape []int64
	Data  []byte
}

// IsConstant reports whether the tensor carries a compile-time value.
func (t *Tensor) IsConstant() bool {
	return t != nil && t.Data != nil
}

// HasStaticShape reports whether every dimension of the tensor is known.
func (t *Tensor) HasStaticShape() bool {
	if t == nil || t.Shape == nil {
		return false
	}
	for _, d := range t.Shape {
		if d < 0 {
			return false
		}
	}
	return true
}

// NumElements returns the element count, or -1 when the shape is not static.
func (t *Tensor) NumElements() int64 {
	if !t.HasStaticShape() {
		return -1
	}
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Int64s decodes the constant payload as int64 values.
func (t *Tensor) Int64s() ([]int64, bool) {
	if !t.IsConstant() || t.DType != Int64 || len(t.Data)%8 != 0 {
		return nil, false
	}
	out := make([]int64, len(t.Data)/8)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(t.Data[i*8:])) //nolint:gosec // G115: two's complement round-trip.
	}
	return out, true
}

// Int32s decodes the constant payload as int32 values.
func (t *Tensor) Int32s() ([]int32, bool) {
	if !t.IsConstant() || t.DType != Int32 || len(t.Data)%4 != 0 {
		return nil, false
	}
	out := make([]int32, len(t.Data)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(t.Data[i*4:])) //nolint:gosec // G115: two's complement round-trip.
	}
	return out, true
}

// Float32s decodes the constant payload as float32 values.
func (t *Tensor) Float32s() ([]float32, bool) {
	if !t.IsConstant() || t.DType != Float32 || len(t.Data)%4 != 0 {
		return nil, false
	}
	out := make([]float32, len(t.Data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(t.Data[i*4:]))
	}
	return out, true
}

// SetInt64s stores int64 values as the constant payload.
func (t *Tensor) SetInt64s(shape []int64, vals []int64) {
	t.DType = Int64
	t.Shape = shape
	t.Data = make([]byte, len(vals)*8)
	for i, v := range vals {
		binary.LittleEndian.PutUint64(t.Data[i*8:], uint64(v)) //nolint:gosec // G115: two's complement round-trip.
	}
}

// SetInt32s stores int32 values as the constant payload.
func (t *Tensor) SetInt32s(shape []int64, vals []int32) {
	t.DType = Int32
	t.Shape = shape
	t.Data = make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(t.Data[i*4:], uint32(v)) //nolint:gosec // G115: two's complement round-trip.
	}
}

// SetFloat32s stores float32 values as the constant payload.
func (t *Tensor) SetFloat32s(shape []int64, vals []float32) {
	t.DType = Float32
	t.Shape = shape
	t.Data = make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(t.Data[i*4:], math.Float32bits(v))
	}
}

// ConstantInt64s builds a rank-1 int64 constant tensor.
func ConstantInt64s(name string, vals []int64) *Tensor {
	t := &Tensor{Name: name}
	t.SetInt64s([]int64{int64(len(vals))}, vals)
	return t
}

// ConstantFloat32s builds a float32 constant tensor with the given shape.
func ConstantFloat32s(name string, shape []int64, vals []float32) *Tensor {
	t := &Tensor{Name: name}
	t.SetFloat32s(shape, vals)
	return t
}

// Attribute types, matching the ONNX AttributeProto codes.
const (
	AttrUndefined int32 = 0
	AttrFloat     int32 = 1
	AttrInt       int32 = 2
	AttrString    int32 = 3
	AttrTensor    int32 = 4
	AttrFloats    int32 = 6
	AttrInts      int32 = 7
	AttrStrings   int32 = 8
)

// Attribute is a named operator parameter (e.g. Concat's axis).
type Attribute struct {
	Name    string
	Type    int32
	F       float32
	I       int64
	S       []byte
	T       *Tensor
	Floats  []float32
	Ints    []int64
	Strings [][]byte
}

// Node is a single operation: a named operator consuming and producing
// tensors. Input and output order is significant.
type Node struct {
	Name    string
	Op      string
	Inputs  []*Tensor
	Outputs []*Tensor
	Attrs   []Attribute
}

// AttrInt returns an integer attribute or the default value.
func (n *Node) AttrInt(name string, def int64) int64 {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			return n.Attrs[i].I
		}
	}
	return def
}

// AttrInts returns an integer array attribute, or nil when absent.
func (n *Node) AttrInts(name string) []int64 {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			return n.Attrs[i].Ints
		}
	}
	return nil
}

// AttrFloat returns a float attribute or the default value.
func (n *Node) AttrFloat(name string, def float32) float32 {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			return n.Attrs[i].F
		}
	}
	return def
}

// AttrTensor returns a tensor attribute, or nil when absent.
func (n *Node) AttrTensor(name string) *Tensor {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			return n.Attrs[i].T
		}
	}
	return nil
}

// Graph is a directed acyclic computation graph.
//
// Nodes is the execution order after Toposort. Inputs and Outputs are the
// graph's declared boundary tensors; intermediate tensors are reachable only
// through the nodes that reference them.
type Graph struct {
	Name    string
	Opset   int64
	Nodes   []*Node
	Inputs  []*Tensor
	Outputs []*Tensor
}

// producers maps each tensor to the node that produces it.
func (g *Graph) producers() map[*Tensor]*Node {
	p := make(map[*Tensor]*Node, len(g.Nodes))
	for _, n := range g.Nodes {
		for _, out := range n.Outputs {
			p[out] = n
		}
	}
	return p
}

// Tensors returns every tensor referenced by the graph, keyed by name.
// Boundary tensors are included even when no node references them.
func (g *Graph) Tensors() map[string]*Tensor {
	seen := make(map[string]*Tensor)
	add := func(t *Tensor) {
		if t != nil && t.Name != "" {
			seen[t.Name] = t
		}
	}
	for _, t := range g.Inputs {
		add(t)
	}
	for _, t := range g.Outputs {
		add(t)
	}
	for _, n := range g.Nodes {
		for _, t := range n.Inputs {
			add(t)
		}
		for _, t := range n.Outputs {
			add(t)
		}
	}
	return seen
}
