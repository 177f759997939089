package onnx

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// WriteFile serializes an ONNX model to a file.
func WriteFile(path string, m *ModelProto) error {
	if err := os.WriteFile(path, Serialize(m), 0o644); err != nil { //nolint:gosec // G306: model files are not secrets.
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Serialize encodes an ONNX model to protobuf wire-format bytes. It is the
// inverse of Parse: Parse(Serialize(m)) reproduces m for the fields this
// package models.
func Serialize(m *ModelProto) []byte {
	e := &encoder{}
	e.varintField(1, m.IRVersion)
	e.stringField(2, m.ProducerName)
	e.stringField(3, m.ProducerVersion)
	e.stringField(4, m.Domain)
	e.varintField(5, m.ModelVersion)
	if m.Graph != nil {
		e.msgField(7, encodeGraph(m.Graph))
	}
	for i := range m.OpsetImport {
		e.msgField(8, encodeOperatorSetID(&m.OpsetImport[i]))
	}
	return e.buf
}

func encodeGraph(g *GraphProto) []byte {
	e := &encoder{}
	for i := range g.Nodes {
		e.msgField(1, encodeNode(&g.Nodes[i]))
	}
	e.stringField(2, g.Name)
	for i := range g.Initializers {
		e.msgField(5, encodeTensor(&g.Initializers[i]))
	}
	for i := range g.Inputs {
		e.msgField(11, encodeValueInfo(&g.Inputs[i]))
	}
	for i := range g.Outputs {
		e.msgField(12, encodeValueInfo(&g.Outputs[i]))
	}
	for i := range g.ValueInfo {
		e.msgField(13, encodeValueInfo(&g.ValueInfo[i]))
	}
	return e.buf
}

func encodeNode(n *NodeProto) []byte {
	e := &encoder{}
	for _, in := range n.Inputs {
		// Empty strings mark absent optional inputs and must keep their slot.
		e.tag(1, wireBytes)
		e.rawBytes([]byte(in))
	}
	for _, out := range n.Outputs {
		e.tag(2, wireBytes)
		e.rawBytes([]byte(out))
	}
	e.stringField(3, n.Name)
	e.stringField(4, n.OpType)
	for i := range n.Attributes {
		e.msgField(5, encodeAttribute(&n.Attributes[i]))
	}
	e.stringField(7, n.Domain)
	return e.buf
}

func encodeTensor(t *TensorProto) []byte {
	e := &encoder{}
	if len(t.Dims) > 0 {
		e.packedVarints(1, t.Dims)
	}
	e.varintField(2, int64(t.DataType))
	if len(t.FloatData) > 0 {
		e.packedFloats(4, t.FloatData)
	}
	if len(t.Int32Data) > 0 {
		ints := make([]int64, len(t.Int32Data))
		for i, v := range t.Int32Data {
			ints[i] = int64(v)
		}
		e.packedVarints(5, ints)
	}
	if len(t.Int64Data) > 0 {
		e.packedVarints(7, t.Int64Data)
	}
	e.stringField(8, t.Name)
	if len(t.RawData) > 0 {
		e.tag(9, wireBytes)
		e.rawBytes(t.RawData)
	}
	return e.buf
}

func encodeValueInfo(vi *ValueInfoProto) []byte {
	e := &encoder{}
	e.stringField(1, vi.Name)
	if vi.Type != nil && vi.Type.TensorType != nil {
		sub := &encoder{}
		sub.msgField(1, encodeTensorType(vi.Type.TensorType))
		e.msgField(2, sub.buf)
	}
	return e.buf
}

func encodeTensorType(t *TensorTypeProto) []byte {
	e := &encoder{}
	e.varintField(1, int64(t.ElemType))
	if t.Shape != nil {
		sub := &encoder{}
		for i := range t.Shape.Dims {
			sub.msgField(1, encodeDimension(&t.Shape.Dims[i]))
		}
		e.msgField(2, sub.buf)
	}
	return e.buf
}

func encodeDimension(d *DimensionProto) []byte {
	e := &encoder{}
	if d.DimParam != "" {
		e.stringField(2, d.DimParam)
	} else {
		e.varintField(1, d.DimValue)
	}
	return e.buf
}

func encodeAttribute(a *AttributeProto) []byte {
	e := &encoder{}
	e.stringField(1, a.Name)
	switch a.Type {
	case AttributeProtoFloat:
		e.tag(2, wire32Bit)
		e.fixed32(math.Float32bits(a.F))
	case AttributeProtoInt:
		// Always emitted so that i = 0 round-trips.
		e.tag(3, wireVarint)
		e.uvarint(uint64(a.I)) //nolint:gosec // G115: two's complement round-trip.
	case AttributeProtoString:
		e.tag(4, wireBytes)
		e.rawBytes(a.S)
	case AttributeProtoTensor:
		if a.T != nil {
			e.msgField(5, encodeTensor(a.T))
		}
	case AttributeProtoFloats:
		e.packedFloats(6, a.Floats)
	case AttributeProtoInts:
		e.packedVarints(7, a.Ints)
	case AttributeProtoStrings:
		for _, s := range a.Strings {
			e.tag(8, wireBytes)
			e.rawBytes(s)
		}
	}
	e.varintField(20, int64(a.Type))
	return e.buf
}

func encodeOperatorSetID(o *OperatorSetID) []byte {
	e := &encoder{}
	e.stringField(1, o.Domain)
	e.varintField(2, o.Version)
	return e.buf
}

// encoder is a minimal protobuf wire-format writer.
type encoder struct {
	buf []byte
}

func (e *encoder) uvarint(v uint64) {
	for v >= 0x80 {
		e.buf = append(e.buf, byte(v)|0x80)
		v >>= 7
	}
	e.buf = append(e.buf, byte(v))
}

func (e *encoder) tag(field, wire int) {
	e.uvarint(uint64(field)<<3 | uint64(wire)) //nolint:gosec // G115: field numbers are small positives.
}

func (e *encoder) fixed32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

func (e *encoder) rawBytes(b []byte) {
	e.uvarint(uint64(len(b)))
	e.buf = append(e.buf, b...)
}

// varintField emits a varint field, omitting the proto3 zero default.
func (e *encoder) varintField(field int, v int64) {
	if v == 0 {
		return
	}
	e.tag(field, wireVarint)
	e.uvarint(uint64(v)) //nolint:gosec // G115: two's complement round-trip.
}

// stringField emits a string field, omitting the empty default.
func (e *encoder) stringField(field int, s string) {
	if s == "" {
		return
	}
	e.tag(field, wireBytes)
	e.rawBytes([]byte(s))
}

// msgField emits an embedded message field.
func (e *encoder) msgField(field int, body []byte) {
	e.tag(field, wireBytes)
	e.rawBytes(body)
}

// packedVarints emits a packed repeated varint field.
func (e *encoder) packedVarints(field int, vals []int64) {
	if len(vals) == 0 {
		return
	}
	sub := &encoder{}
	for _, v := range vals {
		sub.uvarint(uint64(v)) //nolint:gosec // G115: two's complement round-trip.
	}
	e.msgField(field, sub.buf)
}

// packedFloats emits a packed repeated float field.
func (e *encoder) packedFloats(field int, vals []float32) {
	if len(vals) == 0 {
		return
	}
	sub := &encoder{}
	for _, v := range vals {
		sub.fixed32(math.Float32bits(v))
	}
	e.msgField(field, sub.buf)
}
