package onnx

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// ParseFile parses an ONNX model from file.
//
//nolint:gosec // G304: Path is provided by the caller, file inclusion is intentional.
func ParseFile(path string) (*ModelProto, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data)
}

// Parse parses an ONNX model from protobuf wire-format bytes.
func Parse(data []byte) (*ModelProto, error) {
	m, err := parseModel(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	return m, nil
}

// Protobuf wire types.
const (
	wireVarint = 0 // int32, int64, bool, enum
	wire64Bit  = 1 // fixed64, double
	wireBytes  = 2 // string, bytes, embedded messages, packed repeated fields
	wire32Bit  = 5 // fixed32, float
)

// decoder is a minimal protobuf wire-format reader over a byte slice.
type decoder struct {
	data []byte
	pos  int
}

func parseModel(data []byte) (*ModelProto, error) {
	m := &ModelProto{}
	d := &decoder{data: data}
	for {
		field, wire, err := d.tag()
		if errors.Is(err, io.EOF) {
			return m, nil
		}
		if err != nil {
			return nil, err
		}
		switch field {
		case 1: // ir_version
			m.IRVersion, err = d.varint()
		case 2: // producer_name
			m.ProducerName, err = d.str()
		case 3: // producer_version
			m.ProducerVersion, err = d.str()
		case 4: // domain
			m.Domain, err = d.str()
		case 5: // model_version
			m.ModelVersion, err = d.varint()
		case 7: // graph
			var sub []byte
			if sub, err = d.bytes(); err == nil {
				m.Graph, err = parseGraph(sub)
			}
		case 8: // opset_import
			var sub []byte
			if sub, err = d.bytes(); err == nil {
				var opset OperatorSetID
				if opset, err = parseOperatorSetID(sub); err == nil {
					m.OpsetImport = append(m.OpsetImport, opset)
				}
			}
		default:
			err = d.skip(wire)
		}
		if err != nil {
			return nil, err
		}
	}
}

func parseGraph(data []byte) (*GraphProto, error) {
	g := &GraphProto{}
	d := &decoder{data: data}
	for {
		field, wire, err := d.tag()
		if errors.Is(err, io.EOF) {
			return g, nil
		}
		if err != nil {
			return nil, err
		}
		switch field {
		case 1: // node
			var sub []byte
			if sub, err = d.bytes(); err == nil {
				var node NodeProto
				if node, err = parseNode(sub); err == nil {
					g.Nodes = append(g.Nodes, node)
				}
			}
		case 2: // name
			g.Name, err = d.str()
		case 5: // initializer
			var sub []byte
			if sub, err = d.bytes(); err == nil {
				var t TensorProto
				if t, err = parseTensor(sub); err == nil {
					g.Initializers = append(g.Initializers, t)
				}
			}
		case 11: // input
			err = d.appendValueInfo(&g.Inputs)
		case 12: // output
			err = d.appendValueInfo(&g.Outputs)
		case 13: // value_info
			err = d.appendValueInfo(&g.ValueInfo)
		default:
			err = d.skip(wire)
		}
		if err != nil {
			return nil, err
		}
	}
}

func (d *decoder) appendValueInfo(dst *[]ValueInfoProto) error {
	sub, err := d.bytes()
	if err != nil {
		return err
	}
	vi, err := parseValueInfo(sub)
	if err != nil {
		return err
	}
	*dst = append(*dst, vi)
	return nil
}

func parseNode(data []byte) (NodeProto, error) {
	var n NodeProto
	d := &decoder{data: data}
	for {
		field, wire, err := d.tag()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		switch field {
		case 1: // input
			var s string
			if s, err = d.str(); err == nil {
				n.Inputs = append(n.Inputs, s)
			}
		case 2: // output
			var s string
			if s, err = d.str(); err == nil {
				n.Outputs = append(n.Outputs, s)
			}
		case 3: // name
			n.Name, err = d.str()
		case 4: // op_type
			n.OpType, err = d.str()
		case 5: // attribute
			var sub []byte
			if sub, err = d.bytes(); err == nil {
				var attr AttributeProto
				if attr, err = parseAttribute(sub); err == nil {
					n.Attributes = append(n.Attributes, attr)
				}
			}
		case 7: // domain
			n.Domain, err = d.str()
		default:
			err = d.skip(wire)
		}
		if err != nil {
			return n, err
		}
	}
}

//nolint:gocognit // Protobuf parsing requires field-by-field switch logic.
func parseTensor(data []byte) (TensorProto, error) {
	var t TensorProto
	d := &decoder{data: data}
	for {
		field, wire, err := d.tag()
		if errors.Is(err, io.EOF) {
			return t, nil
		}
		if err != nil {
			return t, err
		}
		switch field {
		case 1: // dims (repeated int64, possibly packed)
			if wire == wireBytes {
				err = d.packedVarints(&t.Dims)
			} else {
				var v int64
				if v, err = d.varint(); err == nil {
					t.Dims = append(t.Dims, v)
				}
			}
		case 2: // data_type
			t.DataType, err = d.int32()
		case 4: // float_data (packed)
			var sub []byte
			if sub, err = d.bytes(); err == nil {
				for i := 0; i+4 <= len(sub); i += 4 {
					bits := binary.LittleEndian.Uint32(sub[i:])
					t.FloatData = append(t.FloatData, math.Float32frombits(bits))
				}
			}
		case 5: // int32_data (packed)
			var vals []int64
			if err = d.packedVarints(&vals); err == nil {
				for _, v := range vals {
					t.Int32Data = append(t.Int32Data, int32(v)) //nolint:gosec // G115: ONNX varint fits in int32.
				}
			}
		case 7: // int64_data (packed)
			err = d.packedVarints(&t.Int64Data)
		case 8: // name
			t.Name, err = d.str()
		case 9: // raw_data
			t.RawData, err = d.bytes()
		default:
			err = d.skip(wire)
		}
		if err != nil {
			return t, err
		}
	}
}

func parseValueInfo(data []byte) (ValueInfoProto, error) {
	var vi ValueInfoProto
	d := &decoder{data: data}
	for {
		field, wire, err := d.tag()
		if errors.Is(err, io.EOF) {
			return vi, nil
		}
		if err != nil {
			return vi, err
		}
		switch field {
		case 1: // name
			vi.Name, err = d.str()
		case 2: // type
			var sub []byte
			if sub, err = d.bytes(); err == nil {
				vi.Type, err = parseType(sub)
			}
		default:
			err = d.skip(wire)
		}
		if err != nil {
			return vi, err
		}
	}
}

func parseType(data []byte) (*TypeProto, error) {
	t := &TypeProto{}
	d := &decoder{data: data}
	for {
		field, wire, err := d.tag()
		if errors.Is(err, io.EOF) {
			return t, nil
		}
		if err != nil {
			return nil, err
		}
		if field == 1 { // tensor_type
			sub, err2 := d.bytes()
			if err2 != nil {
				return nil, err2
			}
			if t.TensorType, err2 = parseTensorType(sub); err2 != nil {
				return nil, err2
			}
			continue
		}
		if err := d.skip(wire); err != nil {
			return nil, err
		}
	}
}

func parseTensorType(data []byte) (*TensorTypeProto, error) {
	t := &TensorTypeProto{}
	d := &decoder{data: data}
	for {
		field, wire, err := d.tag()
		if errors.Is(err, io.EOF) {
			return t, nil
		}
		if err != nil {
			return nil, err
		}
		switch field {
		case 1: // elem_type
			t.ElemType, err = d.int32()
		case 2: // shape
			var sub []byte
			if sub, err = d.bytes(); err == nil {
				t.Shape, err = parseTensorShape(sub)
			}
		default:
			err = d.skip(wire)
		}
		if err != nil {
			return nil, err
		}
	}
}

func parseTensorShape(data []byte) (*TensorShapeProto, error) {
	s := &TensorShapeProto{}
	d := &decoder{data: data}
	for {
		field, wire, err := d.tag()
		if errors.Is(err, io.EOF) {
			return s, nil
		}
		if err != nil {
			return nil, err
		}
		if field == 1 { // dim
			sub, err2 := d.bytes()
			if err2 != nil {
				return nil, err2
			}
			dim, err2 := parseDimension(sub)
			if err2 != nil {
				return nil, err2
			}
			s.Dims = append(s.Dims, dim)
			continue
		}
		if err := d.skip(wire); err != nil {
			return nil, err
		}
	}
}

func parseDimension(data []byte) (DimensionProto, error) {
	var dim DimensionProto
	d := &decoder{data: data}
	for {
		field, wire, err := d.tag()
		if errors.Is(err, io.EOF) {
			return dim, nil
		}
		if err != nil {
			return dim, err
		}
		switch field {
		case 1: // dim_value
			dim.DimValue, err = d.varint()
		case 2: // dim_param
			dim.DimParam, err = d.str()
		default:
			err = d.skip(wire)
		}
		if err != nil {
			return dim, err
		}
	}
}

//nolint:gocognit // Protobuf parsing requires field-by-field switch logic.
func parseAttribute(data []byte) (AttributeProto, error) {
	var a AttributeProto
	d := &decoder{data: data}
	for {
		field, wire, err := d.tag()
		if errors.Is(err, io.EOF) {
			return a, nil
		}
		if err != nil {
			return a, err
		}
		switch field {
		case 1: // name
			a.Name, err = d.str()
		case 2: // f
			a.F, err = d.float32()
		case 3: // i
			a.I, err = d.varint()
		case 4: // s
			a.S, err = d.bytes()
		case 5: // t
			var sub []byte
			if sub, err = d.bytes(); err == nil {
				var t TensorProto
				if t, err = parseTensor(sub); err == nil {
					a.T = &t
				}
			}
		case 6: // floats (packed)
			var sub []byte
			if sub, err = d.bytes(); err == nil {
				for i := 0; i+4 <= len(sub); i += 4 {
					bits := binary.LittleEndian.Uint32(sub[i:])
					a.Floats = append(a.Floats, math.Float32frombits(bits))
				}
			}
		case 7: // ints (packed)
			err = d.packedVarints(&a.Ints)
		case 8: // strings
			var sub []byte
			if sub, err = d.bytes(); err == nil {
				a.Strings = append(a.Strings, sub)
			}
		case 20: // type
			a.Type, err = d.int32()
		default:
			err = d.skip(wire)
		}
		if err != nil {
			return a, err
		}
	}
}

func parseOperatorSetID(data []byte) (OperatorSetID, error) {
	var o OperatorSetID
	d := &decoder{data: data}
	for {
		field, wire, err := d.tag()
		if errors.Is(err, io.EOF) {
			return o, nil
		}
		if err != nil {
			return o, err
		}
		switch field {
		case 1: // domain
			o.Domain, err = d.str()
		case 2: // version
			o.Version, err = d.varint()
		default:
			err = d.skip(wire)
		}
		if err != nil {
			return o, err
		}
	}
}

// tag reads a field tag, returning io.EOF at end of message.
func (d *decoder) tag() (field, wire int, err error) {
	if d.pos >= len(d.data) {
		return 0, 0, io.EOF
	}
	v, err := d.varint()
	if err != nil {
		return 0, 0, err
	}
	return int(v >> 3), int(v & 0x7), nil
}

// varint reads a varint-encoded int64.
func (d *decoder) varint() (int64, error) {
	var result uint64
	var shift uint
	for {
		if d.pos >= len(d.data) {
			return 0, io.ErrUnexpectedEOF
		}
		b := d.data[d.pos]
		d.pos++
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift >= 64 {
			return 0, errors.New("varint overflow")
		}
	}
	return int64(result), nil //nolint:gosec // G115: two's complement round-trip.
}

func (d *decoder) int32() (int32, error) {
	v, err := d.varint()
	if err != nil {
		return 0, err
	}
	return int32(v), nil //nolint:gosec // G115: ONNX varint fits in int32.
}

// bytes reads a length-delimited byte slice.
func (d *decoder) bytes() ([]byte, error) {
	length, err := d.varint()
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, errors.New("negative length")
	}
	end := d.pos + int(length)
	if end > len(d.data) {
		return nil, io.ErrUnexpectedEOF
	}
	result := d.data[d.pos:end]
	d.pos = end
	return result, nil
}

func (d *decoder) str() (string, error) {
	b, err := d.bytes()
	return string(b), err
}

func (d *decoder) float32() (float32, error) {
	if d.pos+4 > len(d.data) {
		return 0, io.ErrUnexpectedEOF
	}
	bits := binary.LittleEndian.Uint32(d.data[d.pos:])
	d.pos += 4
	return math.Float32frombits(bits), nil
}

// packedVarints reads a packed repeated varint field.
func (d *decoder) packedVarints(dst *[]int64) error {
	data, err := d.bytes()
	if err != nil {
		return err
	}
	sub := &decoder{data: data}
	for sub.pos < len(sub.data) {
		v, err := sub.varint()
		if err != nil {
			return err
		}
		*dst = append(*dst, v)
	}
	return nil
}

// skip discards a field based on wire type.
func (d *decoder) skip(wire int) error {
	switch wire {
	case wireVarint:
		_, err := d.varint()
		return err
	case wire64Bit:
		if d.pos+8 > len(d.data) {
			return io.ErrUnexpectedEOF
		}
		d.pos += 8
		return nil
	case wireBytes:
		_, err := d.bytes()
		return err
	case wire32Bit:
		if d.pos+4 > len(d.data) {
			return io.ErrUnexpectedEOF
		}
		d.pos += 4
		return nil
	default:
		return fmt.Errorf("unknown wire type: %d", wire)
	}
}
