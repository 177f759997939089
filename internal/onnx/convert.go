package onnx

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/born-ml/surgeon/internal/graph"
)

// Producer metadata stamped onto exported models.
const (
	producerName    = "surgeon"
	producerVersion = "0.1.0"
)

// Default versions for exported models when the source graph carries none.
const (
	defaultIRVersion = 8
	defaultOpset     = 13
)

// Import converts a parsed ONNX model into an in-memory graph. Tensors are
// deduplicated by name so that nodes share value slots; initializers become
// constant tensors; shape annotations from inputs, outputs and value_info
// are applied where present.
func Import(m *ModelProto) (*graph.Graph, error) {
	if m.Graph == nil {
		return nil, fmt.Errorf("model has no graph")
	}
	gp := m.Graph

	g := &graph.Graph{Name: gp.Name}
	for _, opset := range m.OpsetImport {
		if opset.Domain == "" || opset.Domain == "ai.onnx" {
			g.Opset = opset.Version
			break
		}
	}

	tensors := make(map[string]*graph.Tensor)
	lookup := func(name string) *graph.Tensor {
		if t, ok := tensors[name]; ok {
			return t
		}
		t := &graph.Tensor{Name: name}
		tensors[name] = t
		return t
	}

	// Initializers carry constant payloads.
	initNames := make(map[string]bool, len(gp.Initializers))
	for i := range gp.Initializers {
		tp := &gp.Initializers[i]
		t := lookup(tp.Name)
		if err := applyTensorProto(t, tp); err != nil {
			return nil, fmt.Errorf("initializer %s: %w", tp.Name, err)
		}
		initNames[tp.Name] = true
	}

	// Shape annotations, in increasing priority: value_info, then the
	// declared boundary tensors.
	for _, vi := range gp.ValueInfo {
		applyValueInfo(lookup(vi.Name), &vi)
	}
	for i := range gp.Inputs {
		vi := &gp.Inputs[i]
		t := lookup(vi.Name)
		applyValueInfo(t, vi)
		// Graph inputs exclude initializers; some exporters list weights
		// in both places.
		if !initNames[vi.Name] {
			g.Inputs = append(g.Inputs, t)
		}
	}
	for i := range gp.Outputs {
		vi := &gp.Outputs[i]
		t := lookup(vi.Name)
		applyValueInfo(t, vi)
		g.Outputs = append(g.Outputs, t)
	}

	for i := range gp.Nodes {
		np := &gp.Nodes[i]
		n := &graph.Node{Name: np.Name, Op: np.OpType}
		for _, name := range np.Inputs {
			n.Inputs = append(n.Inputs, lookup(name))
		}
		for _, name := range np.Outputs {
			n.Outputs = append(n.Outputs, lookup(name))
		}
		for j := range np.Attributes {
			attr, err := importAttribute(&np.Attributes[j])
			if err != nil {
				return nil, fmt.Errorf("node %s: %w", np.Name, err)
			}
			n.Attrs = append(n.Attrs, attr)
		}
		g.Nodes = append(g.Nodes, n)
	}

	return g, nil
}

// Export converts an in-memory graph back to the ONNX wire model. Constant
// tensors that are not declared inputs become initializers; intermediate
// tensors with known type information are emitted as value_info.
func Export(g *graph.Graph) *ModelProto {
	opset := g.Opset
	if opset == 0 {
		opset = defaultOpset
	}
	gp := &GraphProto{Name: g.Name}

	boundary := make(map[*graph.Tensor]bool, len(g.Inputs)+len(g.Outputs))
	for _, t := range g.Inputs {
		boundary[t] = true
		gp.Inputs = append(gp.Inputs, exportValueInfo(t))
	}
	for _, t := range g.Outputs {
		boundary[t] = true
		gp.Outputs = append(gp.Outputs, exportValueInfo(t))
	}

	seen := make(map[*graph.Tensor]bool)
	intermediate := func(t *graph.Tensor) {
		if t == nil || seen[t] || boundary[t] {
			return
		}
		seen[t] = true
		if t.IsConstant() {
			gp.Initializers = append(gp.Initializers, exportTensor(t))
			return
		}
		if t.Name != "" && (t.DType != graph.Undefined || t.Shape != nil) {
			gp.ValueInfo = append(gp.ValueInfo, exportValueInfo(t))
		}
	}

	for _, n := range g.Nodes {
		np := NodeProto{Name: n.Name, OpType: n.Op}
		for _, t := range n.Inputs {
			np.Inputs = append(np.Inputs, t.Name)
			intermediate(t)
		}
		for _, t := range n.Outputs {
			np.Outputs = append(np.Outputs, t.Name)
			intermediate(t)
		}
		for i := range n.Attrs {
			np.Attributes = append(np.Attributes, exportAttribute(&n.Attrs[i]))
		}
		gp.Nodes = append(gp.Nodes, np)
	}

	// A folded graph can leave its declared outputs constant.
	for _, t := range g.Outputs {
		if t.IsConstant() && !seen[t] {
			seen[t] = true
			gp.Initializers = append(gp.Initializers, exportTensor(t))
		}
	}

	return &ModelProto{
		IRVersion:       defaultIRVersion,
		ProducerName:    producerName,
		ProducerVersion: producerVersion,
		OpsetImport:     []OperatorSetID{{Domain: "", Version: opset}},
		Graph:           gp,
	}
}

// applyTensorProto fills a graph tensor from a serialized constant,
// normalizing the legacy typed payloads into raw little-endian bytes.
func applyTensorProto(t *graph.Tensor, tp *TensorProto) error {
	t.DType = graph.DataType(tp.DataType)
	t.Shape = append([]int64(nil), tp.Dims...)

	switch {
	case len(tp.RawData) > 0:
		t.Data = append([]byte(nil), tp.RawData...)
	case len(tp.FloatData) > 0:
		t.Data = make([]byte, len(tp.FloatData)*4)
		for i, v := range tp.FloatData {
			binary.LittleEndian.PutUint32(t.Data[i*4:], math.Float32bits(v))
		}
	case len(tp.Int64Data) > 0:
		t.Data = make([]byte, len(tp.Int64Data)*8)
		for i, v := range tp.Int64Data {
			binary.LittleEndian.PutUint64(t.Data[i*8:], uint64(v)) //nolint:gosec // G115: two's complement round-trip.
		}
	case len(tp.Int32Data) > 0:
		t.Data = make([]byte, len(tp.Int32Data)*4)
		for i, v := range tp.Int32Data {
			binary.LittleEndian.PutUint32(t.Data[i*4:], uint32(v)) //nolint:gosec // G115: two's complement round-trip.
		}
	default:
		// Zero-element tensors are legal.
		t.Data = []byte{}
	}

	if esz := t.DType.Size(); esz > 0 && t.HasStaticShape() {
		if want := t.NumElements() * int64(esz); int64(len(t.Data)) != want {
			return fmt.Errorf("payload is %d bytes, shape %v wants %d", len(t.Data), t.Shape, want)
		}
	}
	return nil
}

// applyValueInfo copies dtype and shape annotations onto a tensor without
// overwriting information it already carries.
func applyValueInfo(t *graph.Tensor, vi *ValueInfoProto) {
	if vi.Type == nil || vi.Type.TensorType == nil {
		return
	}
	tt := vi.Type.TensorType
	if t.DType == graph.Undefined {
		t.DType = graph.DataType(tt.ElemType)
	}
	if t.Shape != nil || tt.Shape == nil {
		return
	}
	dims := make([]int64, len(tt.Shape.Dims))
	for i, d := range tt.Shape.Dims {
		// Symbolic and absent dimensions both come back dynamic; protobuf
		// cannot distinguish an unset dim_value from zero.
		if d.DimParam != "" || d.DimValue <= 0 {
			dims[i] = graph.DynamicDim
			continue
		}
		dims[i] = d.DimValue
	}
	t.Shape = dims
}

func exportValueInfo(t *graph.Tensor) ValueInfoProto {
	vi := ValueInfoProto{Name: t.Name}
	if t.DType == graph.Undefined && t.Shape == nil {
		return vi
	}
	tt := &TensorTypeProto{ElemType: int32(t.DType)}
	if t.Shape != nil {
		tt.Shape = &TensorShapeProto{}
		for i, d := range t.Shape {
			if d < 0 {
				tt.Shape.Dims = append(tt.Shape.Dims, DimensionProto{DimParam: fmt.Sprintf("unk__%d", i)})
				continue
			}
			tt.Shape.Dims = append(tt.Shape.Dims, DimensionProto{DimValue: d})
		}
	}
	vi.Type = &TypeProto{TensorType: tt}
	return vi
}

func exportTensor(t *graph.Tensor) TensorProto {
	return TensorProto{
		Name:     t.Name,
		DataType: int32(t.DType),
		Dims:     append([]int64(nil), t.Shape...),
		RawData:  append([]byte(nil), t.Data...),
	}
}

func importAttribute(ap *AttributeProto) (graph.Attribute, error) {
	attr := graph.Attribute{
		Name:    ap.Name,
		Type:    ap.Type,
		F:       ap.F,
		I:       ap.I,
		S:       ap.S,
		Floats:  ap.Floats,
		Ints:    ap.Ints,
		Strings: ap.Strings,
	}
	if ap.T != nil {
		t := &graph.Tensor{Name: ap.T.Name}
		if err := applyTensorProto(t, ap.T); err != nil {
			return attr, fmt.Errorf("attribute %s: %w", ap.Name, err)
		}
		attr.T = t
	}
	return attr, nil
}

func exportAttribute(a *graph.Attribute) AttributeProto {
	ap := AttributeProto{
		Name:    a.Name,
		Type:    a.Type,
		F:       a.F,
		I:       a.I,
		S:       a.S,
		Floats:  a.Floats,
		Ints:    a.Ints,
		Strings: a.Strings,
	}
	if a.T != nil {
		tp := exportTensor(a.T)
		ap.T = &tp
	}
	return ap
}
