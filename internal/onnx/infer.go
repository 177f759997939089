package onnx

import (
	"fmt"

	"github.com/born-ml/surgeon/internal/graph"
)

// tensorInfo is the inference working state for one tensor.
type tensorInfo struct {
	dtype int32
	dims  []int64 // nil = unknown rank; -1 entries = dynamic
}

// InferShapes statically propagates tensor shapes and element types through
// the model's graph and records the results as value_info annotations.
//
// Shape sources are consulted in priority order: existing value_info, the
// declared inputs and outputs, then initializers; everything else is
// computed by propagating node by node in topological order. Operators the
// propagator does not know leave their outputs unannotated, which is not an
// error. Structural problems (missing graph, cycles) are.
//
//nolint:gocognit // Per-operator shape propagation is one long dispatch.
func InferShapes(m *ModelProto) error {
	if m.Graph == nil {
		return fmt.Errorf("model has no graph")
	}
	gp := m.Graph

	info := make(map[string]tensorInfo)
	consts := make(map[string][]int64) // int64 payloads usable as shape specs

	seed := func(vis []ValueInfoProto) {
		for i := range vis {
			vi := &vis[i]
			if vi.Name == "" || vi.Type == nil || vi.Type.TensorType == nil {
				continue
			}
			if _, ok := info[vi.Name]; ok {
				continue
			}
			tt := vi.Type.TensorType
			ti := tensorInfo{dtype: tt.ElemType}
			if tt.Shape != nil {
				ti.dims = make([]int64, len(tt.Shape.Dims))
				for j, d := range tt.Shape.Dims {
					if d.DimParam != "" || d.DimValue <= 0 {
						ti.dims[j] = graph.DynamicDim
						continue
					}
					ti.dims[j] = d.DimValue
				}
			}
			info[vi.Name] = ti
		}
	}
	seed(gp.ValueInfo)
	seed(gp.Inputs)
	seed(gp.Outputs)

	for i := range gp.Initializers {
		tp := &gp.Initializers[i]
		if _, ok := info[tp.Name]; !ok {
			info[tp.Name] = tensorInfo{dtype: tp.DataType, dims: append([]int64(nil), tp.Dims...)}
		}
		if vals, ok := initializerInt64s(tp); ok {
			consts[tp.Name] = vals
		}
	}

	sorted, err := sortNodes(gp.Nodes)
	if err != nil {
		return err
	}

	for _, n := range sorted {
		inputs := make([]tensorInfo, len(n.Inputs))
		for i, name := range n.Inputs {
			inputs[i] = info[name]
		}
		setOut := func(i int, ti tensorInfo) {
			if i < len(n.Outputs) && n.Outputs[i] != "" {
				info[n.Outputs[i]] = ti
			}
		}
		if len(inputs) == 0 && n.OpType != "Constant" {
			continue
		}

		switch n.OpType {
		case "Identity", "Relu", "Sigmoid", "Tanh", "Softmax", "LeakyRelu",
			"Elu", "Neg", "Abs", "Sqrt", "Exp", "Log", "Erf":
			setOut(0, inputs[0])
		case "Cast":
			ti := inputs[0]
			ti.dtype = int32(attrInt(n, "to", 0)) //nolint:gosec // G115: ONNX dtype codes fit in int32.
			setOut(0, ti)
		case "Add", "Sub", "Mul", "Div", "Pow":
			if len(inputs) == 2 {
				if dims, ok := broadcastDims(inputs[0].dims, inputs[1].dims); ok {
					setOut(0, tensorInfo{dtype: inputs[0].dtype, dims: dims})
				}
			}
		case "MatMul":
			if len(inputs) == 2 {
				if dims, ok := matmulDims(inputs[0].dims, inputs[1].dims); ok {
					setOut(0, tensorInfo{dtype: inputs[0].dtype, dims: dims})
				}
			}
		case "Gemm":
			if len(inputs) >= 2 && len(inputs[0].dims) == 2 && len(inputs[1].dims) == 2 {
				a, b := inputs[0].dims, inputs[1].dims
				m0, n0 := a[0], b[1]
				if attrInt(n, "transA", 0) != 0 {
					m0 = a[1]
				}
				if attrInt(n, "transB", 0) != 0 {
					n0 = b[0]
				}
				setOut(0, tensorInfo{dtype: inputs[0].dtype, dims: []int64{m0, n0}})
			}
		case "Transpose":
			if dims := inputs[0].dims; dims != nil {
				perm := attrInts(n, "perm")
				out := make([]int64, len(dims))
				if perm == nil {
					for i := range dims {
						out[i] = dims[len(dims)-1-i]
					}
				} else if len(perm) == len(dims) {
					for i, p := range perm {
						if p < 0 || p >= int64(len(dims)) {
							out = nil
							break
						}
						out[i] = dims[p]
					}
				} else {
					out = nil
				}
				if out != nil {
					setOut(0, tensorInfo{dtype: inputs[0].dtype, dims: out})
				}
			}
		case "Shape":
			if dims := inputs[0].dims; dims != nil && len(n.Outputs) > 0 {
				setOut(0, tensorInfo{dtype: TensorProtoInt64, dims: []int64{int64(len(dims))}})
				if allStatic(dims) {
					consts[n.Outputs[0]] = append([]int64(nil), dims...)
				}
			}
		case "Reshape":
			if len(n.Inputs) == 2 {
				if spec, ok := consts[n.Inputs[1]]; ok {
					if dims, ok := reshapeDims(inputs[0].dims, spec); ok {
						setOut(0, tensorInfo{dtype: inputs[0].dtype, dims: dims})
					}
				}
			}
		case "Flatten":
			if dims := inputs[0].dims; allStatic(dims) {
				axis := int(attrInt(n, "axis", 1))
				if axis < 0 {
					axis += len(dims)
				}
				if axis >= 0 && axis <= len(dims) {
					outer, inner := int64(1), int64(1)
					for i, d := range dims {
						if i < axis {
							outer *= d
						} else {
							inner *= d
						}
					}
					setOut(0, tensorInfo{dtype: inputs[0].dtype, dims: []int64{outer, inner}})
				}
			}
		case "Concat":
			if dims, ok := concatDims(inputs, attrInt(n, "axis", 0)); ok {
				setOut(0, tensorInfo{dtype: inputs[0].dtype, dims: dims})
			}
		case "Unsqueeze":
			axes := attrInts(n, "axes")
			if axes == nil && len(n.Inputs) > 1 {
				axes = consts[n.Inputs[1]]
			}
			if dims := inputs[0].dims; dims != nil && len(axes) > 0 {
				if out, ok := unsqueezeDims(dims, axes); ok {
					setOut(0, tensorInfo{dtype: inputs[0].dtype, dims: out})
				}
			}
		case "Squeeze":
			axes := attrInts(n, "axes")
			if axes == nil && len(n.Inputs) > 1 {
				axes = consts[n.Inputs[1]]
			}
			if dims := inputs[0].dims; dims != nil {
				if out, ok := squeezeDims(dims, axes); ok {
					setOut(0, tensorInfo{dtype: inputs[0].dtype, dims: out})
				}
			}
		case "Gather":
			if len(n.Inputs) == 2 && len(n.Outputs) > 0 {
				if vals, ok := consts[n.Inputs[0]]; ok && attrInt(n, "axis", 0) == 0 {
					if idx, ok2 := consts[n.Inputs[1]]; ok2 {
						picked := make([]int64, 0, len(idx))
						for _, ix := range idx {
							if ix < 0 {
								ix += int64(len(vals))
							}
							if ix < 0 || ix >= int64(len(vals)) {
								picked = nil
								break
							}
							picked = append(picked, vals[ix])
						}
						if picked != nil {
							consts[n.Outputs[0]] = picked
							setOut(0, tensorInfo{dtype: TensorProtoInt64, dims: []int64{int64(len(picked))}})
						}
					}
				}
			}
		case "Constant":
			if t := attrTensor(n, "value"); t != nil && len(n.Outputs) > 0 {
				setOut(0, tensorInfo{dtype: t.DataType, dims: append([]int64(nil), t.Dims...)})
				if vals, ok := initializerInt64s(t); ok {
					consts[n.Outputs[0]] = vals
				}
			}
		default:
			// Unknown operator: outputs stay unannotated.
		}
	}

	writeBack(gp, info)
	return nil
}

// writeBack records inferred info as value_info for tensors that have no
// annotation yet. Declared inputs and outputs keep their own entries.
func writeBack(gp *GraphProto, info map[string]tensorInfo) {
	annotated := make(map[string]bool)
	for _, vi := range gp.ValueInfo {
		annotated[vi.Name] = true
	}
	for _, vi := range gp.Inputs {
		annotated[vi.Name] = true
	}
	for _, vi := range gp.Outputs {
		annotated[vi.Name] = true
	}
	for i := range gp.Initializers {
		annotated[gp.Initializers[i].Name] = true
	}

	for i := range gp.Nodes {
		for _, out := range gp.Nodes[i].Outputs {
			if out == "" || annotated[out] {
				continue
			}
			ti, ok := info[out]
			if !ok {
				continue
			}
			annotated[out] = true
			gp.ValueInfo = append(gp.ValueInfo, infoToValueInfo(out, ti))
		}
	}
}

func infoToValueInfo(name string, ti tensorInfo) ValueInfoProto {
	tt := &TensorTypeProto{ElemType: ti.dtype}
	if ti.dims != nil {
		tt.Shape = &TensorShapeProto{}
		for i, d := range ti.dims {
			if d < 0 {
				tt.Shape.Dims = append(tt.Shape.Dims, DimensionProto{DimParam: fmt.Sprintf("unk__%d", i)})
				continue
			}
			tt.Shape.Dims = append(tt.Shape.Dims, DimensionProto{DimValue: d})
		}
	}
	return ValueInfoProto{Name: name, Type: &TypeProto{TensorType: tt}}
}

// sortNodes orders nodes so producers precede consumers, failing on cycles.
func sortNodes(nodes []NodeProto) ([]*NodeProto, error) {
	producer := make(map[string]int, len(nodes))
	for i := range nodes {
		for _, out := range nodes[i].Outputs {
			if out != "" {
				producer[out] = i
			}
		}
	}

	const (
		unvisited = iota
		visiting
		visited
	)
	state := make([]int, len(nodes))
	sorted := make([]*NodeProto, 0, len(nodes))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case visited:
			return nil
		case visiting:
			return fmt.Errorf("%w: node %q", graph.ErrCycle, nodes[i].Name)
		}
		state[i] = visiting
		for _, in := range nodes[i].Inputs {
			if dep, ok := producer[in]; ok {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		state[i] = visited
		sorted = append(sorted, &nodes[i])
		return nil
	}

	for i := range nodes {
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return sorted, nil
}

// initializerInt64s extracts small int64 payloads usable as shape specs.
func initializerInt64s(tp *TensorProto) ([]int64, bool) {
	if tp.DataType != TensorProtoInt64 || len(tp.Dims) > 1 {
		return nil, false
	}
	if len(tp.Int64Data) > 0 {
		return tp.Int64Data, true
	}
	if len(tp.RawData)%8 != 0 {
		return nil, false
	}
	t := &graph.Tensor{}
	if err := applyTensorProto(t, tp); err != nil {
		return nil, false
	}
	vals, ok := t.Int64s()
	return vals, ok
}

func allStatic(dims []int64) bool {
	if dims == nil {
		return false
	}
	for _, d := range dims {
		if d < 0 {
			return false
		}
	}
	return true
}

// broadcastDims applies numpy-style broadcasting; dynamic dims propagate.
func broadcastDims(a, b []int64) ([]int64, bool) {
	if a == nil || b == nil {
		return nil, false
	}
	rank := len(a)
	if len(b) > rank {
		rank = len(b)
	}
	out := make([]int64, rank)
	for i := 0; i < rank; i++ {
		da, db := int64(1), int64(1)
		if i >= rank-len(a) {
			da = a[i-(rank-len(a))]
		}
		if i >= rank-len(b) {
			db = b[i-(rank-len(b))]
		}
		switch {
		case da == db:
			out[i] = da
		case da == 1:
			out[i] = db
		case db == 1:
			out[i] = da
		case da < 0 || db < 0:
			out[i] = graph.DynamicDim
		default:
			return nil, false
		}
	}
	return out, true
}

// matmulDims computes the MatMul output shape with batch broadcasting.
func matmulDims(a, b []int64) ([]int64, bool) {
	if len(a) < 2 || len(b) < 2 {
		return nil, false
	}
	batch, ok := broadcastDims(a[:len(a)-2], b[:len(b)-2])
	if !ok {
		return nil, false
	}
	k1, k2 := a[len(a)-1], b[len(b)-2]
	if k1 >= 0 && k2 >= 0 && k1 != k2 {
		return nil, false
	}
	return append(batch, a[len(a)-2], b[len(b)-1]), true
}

func reshapeDims(in, spec []int64) ([]int64, bool) {
	out := make([]int64, len(spec))
	infer := -1
	known := int64(1)
	for i, d := range spec {
		switch {
		case d == -1:
			if infer >= 0 {
				return nil, false
			}
			infer = i
			out[i] = graph.DynamicDim
		case d == 0:
			if i >= len(in) {
				return nil, false
			}
			out[i] = in[i]
			known *= out[i]
		default:
			out[i] = d
			known *= d
		}
	}
	if infer >= 0 && allStatic(in) && known > 0 {
		total := int64(1)
		for _, d := range in {
			total *= d
		}
		if total%known == 0 {
			out[infer] = total / known
		}
	}
	return out, true
}

func concatDims(inputs []tensorInfo, axis int64) ([]int64, bool) {
	if len(inputs) == 0 || inputs[0].dims == nil {
		return nil, false
	}
	rank := len(inputs[0].dims)
	if axis < 0 {
		axis += int64(rank)
	}
	if axis < 0 || axis >= int64(rank) {
		return nil, false
	}
	out := append([]int64(nil), inputs[0].dims...)
	sum := out[axis]
	for _, in := range inputs[1:] {
		if len(in.dims) != rank {
			return nil, false
		}
		if sum < 0 || in.dims[axis] < 0 {
			sum = graph.DynamicDim
		} else {
			sum += in.dims[axis]
		}
	}
	out[axis] = sum
	return out, true
}

func unsqueezeDims(dims, axes []int64) ([]int64, bool) {
	rank := len(dims) + len(axes)
	insert := make(map[int64]bool, len(axes))
	for _, a := range axes {
		if a < 0 {
			a += int64(rank)
		}
		if a < 0 || a >= int64(rank) || insert[a] {
			return nil, false
		}
		insert[a] = true
	}
	out := make([]int64, 0, rank)
	src := 0
	for i := 0; i < rank; i++ {
		if insert[int64(i)] {
			out = append(out, 1)
			continue
		}
		out = append(out, dims[src])
		src++
	}
	return out, true
}

func squeezeDims(dims, axes []int64) ([]int64, bool) {
	drop := make(map[int64]bool, len(axes))
	for _, a := range axes {
		if a < 0 {
			a += int64(len(dims))
		}
		if a < 0 || a >= int64(len(dims)) || dims[a] != 1 {
			return nil, false
		}
		drop[a] = true
	}
	var out []int64
	for i, d := range dims {
		if len(axes) == 0 && d == 1 {
			continue
		}
		if drop[int64(i)] {
			continue
		}
		out = append(out, d)
	}
	if out == nil {
		out = []int64{}
	}
	return out, true
}

// Attribute lookup helpers over the wire model.

func attrInt(n *NodeProto, name string, def int64) int64 {
	for i := range n.Attributes {
		if n.Attributes[i].Name == name {
			return n.Attributes[i].I
		}
	}
	return def
}

func attrInts(n *NodeProto, name string) []int64 {
	for i := range n.Attributes {
		if n.Attributes[i].Name == name {
			return n.Attributes[i].Ints
		}
	}
	return nil
}

func attrTensor(n *NodeProto, name string) *TensorProto {
	for i := range n.Attributes {
		if n.Attributes[i].Name == name {
			return n.Attributes[i].T
		}
	}
	return nil
}
