package graph

import (
	"errors"
	"math"
)

// ErrShapeFoldingUnsupported is returned by a constant folder that cannot
// materialize Shape nodes. During refinement this is a fatal capability
// error, unlike ordinary per-node folding misses which are simply skipped.
var ErrShapeFoldingUnsupported = errors.New("constant folder does not support shape folding")

// FoldOptions configures constant folding behavior.
type FoldOptions struct {
	// FoldShapes materializes Shape nodes over statically-shaped tensors
	// as int64 constants, which unlocks folding of shape subgraphs
	// (Shape -> Gather -> Concat -> Reshape chains).
	FoldShapes bool
}

// FoldConstants replaces nodes whose inputs are all compile-time constants
// with precomputed constant tensors and removes the folded nodes from the
// graph. A single topologically-ordered sweep is performed; constants
// produced early in the sweep feed later folds within the same call.
//
// Nodes the evaluator cannot handle (unsupported op, non-constant input,
// dtype or shape outside the evaluable set) are left in place. Returns the
// number of nodes folded.
func (g *Graph) FoldConstants(opts FoldOptions) (int, error) {
	if err := g.Toposort(); err != nil {
		return 0, err
	}

	folded := 0
	kept := make([]*Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if evalNode(n, opts) {
			folded++
			continue
		}
		kept = append(kept, n)
	}
	g.Nodes = kept
	return folded, nil
}

// evalNode attempts to evaluate n at compile time. On success the result is
// written into n's output tensor and true is returned; the caller drops the
// node. Multi-output nodes are never folded.
//
//nolint:gocyclo,cyclop // Dispatch over the evaluable operator set.
func evalNode(n *Node, opts FoldOptions) bool {
	if len(n.Outputs) != 1 {
		return false
	}
	out := n.Outputs[0]

	if n.Op == "Shape" {
		if !opts.FoldShapes {
			return false
		}
		return evalShape(n, out)
	}

	for _, in := range n.Inputs {
		if !in.IsConstant() {
			return false
		}
	}

	switch n.Op {
	case "Identity":
		if len(n.Inputs) != 1 {
			return false
		}
		in := n.Inputs[0]
		out.DType = in.DType
		out.Shape = append([]int64(nil), in.Shape...)
		out.Data = append([]byte(nil), in.Data...)
		return true
	case "Add", "Sub", "Mul", "Div":
		return evalBinary(n, out)
	case "Neg", "Sqrt":
		return evalUnary(n, out)
	case "Concat":
		return evalConcat(n, out)
	case "Reshape":
		return evalReshape(n, out)
	case "Squeeze", "Unsqueeze":
		return evalAxesReshape(n, out)
	case "Transpose":
		return evalTranspose(n, out)
	case "Cast":
		return evalCast(n, out)
	case "Gather":
		return evalGather(n, out)
	case "Slice":
		return evalSlice(n, out)
	default:
		return false
	}
}

// evalShape materializes the static shape of the input as a 1-D int64
// constant. The input itself need not be constant, only its shape.
func evalShape(n *Node, out *Tensor) bool {
	if len(n.Inputs) != 1 || !n.Inputs[0].HasStaticShape() {
		return false
	}
	out.SetInt64s([]int64{int64(len(n.Inputs[0].Shape))}, append([]int64(nil), n.Inputs[0].Shape...))
	return true
}

func evalBinary(n *Node, out *Tensor) bool {
	if len(n.Inputs) != 2 {
		return false
	}
	a, b := n.Inputs[0], n.Inputs[1]
	if a.DType != b.DType {
		return false
	}

	// Only same-shape or scalar broadcast; anything else stays unfolded.
	shape := a.Shape
	switch {
	case sameDims(a.Shape, b.Shape):
	case a.NumElements() == 1:
		shape = b.Shape
	case b.NumElements() == 1:
	default:
		return false
	}

	switch a.DType {
	case Int64:
		av, ok1 := a.Int64s()
		bv, ok2 := b.Int64s()
		if !ok1 || !ok2 {
			return false
		}
		res := make([]int64, maxLen(len(av), len(bv)))
		for i := range res {
			x, y := av[i%len(av)], bv[i%len(bv)]
			switch n.Op {
			case "Add":
				res[i] = x + y
			case "Sub":
				res[i] = x - y
			case "Mul":
				res[i] = x * y
			case "Div":
				if y == 0 {
					return false
				}
				res[i] = x / y
			}
		}
		out.SetInt64s(append([]int64(nil), shape...), res)
		return true
	case Float32:
		av, ok1 := a.Float32s()
		bv, ok2 := b.Float32s()
		if !ok1 || !ok2 {
			return false
		}
		res := make([]float32, maxLen(len(av), len(bv)))
		for i := range res {
			x, y := av[i%len(av)], bv[i%len(bv)]
			switch n.Op {
			case "Add":
				res[i] = x + y
			case "Sub":
				res[i] = x - y
			case "Mul":
				res[i] = x * y
			case "Div":
				res[i] = x / y
			}
		}
		out.SetFloat32s(append([]int64(nil), shape...), res)
		return true
	default:
		return false
	}
}

func evalUnary(n *Node, out *Tensor) bool {
	if len(n.Inputs) != 1 {
		return false
	}
	in := n.Inputs[0]
	switch in.DType {
	case Float32:
		vals, ok := in.Float32s()
		if !ok {
			return false
		}
		res := make([]float32, len(vals))
		for i, v := range vals {
			switch n.Op {
			case "Neg":
				res[i] = -v
			case "Sqrt":
				res[i] = float32(math.Sqrt(float64(v)))
			}
		}
		out.SetFloat32s(append([]int64(nil), in.Shape...), res)
		return true
	case Int64:
		if n.Op != "Neg" {
			return false
		}
		vals, ok := in.Int64s()
		if !ok {
			return false
		}
		res := make([]int64, len(vals))
		for i, v := range vals {
			res[i] = -v
		}
		out.SetInt64s(append([]int64(nil), in.Shape...), res)
		return true
	default:
		return false
	}
}

// evalConcat folds rank-1 concatenation along axis 0, the form shape
// subgraphs produce.
func evalConcat(n *Node, out *Tensor) bool {
	if len(n.Inputs) == 0 {
		return false
	}
	axis := n.AttrInt("axis", 0)
	if axis != 0 && axis != -1 {
		return false
	}
	dtype := n.Inputs[0].DType
	total := int64(0)
	var data []byte
	for _, in := range n.Inputs {
		if in.DType != dtype || len(in.Shape) != 1 {
			return false
		}
		total += in.Shape[0]
		data = append(data, in.Data...)
	}
	out.DType = dtype
	out.Shape = []int64{total}
	out.Data = data
	return true
}

func evalReshape(n *Node, out *Tensor) bool {
	if len(n.Inputs) != 2 {
		return false
	}
	data := n.Inputs[0]
	spec, ok := n.Inputs[1].Int64s()
	if !ok || !data.HasStaticShape() {
		return false
	}

	total := data.NumElements()
	dims := make([]int64, len(spec))
	infer := -1
	known := int64(1)
	for i, d := range spec {
		switch {
		case d == -1:
			if infer >= 0 {
				return false
			}
			infer = i
		case d == 0:
			if i >= len(data.Shape) {
				return false
			}
			dims[i] = data.Shape[i]
			known *= dims[i]
		default:
			dims[i] = d
			known *= d
		}
	}
	if infer >= 0 {
		if known == 0 || total%known != 0 {
			return false
		}
		dims[infer] = total / known
		known *= dims[infer]
	}
	if known != total {
		return false
	}

	out.DType = data.DType
	out.Shape = dims
	out.Data = append([]byte(nil), data.Data...)
	return true
}

// evalAxesReshape folds Squeeze and Unsqueeze; axes come from the attribute
// (opset < 13) or the second constant input.
func evalAxesReshape(n *Node, out *Tensor) bool {
	if len(n.Inputs) == 0 {
		return false
	}
	data := n.Inputs[0]
	if !data.HasStaticShape() {
		return false
	}
	axes := n.AttrInts("axes")
	if axes == nil && len(n.Inputs) > 1 {
		var ok bool
		axes, ok = n.Inputs[1].Int64s()
		if !ok {
			return false
		}
	}

	var dims []int64
	if n.Op == "Unsqueeze" {
		if len(axes) == 0 {
			return false
		}
		rank := len(data.Shape) + len(axes)
		insert := make(map[int64]bool, len(axes))
		for _, a := range axes {
			if a < 0 {
				a += int64(rank)
			}
			if a < 0 || a >= int64(rank) || insert[a] {
				return false
			}
			insert[a] = true
		}
		src := 0
		for i := 0; i < rank; i++ {
			if insert[int64(i)] {
				dims = append(dims, 1)
				continue
			}
			dims = append(dims, data.Shape[src])
			src++
		}
	} else { // Squeeze
		drop := make(map[int64]bool, len(axes))
		for _, a := range axes {
			if a < 0 {
				a += int64(len(data.Shape))
			}
			if a < 0 || a >= int64(len(data.Shape)) || data.Shape[a] != 1 {
				return false
			}
			drop[a] = true
		}
		for i, d := range data.Shape {
			if len(axes) == 0 && d == 1 {
				continue
			}
			if drop[int64(i)] {
				continue
			}
			dims = append(dims, d)
		}
	}

	out.DType = data.DType
	out.Shape = dims
	out.Data = append([]byte(nil), data.Data...)
	return true
}

func evalTranspose(n *Node, out *Tensor) bool {
	if len(n.Inputs) != 1 {
		return false
	}
	in := n.Inputs[0]
	if !in.HasStaticShape() {
		return false
	}
	esz := in.DType.Size()
	if esz == 0 {
		return false
	}
	rank := len(in.Shape)

	perm := n.AttrInts("perm")
	if perm == nil {
		perm = make([]int64, rank)
		for i := range perm {
			perm[i] = int64(rank - 1 - i)
		}
	}
	if len(perm) != rank {
		return false
	}

	dims := make([]int64, rank)
	for i, p := range perm {
		if p < 0 || p >= int64(rank) {
			return false
		}
		dims[i] = in.Shape[p]
	}

	// Row-major strides of the source, gathered through the permutation.
	srcStrides := make([]int64, rank)
	stride := int64(1)
	for i := rank - 1; i >= 0; i-- {
		srcStrides[i] = stride
		stride *= in.Shape[i]
	}

	total := in.NumElements()
	data := make([]byte, total*int64(esz))
	idx := make([]int64, rank)
	for e := int64(0); e < total; e++ {
		src := int64(0)
		for i, p := range perm {
			src += idx[i] * srcStrides[p]
		}
		copy(data[e*int64(esz):], in.Data[src*int64(esz):(src+1)*int64(esz)])
		for i := rank - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < dims[i] {
				break
			}
			idx[i] = 0
		}
	}

	out.DType = in.DType
	out.Shape = dims
	out.Data = data
	return true
}

func evalCast(n *Node, out *Tensor) bool {
	if len(n.Inputs) != 1 {
		return false
	}
	in := n.Inputs[0]
	to := DataType(n.AttrInt("to", 0)) //nolint:gosec // G115: ONNX dtype codes fit in int32.

	// Normalize through float64, which is exact for the supported types.
	var vals []float64
	switch in.DType {
	case Int64:
		src, ok := in.Int64s()
		if !ok {
			return false
		}
		for _, v := range src {
			vals = append(vals, float64(v))
		}
	case Int32:
		src, ok := in.Int32s()
		if !ok {
			return false
		}
		for _, v := range src {
			vals = append(vals, float64(v))
		}
	case Float32:
		src, ok := in.Float32s()
		if !ok {
			return false
		}
		for _, v := range src {
			vals = append(vals, float64(v))
		}
	default:
		return false
	}

	shape := append([]int64(nil), in.Shape...)
	switch to {
	case Int64:
		res := make([]int64, len(vals))
		for i, v := range vals {
			res[i] = int64(v)
		}
		out.SetInt64s(shape, res)
	case Int32:
		res := make([]int32, len(vals))
		for i, v := range vals {
			res[i] = int32(v)
		}
		out.SetInt32s(shape, res)
	case Float32:
		res := make([]float32, len(vals))
		for i, v := range vals {
			res[i] = float32(v)
		}
		out.SetFloat32s(shape, res)
	default:
		return false
	}
	return true
}

// evalGather folds rank-1 gathers along axis 0, the usual way a shape
// subgraph picks a single dimension out of a Shape result.
func evalGather(n *Node, out *Tensor) bool {
	if len(n.Inputs) != 2 || n.AttrInt("axis", 0) != 0 {
		return false
	}
	data := n.Inputs[0]
	if len(data.Shape) != 1 {
		return false
	}
	indices, ok := n.Inputs[1].Int64s()
	if !ok {
		return false
	}
	esz := data.DType.Size()
	if esz == 0 {
		return false
	}

	var res []byte
	for _, idx := range indices {
		if idx < 0 {
			idx += data.Shape[0]
		}
		if idx < 0 || idx >= data.Shape[0] {
			return false
		}
		res = append(res, data.Data[idx*int64(esz):(idx+1)*int64(esz)]...)
	}
	idxShape := n.Inputs[1].Shape
	if idxShape == nil && len(indices) != 1 {
		return false
	}
	out.DType = data.DType
	// A scalar index produces a rank-0 output, not an unknown rank.
	out.Shape = append([]int64{}, idxShape...)
	out.Data = res
	return true
}

// evalSlice folds rank-1 slices with unit step (opset >= 10 form with
// starts/ends as inputs).
func evalSlice(n *Node, out *Tensor) bool {
	if len(n.Inputs) < 3 {
		return false
	}
	data := n.Inputs[0]
	if len(data.Shape) != 1 {
		return false
	}
	starts, ok1 := n.Inputs[1].Int64s()
	ends, ok2 := n.Inputs[2].Int64s()
	if !ok1 || !ok2 || len(starts) != 1 || len(ends) != 1 {
		return false
	}
	if len(n.Inputs) > 3 {
		axes, ok := n.Inputs[3].Int64s()
		if !ok || len(axes) != 1 || (axes[0] != 0 && axes[0] != -1) {
			return false
		}
	}
	if len(n.Inputs) > 4 {
		steps, ok := n.Inputs[4].Int64s()
		if !ok || len(steps) != 1 || steps[0] != 1 {
			return false
		}
	}

	dim := data.Shape[0]
	start, end := clampIndex(starts[0], dim), clampIndex(ends[0], dim)
	if start > end {
		start = end
	}
	esz := int64(data.DType.Size())
	if esz == 0 {
		return false
	}
	out.DType = data.DType
	out.Shape = []int64{end - start}
	out.Data = append([]byte(nil), data.Data[start*esz:end*esz]...)
	return true
}

func clampIndex(i, dim int64) int64 {
	if i < 0 {
		i += dim
	}
	if i < 0 {
		return 0
	}
	if i > dim {
		return dim
	}
	return i
}

func sameDims(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func maxLen(a, b int) int {
	if a > b {
		return a
	}
	return b
}
