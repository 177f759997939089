package graph

// Cleanup removes nodes whose outputs do not contribute, directly or
// transitively, to any declared graph output. The relative order of the
// surviving nodes is preserved. Returns the number of nodes removed.
func (g *Graph) Cleanup() int {
	producer := g.producers()
	keep := make(map[*Node]bool, len(g.Nodes))

	// Walk backwards from the declared outputs.
	stack := make([]*Tensor, 0, len(g.Outputs))
	stack = append(stack, g.Outputs...)
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, ok := producer[t]
		if !ok || keep[n] {
			continue
		}
		keep[n] = true
		stack = append(stack, n.Inputs...)
	}

	kept := make([]*Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if keep[n] {
			kept = append(kept, n)
		}
	}
	removed := len(g.Nodes) - len(kept)
	g.Nodes = kept
	return removed
}
