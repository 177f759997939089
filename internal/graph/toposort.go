package graph

import (
	"errors"
	"fmt"
)

// ErrCycle is returned when the graph cannot be topologically ordered.
var ErrCycle = errors.New("graph contains a cycle")

// Node visit states for the DFS.
const (
	unvisited = iota
	visiting
	visited
)

// Toposort reorders g.Nodes so that every node appears after the producers
// of all its inputs. Returns ErrCycle (wrapped with the offending node name)
// if the graph is not a DAG; the node order is unchanged in that case.
func (g *Graph) Toposort() error {
	producer := g.producers()
	state := make(map[*Node]int, len(g.Nodes))
	sorted := make([]*Node, 0, len(g.Nodes))

	var visit func(n *Node) error
	visit = func(n *Node) error {
		switch state[n] {
		case visited:
			return nil
		case visiting:
			return fmt.Errorf("%w: node %q", ErrCycle, n.Name)
		}
		state[n] = visiting

		// Dependencies first.
		for _, in := range n.Inputs {
			if dep, ok := producer[in]; ok {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		state[n] = visited
		sorted = append(sorted, n)
		return nil
	}

	for _, n := range g.Nodes {
		if err := visit(n); err != nil {
			return err
		}
	}

	g.Nodes = sorted
	return nil
}
