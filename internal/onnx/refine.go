package onnx

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/born-ml/surgeon/internal/graph"
)

// maxRefinePasses caps the refinement loop. Folding and shape inference can
// each unlock opportunities in the other; a small fixed cap approximates the
// fixpoint cheaply without risking non-termination on degenerate graphs.
const maxRefinePasses = 3

// ConstantFolder abstracts the folding capability the refiner drives.
// An implementation that cannot honor foldShapes must return
// graph.ErrShapeFoldingUnsupported rather than silently skipping shapes.
type ConstantFolder interface {
	Fold(g *graph.Graph, foldShapes bool) (int, error)
}

// graphFolder is the default folder backed by graph.FoldConstants.
type graphFolder struct{}

func (graphFolder) Fold(g *graph.Graph, foldShapes bool) (int, error) {
	return g.FoldConstants(graph.FoldOptions{FoldShapes: foldShapes})
}

// RefineOptions configures the refinement loop.
type RefineOptions struct {
	// Folder overrides the constant-folding implementation.
	Folder ConstantFolder

	// Logger receives debug events for inference attempts and error events
	// for the fatal folding-capability failure.
	Logger *slog.Logger
}

// DefaultRefineOptions returns the default refinement options.
func DefaultRefineOptions() RefineOptions {
	return RefineOptions{
		Folder: graphFolder{},
		Logger: slog.Default(),
	}
}

// Refine sanitizes the graph: dead nodes are removed, the node order is
// re-established, shapes are inferred where possible and constant subgraphs
// are folded, repeating until a pass changes nothing or the pass cap is hit.
//
// Refinement is best-effort. A failed shape-inference attempt is logged at
// debug level and the pass continues with the graph as it was; the graph is
// never required to end up fully annotated. The one fatal failure is a
// folder that lacks shape-folding support: that error is logged and
// returned, with any mutations made before the failure point kept.
//
// The refined graph is returned; shape inference rebuilds the graph from the
// interchange form, so callers must use the return value rather than the
// argument.
func Refine(g *graph.Graph, opts ...RefineOptions) (*graph.Graph, error) {
	opt := DefaultRefineOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.Folder == nil {
		opt.Folder = graphFolder{}
	}
	log := opt.Logger
	if log == nil {
		log = slog.Default()
	}

	log.Debug("performing shape inference and folding", "nodes", len(g.Nodes))
	for pass := 0; pass < maxRefinePasses; pass++ {
		before := len(g.Nodes)

		g.Cleanup()
		if err := g.Toposort(); err != nil {
			return g, err
		}

		if refined, err := inferPass(g); err != nil {
			log.Debug("shape inference could not be performed at this time", "pass", pass, "error", err)
		} else {
			g = refined
		}

		if _, err := opt.Folder.Fold(g, true); err != nil {
			if errors.Is(err, graph.ErrShapeFoldingUnsupported) {
				log.Error("constant folder does not support folding shapes", "error", err)
				return g, err
			}
			log.Debug("constant folding could not be performed at this time", "pass", pass, "error", err)
		}

		after := len(g.Nodes)
		if after == before {
			// No new folding occurred in this pass.
			break
		}
		log.Debug("pass changed node count", "pass", pass, "before", before, "after", after)
	}
	return g, nil
}

// inferPass round-trips the graph through the interchange form with shape
// inference in between. Any failure leaves the caller's graph untouched.
func inferPass(g *graph.Graph) (*graph.Graph, error) {
	model := Export(g)
	if err := InferShapes(model); err != nil {
		return nil, fmt.Errorf("shape inference: %w", err)
	}
	refined, err := Import(model)
	if err != nil {
		return nil, fmt.Errorf("reimport after inference: %w", err)
	}
	return refined, nil
}
