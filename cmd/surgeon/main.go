// Package main provides the surgeon CLI for ONNX graph surgery.
package main

import (
	"fmt"
	"os"

	"github.com/born-ml/surgeon/graph"
	"github.com/born-ml/surgeon/onnx"
)

const version = "v0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("surgeon %s\n", version)
	case "info":
		err = runInfo(os.Args[2:])
	case "stitch":
		err = runStitch(os.Args[2:])
	case "refine":
		err = runRefine(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "surgeon: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("surgeon - ONNX graph surgery toolkit")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  info <model.onnx>                   Show model metadata")
	fmt.Println("  stitch <a.onnx> <b.onnx> <out.onnx> Append b onto a and save the merged graph")
	fmt.Println("  refine <in.onnx> <out.onnx>         Infer shapes and fold constants")
	fmt.Println("  version                             Show version")
}

func runInfo(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: surgeon info <model.onnx>")
	}
	info, err := onnx.GetModelInfo(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Graph:        %s\n", info.GraphName)
	fmt.Printf("Producer:     %s %s\n", info.ProducerName, info.ProducerVersion)
	fmt.Printf("IR version:   %d\n", info.IRVersion)
	fmt.Printf("Opset:        %d\n", info.OpsetVersion)
	fmt.Printf("Inputs:       %v\n", info.InputNames)
	fmt.Printf("Outputs:      %v\n", info.OutputNames)
	fmt.Printf("Nodes:        %d\n", info.NodeCount)
	fmt.Printf("Initializers: %d\n", info.InitializerCount)
	fmt.Printf("Operators:    %v\n", info.Operators)
	return nil
}

func runStitch(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: surgeon stitch <a.onnx> <b.onnx> <out.onnx>")
	}
	a, err := onnx.ImportFile(args[0])
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	b, err := onnx.ImportFile(args[1])
	if err != nil {
		return fmt.Errorf("%s: %w", args[1], err)
	}

	merged, err := graph.Append(a, b)
	if err != nil {
		return err
	}
	merged, err = onnx.Refine(merged)
	if err != nil {
		return err
	}
	return onnx.WriteFile(args[2], onnx.Export(merged))
}

func runRefine(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: surgeon refine <in.onnx> <out.onnx>")
	}
	g, err := onnx.ImportFile(args[0])
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	before := len(g.Nodes)

	g, err = onnx.Refine(g)
	if err != nil {
		return err
	}
	fmt.Printf("Refined %s: %d -> %d nodes\n", args[0], before, len(g.Nodes))
	return onnx.WriteFile(args[1], onnx.Export(g))
}
