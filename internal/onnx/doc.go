// Package onnx implements the ONNX interchange layer for graph surgery.
//
// The package carries a hand-written protobuf codec for .onnx files (no
// external protobuf dependency), conversion between the serialized form and
// the in-memory graph package, static shape inference, and the iterative
// shape-inference/constant-folding refinement loop.
//
// Key components:
//   - ModelProto / GraphProto / NodeProto / TensorProto: the wire model
//   - Parse / Serialize: protobuf wire-format decode and encode
//   - Import / Export: conversion to and from graph.Graph
//   - InferShapes: static shape and dtype propagation
//   - Refine: cleanup + toposort + inference + folding until fixpoint
//
// Example usage:
//
//	m, err := onnx.ParseFile("head.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	g, err := onnx.Import(m)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	g, err = onnx.Refine(g)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = onnx.WriteFile("head_refined.onnx", onnx.Export(g))
package onnx
