package onnx

// ModelInfo contains basic information about an ONNX model without
// converting it to a working graph.
type ModelInfo struct {
	IRVersion        int64
	OpsetVersion     int64
	ProducerName     string
	ProducerVersion  string
	GraphName        string
	InputNames       []string
	OutputNames      []string
	NodeCount        int
	InitializerCount int
	Operators        []string
}

// GetModelInfo extracts basic info from an ONNX file.
func GetModelInfo(path string) (*ModelInfo, error) {
	proto, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return modelInfo(proto), nil
}

func modelInfo(proto *ModelProto) *ModelInfo {
	info := &ModelInfo{
		IRVersion:       proto.IRVersion,
		ProducerName:    proto.ProducerName,
		ProducerVersion: proto.ProducerVersion,
	}
	for _, opset := range proto.OpsetImport {
		if opset.Domain == "" || opset.Domain == "ai.onnx" {
			info.OpsetVersion = opset.Version
			break
		}
	}

	g := proto.Graph
	if g == nil {
		return info
	}
	info.GraphName = g.Name

	// Inputs are graph inputs minus initializers.
	initNames := make(map[string]bool, len(g.Initializers))
	for i := range g.Initializers {
		initNames[g.Initializers[i].Name] = true
	}
	for i := range g.Inputs {
		if !initNames[g.Inputs[i].Name] {
			info.InputNames = append(info.InputNames, g.Inputs[i].Name)
		}
	}
	for i := range g.Outputs {
		info.OutputNames = append(info.OutputNames, g.Outputs[i].Name)
	}

	info.NodeCount = len(g.Nodes)
	info.InitializerCount = len(g.Initializers)

	seen := make(map[string]bool)
	for i := range g.Nodes {
		op := g.Nodes[i].OpType
		if !seen[op] {
			seen[op] = true
			info.Operators = append(info.Operators, op)
		}
	}
	return info
}
