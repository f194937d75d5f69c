package graph

import (
	"codegraph/internal/core/errors"
	"codegraph/internal/engine/parser"
	"encoding/json"
	"fmt"
)

// Marshal encodes a CodeGraph or EnrichedGraph as JSON.
func Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		err = errors.Wrap(err, errors.CodeSerializationFailure, fmt.Sprintf("encode %T", v))
		return nil, errors.AddContext(err, errors.CtxStage, errors.StagePersist)
	}
	return data, nil
}

// UnmarshalCodeGraph decodes a graph written by Marshal. Missing maps come
// back empty, never nil.
func UnmarshalCodeGraph(data []byte) (*CodeGraph, error) {
	var g CodeGraph
	if err := json.Unmarshal(data, &g); err != nil {
		err = errors.Wrap(err, errors.CodeSerializationFailure, "decode code graph")
		return nil, errors.AddContext(err, errors.CtxStage, errors.StagePersist)
	}
	if g.Files == nil {
		g.Files = make(map[string]*parser.FileAnalysis)
	}
	if g.Functions == nil {
		g.Functions = make(map[string]*parser.FunctionAnalysis)
	}
	if g.Types == nil {
		g.Types = make(map[string]*parser.TypeAnalysis)
	}
	return &g, nil
}

func UnmarshalEnriched(data []byte) (*EnrichedGraph, error) {
	var eg EnrichedGraph
	if err := json.Unmarshal(data, &eg); err != nil {
		err = errors.Wrap(err, errors.CodeSerializationFailure, "decode enriched graph")
		return nil, errors.AddContext(err, errors.CtxStage, errors.StagePersist)
	}
	return &eg, nil
}
