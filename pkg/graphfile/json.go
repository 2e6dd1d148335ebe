package graphfile

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/aescanero/synapse/pkg/domain"
)

// DecodeJSON decodes a graph object or a bare node array.
func DecodeJSON(data []byte) (*domain.Graph, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty graph document")
	}

	graph := &domain.Graph{}
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &graph.Nodes); err != nil {
			return nil, fmt.Errorf("failed to decode node array: %w", err)
		}
	} else if err := json.Unmarshal(trimmed, graph); err != nil {
		return nil, fmt.Errorf("failed to decode graph: %w", err)
	}

	if graph.Nodes == nil {
		graph.Nodes = []domain.Node{}
	}
	if graph.Edges == nil {
		graph.Edges = []domain.Edge{}
	}
	return graph, nil
}
