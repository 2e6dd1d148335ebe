package graphfile

import (
	"fmt"

	"github.com/aescanero/synapse/pkg/domain"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

type hclDocument struct {
	Nodes []hclNode `hcl:"node,block"`
	Edges []hclEdge `hcl:"edge,block"`
}

type hclNode struct {
	ID   string    `hcl:"id,label"`
	Type string    `hcl:"type,attr"`
	Data cty.Value `hcl:"data,optional"`
}

type hclEdge struct {
	ID     string `hcl:"id,label"`
	Source string `hcl:"source,attr"`
	Target string `hcl:"target,attr"`
	Label  string `hcl:"label,optional"`
}

// DecodeHCL decodes a graph from HCL source. filename is used in diagnostics.
func DecodeHCL(src []byte, filename string) (*domain.Graph, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %s", filename, diags.Error())
	}

	var doc hclDocument
	diags = gohcl.DecodeBody(file.Body, nil, &doc)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %s", filename, diags.Error())
	}

	graph := &domain.Graph{
		Nodes: make([]domain.Node, 0, len(doc.Nodes)),
		Edges: make([]domain.Edge, 0, len(doc.Edges)),
	}
	for _, n := range doc.Nodes {
		node := domain.Node{ID: n.ID, Type: n.Type}
		if !n.Data.IsNull() {
			native, err := ctyToNative(n.Data)
			if err != nil {
				return nil, fmt.Errorf("node %q data: %w", n.ID, err)
			}
			data, ok := native.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("node %q data must be an object, got %s", n.ID, n.Data.Type().FriendlyName())
			}
			node.Data = data
		}
		graph.Nodes = append(graph.Nodes, node)
	}
	for _, e := range doc.Edges {
		graph.Edges = append(graph.Edges, domain.Edge{
			ID:     e.ID,
			Source: e.Source,
			Target: e.Target,
			Label:  e.Label,
		})
	}
	return graph, nil
}

// ctyToNative converts a cty.Value to plain Go values: strings, float64
// numbers, bools, []interface{} and map[string]interface{}.
func ctyToNative(v cty.Value) (interface{}, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("could not convert number: %w", err)
		}
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		items := make([]interface{}, 0, v.LengthInt())
		it := v.ElementIterator()
		for it.Next() {
			_, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, err
			}
			items = append(items, native)
		}
		return items, nil

	case ty.IsObjectType() || ty.IsMapType():
		m := make(map[string]interface{})
		it := v.ElementIterator()
		for it.Next() {
			key, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, fmt.Errorf("in attribute %q: %w", key.AsString(), err)
			}
			m[key.AsString()] = native
		}
		return m, nil

	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}
