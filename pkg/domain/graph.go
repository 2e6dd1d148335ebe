package domain

// Node is one step of a workflow graph.
// Fields the editor attaches for rendering (position, label, style) are not
// part of the model and are dropped when decoding.
type Node struct {
	ID   string                 `json:"id"`
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data,omitempty"`
}

// Edge is a directed "produces input for" link between two nodes.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// Graph is the unit submitted for one run.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Predecessors maps every node id to the distinct ids of its direct
// predecessors, in edge order. Parallel edges between the same pair count once.
func (g *Graph) Predecessors() map[string][]string {
	preds := make(map[string][]string, len(g.Nodes))
	seen := make(map[[2]string]bool, len(g.Edges))
	for _, n := range g.Nodes {
		preds[n.ID] = nil
	}
	for _, e := range g.Edges {
		key := [2]string{e.Source, e.Target}
		if seen[key] {
			continue
		}
		seen[key] = true
		preds[e.Target] = append(preds[e.Target], e.Source)
	}
	return preds
}

// Successors maps every node id to the distinct ids of its direct successors,
// in edge order.
func (g *Graph) Successors() map[string][]string {
	succ := make(map[string][]string, len(g.Nodes))
	seen := make(map[[2]string]bool, len(g.Edges))
	for _, n := range g.Nodes {
		succ[n.ID] = nil
	}
	for _, e := range g.Edges {
		key := [2]string{e.Source, e.Target}
		if seen[key] {
			continue
		}
		seen[key] = true
		succ[e.Source] = append(succ[e.Source], e.Target)
	}
	return succ
}
