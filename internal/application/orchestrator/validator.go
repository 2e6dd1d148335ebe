package orchestrator

import (
	"github.com/aescanero/synapse/pkg/domain"
)

// Validator validates graph structures
type Validator struct{}

// NewValidator creates a new graph validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks a graph in a fixed order and fails on the first violation:
// duplicate node ids, dangling edges, cycles, missing entry point.
// The returned error is always a *domain.ValidationError.
func (v *Validator) Validate(g *domain.Graph) error {
	if g == nil || len(g.Nodes) == 0 {
		return domain.NoEntryPoint()
	}

	nodeIDs := make(map[string]bool, len(g.Nodes))
	for _, node := range g.Nodes {
		if nodeIDs[node.ID] {
			return domain.DuplicateNode(node.ID)
		}
		nodeIDs[node.ID] = true
	}

	for _, edge := range g.Edges {
		if !nodeIDs[edge.Source] {
			return domain.DanglingEdge(edge.ID, edge.Source)
		}
		if !nodeIDs[edge.Target] {
			return domain.DanglingEdge(edge.ID, edge.Target)
		}
	}

	if cycle := findCycle(g); cycle != nil {
		return domain.CycleDetected(cycle)
	}

	preds := g.Predecessors()
	for _, node := range g.Nodes {
		if len(preds[node.ID]) == 0 {
			return nil
		}
	}
	return domain.NoEntryPoint()
}

const (
	unvisited = iota
	inProgress
	done
)

// findCycle runs a depth-first traversal in node order and returns the ids on
// the first cycle found, starting at the node the back-edge points to.
func findCycle(g *domain.Graph) []string {
	succ := g.Successors()
	state := make(map[string]int, len(g.Nodes))
	var path []string

	var visit func(id string) []string
	visit = func(id string) []string {
		state[id] = inProgress
		path = append(path, id)
		for _, next := range succ[id] {
			switch state[next] {
			case inProgress:
				for i := len(path) - 1; i >= 0; i-- {
					if path[i] == next {
						cycle := make([]string, len(path)-i)
						copy(cycle, path[i:])
						return cycle
					}
				}
			case unvisited:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}
		path = path[:len(path)-1]
		state[id] = done
		return nil
	}

	for _, node := range g.Nodes {
		if state[node.ID] != unvisited {
			continue
		}
		if cycle := visit(node.ID); cycle != nil {
			return cycle
		}
	}
	return nil
}
