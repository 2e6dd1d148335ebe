package orchestrator

import (
	"fmt"
	"sort"

	"github.com/aescanero/synapse/pkg/domain"
)

// Planner turns a validated graph into stages of independent nodes.
type Planner struct{}

// NewPlanner creates a new planner
func NewPlanner() *Planner {
	return &Planner{}
}

// Plan layers the graph breadth-first: each stage holds every node whose
// predecessors are all in earlier stages, sorted by id. The graph must have
// passed validation; nodes left unscheduled yield a *domain.InternalError.
func (p *Planner) Plan(g *domain.Graph) (domain.ExecutionPlan, error) {
	succ := g.Successors()
	inDegree := make(map[string]int, len(g.Nodes))
	for _, node := range g.Nodes {
		inDegree[node.ID] = 0
	}
	for _, node := range g.Nodes {
		for _, next := range succ[node.ID] {
			inDegree[next]++
		}
	}

	var ready []string
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}

	plan := domain.ExecutionPlan{}
	scheduled := 0
	for len(ready) > 0 {
		sort.Strings(ready)
		stage := domain.Stage(ready)
		plan.Stages = append(plan.Stages, stage)
		scheduled += len(stage)

		var next []string
		for _, id := range stage {
			for _, s := range succ[id] {
				inDegree[s]--
				if inDegree[s] == 0 {
					next = append(next, s)
				}
			}
		}
		ready = next
	}

	if scheduled != len(inDegree) {
		return domain.ExecutionPlan{}, &domain.InternalError{
			Op:      "plan",
			Message: fmt.Sprintf("%d of %d nodes left unscheduled", len(inDegree)-scheduled, len(inDegree)),
		}
	}
	return plan, nil
}
