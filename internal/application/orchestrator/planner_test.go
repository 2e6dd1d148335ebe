package orchestrator

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/aescanero/synapse/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanDiamond(t *testing.T) {
	g := &domain.Graph{
		Nodes: nodes("4", "3", "2", "1"),
		Edges: []domain.Edge{edge("a", "1", "2"), edge("b", "1", "3"), edge("c", "2", "4"), edge("d", "3", "4")},
	}

	plan, err := NewPlanner().Plan(g)
	require.NoError(t, err)
	assert.Equal(t, []domain.Stage{{"1"}, {"2", "3"}, {"4"}}, plan.Stages)
	assert.Equal(t, 4, plan.NodeCount())
	assert.Equal(t, 1, plan.StageOf("3"))
}

func TestPlanIndependentNodesShareStage(t *testing.T) {
	g := &domain.Graph{Nodes: nodes("c", "a", "b")}
	plan, err := NewPlanner().Plan(g)
	require.NoError(t, err)
	assert.Equal(t, []domain.Stage{{"a", "b", "c"}}, plan.Stages)
}

func TestPlanParallelEdgesCountOnce(t *testing.T) {
	g := &domain.Graph{
		Nodes: nodes("a", "b"),
		Edges: []domain.Edge{edge("e1", "a", "b"), edge("e2", "a", "b")},
	}
	plan, err := NewPlanner().Plan(g)
	require.NoError(t, err)
	assert.Equal(t, []domain.Stage{{"a"}, {"b"}}, plan.Stages)
}

func TestPlanRejectsCycleAsInternalError(t *testing.T) {
	g := &domain.Graph{
		Nodes: nodes("root", "a", "b"),
		Edges: []domain.Edge{edge("e1", "root", "a"), edge("e2", "a", "b"), edge("e3", "b", "a")},
	}
	_, err := NewPlanner().Plan(g)
	var ie *domain.InternalError
	require.ErrorAs(t, err, &ie)
	assert.ErrorIs(t, err, domain.ErrInternal)
}

// randomDAG only adds edges from lower to higher index, so it is acyclic.
func randomDAG(r *rand.Rand, n int) *domain.Graph {
	g := &domain.Graph{}
	for i := 0; i < n; i++ {
		g.Nodes = append(g.Nodes, domain.Node{ID: fmt.Sprintf("n%02d", i), Type: "log"})
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if r.Intn(4) == 0 {
				g.Edges = append(g.Edges, edge(fmt.Sprintf("e%d_%d", i, j), g.Nodes[i].ID, g.Nodes[j].ID))
			}
		}
	}
	r.Shuffle(len(g.Nodes), func(i, j int) { g.Nodes[i], g.Nodes[j] = g.Nodes[j], g.Nodes[i] })
	return g
}

func TestPlanProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		g := randomDAG(r, 1+r.Intn(20))
		require.NoError(t, NewValidator().Validate(g))

		plan, err := NewPlanner().Plan(g)
		require.NoError(t, err)

		// Every node appears in exactly one stage.
		assert.Equal(t, len(g.Nodes), plan.NodeCount())
		seen := map[string]bool{}
		for _, stage := range plan.Stages {
			assert.IsIncreasing(t, []string(stage))
			for _, id := range stage {
				assert.False(t, seen[id], "node %s scheduled twice", id)
				seen[id] = true
			}
		}

		// Every edge goes from an earlier stage to a later one.
		for _, e := range g.Edges {
			assert.Less(t, plan.StageOf(e.Source), plan.StageOf(e.Target), "edge %s", e.ID)
		}

		// Planning is deterministic.
		again, err := NewPlanner().Plan(g)
		require.NoError(t, err)
		assert.Equal(t, plan, again)
	}
}
