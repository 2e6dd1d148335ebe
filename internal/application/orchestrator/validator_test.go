package orchestrator

import (
	"errors"
	"testing"

	"github.com/aescanero/synapse/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodes(ids ...string) []domain.Node {
	out := make([]domain.Node, len(ids))
	for i, id := range ids {
		out[i] = domain.Node{ID: id, Type: "log"}
	}
	return out
}

func edge(id, source, target string) domain.Edge {
	return domain.Edge{ID: id, Source: source, Target: target}
}

func validationError(t *testing.T, err error) *domain.ValidationError {
	t.Helper()
	require.Error(t, err)
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve), "expected *domain.ValidationError, got %T", err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	return ve
}

func TestValidateAcceptsDAG(t *testing.T) {
	g := &domain.Graph{
		Nodes: nodes("1", "2", "3", "4"),
		Edges: []domain.Edge{edge("a", "1", "2"), edge("b", "1", "3"), edge("c", "2", "4"), edge("d", "3", "4")},
	}
	assert.NoError(t, NewValidator().Validate(g))
}

func TestValidateSingleNode(t *testing.T) {
	assert.NoError(t, NewValidator().Validate(&domain.Graph{Nodes: nodes("only")}))
}

func TestValidateDuplicateNode(t *testing.T) {
	g := &domain.Graph{Nodes: nodes("a", "b", "a")}
	ve := validationError(t, NewValidator().Validate(g))
	assert.Equal(t, domain.ValidationDuplicateNode, ve.Kind)
	assert.Equal(t, "a", ve.NodeID)
}

func TestValidateDanglingEdge(t *testing.T) {
	tests := []struct {
		name    string
		edge    domain.Edge
		missing string
	}{
		{"unknown source", edge("e1", "X", "Y"), "X"},
		{"unknown target", edge("e2", "Y", "Z"), "Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &domain.Graph{Nodes: nodes("Y"), Edges: []domain.Edge{tt.edge}}
			ve := validationError(t, NewValidator().Validate(g))
			assert.Equal(t, domain.ValidationDanglingEdge, ve.Kind)
			assert.Equal(t, tt.edge.ID, ve.EdgeID)
			assert.Equal(t, tt.missing, ve.NodeID)
		})
	}
}

func TestValidateCycle(t *testing.T) {
	g := &domain.Graph{
		Nodes: nodes("A", "B", "C"),
		Edges: []domain.Edge{edge("e1", "A", "B"), edge("e2", "B", "C"), edge("e3", "C", "A")},
	}
	ve := validationError(t, NewValidator().Validate(g))
	assert.Equal(t, domain.ValidationCycleDetected, ve.Kind)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, ve.Cycle)
}

func TestValidateCycleBehindEntryPoint(t *testing.T) {
	g := &domain.Graph{
		Nodes: nodes("start", "x", "y"),
		Edges: []domain.Edge{edge("e1", "start", "x"), edge("e2", "x", "y"), edge("e3", "y", "x")},
	}
	ve := validationError(t, NewValidator().Validate(g))
	assert.Equal(t, domain.ValidationCycleDetected, ve.Kind)
	assert.ElementsMatch(t, []string{"x", "y"}, ve.Cycle)
}

func TestValidateSelfLoop(t *testing.T) {
	g := &domain.Graph{Nodes: nodes("a"), Edges: []domain.Edge{edge("e1", "a", "a")}}
	ve := validationError(t, NewValidator().Validate(g))
	assert.Equal(t, domain.ValidationCycleDetected, ve.Kind)
	assert.Equal(t, []string{"a"}, ve.Cycle)
}

func TestValidateEmptyGraph(t *testing.T) {
	for name, g := range map[string]*domain.Graph{
		"nil":   nil,
		"empty": {},
	} {
		t.Run(name, func(t *testing.T) {
			ve := validationError(t, NewValidator().Validate(g))
			assert.Equal(t, domain.ValidationNoEntryPoint, ve.Kind)
		})
	}
}

func TestValidateChecksInOrder(t *testing.T) {
	// Duplicate ids win over a dangling edge.
	g := &domain.Graph{
		Nodes: nodes("a", "a"),
		Edges: []domain.Edge{edge("e1", "a", "missing")},
	}
	ve := validationError(t, NewValidator().Validate(g))
	assert.Equal(t, domain.ValidationDuplicateNode, ve.Kind)

	// A dangling edge wins over a cycle.
	g = &domain.Graph{
		Nodes: nodes("a", "b"),
		Edges: []domain.Edge{edge("e1", "a", "b"), edge("e2", "b", "a"), edge("e3", "a", "ghost")},
	}
	ve = validationError(t, NewValidator().Validate(g))
	assert.Equal(t, domain.ValidationDanglingEdge, ve.Kind)
}

func TestValidateIgnoresParallelEdges(t *testing.T) {
	g := &domain.Graph{
		Nodes: nodes("a", "b"),
		Edges: []domain.Edge{edge("e1", "a", "b"), edge("e2", "a", "b")},
	}
	assert.NoError(t, NewValidator().Validate(g))
}
