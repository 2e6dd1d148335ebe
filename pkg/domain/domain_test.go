package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphAdjacencyDeduplicatesParallelEdges(t *testing.T) {
	g := &Graph{
		Nodes: []Node{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Edges: []Edge{
			{ID: "1", Source: "a", Target: "c"},
			{ID: "2", Source: "a", Target: "c"},
			{ID: "3", Source: "b", Target: "c"},
		},
	}

	preds := g.Predecessors()
	assert.Equal(t, []string{"a", "b"}, preds["c"])
	assert.Empty(t, preds["a"])
	assert.Contains(t, preds, "b")

	succ := g.Successors()
	assert.Equal(t, []string{"c"}, succ["a"])
	assert.Equal(t, []string{"c"}, succ["b"])
}

func TestValidationErrorMessages(t *testing.T) {
	tests := []struct {
		err  *ValidationError
		want string
	}{
		{DuplicateNode("n1"), `DuplicateNode: node id "n1" is used more than once`},
		{DanglingEdge("e1", "X"), `DanglingEdge: edge "e1" references unknown node "X"`},
		{CycleDetected([]string{"A", "B"}), "CycleDetected: A -> B"},
		{NoEntryPoint(), "NoEntryPoint: graph has no node without incoming edges"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
		assert.True(t, errors.Is(tt.err, ErrValidation))
	}
}

func TestInternalErrorWrapsSentinel(t *testing.T) {
	err := fmt.Errorf("run: %w", &InternalError{Op: "plan", Message: "1 of 3 nodes left unscheduled"})
	assert.ErrorIs(t, err, ErrInternal)
	assert.Contains(t, err.Error(), "internal error in plan")
}

func TestAsStepError(t *testing.T) {
	assert.Nil(t, AsStepError(nil))

	se := NewStepError(StepErrIO, "disk %s", "full")
	assert.Same(t, se, AsStepError(fmt.Errorf("wrapped: %w", se)))

	assert.Equal(t, StepErrTimedOut, AsStepError(context.DeadlineExceeded).Kind)
	assert.Equal(t, StepErrCancelled, AsStepError(context.Canceled).Kind)
	assert.Equal(t, StepErrHandler, AsStepError(errors.New("odd")).Kind)
}

func TestStepErrorDetail(t *testing.T) {
	cause := errors.New("permission denied")
	se := WrapStepError(StepErrIO, cause, "open %s", "x.txt")

	assert.ErrorIs(t, se, cause)
	assert.Equal(t, "IoError: open x.txt: permission denied", se.Error())

	detail := se.Detail()
	assert.Equal(t, StepErrIO, detail.Kind)
	assert.Contains(t, detail.Message, "open x.txt")
	assert.Contains(t, detail.Message, "permission denied")

	bare := AsStepError(context.Canceled).Detail()
	require.NotNil(t, bare)
	assert.Equal(t, "context canceled", bare.Message)
}

func TestStatusTerminality(t *testing.T) {
	assert.False(t, StepStatusPending.IsTerminal())
	assert.False(t, StepStatusRunning.IsTerminal())
	assert.True(t, StepStatusSkipped.IsTerminal())
	assert.False(t, RunStatusRunning.IsTerminal())
	assert.True(t, RunStatusCancelled.IsTerminal())
}

func TestReportCounts(t *testing.T) {
	r := &RunReport{Results: map[string]*StepResult{
		"a": {Status: StepStatusSucceeded},
		"b": {Status: StepStatusFailed},
		"c": {Status: StepStatusSkipped},
		"d": {Status: StepStatusSkipped},
	}}
	counts := r.Counts()
	assert.Equal(t, 1, counts[StepStatusSucceeded])
	assert.Equal(t, 1, counts[StepStatusFailed])
	assert.Equal(t, 2, counts[StepStatusSkipped])
}

func TestPlanHelpers(t *testing.T) {
	p := ExecutionPlan{Stages: []Stage{{"a"}, {"b", "c"}}}
	assert.Equal(t, 3, p.NodeCount())
	assert.Equal(t, 1, p.StageOf("c"))
	assert.Equal(t, -1, p.StageOf("z"))
}
