package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation is wrapped by every *ValidationError.
	ErrValidation = errors.New("graph validation failed")
	// ErrInternal is wrapped by every *InternalError.
	ErrInternal = errors.New("internal error")
	// ErrRunNotFound is returned by storage and the manager for unknown run ids.
	ErrRunNotFound = errors.New("run not found")
	// ErrRunTerminal is returned when cancelling a run that already finished.
	ErrRunTerminal = errors.New("run already in terminal state")
	// ErrRunActive is returned when deleting a run that has not finished.
	ErrRunActive = errors.New("run is still active")
)

// ValidationKind classifies a structural problem in a submitted graph.
type ValidationKind string

const (
	ValidationDuplicateNode ValidationKind = "DuplicateNode"
	ValidationDanglingEdge  ValidationKind = "DanglingEdge"
	ValidationCycleDetected ValidationKind = "CycleDetected"
	ValidationNoEntryPoint  ValidationKind = "NoEntryPoint"
)

// ValidationError rejects a graph before any node runs.
type ValidationError struct {
	Kind   ValidationKind `json:"kind"`
	NodeID string         `json:"node_id,omitempty"`
	EdgeID string         `json:"edge_id,omitempty"`
	Cycle  []string       `json:"cycle,omitempty"`
}

// DuplicateNode reports a node id used more than once.
func DuplicateNode(id string) *ValidationError {
	return &ValidationError{Kind: ValidationDuplicateNode, NodeID: id}
}

// DanglingEdge reports an edge whose endpoint is not a node of the graph.
func DanglingEdge(edgeID, missingNodeID string) *ValidationError {
	return &ValidationError{Kind: ValidationDanglingEdge, EdgeID: edgeID, NodeID: missingNodeID}
}

// CycleDetected reports the node ids lying on one cycle.
func CycleDetected(nodeIDs []string) *ValidationError {
	return &ValidationError{Kind: ValidationCycleDetected, Cycle: nodeIDs}
}

// NoEntryPoint reports a graph where every node has an incoming edge.
func NoEntryPoint() *ValidationError {
	return &ValidationError{Kind: ValidationNoEntryPoint}
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case ValidationDuplicateNode:
		return fmt.Sprintf("%s: node id %q is used more than once", e.Kind, e.NodeID)
	case ValidationDanglingEdge:
		return fmt.Sprintf("%s: edge %q references unknown node %q", e.Kind, e.EdgeID, e.NodeID)
	case ValidationCycleDetected:
		return fmt.Sprintf("%s: %s", e.Kind, strings.Join(e.Cycle, " -> "))
	case ValidationNoEntryPoint:
		return fmt.Sprintf("%s: graph has no node without incoming edges", e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InternalError signals a logic defect, never a user-caused condition.
type InternalError struct {
	Op      string
	Message string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error in %s: %s", e.Op, e.Message)
}

func (e *InternalError) Unwrap() error { return ErrInternal }

// StepErrorKind classifies a node failure.
type StepErrorKind string

const (
	StepErrUnknownStepType  StepErrorKind = "UnknownStepType"
	StepErrInvalidParams    StepErrorKind = "InvalidParams"
	StepErrIO               StepErrorKind = "IoError"
	StepErrTimedOut         StepErrorKind = "TimedOut"
	StepErrAgentUnavailable StepErrorKind = "AgentUnavailable"
	StepErrCancelled        StepErrorKind = "Cancelled"
	StepErrHandlerPanic     StepErrorKind = "HandlerPanic"
	StepErrHandler          StepErrorKind = "HandlerError"
)

// StepError is the failure of a single node. It never aborts sibling branches.
type StepError struct {
	Kind    StepErrorKind
	Message string
	Err     error
}

// NewStepError builds a StepError with a formatted message.
func NewStepError(kind StepErrorKind, format string, args ...interface{}) *StepError {
	return &StepError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapStepError builds a StepError around a cause.
func WrapStepError(kind StepErrorKind, err error, format string, args ...interface{}) *StepError {
	return &StepError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *StepError) Error() string {
	switch {
	case e.Message == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Message == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
}

func (e *StepError) Unwrap() error { return e.Err }

// Detail converts the error into the form stored on a StepResult.
func (e *StepError) Detail() *ErrorDetail {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	return &ErrorDetail{Kind: e.Kind, Message: msg}
}

// AsStepError classifies any handler error. Context errors map to TimedOut
// and Cancelled, anything unclassified becomes HandlerError.
func AsStepError(err error) *StepError {
	if err == nil {
		return nil
	}
	var se *StepError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &StepError{Kind: StepErrTimedOut, Err: err}
	case errors.Is(err, context.Canceled):
		return &StepError{Kind: StepErrCancelled, Err: err}
	default:
		return &StepError{Kind: StepErrHandler, Err: err}
	}
}
