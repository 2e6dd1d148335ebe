package domain

// Stage is a set of node ids with no dependency among them, sorted by id.
type Stage []string

// ExecutionPlan is the ordered list of stages derived from a validated graph.
// Every dependency of a node lives in an earlier stage.
type ExecutionPlan struct {
	Stages []Stage `json:"stages"`
}

// NodeCount returns the number of scheduled nodes.
func (p ExecutionPlan) NodeCount() int {
	n := 0
	for _, s := range p.Stages {
		n += len(s)
	}
	return n
}

// StageOf returns the index of the stage holding id, or -1.
func (p ExecutionPlan) StageOf(id string) int {
	for i, s := range p.Stages {
		for _, member := range s {
			if member == id {
				return i
			}
		}
	}
	return -1
}
