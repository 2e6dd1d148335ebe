// Package domain holds the types shared by every layer of the workflow engine:
// the submitted graph, the derived execution plan, per-node step results, the
// aggregated run report and the run record kept by state storage.
//
// The error taxonomy also lives here so adapters and API layers can classify
// failures with errors.Is and errors.As without importing the orchestrator.
package domain
