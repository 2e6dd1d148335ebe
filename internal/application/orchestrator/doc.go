// Package orchestrator implements the workflow graph compiler and execution
// orchestrator.
//
// A run goes through four components:
//   - Validator: rejects duplicate ids, dangling edges, cycles and graphs without an entry point
//   - Planner: layers the validated graph into stages of independent nodes
//   - Executor: runs the stages in order, members of a stage concurrently,
//     routing outputs along edges and skipping the descendants of failed nodes
//   - Manager: run lifecycle (synchronous run, asynchronous submit, cancel),
//     event publication, state storage and metrics
package orchestrator
