// Package workers implements the worker pool for asynchronously submitted runs.
//
// The worker pool manages a fixed number of goroutines that:
//   - Take run ids from a bounded queue
//   - Execute the run through the orchestrator
//   - Track their own idle/busy/stopped status
//
// The health monitor tracks worker status and records metrics.
package workers
