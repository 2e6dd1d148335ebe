// Package steps implements the step registry and the built-in step handlers.
//
// The registry is a capability table from a node's type tag to a Handler,
// populated once at process start:
//   - trigger (alias input): marks the start of a workflow
//   - log: emits its message as a log line
//   - delay: waits for ms milliseconds
//   - file, file_move: filesystem writes and renames
//   - agent: delegates a prompt to an LLM client
//   - end (alias output): collects its predecessors
//
// New step types are added by registering another Handler.
package steps
