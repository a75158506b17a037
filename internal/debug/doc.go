// Package debug pauses graph executions on breakpoints and lets a group of
// observers inspect and steer them.
//
// Each graph has a Hub holding its breakpoints, the observers watching it
// and at most one active session. A session is an execution started through
// Hub.Run: the hub installs itself as the engine's before-node hook, and
// when an enabled breakpoint matches it snapshots the node's inputs,
// broadcasts a paused event and blocks the executing goroutine until an
// observer continues or stops the session.
//
// Every state change is broadcast to all observers of the graph, so that
// several people debugging together always see the same thing.
package debug
