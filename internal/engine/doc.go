// Package engine runs blueprint graphs.
//
// An Execution starts at the graph's trigger nodes and walks exec
// connections depth-first: an executor runs, and every Traverse call it makes
// runs the whole downstream subgraph before returning. Data pins are pulled
// lazily through ResolvePinValue, which evaluates upstream data nodes on
// demand and memoizes their results for the rest of the execution.
//
// Every executor run and every exec hop is recorded in a trace.Recorder. A
// BeforeNodeHook sees each executor before it runs; the debug package uses
// it to pause on breakpoints.
package engine
