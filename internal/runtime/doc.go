// Package runtime turns incoming events into executions. It loads the graph,
// runs it on a bounded worker pool, routes it through the graph's debug hub
// when someone is watching and keeps the finished trace.
package runtime
