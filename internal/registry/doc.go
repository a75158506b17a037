// Package registry maps node type strings to their behaviour.
//
// The Registry is constructed once at process start, populated by Modules
// (groups of related node definitions) and then passed by reference to the
// engine and to any API surface that needs node metadata. Nothing in this
// package is global, so tests can build isolated registries.
//
// A Definition declares its pins, optionally derived from the node's data,
// plus an optional Execute function (action and flow nodes, invoked during
// traversal) and an optional Evaluate function (invoked on demand to produce
// the value of one output data pin). A definition with only Evaluate is a
// pure data node.
package registry
