// Package graph defines the data model of a node graph: nodes, pins,
// connections and variables, together with the read-only indexes the engine
// uses while walking it.
//
// # Exec and data pins
//
// Every pin is either an exec pin or a typed data pin. Exec connections
// describe control flow: "run the target after the source has finished this
// branch". Data connections describe values, which are pulled on demand by
// the engine when a node asks for one of its inputs.
//
//	[event:command] --exec--> [flow:branch] --true--> [action:log]
//	                               ^
//	       [logic:compare] --result┘
//
// A Graph is loaded once per execution and is never mutated by the engine,
// so a single *Graph may be shared by any number of concurrent executions.
// Editing operations (RewirePins) are meant for the editor side only.
package graph
