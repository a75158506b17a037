// Package convert answers which converter nodes the editor has to insert
// when a connection joins pins of different kinds. The engine never
// consults it: by the time a graph runs, every connection is compatible.
package convert

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/nodeflow/internal/graph"
)

// ErrNoChain is returned when no sequence of converters joins two kinds.
var ErrNoChain = errors.New("no converter chain")

// Node types of the converters module.
const (
	ToString  = "convert:to_string"
	ToNumber  = "convert:to_number"
	ToBoolean = "convert:to_boolean"
	ToJSON    = "convert:to_json"
)

type pair struct {
	from, to graph.PinKind
}

// direct lists the single-node conversions.
var direct = map[pair]string{
	{graph.KindNumber, graph.KindString}:  ToString,
	{graph.KindBoolean, graph.KindString}: ToString,
	{graph.KindString, graph.KindNumber}:  ToNumber,
	{graph.KindBoolean, graph.KindNumber}: ToNumber,
	{graph.KindString, graph.KindBoolean}: ToBoolean,
	{graph.KindNumber, graph.KindBoolean}: ToBoolean,
	{graph.KindObject, graph.KindString}:  ToJSON,
	{graph.KindArray, graph.KindString}:   ToJSON,
}

// kinds is the search order for multi-step chains.
var kinds = []graph.PinKind{
	graph.KindString,
	graph.KindNumber,
	graph.KindBoolean,
	graph.KindObject,
	graph.KindArray,
}

// Chain returns the converter node types to insert, in order, between an
// output of kind from and an input of kind to. Compatible kinds need no
// converters and yield an empty chain. The shortest chain is returned.
func Chain(from, to graph.PinKind) ([]string, error) {
	if graph.Compatible(from, to) {
		return nil, nil
	}
	if from == graph.KindExec || to == graph.KindExec {
		return nil, fmt.Errorf("%w: exec pins only connect to exec pins", ErrNoChain)
	}

	type path struct {
		kind  graph.PinKind
		steps []string
	}
	seen := map[graph.PinKind]bool{from: true}
	queue := []path{{kind: from}}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, next := range kinds {
			conv, ok := direct[pair{p.kind, next}]
			if !ok || seen[next] {
				continue
			}
			steps := append(append([]string{}, p.steps...), conv)
			if next == to {
				return steps, nil
			}
			seen[next] = true
			queue = append(queue, path{kind: next, steps: steps})
		}
	}
	return nil, fmt.Errorf("%w from %s to %s", ErrNoChain, from, to)
}
