package graph

import (
	"fmt"
	"regexp"
	"strconv"
)

// indexedPinRegex matches pin ids of the form `name[3]`.
var indexedPinRegex = regexp.MustCompile(`^([a-zA-Z0-9_-]+)\[(\d+)\]$`)

// IndexedPinID returns the id of the i-th pin of a repeated pin group, using
// the same `name[i]` addressing as node ids elsewhere in the system.
func IndexedPinID(name string, i int) string {
	return fmt.Sprintf("%s[%d]", name, i)
}

// ParseIndexedPinID splits `name[i]` into its parts.
func ParseIndexedPinID(id string) (string, int, bool) {
	matches := indexedPinRegex.FindStringSubmatch(id)
	if len(matches) != 3 {
		return "", 0, false
	}
	i, err := strconv.Atoi(matches[2])
	if err != nil {
		return "", 0, false
	}
	return matches[1], i, true
}

// Compatible reports whether a value of kind from may flow into a pin of
// kind to. Exec pins only connect to exec pins.
func Compatible(from, to PinKind) bool {
	if from == KindExec || to == KindExec {
		return from == to
	}
	if from == KindWildcard || to == KindWildcard {
		return true
	}
	return from == to
}

// FindPin looks a pin up by id.
func FindPin(pins []Pin, id string) (Pin, bool) {
	for _, p := range pins {
		if p.ID == id {
			return p, true
		}
	}
	return Pin{}, false
}
