package engine

import (
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/specialistvlad/nodeflow/internal/graph"
)

// ErrBadOverrideKey is returned for keys not shaped "<node>.<in|out>.<pin>".
var ErrBadOverrideKey = errors.New("malformed override key")

// Node ids may contain dots, pin ids may not.
var overrideKeyRegex = regexp.MustCompile(`^(.+)\.(in|out)\.([^.]+)$`)

// OverrideKey addresses one pin of one node.
type OverrideKey struct {
	NodeID    string
	Direction graph.Direction
	PinID     string
}

func (k OverrideKey) String() string {
	return fmt.Sprintf("%s.%s.%s", k.NodeID, k.Direction, k.PinID)
}

// ParseOverrideKey parses "<nodeId>.in.<pinId>" or "<nodeId>.out.<pinId>".
func ParseOverrideKey(s string) (OverrideKey, error) {
	m := overrideKeyRegex.FindStringSubmatch(s)
	if m == nil {
		return OverrideKey{}, fmt.Errorf("%w: %q", ErrBadOverrideKey, s)
	}
	dir := graph.Input
	if m[2] == "out" {
		dir = graph.Output
	}
	return OverrideKey{NodeID: m[1], Direction: dir, PinID: m[3]}, nil
}

// Overrides holds values injected by a debugger. An input override replaces
// whatever the pin would have resolved to. An output override replaces the
// value downstream nodes read from that pin.
type Overrides struct {
	mu     sync.RWMutex
	values map[OverrideKey]any
}

// NewOverrides returns an empty override set.
func NewOverrides() *Overrides {
	return &Overrides{values: make(map[OverrideKey]any)}
}

// Set stores a single override.
func (o *Overrides) Set(k OverrideKey, v any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.values[k] = v
}

// SetKey parses key and stores the override.
func (o *Overrides) SetKey(key string, v any) error {
	k, err := ParseOverrideKey(key)
	if err != nil {
		return err
	}
	o.Set(k, v)
	return nil
}

// Apply stores every entry of values. Nothing is stored if any key is
// malformed.
func (o *Overrides) Apply(values map[string]any) error {
	parsed := make(map[OverrideKey]any, len(values))
	var errs []error
	for key, v := range values {
		k, err := ParseOverrideKey(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		parsed[k] = v
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for k, v := range parsed {
		o.values[k] = v
	}
	return nil
}

// Input returns the override for an input pin.
func (o *Overrides) Input(nodeID, pinID string) (any, bool) {
	return o.get(OverrideKey{NodeID: nodeID, Direction: graph.Input, PinID: pinID})
}

// Output returns the override for an output pin.
func (o *Overrides) Output(nodeID, pinID string) (any, bool) {
	return o.get(OverrideKey{NodeID: nodeID, Direction: graph.Output, PinID: pinID})
}

func (o *Overrides) get(k OverrideKey) (any, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.values[k]
	return v, ok
}

// Snapshot returns a copy keyed by the string form of each key.
func (o *Overrides) Snapshot() map[string]any {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]any, len(o.values))
	for k, v := range o.values {
		out[k.String()] = v
	}
	return out
}
