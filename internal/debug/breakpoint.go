package debug

import (
	"strings"

	"github.com/specialistvlad/nodeflow/internal/expr"
)

// Names a breakpoint condition may refer to.
var conditionScope = []string{"user", "args", "variables", "vars", "event"}

// Breakpoint pauses a session before its node runs.
type Breakpoint struct {
	NodeID    string `json:"nodeId"`
	Condition string `json:"condition,omitempty"`
	Enabled   bool   `json:"enabled"`
	// Invalid holds the reason a condition could not be compiled. Such a
	// breakpoint never matches.
	Invalid string `json:"invalid,omitempty"`

	compiled *expr.Expression
}

func newBreakpoint(nodeID, condition string) *Breakpoint {
	bp := &Breakpoint{NodeID: nodeID, Condition: strings.TrimSpace(condition), Enabled: true}
	if bp.Condition == "" {
		return bp
	}
	e, err := expr.Compile(bp.Condition)
	if err == nil {
		err = e.CheckReferences(conditionScope...)
	}
	if err != nil {
		bp.Invalid = err.Error()
		return bp
	}
	bp.compiled = e
	return bp
}

// matches reports whether the breakpoint fires for the given scope.
func (b *Breakpoint) matches(scope map[string]any) (bool, error) {
	if !b.Enabled {
		return false, nil
	}
	if b.Condition == "" {
		return true, nil
	}
	if b.compiled == nil {
		return false, nil
	}
	return b.compiled.Match(scope)
}
