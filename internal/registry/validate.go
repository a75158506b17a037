package registry

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/nodeflow/internal/graph"
)

// validateDefinition checks the shape of a definition against a zero-value
// node: executors need an exec input (event nodes excepted), evaluators must
// expose at least one data output, and pin ids must be unique per direction.
func validateDefinition(def *Definition) error {
	if def == nil {
		return fmt.Errorf("registry: nil definition")
	}
	if def.Type == "" {
		return fmt.Errorf("registry: definition without a type")
	}
	if def.Execute == nil && def.Evaluate == nil {
		return fmt.Errorf("registry: node type '%s' has neither an executor nor an evaluator", def.Type)
	}

	var errs []string
	zero := &graph.Node{Type: def.Type}
	inputs, outputs := def.InputPins(zero), def.OutputPins(zero)

	if def.Execute != nil && def.Trigger == "" && !hasExec(inputs) {
		errs = append(errs, "executor declared without an exec input pin")
	}
	if def.Evaluate != nil && !hasData(outputs) {
		errs = append(errs, "evaluator declared without a data output pin")
	}
	if def.Execute == nil && (hasExec(inputs) || hasExec(outputs)) {
		errs = append(errs, "data node declares exec pins")
	}
	errs = append(errs, duplicatePins(inputs)...)
	errs = append(errs, duplicatePins(outputs)...)

	if len(errs) > 0 {
		return fmt.Errorf("registry: node type '%s':\n- %s", def.Type, strings.Join(errs, "\n- "))
	}
	return nil
}

func hasExec(pins []graph.Pin) bool {
	for _, p := range pins {
		if p.IsExec() {
			return true
		}
	}
	return false
}

func hasData(pins []graph.Pin) bool {
	for _, p := range pins {
		if !p.IsExec() {
			return true
		}
	}
	return false
}

func duplicatePins(pins []graph.Pin) []string {
	var errs []string
	seen := make(map[string]struct{}, len(pins))
	for _, p := range pins {
		if _, dup := seen[p.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate pin id '%s'", p.ID))
		}
		seen[p.ID] = struct{}{}
	}
	return errs
}
