package expr

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// ErrEmpty is returned when compiling a blank expression.
var ErrEmpty = errors.New("empty expression")

// functions is the fixed, side-effect-free function table available to
// every expression.
var functions = map[string]function.Function{
	"lower":  stdlib.LowerFunc,
	"upper":  stdlib.UpperFunc,
	"strlen": stdlib.StrlenFunc,
	"length": stdlib.LengthFunc,
	"max":    stdlib.MaxFunc,
	"min":    stdlib.MinFunc,
	"abs":    stdlib.AbsoluteFunc,
}

// Expression is a compiled expression. It is immutable and safe for
// concurrent use.
type Expression struct {
	source string
	expr   hclsyntax.Expression
}

// Compile parses an expression.
func Compile(source string) (*Expression, error) {
	if strings.TrimSpace(source) == "" {
		return nil, ErrEmpty
	}
	parsed, diags := hclsyntax.ParseExpression([]byte(normalize(source)), "condition", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing expression %q: %s", source, diags.Error())
	}
	return &Expression{source: source, expr: parsed}, nil
}

// Source returns the expression as it was written.
func (e *Expression) Source() string {
	return e.source
}

// References returns the root variable names the expression reads, sorted
// and without duplicates.
func (e *Expression) References() []string {
	seen := make(map[string]struct{})
	for _, traversal := range e.expr.Variables() {
		seen[traversal.RootName()] = struct{}{}
	}
	roots := make([]string, 0, len(seen))
	for name := range seen {
		roots = append(roots, name)
	}
	sort.Strings(roots)
	return roots
}

// CheckReferences reports root names that are not in allowed.
func (e *Expression) CheckReferences(allowed ...string) error {
	known := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		known[a] = struct{}{}
	}
	var unknown []string
	for _, ref := range e.References() {
		if _, ok := known[ref]; !ok {
			unknown = append(unknown, ref)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("expression %q references unknown names: %s", e.source, strings.Join(unknown, ", "))
	}
	return nil
}

// Value evaluates the expression and converts the result to a Go value.
func (e *Expression) Value(vars map[string]any) (any, error) {
	val, err := e.eval(vars)
	if err != nil {
		return nil, err
	}
	return FromCty(val)
}

// Match evaluates the expression as a boolean. Null results do not match.
func (e *Expression) Match(vars map[string]any) (bool, error) {
	val, err := e.eval(vars)
	if err != nil {
		return false, err
	}
	if !val.IsKnown() || val.IsNull() {
		return false, nil
	}
	b, err := convert.Convert(val, cty.Bool)
	if err != nil {
		return false, fmt.Errorf("expression %q: result is %s, not bool", e.source, val.Type().FriendlyName())
	}
	return b.True(), nil
}

func (e *Expression) eval(vars map[string]any) (cty.Value, error) {
	ctxVars := make(map[string]cty.Value, len(vars))
	for k, v := range vars {
		ctxVars[k] = ToCty(v)
	}
	evalCtx := &hcl.EvalContext{Variables: ctxVars, Functions: functions}
	val, diags := e.expr.Value(evalCtx)
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("evaluating %q: %s", e.source, diags.Error())
	}
	return val, nil
}
