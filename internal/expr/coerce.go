package expr

import (
	"errors"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// ErrNull is returned when coercing a missing value.
var ErrNull = errors.New("value is null")

func coerce(v any, ty cty.Type) (cty.Value, error) {
	val := ToCty(v)
	if !val.IsKnown() || val.IsNull() {
		return cty.NilVal, ErrNull
	}
	out, err := convert.Convert(val, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("cannot use %s as %s: %w", val.Type().FriendlyName(), ty.FriendlyName(), err)
	}
	if out.IsNull() {
		return cty.NilVal, ErrNull
	}
	return out, nil
}

// AsNumber converts v to a float64 using the same rules as expressions:
// numeric strings are parsed, everything else except numbers is an error.
func AsNumber(v any) (float64, error) {
	val, err := coerce(v, cty.Number)
	if err != nil {
		return 0, err
	}
	f, _ := val.AsBigFloat().Float64()
	return f, nil
}

// AsString converts v to a string. Numbers and bools are formatted the way
// expressions format them.
func AsString(v any) (string, error) {
	val, err := coerce(v, cty.String)
	if err != nil {
		return "", err
	}
	return val.AsString(), nil
}

// AsBool converts v to a bool. Only bools and the strings "true" and
// "false" convert.
func AsBool(v any) (bool, error) {
	val, err := coerce(v, cty.Bool)
	if err != nil {
		return false, err
	}
	return val.True(), nil
}
