package expr

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/zclconf/go-cty/cty"
)

// ToCty converts a JSON-like Go value into a cty.Value. Maps become objects
// and slices become tuples, so heterogeneous data from node payloads keeps
// its shape. Values it cannot represent are converted through JSON.
func ToCty(v any) cty.Value {
	switch x := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType)
	case cty.Value:
		return x
	case string:
		return cty.StringVal(x)
	case bool:
		return cty.BoolVal(x)
	case int:
		return cty.NumberIntVal(int64(x))
	case int8:
		return cty.NumberIntVal(int64(x))
	case int16:
		return cty.NumberIntVal(int64(x))
	case int32:
		return cty.NumberIntVal(int64(x))
	case int64:
		return cty.NumberIntVal(x)
	case uint:
		return cty.NumberUIntVal(uint64(x))
	case uint8:
		return cty.NumberUIntVal(uint64(x))
	case uint16:
		return cty.NumberUIntVal(uint64(x))
	case uint32:
		return cty.NumberUIntVal(uint64(x))
	case uint64:
		return cty.NumberUIntVal(x)
	case float32:
		return floatVal(float64(x))
	case float64:
		return floatVal(x)
	case json.Number:
		n, err := cty.ParseNumberVal(string(x))
		if err != nil {
			return cty.StringVal(string(x))
		}
		return n
	case map[string]any:
		if len(x) == 0 {
			return cty.EmptyObjectVal
		}
		attrs := make(map[string]cty.Value, len(x))
		for k, item := range x {
			attrs[k] = ToCty(item)
		}
		return cty.ObjectVal(attrs)
	case map[string]string:
		if len(x) == 0 {
			return cty.EmptyObjectVal
		}
		attrs := make(map[string]cty.Value, len(x))
		for k, item := range x {
			attrs[k] = cty.StringVal(item)
		}
		return cty.ObjectVal(attrs)
	case []any:
		if len(x) == 0 {
			return cty.EmptyTupleVal
		}
		items := make([]cty.Value, len(x))
		for i, item := range x {
			items[i] = ToCty(item)
		}
		return cty.TupleVal(items)
	case []string:
		if len(x) == 0 {
			return cty.EmptyTupleVal
		}
		items := make([]cty.Value, len(x))
		for i, item := range x {
			items[i] = cty.StringVal(item)
		}
		return cty.TupleVal(items)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return cty.StringVal(fmt.Sprint(v))
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return cty.StringVal(fmt.Sprint(v))
	}
	return ToCty(generic)
}

func floatVal(f float64) cty.Value {
	if math.IsNaN(f) {
		return cty.NullVal(cty.Number)
	}
	return cty.NumberFloatVal(f)
}

// FromCty converts a cty.Value back into plain Go values: strings, float64,
// bools, map[string]any and []any.
func FromCty(val cty.Value) (any, error) {
	if !val.IsKnown() || val.IsNull() {
		return nil, nil
	}
	ty := val.Type()
	if ty.IsPrimitiveType() {
		switch ty {
		case cty.String:
			return val.AsString(), nil
		case cty.Number:
			f, _ := val.AsBigFloat().Float64()
			return f, nil
		case cty.Bool:
			return val.True(), nil
		default:
			return nil, fmt.Errorf("unsupported primitive type: %s", ty.FriendlyName())
		}
	}
	if ty.IsObjectType() || ty.IsMapType() {
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			item, err := FromCty(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = item
		}
		return out, nil
	}
	if ty.IsTupleType() || ty.IsListType() || ty.IsSetType() {
		out := make([]any, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			item, err := FromCty(v)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported cty.Type for conversion: %s", ty.FriendlyName())
}
