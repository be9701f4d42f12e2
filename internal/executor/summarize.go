package executor

import (
	"reflect"
	"runtime"
)

// summarizeValue renders a value flowing on an edge safe for the event
// stream: arrays are reduced to their length plus their first ten elements,
// functions to their name, everything else (scalars, maps, structs) passes
// through unchanged. The executor never otherwise inspects the values it
// routes between nodes.
func summarizeValue(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		n := rv.Len()
		first := n
		if first > 10 {
			first = 10
		}
		firstTen := make([]any, first)
		for i := 0; i < first; i++ {
			firstTen[i] = rv.Index(i).Interface()
		}
		return map[string]any{
			"type":     "array",
			"length":   n,
			"first_10": firstTen,
		}
	case reflect.Func:
		return map[string]any{
			"type": "function",
			"name": funcName(v),
		}
	default:
		return v
	}
}

func funcName(v any) string {
	rv := reflect.ValueOf(v)
	if fn := runtime.FuncForPC(rv.Pointer()); fn != nil {
		return fn.Name()
	}
	return "unknown"
}

// summarizeMap applies summarizeValue to every entry of a ports map,
// producing the outputs_summary / inputs_summary payload shape.
func summarizeMap(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = summarizeValue(v)
	}
	return out
}
