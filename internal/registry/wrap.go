package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// wrapRunFunc adapts a plugin's run(x, y, ...) into the uniform Executor
// shape. run's positional parameters must align, in order, with portsIn;
// its return values (minus a trailing error, which is required) must align
// with portsOut. A run returning a map is rejected here, at registration
// time, per the convention that mappings are reserved.
func wrapRunFunc(run any, portsIn, portsOut []PortSpec) (Executor, error) {
	rv := reflect.ValueOf(run)
	rt := rv.Type()
	if rt.Kind() != reflect.Func {
		return nil, fmt.Errorf("run must be a function, got %s", rt.Kind())
	}
	if rt.IsVariadic() {
		return nil, fmt.Errorf("run must not be variadic")
	}
	if rt.NumIn() != len(portsIn) {
		return nil, fmt.Errorf("run takes %d arguments, want %d (one per ports_in)", rt.NumIn(), len(portsIn))
	}
	if rt.NumOut() == 0 || !rt.Out(rt.NumOut()-1).Implements(errorType) {
		return nil, fmt.Errorf("run must return a trailing error")
	}
	outCount := rt.NumOut() - 1
	if outCount != len(portsOut) {
		return nil, fmt.Errorf("run returns %d values, want %d (one per ports_out)", outCount, len(portsOut))
	}
	for i := 0; i < outCount; i++ {
		if rt.Out(i).Kind() == reflect.Map {
			return nil, fmt.Errorf("run must not return a mapping (port %q); return scalar/struct values instead", portsOut[i].Name)
		}
	}

	return func(ctx context.Context, params map[string]any, inputs map[string]any) (map[string]any, error) {
		args := make([]reflect.Value, len(portsIn))
		for i, p := range portsIn {
			value := resolveInput(p, params, inputs)
			arg, err := toArgValue(value, rt.In(i))
			if err != nil {
				return nil, fmt.Errorf("input %q: %w", p.Name, err)
			}
			args[i] = arg
		}

		results := rv.Call(args)
		errResult := results[outCount]
		if !errResult.IsNil() {
			return nil, errResult.Interface().(error)
		}

		outputs := make(map[string]any, len(portsOut))
		for i, p := range portsOut {
			outputs[p.Name] = results[i].Interface()
		}
		return outputs, nil
	}, nil
}

// resolveInput applies the edge > param > default > absent precedence for
// one port.
func resolveInput(p PortSpec, params map[string]any, inputs map[string]any) any {
	if v, ok := inputs[p.Name]; ok {
		return v
	}
	if v, ok := params[p.Name]; ok {
		return v
	}
	if p.HasDefault {
		return p.Default
	}
	return nil
}

func toArgValue(value any, argType reflect.Type) (reflect.Value, error) {
	if num, ok := value.(json.Number); ok {
		return jsonNumberArgValue(num, argType)
	}
	if value == nil {
		if argType.Kind() == reflect.Interface || argType.Kind() == reflect.Ptr || argType.Kind() == reflect.Slice || argType.Kind() == reflect.Map {
			return reflect.Zero(argType), nil
		}
		return reflect.Value{}, fmt.Errorf("got nil, want non-nilable %s", argType)
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(argType) {
		return v, nil
	}
	if v.Type().ConvertibleTo(argType) {
		return v.Convert(argType), nil
	}
	return reflect.Value{}, fmt.Errorf("got %s, want %s", v.Type(), argType)
}

// jsonNumberArgValue converts a params value decoded with
// json.Decoder.UseNumber into whatever numeric (or any) type the plugin's
// run function declared for that port.
func jsonNumberArgValue(num json.Number, argType reflect.Type) (reflect.Value, error) {
	switch argType.Kind() {
	case reflect.Float32, reflect.Float64:
		f, err := num.Float64()
		if err != nil {
			return reflect.Value{}, fmt.Errorf("got %q, want %s: %w", num, argType, err)
		}
		return reflect.ValueOf(f).Convert(argType), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i, err := num.Int64()
		if err != nil {
			return reflect.Value{}, fmt.Errorf("got %q, want %s: %w", num, argType, err)
		}
		return reflect.ValueOf(i).Convert(argType), nil
	case reflect.String:
		return reflect.ValueOf(num.String()), nil
	case reflect.Interface:
		f, err := num.Float64()
		if err != nil {
			return reflect.Value{}, fmt.Errorf("got %q, want %s: %w", num, argType, err)
		}
		return reflect.ValueOf(f), nil
	default:
		return reflect.Value{}, fmt.Errorf("got number %q, want %s", num, argType)
	}
}
