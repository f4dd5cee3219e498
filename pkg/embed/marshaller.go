package lispjit

import (
	"fmt"
	"reflect"

	"github.com/funvibe/lispjit/internal/intrinsics"
)

// Marshaller converts between Go numbers and the float64 values compiled
// code works with.
type Marshaller struct{}

func NewMarshaller() *Marshaller {
	return &Marshaller{}
}

// ToValue converts a Go number to a float64.
func (m *Marshaller) ToValue(val interface{}) (float64, error) {
	v := reflect.ValueOf(val)
	if !v.IsValid() {
		return 0, fmt.Errorf("cannot convert nil to a number")
	}
	return m.toFloat(v)
}

func (m *Marshaller) toFloat(v reflect.Value) (float64, error) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.Bool:
		if v.Bool() {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("cannot convert %s to a number", v.Type())
}

// FromValue converts a float64 to the Go type typ. Integer targets truncate.
func (m *Marshaller) FromValue(f float64, typ reflect.Type) (reflect.Value, error) {
	out := reflect.New(typ).Elem()
	switch typ.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		out.SetInt(int64(f))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if f < 0 {
			return out, fmt.Errorf("cannot convert %g to %s", f, typ)
		}
		out.SetUint(uint64(f))
	case reflect.Float32, reflect.Float64:
		out.SetFloat(f)
	case reflect.Bool:
		out.SetBool(f != 0)
	default:
		return out, fmt.Errorf("cannot convert a number to %s", typ)
	}
	return out, nil
}

func isNumeric(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Bool:
		return true
	}
	return false
}

func isUnsigned(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

// Intrinsic wraps a Go function taking and returning numbers so compiled
// code can call it by name. Unsigned parameters are refused since negative
// arguments have no value to convert to.
func (m *Marshaller) Intrinsic(name string, fn interface{}) (*intrinsics.Intrinsic, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s: expected a function, got %T", name, fn)
	}
	t := v.Type()
	if t.IsVariadic() {
		return nil, fmt.Errorf("%s: variadic functions are not supported", name)
	}
	if t.NumOut() != 1 || !isNumeric(t.Out(0)) {
		return nil, fmt.Errorf("%s: function must return exactly one number", name)
	}
	in := make([]reflect.Type, t.NumIn())
	for i := range in {
		in[i] = t.In(i)
		if !isNumeric(in[i]) {
			return nil, fmt.Errorf("%s: parameter %d has non-numeric type %s", name, i, in[i])
		}
		if isUnsigned(in[i]) {
			return nil, fmt.Errorf("%s: parameter %d has unsigned type %s", name, i, in[i])
		}
	}

	return &intrinsics.Intrinsic{
		Name:  name,
		Arity: len(in),
		Fn: func(args []float64) float64 {
			goArgs := make([]reflect.Value, len(args))
			for i, a := range args {
				// Signed, float and bool parameters accept every float64.
				goArgs[i], _ = m.FromValue(a, in[i])
			}
			res, _ := m.toFloat(v.Call(goArgs)[0])
			return res
		},
	}, nil
}
