package registry

import (
	"fmt"
	"math"
	"reflect"

	"github.com/upsun/udfhost/pkg/ident"
)

// Function is a user-defined function that can be registered and called.
type Function interface {
	Identification() ident.Identification
	Signature() Signature
	Call(args ...any) (any, error)
}

// Identified is implemented by values that declare their own identification.
//
// A value that implements Identified and has an exported method named Evaluate can be
// turned into a Function with FromDeclared.
type Identified interface {
	Identification() ident.Identification
}

// CallFunc is the implementation of a function created with NewFunction.
type CallFunc func(args ...any) (any, error)

type function struct {
	id   ident.Identification
	sig  Signature
	call CallFunc
}

func (f *function) Identification() ident.Identification { return f.id }
func (f *function) Signature() Signature                 { return f.sig }

func (f *function) Call(args ...any) (any, error) {
	if len(args) != len(f.sig.Params) {
		return nil, fmt.Errorf("%w: %s expects %d, got %d", ErrArity, f.id.Name, len(f.sig.Params), len(args))
	}
	return f.call(args...)
}

// NewFunction creates a Function from an explicit signature and implementation.
// The implementation is only called with the declared number of arguments.
func NewFunction(id ident.Identification, sig Signature, call CallFunc) (Function, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if err := sig.validate(); err != nil {
		return nil, err
	}
	if call == nil {
		return nil, fmt.Errorf("%w: nil implementation", ErrUnsupportedSignature)
	}
	return &function{id: id, sig: sig, call: call}, nil
}

// FromFunc wraps a Go function using reflection.
//
// The function must return a single value, or a value and an error. Parameters and
// results may be strings, booleans, integers, floats, byte slices, slices and
// string-keyed maps of those, or the empty interface.
func FromFunc(id ident.Identification, fn any) (Function, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: nil function", ErrUnsupportedSignature)
	}
	return fromValue(id, reflect.ValueOf(fn))
}

// FromDeclared builds a Function from a value that declares its own identification and
// an Evaluate method.
func FromDeclared(v any) (Function, error) {
	declared, ok := v.(Identified)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotIdentified, v)
	}
	id := declared.Identification()
	if err := id.Validate(); err != nil {
		return nil, err
	}
	m := reflect.ValueOf(v).MethodByName("Evaluate")
	if !m.IsValid() {
		return nil, fmt.Errorf("%w on %T", ErrNoEvaluate, v)
	}
	fn, err := fromValue(id, m)
	if err != nil {
		return nil, err
	}
	if d, ok := v.(Documented); ok {
		fn = WithDoc(fn, d.Doc())
	}
	return fn, nil
}

type reflectCall struct {
	name   string
	fn     reflect.Value
	in     []reflect.Type
	hasErr bool
}

func fromValue(id ident.Identification, fn reflect.Value) (Function, error) {
	t := fn.Type()
	if t.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: %s is not a function", ErrUnsupportedSignature, t)
	}
	if t.IsVariadic() {
		return nil, fmt.Errorf("%w: variadic functions are not supported", ErrUnsupportedSignature)
	}
	rf := &reflectCall{name: id.Name, fn: fn}
	switch t.NumOut() {
	case 1:
	case 2:
		if t.Out(1) != errorType {
			return nil, fmt.Errorf("%w: second result must be an error, got %s", ErrUnsupportedSignature, t.Out(1))
		}
		rf.hasErr = true
	default:
		return nil, fmt.Errorf("%w: expected 1 or 2 results, got %d", ErrUnsupportedSignature, t.NumOut())
	}

	sig := Signature{Params: make([]Kind, t.NumIn())}
	rf.in = make([]reflect.Type, t.NumIn())
	for i := 0; i < t.NumIn(); i++ {
		k, err := kindOf(t.In(i))
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %d: %w", ErrUnsupportedSignature, i+1, err)
		}
		sig.Params[i] = k
		rf.in[i] = t.In(i)
	}
	k, err := kindOf(t.Out(0))
	if err != nil {
		return nil, fmt.Errorf("%w: result: %w", ErrUnsupportedSignature, err)
	}
	sig.Result = k

	return &function{id: id, sig: sig, call: rf.invoke}, nil
}

func (rf *reflectCall) invoke(args ...any) (any, error) {
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		v, err := convertArg(a, rf.in[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d of %s: %w", i+1, rf.name, err)
		}
		in[i] = v
	}
	out := rf.fn.Call(in)
	if rf.hasErr && !out[1].IsNil() {
		return nil, out[1].Interface().(error) //nolint:errcheck // the type is checked on construction
	}
	return normalizeResult(out[0]), nil
}

// convertArg converts a value to the Go type of a parameter.
func convertArg(a any, t reflect.Type) (reflect.Value, error) {
	if a == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Slice, reflect.Map:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("%w for parameter of type %s", ErrNilArgument, t)
	}
	v := reflect.ValueOf(a)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := toInt64(v)
		if !ok || reflect.Zero(t).OverflowInt(n) {
			break
		}
		return reflect.ValueOf(n).Convert(t), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := toUint64(v)
		if !ok || reflect.Zero(t).OverflowUint(n) {
			break
		}
		return reflect.ValueOf(n).Convert(t), nil
	case reflect.Float32, reflect.Float64:
		switch v.Kind() {
		case reflect.Float32, reflect.Float64:
			return v.Convert(t), nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return v.Convert(t), nil
		}
	case reflect.String:
		if v.Kind() == reflect.String {
			return v.Convert(t), nil
		}
	case reflect.Bool:
		if v.Kind() == reflect.Bool {
			return v.Convert(t), nil
		}
	case reflect.Slice:
		if v.Kind() != reflect.Slice {
			break
		}
		out := reflect.MakeSlice(t, v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			e, err := convertArg(v.Index(i).Interface(), t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(e)
		}
		return out, nil
	case reflect.Map:
		if v.Kind() != reflect.Map || v.Type().Key().Kind() != reflect.String {
			break
		}
		out := reflect.MakeMapWithSize(t, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			e, err := convertArg(iter.Value().Interface(), t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("key %q: %w", iter.Key().String(), err)
			}
			out.SetMapIndex(iter.Key().Convert(t.Key()), e)
		}
		return out, nil
	}
	return reflect.Value{}, fmt.Errorf("%w: cannot use %T as %s", ErrArgumentType, a, t)
}

func toInt64(v reflect.Value) (int64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v.Uint() > math.MaxInt64 {
			return 0, false
		}
		return int64(v.Uint()), true
	}
	return 0, false
}

func toUint64(v reflect.Value) (uint64, bool) {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v.Int() < 0 {
			return 0, false
		}
		return uint64(v.Int()), true
	}
	return 0, false
}

// normalizeResult widens numbers so that results have a single Go type per kind.
func normalizeResult(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint()
	case reflect.Float32, reflect.Float64:
		return v.Float()
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
	}
	return v.Interface()
}
