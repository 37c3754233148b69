package registry

import (
	"fmt"
	"reflect"
	"strings"
)

// Kind is the type of a function parameter or result, as seen by expressions.
type Kind string

const (
	KindString Kind = "string"
	KindBool   Kind = "bool"
	KindInt    Kind = "int"
	KindUint   Kind = "uint"
	KindDouble Kind = "double"
	KindBytes  Kind = "bytes"
	KindList   Kind = "list"
	KindMap    Kind = "map"
	KindDyn    Kind = "dyn"
)

// AllKinds lists the supported kinds.
var AllKinds = []Kind{KindString, KindBool, KindInt, KindUint, KindDouble, KindBytes, KindList, KindMap, KindDyn}

// ParseKind parses a kind name, e.g. from a manifest.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
	}
	return k, nil
}

func (k Kind) Valid() bool {
	for _, v := range AllKinds {
		if k == v {
			return true
		}
	}
	return false
}

// Signature describes the parameters and the result of a function.
type Signature struct {
	Params []Kind `json:"params"`
	Result Kind   `json:"result"`
}

func (s Signature) String() string {
	params := make([]string, len(s.Params))
	for i, p := range s.Params {
		params[i] = string(p)
	}
	return "(" + strings.Join(params, ", ") + ") -> " + string(s.Result)
}

func (s Signature) validate() error {
	for i, p := range s.Params {
		if !p.Valid() {
			return fmt.Errorf("%w: parameter %d has kind %q", ErrUnsupportedKind, i+1, p)
		}
	}
	if !s.Result.Valid() {
		return fmt.Errorf("%w: result has kind %q", ErrUnsupportedKind, s.Result)
	}
	return nil
}

var (
	bytesType = reflect.TypeOf([]byte(nil))
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

// kindOf maps a Go type to a Kind.
func kindOf(t reflect.Type) (Kind, error) {
	switch t.Kind() {
	case reflect.String:
		return KindString, nil
	case reflect.Bool:
		return KindBool, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return KindInt, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindUint, nil
	case reflect.Float32, reflect.Float64:
		return KindDouble, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return KindBytes, nil
		}
		if _, err := kindOf(t.Elem()); err != nil {
			return "", err
		}
		return KindList, nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return "", fmt.Errorf("%w: map key type %s", ErrUnsupportedKind, t.Key())
		}
		if _, err := kindOf(t.Elem()); err != nil {
			return "", err
		}
		return KindMap, nil
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return KindDyn, nil
		}
	}
	return "", fmt.Errorf("%w: Go type %s", ErrUnsupportedKind, t)
}
