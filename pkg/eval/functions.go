package eval

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/upsun/udfhost/pkg/registry"
)

var (
	nativeList = reflect.TypeOf([]any{})
	nativeMap  = reflect.TypeOf(map[string]any{})
)

// CELType returns the CEL type corresponding to a Kind.
func CELType(k registry.Kind) *cel.Type {
	switch k {
	case registry.KindString:
		return cel.StringType
	case registry.KindBool:
		return cel.BoolType
	case registry.KindInt:
		return cel.IntType
	case registry.KindUint:
		return cel.UintType
	case registry.KindDouble:
		return cel.DoubleType
	case registry.KindBytes:
		return cel.BytesType
	case registry.KindList:
		return cel.ListType(cel.DynType)
	case registry.KindMap:
		return cel.MapType(cel.StringType, cel.DynType)
	}
	return cel.DynType
}

// FunctionOptions declares each registered function in a CEL environment, under its
// qualified name.
func FunctionOptions(entries []registry.Entry, metrics *Metrics) []cel.EnvOption {
	options := make([]cel.EnvOption, 0, len(entries))
	for _, e := range entries {
		options = append(options, functionOption(e, metrics))
	}
	return options
}

func functionOption(e registry.Entry, metrics *Metrics) cel.EnvOption {
	sig := e.Function.Signature()
	argTypes := make([]*cel.Type, len(sig.Params))
	for i, k := range sig.Params {
		argTypes[i] = CELType(k)
	}
	overloadID := overloadName(e.QualifiedName, sig)
	call := func(args ...ref.Val) ref.Val {
		native := make([]any, len(args))
		for i, a := range args {
			v, err := Native(a, sig.Params[i])
			if err != nil {
				metrics.called(e.QualifiedName, err)
				return types.NewErr("%s: argument %d: %v", e.QualifiedName, i+1, err)
			}
			native[i] = v
		}
		res, err := e.Function.Call(native...)
		metrics.called(e.QualifiedName, err)
		if err != nil {
			return types.WrapErr(fmt.Errorf("%s: %w", e.QualifiedName, err))
		}
		return types.DefaultTypeAdapter.NativeToValue(res)
	}

	var binding cel.OverloadOpt
	switch len(argTypes) {
	case 1:
		binding = cel.UnaryBinding(func(arg ref.Val) ref.Val { return call(arg) })
	case 2:
		binding = cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val { return call(lhs, rhs) })
	default:
		binding = cel.FunctionBinding(call)
	}

	return cel.Function(e.QualifiedName,
		cel.Overload(overloadID, argTypes, CELType(sig.Result), binding),
	)
}

func overloadName(qualified string, sig registry.Signature) string {
	parts := make([]string, 0, len(sig.Params)+1)
	parts = append(parts, strings.ReplaceAll(qualified, ".", "_"))
	for _, p := range sig.Params {
		parts = append(parts, string(p))
	}
	return strings.Join(parts, "_")
}

// Native converts a CEL value to the Go value of a kind: lists become []any and maps
// become map[string]any. Null becomes nil.
func Native(v ref.Val, k registry.Kind) (any, error) {
	if v.Type() == types.NullType {
		return nil, nil
	}
	switch k {
	case registry.KindList:
		return v.ConvertToNative(nativeList)
	case registry.KindMap:
		return v.ConvertToNative(nativeMap)
	case registry.KindDyn:
		switch v.Type() {
		case types.ListType:
			return v.ConvertToNative(nativeList)
		case types.MapType:
			return v.ConvertToNative(nativeMap)
		}
	}
	return v.Value(), nil
}

// Fingerprint identifies a set of function declarations, for cache invalidation.
func Fingerprint(entries []registry.Entry) string {
	h := sha256.New()
	for _, e := range entries {
		fmt.Fprintf(h, "%s%s\n", e.QualifiedName, e.Function.Signature())
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// HasKind reports whether a CEL value is of the given kind. Every value has kind dyn.
func HasKind(v ref.Val, k registry.Kind) bool {
	var t ref.Type
	switch k {
	case registry.KindDyn:
		return true
	case registry.KindString:
		t = types.StringType
	case registry.KindBool:
		t = types.BoolType
	case registry.KindInt:
		t = types.IntType
	case registry.KindUint:
		t = types.UintType
	case registry.KindDouble:
		t = types.DoubleType
	case registry.KindBytes:
		t = types.BytesType
	case registry.KindList:
		t = types.ListType
	case registry.KindMap:
		t = types.MapType
	default:
		return false
	}
	return v.Type().TypeName() == t.TypeName()
}
