package manifest

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"

	"github.com/upsun/udfhost/pkg/eval"
	"github.com/upsun/udfhost/pkg/ident"
	"github.com/upsun/udfhost/pkg/registry"
)

var (
	ErrInvalidParam = errors.New("invalid parameter")
	ErrInvalidBody  = errors.New("invalid function body")
)

// Build compiles the declaration into a registry.Function.
func (s *FunctionSpec) Build() (registry.Function, error) {
	id := s.Identification()
	if err := id.Validate(); err != nil {
		return nil, err
	}

	sig := registry.Signature{Params: make([]registry.Kind, len(s.Params))}
	names := make([]string, len(s.Params))
	seen := make(map[string]bool, len(s.Params))
	options := []cel.EnvOption{ext.Lists(), ext.Strings()}
	for i, p := range s.Params {
		if !ident.IsIdentifier(p.Name) {
			return nil, fmt.Errorf("%w: name %q", ErrInvalidParam, p.Name)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidParam, p.Name)
		}
		seen[p.Name] = true
		k, err := registry.ParseKind(p.Type)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidParam, p.Name, err)
		}
		sig.Params[i] = k
		names[i] = p.Name
		options = append(options, cel.Variable(p.Name, eval.CELType(k)))
	}
	result, err := registry.ParseKind(s.Returns)
	if err != nil {
		return nil, fmt.Errorf("returns: %w", err)
	}
	sig.Result = result

	env, err := cel.NewEnv(options...)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(s.Expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBody, iss.Err())
	}
	out := ast.OutputType()
	if result != registry.KindDyn && out.Kind() != cel.DynKind && !eval.CELType(result).IsAssignableType(out) {
		return nil, fmt.Errorf("%w: expression has type %s, declared %s", ErrInvalidBody, out, result)
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBody, err)
	}

	fn, err := registry.NewFunction(id, sig, func(args ...any) (any, error) {
		vars := make(map[string]any, len(args))
		for i, a := range args {
			vars[names[i]] = a
		}
		val, _, err := prg.Eval(vars)
		if err != nil {
			return nil, err
		}
		if !eval.HasKind(val, result) {
			return nil, fmt.Errorf("result has type %s, declared %s", val.Type().TypeName(), result)
		}
		return eval.Native(val, result)
	})
	if err != nil {
		return nil, err
	}

	doc := registry.FuncDoc{Comment: s.Description, Description: "Defined as: `" + s.Expr + "`"}
	for _, p := range s.Params {
		doc.Args = append(doc.Args, registry.ArgDoc{Name: p.Name, Comment: p.Description})
	}
	return registry.WithDoc(fn, doc), nil
}
