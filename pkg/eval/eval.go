// Package eval dispatches Common Expression Language (CEL) expressions to registered
// user-defined functions.
package eval

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"
	"go.uber.org/zap"

	"github.com/upsun/udfhost/pkg/registry"
)

type Config struct {
	Registry   *registry.Registry       // Functions to declare: a snapshot is taken on NewEvaluator.
	EnvOptions []cel.EnvOption          // Additional CEL environment options.
	Variables  map[string]registry.Kind // Variables that expressions may reference.
	Cache      Cache                    // Optional expression cache, in memory by default.
	Metrics    *Metrics
	Logger     *zap.Logger
}

// Evaluator supports running and optionally caching CEL expressions.
type Evaluator struct {
	celEnv       *cel.Env
	cache        Cache
	programCache *programCache
	varsKey      string
	metrics      *Metrics
	logger       *zap.Logger
}

func NewEvaluator(cnf *Config) (*Evaluator, error) {
	if cnf == nil {
		cnf = &Config{}
	}
	var entries []registry.Entry
	if cnf.Registry != nil {
		entries = cnf.Registry.Functions()
	}
	celEnv, err := newCelEnv(cnf, entries)
	if err != nil {
		return nil, err
	}
	cache := cnf.Cache
	if cache == nil {
		cache = &memoryCache{}
	}
	if ea, ok := cache.(EnvironmentAware); ok {
		ea.SetEnvironment(Fingerprint(entries))
	}
	logger := cnf.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Evaluator{
		celEnv:       celEnv,
		cache:        cache,
		programCache: &programCache{},
		varsKey:      variablesKey(cnf.Variables),
		metrics:      cnf.Metrics,
		logger:       logger,
	}, nil
}

// Env returns the CEL environment.
func (e *Evaluator) Env() *cel.Env {
	return e.celEnv
}

// Eval evaluates an expression that references no variables.
func (e *Evaluator) Eval(expr string) (ref.Val, error) {
	return e.EvalWith(context.Background(), expr, nil)
}

// EvalWith evaluates an expression with variable values.
//
// Evaluation stops when ctx is canceled.
func (e *Evaluator) EvalWith(ctx context.Context, expr string, vars map[string]any) (ref.Val, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ast, err := e.CompileAndCache(expr)
	if err != nil {
		e.metrics.evaluated(err)
		return nil, err
	}
	out, err := e.eval(ctx, ast, vars)
	e.metrics.evaluated(err)
	return out, err
}

// CompileAndCache compiles an expression, or fetches it from the cache.
func (e *Evaluator) CompileAndCache(expr string) (*cel.Ast, error) {
	key := e.varsKey + expr
	if cached, ok := e.cache.Get(key); ok {
		return cached, nil
	}
	ast, iss := e.celEnv.Compile(expr)
	if iss.Err() != nil {
		return nil, &CompileError{Expr: expr, Err: iss.Err()}
	}
	if err := e.cache.Set(key, ast); err != nil {
		e.logger.Warn("failed to cache expression", zap.String("expr", expr), zap.Error(err))
	}
	e.logger.Debug("expression compiled", zap.String("expr", expr), zap.Stringer("type", ast.OutputType()))
	return ast, nil
}

func (e *Evaluator) eval(ctx context.Context, ast *cel.Ast, vars map[string]any) (ref.Val, error) {
	prg, ok := e.programCache.get(ast)
	if !ok {
		var err error
		prg, err = e.celEnv.Program(ast, cel.InterruptCheckFrequency(100))
		if err != nil {
			return nil, err
		}
		e.programCache.set(ast, prg)
	}
	if vars == nil {
		vars = map[string]any{}
	}

	out, _, err := prg.ContextEval(ctx, vars)
	return out, err
}

// variablesKey prefixes cache keys with the variable declarations, as they change how an
// expression is checked. It starts with a NUL byte, which no valid expression does.
func variablesKey(variables map[string]registry.Kind) string {
	if len(variables) == 0 {
		return ""
	}
	decls := make([]string, 0, len(variables))
	for _, name := range slices.Sorted(maps.Keys(variables)) {
		decls = append(decls, name+":"+string(variables[name]))
	}
	return "\x00" + strings.Join(decls, ",") + "\x00"
}

// CompileError is returned when an expression fails to parse or type-check.
type CompileError struct {
	Expr string
	Err  error
}

func (e *CompileError) Error() string { return "compile " + e.Expr + ": " + e.Err.Error() }
func (e *CompileError) Unwrap() error { return e.Err }

// IsCompileError reports whether err happened during compilation rather than evaluation.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

func newCelEnv(cnf *Config, entries []registry.Entry) (*cel.Env, error) {
	options := slices.Clone(cnf.EnvOptions)
	options = append(options,
		ext.Lists(),
		ext.Strings(),
		ext.NativeTypes(),
	)
	for _, name := range slices.Sorted(maps.Keys(cnf.Variables)) {
		options = append(options, cel.Variable(name, CELType(cnf.Variables[name])))
	}
	options = append(options, FunctionOptions(entries, cnf.Metrics)...)

	return cel.NewEnv(options...)
}
