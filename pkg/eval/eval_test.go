package eval_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upsun/udfhost/pkg/eval"
	"github.com/upsun/udfhost/pkg/ident"
	"github.com/upsun/udfhost/pkg/registry"
)

const textNS = "http://example.com/udf/text"

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	add := func(name string, fn any) {
		f, err := registry.FromFunc(ident.Identification{Name: name, NamespaceURI: textNS}, fn)
		require.NoError(t, err)
		require.NoError(t, reg.Register(f))
	}
	add("compare", func(a, b string) bool { return a == b })
	add("upper", strings.ToUpper)
	add("join", func(l []string, sep string) string { return strings.Join(l, sep) })
	add("keys", func(m map[string]any) int { return len(m) })
	add("fail", func(s string) (string, error) { return "", errors.New("failed: " + s) })
	add("now", func() string { return "now" })
	add("clamp", func(v, lo, hi int) int { return max(lo, min(v, hi)) })
	add("describe", func(v any) string {
		switch v.(type) {
		case nil:
			return "null"
		case []any:
			return "list"
		case map[string]any:
			return "map"
		}
		return "scalar"
	})
	return reg
}

func TestEval(t *testing.T) {
	promReg := prometheus.NewRegistry()
	metrics, err := eval.NewMetrics(promReg)
	require.NoError(t, err)

	e, err := eval.NewEvaluator(&eval.Config{
		Registry:  testRegistry(t),
		Variables: map[string]registry.Kind{"name": registry.KindString, "any": registry.KindDyn},
		Metrics:   metrics,
	})
	require.NoError(t, err)

	ev := func(expr string) ref.Val {
		val, err := e.Eval(expr)
		require.NoError(t, err, expr)
		return val
	}

	t.Run("calls", func(t *testing.T) {
		assert.Equal(t, types.Bool(true), ev(`text.compare("a", "a")`))
		assert.Equal(t, types.Bool(false), ev(`text.compare("a", "b")`))
		assert.Equal(t, types.String("ABC"), ev(`text.upper("abc")`))
		assert.Equal(t, types.String("a,b"), ev(`text.join(["a", "b"], ",")`))
		assert.Equal(t, types.Int(2), ev(`text.keys({"a": 1, "b": [2]})`))
		assert.Equal(t, types.String("now"), ev(`text.now()`))
		assert.Equal(t, types.Int(10), ev(`text.clamp(42, 0, 10)`))
		assert.Equal(t, types.String("list"), ev(`text.describe([1])`))
		assert.Equal(t, types.String("map"), ev(`text.describe({"a": 1})`))
		assert.Equal(t, types.String("scalar"), ev(`text.describe(1)`))
		assert.Equal(t, types.String("null"), ev(`text.describe(null)`))
		assert.Equal(t, types.Bool(true), ev(`text.upper("a").startsWith("A")`))
	})

	t.Run("errors", func(t *testing.T) {
		_, err := e.Eval(`text.fail("x")`)
		assert.ErrorContains(t, err, "text.fail: failed: x")
		assert.False(t, eval.IsCompileError(err))

		_, err = e.Eval(`text.join(["a", 1], ",")`)
		assert.ErrorContains(t, err, "argument 1")

		_, err = e.Eval(`text.missing("x")`)
		assert.True(t, eval.IsCompileError(err))

		_, err = e.Eval(`text.compare("a")`)
		assert.True(t, eval.IsCompileError(err))
	})

	t.Run("variables", func(t *testing.T) {
		val, err := e.EvalWith(context.Background(), `text.compare(name, "udf")`, map[string]any{"name": "udf"})
		require.NoError(t, err)
		assert.Equal(t, types.Bool(true), val)

		val, err = e.EvalWith(context.Background(), `text.describe(any)`, map[string]any{"any": []string{"x"}, "name": ""})
		require.NoError(t, err)
		assert.Equal(t, types.String("list"), val)

		_, err = e.EvalWith(context.Background(), `text.upper(any)`, map[string]any{"any": 1, "name": ""})
		assert.Error(t, err, "runtime overload dispatch rejects a non-string argument")

		_, err = e.Eval(`undeclared == 1`)
		assert.True(t, eval.IsCompileError(err))
	})

	t.Run("metrics", func(t *testing.T) {
		assert.Positive(t, testutil.ToFloat64(metrics.Evaluations().WithLabelValues("ok")))
		assert.Positive(t, testutil.ToFloat64(metrics.Evaluations().WithLabelValues("error")))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Calls().WithLabelValues("text.fail", "error")))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Calls().WithLabelValues("text.now", "ok")))
	})
}

func TestEvalCanceled(t *testing.T) {
	e, err := eval.NewEvaluator(&eval.Config{Registry: testRegistry(t)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.EvalWith(ctx, `text.now()`, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBlankIdentifiedFunctionIsNotCallable(t *testing.T) {
	reg := registry.New()
	_, err := registry.FromFunc(ident.Identification{}, func(a, b string) bool { return a == b })
	require.ErrorIs(t, err, ident.ErrBlankName)

	e, err := eval.NewEvaluator(&eval.Config{Registry: reg})
	require.NoError(t, err)
	_, err = e.Eval(`.compare("a", "a")`)
	assert.True(t, eval.IsCompileError(err))
	_, err = e.Eval(`compare("a", "a")`)
	assert.True(t, eval.IsCompileError(err))
}

func TestToJSON(t *testing.T) {
	e, err := eval.NewEvaluator(&eval.Config{Registry: testRegistry(t)})
	require.NoError(t, err)

	val, err := e.Eval(`{"upper": text.upper("a"), "list": [1, true], "none": null}`)
	require.NoError(t, err)
	b, err := eval.ToJSON(val)
	require.NoError(t, err)
	assert.JSONEq(t, `{"upper": "A", "list": [1, true], "none": null}`, string(b))
}

func TestFileCache(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "expr.cache")

	cache, err := eval.NewFileCache(cachePath)
	require.NoError(t, err)
	reg := testRegistry(t)
	e, err := eval.NewEvaluator(&eval.Config{Registry: reg, Cache: cache})
	require.NoError(t, err)

	for _, expr := range []string{`text.upper("a")`, "text.compare(\n\"a\", \"b\")"} {
		_, err := e.CompileAndCache(expr)
		require.NoError(t, err)
	}
	require.NoError(t, cache.Save())

	content, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "# env: "))
	assert.True(t, strings.HasPrefix(lines[1], strconv.Quote("text.compare(\n\"a\", \"b\")")+"\t"), "expressions are quoted and lines sorted")

	// Reload with the same functions: the cached expressions are kept and usable.
	cache, err = eval.NewFileCache(cachePath)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())
	e, err = eval.NewEvaluator(&eval.Config{Registry: reg, Cache: cache})
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())
	val, err := e.Eval(`text.upper("a")`)
	require.NoError(t, err)
	assert.Equal(t, types.String("A"), val)

	// Reload with different functions: the cache is discarded.
	cache, err = eval.NewFileCache(cachePath)
	require.NoError(t, err)
	_, err = eval.NewEvaluator(&eval.Config{Registry: registry.New(), Cache: cache})
	require.NoError(t, err)
	assert.Equal(t, 0, cache.Len())

	// Expressions are cached per set of variable declarations, without discarding others.
	cache, err = eval.NewFileCache(cachePath)
	require.NoError(t, err)
	withVars := func(k registry.Kind) *eval.Evaluator {
		e, err := eval.NewEvaluator(&eval.Config{
			Registry:  reg,
			Cache:     cache,
			Variables: map[string]registry.Kind{"s": k},
		})
		require.NoError(t, err)
		return e
	}
	ast, err := withVars(registry.KindString).CompileAndCache("s")
	require.NoError(t, err)
	assert.Equal(t, "string", ast.OutputType().String())
	assert.Equal(t, 3, cache.Len())
	ast, err = withVars(registry.KindInt).CompileAndCache("s")
	require.NoError(t, err)
	assert.Equal(t, "int", ast.OutputType().String())
	assert.Equal(t, 4, cache.Len())
}

func TestFileCacheWhitespace(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "expr.cache")
	reg := testRegistry(t)
	tabbed := "text.compare('a b', 'a\tb')"
	spaced := "text.compare('a b', 'a b')"

	for i, order := range [][]string{{tabbed, spaced}, {spaced, tabbed}} {
		cache, err := eval.NewFileCache(cachePath)
		require.NoError(t, err)
		e, err := eval.NewEvaluator(&eval.Config{Registry: reg, Cache: cache})
		require.NoError(t, err)
		for _, expr := range order {
			val, err := e.Eval(expr)
			require.NoError(t, err)
			assert.Equal(t, types.Bool(expr == spaced), val, "run %d: %q", i, expr)
		}
		require.NoError(t, cache.Save())
		assert.Equal(t, 2, cache.Len())
	}

	cache, err := eval.NewFileCache(cachePath)
	require.NoError(t, err)
	e, err := eval.NewEvaluator(&eval.Config{Registry: reg, Cache: cache})
	require.NoError(t, err)
	val, err := e.Eval(`text.upper('a\tb')`)
	require.NoError(t, err)
	assert.Equal(t, types.String("A\tB"), val)
	val, err = e.Eval(`text.upper('a b')`)
	require.NoError(t, err)
	assert.Equal(t, types.String("A B"), val)
}

func TestFileCacheMalformed(t *testing.T) {
	_, err := eval.NewFileCacheWithContent([]byte("# comment\nnot quoted"), "")
	assert.ErrorContains(t, err, "malformed line 2 (expression not quoted)")

	_, err = eval.NewFileCacheWithContent([]byte(`"expr" no tab`), "")
	assert.ErrorContains(t, err, "malformed line 1 (not tab-separated)")

	_, err = eval.NewFileCacheWithContent([]byte("\"expr\"\t!!notbase64"), "")
	assert.ErrorContains(t, err, "could not unmarshal cached data at line 1")

	c, err := eval.NewFileCacheWithContent(nil, "")
	require.NoError(t, err)
	require.NoError(t, c.Set("1", nil))
	assert.EqualError(t, c.Save(), "no cache filename specified")
}
