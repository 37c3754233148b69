package udfhost_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/cel-go/common/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upsun/udfhost"
	"github.com/upsun/udfhost/pkg/eval"
	"github.com/upsun/udfhost/pkg/registry"
)

func TestDefaultProviders(t *testing.T) {
	ctx := context.Background()
	providers, err := udfhost.DefaultProviders(ctx)
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, "builtin", providers[0].Name())
	assert.Equal(t, "functions/text.yaml", providers[1].Name())

	reg := registry.New()
	report, err := registry.NewLoader(reg, &registry.LoaderConfig{Strict: true}).Load(ctx, providers...)
	require.NoError(t, err)
	assert.Empty(t, report.Rejected)

	ev, err := eval.NewEvaluator(&eval.Config{Registry: reg})
	require.NoError(t, err)
	cases := map[string]any{
		`text.truncate("abcdef", 3)`:             "abc",
		`text.truncate("ab", 3)`:                 "ab",
		`text.isBlank(" \t")`:                    true,
		`text.startsWithFold("Upsun", "UP")`:     true,
		`strings.compare("udf", "udf")`:          true,
		`version.compare("1.2.0", "v1.10.0")`:    -1,
		`json.query(b'{"a": [1, 2]}', ".a[1]")`: "2",
	}
	for expr, expect := range cases {
		val, err := ev.Eval(expr)
		if assert.NoError(t, err, expr) {
			assert.Equal(t, types.DefaultTypeAdapter.NativeToValue(expect), val, expr)
		}
	}
}

func TestDefaultCacheFile(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	p, err := udfhost.DefaultCacheFile()
	require.NoError(t, err)
	assert.Equal(t, "expr.cache", filepath.Base(p))
	assert.DirExists(t, filepath.Dir(p))
}
