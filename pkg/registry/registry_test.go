package registry_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upsun/udfhost/pkg/ident"
	"github.com/upsun/udfhost/pkg/registry"
)

func mustDeclared(t *testing.T, v any) registry.Function {
	t.Helper()
	fn, err := registry.FromDeclared(v)
	require.NoError(t, err)
	return fn
}

func TestRegister(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(mustDeclared(t, compare{})))
	require.NoError(t, reg.Register(mustDeclared(t, repeat{})))
	assert.Equal(t, 2, reg.Len())

	name, ok := reg.QualifiedName(compare{}.Identification())
	require.True(t, ok)
	assert.Equal(t, "strings.compare", name)

	prefix, ok := reg.Prefix(stringsNS)
	require.True(t, ok)
	assert.Equal(t, "strings", prefix)

	fn, ok := reg.Lookup(ident.Identification{Name: "repeat", NamespaceURI: stringsNS})
	require.True(t, ok)
	assert.Equal(t, "repeat", fn.Identification().Name)

	fn, err := reg.Resolve("strings.compare")
	require.NoError(t, err)
	assert.Equal(t, "compare", fn.Identification().Name)

	_, err = reg.Resolve("strings.missing")
	assert.ErrorIs(t, err, registry.ErrNotFound)
	_, err = reg.Resolve("other.compare")
	assert.ErrorIs(t, err, registry.ErrNotFound)
	_, err = reg.Resolve("compare")
	assert.ErrorIs(t, err, registry.ErrNotFound)

	err = reg.Register(mustDeclared(t, compare{}))
	assert.ErrorIs(t, err, registry.ErrDuplicate)
	var regErr *registry.RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "compare", regErr.ID.Name)

	err = reg.Register(nil)
	assert.ErrorIs(t, err, registry.ErrUnsupportedSignature)
}

// blankFunction bypasses the constructors to reach the registry's own check.
type blankFunction struct{}

func (blankFunction) Identification() ident.Identification { return ident.Identification{} }
func (blankFunction) Signature() registry.Signature {
	return registry.Signature{Params: []registry.Kind{registry.KindString, registry.KindString}, Result: registry.KindBool}
}
func (blankFunction) Call(args ...any) (any, error) { return args[0] == args[1], nil }

func TestRegisterRejectsBlankIdentification(t *testing.T) {
	reg := registry.New()
	err := reg.Register(blankFunction{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ident.ErrBlankName)
	assert.ErrorIs(t, err, ident.ErrBlankNamespace)
	assert.Contains(t, err.Error(), `function (name "", namespace "")`)
	assert.Equal(t, 0, reg.Len())
	assert.Empty(t, reg.Functions())
}

func TestPrefixes(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.BindPrefix("str", stringsNS))
	require.NoError(t, reg.BindPrefix("str", stringsNS), "rebinding the same pair is a no-op")
	require.NoError(t, reg.Register(mustDeclared(t, compare{})))

	name, _ := reg.QualifiedName(compare{}.Identification())
	assert.Equal(t, "str.compare", name)

	assert.ErrorIs(t, reg.BindPrefix("str", "urn:other:ns"), registry.ErrPrefixConflict)
	assert.ErrorIs(t, reg.BindPrefix("s", stringsNS), registry.ErrPrefixConflict)
	assert.ErrorIs(t, reg.BindPrefix("in", "urn:other:ns"), registry.ErrInvalidPrefix)
	assert.ErrorIs(t, reg.BindPrefix("a.b", "urn:other:ns"), registry.ErrInvalidPrefix)
	assert.ErrorIs(t, reg.BindPrefix("x", ""), ident.ErrBlankNamespace)

	// A namespace without functions can be rebound.
	require.NoError(t, reg.BindPrefix("o", "urn:other:ns"))
	require.NoError(t, reg.BindPrefix("other", "urn:other:ns"))
	p, _ := reg.Prefix("urn:other:ns")
	assert.Equal(t, "other", p)

	// The derived prefix "strings" of a second namespace must not collide with an existing binding.
	require.NoError(t, reg.BindPrefix("strings", "urn:third:ns"))
	fn, err := registry.FromFunc(ident.Identification{Name: "x", NamespaceURI: "http://example.org/strings"},
		func(s string) string { return s })
	require.NoError(t, err)
	assert.ErrorIs(t, reg.Register(fn), registry.ErrPrefixConflict)
}

func TestFilter(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(mustDeclared(t, compare{})))
	require.NoError(t, reg.Register(mustDeclared(t, repeat{})))
	fn, err := registry.FromFunc(ident.Identification{Name: "parse", NamespaceURI: "urn:udfhost:version"},
		func(s string) string { return s })
	require.NoError(t, err)
	require.NoError(t, reg.Register(fn))

	names := func(entries []registry.Entry) []string {
		var out []string
		for _, e := range entries {
			out = append(out, e.QualifiedName)
		}
		return out
	}
	assert.Equal(t, []string{"strings.compare", "strings.repeat", "version.parse"}, names(reg.Filter()))
	assert.Equal(t, []string{"strings.compare", "strings.repeat"}, names(reg.Filter("strings.*")))
	assert.Equal(t, []string{"strings.compare", "version.parse"}, names(reg.Filter("*.parse", " *compare")))
	assert.Empty(t, reg.Filter("nope.*"))
}

func TestConcurrentRegister(t *testing.T) {
	reg := registry.New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fn, err := registry.FromFunc(ident.Identification{Name: fmt.Sprintf("f%d", i), NamespaceURI: "urn:test:many"},
				func(s string) string { return s })
			if err != nil {
				return
			}
			_ = reg.Register(fn)
			_ = reg.Functions()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, reg.Len())
}
