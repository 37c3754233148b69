// Package builtins provides the functions that are registered by default.
package builtins

import (
	"github.com/upsun/udfhost/pkg/ident"
	"github.com/upsun/udfhost/pkg/registry"
)

const (
	StringsNamespace = "urn:udfhost:strings"
	JSONNamespace    = "urn:udfhost:json"
	YAMLNamespace    = "urn:udfhost:yaml"
	VersionNamespace = "urn:udfhost:version"
)

// ProviderName is the name of the built-in provider, as shown in load reports.
const ProviderName = "builtin"

// Provider returns a registry.Provider for all built-in functions.
func Provider() registry.Provider {
	return &registry.StaticProvider{
		ProviderName: ProviderName,
		Items:        Functions(),
		Prefixes: map[string]string{
			"strings": StringsNamespace,
			"json":    JSONNamespace,
			"yaml":    YAMLNamespace,
			"version": VersionNamespace,
		},
	}
}

// Functions lists the built-in functions.
func Functions() []any {
	return []any{
		Compare{},
		EqualsFold{},
		JQ(),
		YQ(),
		VersionParse(),
		VersionCompare(),
	}
}

// mustFunc wraps a Go function known to have a supported signature.
func mustFunc(name, namespaceURI string, doc registry.FuncDoc, fn any) registry.Function {
	f, err := registry.FromFunc(ident.Identification{Name: name, NamespaceURI: namespaceURI}, fn)
	if err != nil {
		panic(err)
	}
	return registry.WithDoc(f, doc)
}
