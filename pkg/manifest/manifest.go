// Package manifest loads user-defined functions declared in files, with bodies written as
// CEL expressions.
package manifest

import (
	"github.com/upsun/udfhost/pkg/ident"
	"github.com/upsun/udfhost/pkg/registry"
)

// Manifest is a file of function declarations. It implements registry.Provider.
type Manifest struct {
	Source   string            `json:"-"`
	Prefixes map[string]string `json:"namespaces,omitempty"`
	Specs    []*FunctionSpec   `json:"functions,omitempty"`
}

type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// FunctionSpec declares a function whose body is an expression over its parameters.
//
// Identification fields are not checked when a manifest is parsed: a declaration with a blank
// name or namespace is rejected when it is registered, without affecting the others.
type FunctionSpec struct {
	Name         string  `json:"name"`
	NamespaceURI string  `json:"namespaceURI"`
	Description  string  `json:"description,omitempty"`
	Params       []Param `json:"params,omitempty"`
	Returns      string  `json:"returns"`
	Expr         string  `json:"expr"`
}

func (m *Manifest) Name() string { return m.Source }

func (m *Manifest) Functions() []any {
	items := make([]any, len(m.Specs))
	for i, s := range m.Specs {
		items[i] = s
	}
	return items
}

func (m *Manifest) Namespaces() map[string]string { return m.Prefixes }

func (s *FunctionSpec) Identification() ident.Identification {
	return ident.Identification{Name: s.Name, NamespaceURI: s.NamespaceURI}
}

var (
	_ registry.Provider   = (*Manifest)(nil)
	_ registry.Namespacer = (*Manifest)(nil)
	_ registry.Builder    = (*FunctionSpec)(nil)
	_ registry.Identified = (*FunctionSpec)(nil)
)
