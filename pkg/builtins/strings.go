package builtins

import (
	"strings"

	"github.com/upsun/udfhost/pkg/ident"
	"github.com/upsun/udfhost/pkg/registry"
)

// Compare reports whether two strings have exactly the same content.
type Compare struct{}

func (Compare) Identification() ident.Identification {
	return ident.Identification{Name: "compare", NamespaceURI: StringsNamespace}
}

func (Compare) Evaluate(str1, str2 string) bool {
	return str1 == str2
}

func (Compare) Doc() registry.FuncDoc {
	return registry.FuncDoc{
		Comment: "Check whether two strings are identical",
		Args:    []registry.ArgDoc{{Name: "str1"}, {Name: "str2"}},
	}
}

// EqualsFold reports whether two strings are equal under Unicode case folding.
type EqualsFold struct{}

func (EqualsFold) Identification() ident.Identification {
	return ident.Identification{Name: "equalsFold", NamespaceURI: StringsNamespace}
}

func (EqualsFold) Evaluate(str1, str2 string) bool {
	return strings.EqualFold(str1, str2)
}

func (EqualsFold) Doc() registry.FuncDoc {
	return registry.FuncDoc{
		Comment: "Check whether two strings are equal, ignoring case",
		Args:    []registry.ArgDoc{{Name: "str1"}, {Name: "str2"}},
	}
}
