package registry_test

import (
	"errors"
	"strings"

	"github.com/upsun/udfhost/pkg/ident"
)

const stringsNS = "http://example.com/udf/strings"

// blankCompare declares an identification with blank fields and must never register.
type blankCompare struct{}

func (blankCompare) Identification() ident.Identification {
	return ident.Identification{Name: "", NamespaceURI: ""}
}

func (blankCompare) Evaluate(str1, str2 string) bool {
	return str1 == str2
}

type compare struct{}

func (compare) Identification() ident.Identification {
	return ident.Identification{Name: "compare", NamespaceURI: stringsNS}
}

func (compare) Evaluate(str1, str2 string) bool {
	return str1 == str2
}

type repeat struct{}

func (repeat) Identification() ident.Identification {
	return ident.Identification{Name: "repeat", NamespaceURI: stringsNS}
}

func (repeat) Evaluate(s string, n int) (string, error) {
	if n < 0 {
		return "", errors.New("negative count")
	}
	return strings.Repeat(s, n), nil
}

// noEvaluate has a valid identification but nothing to call.
type noEvaluate struct{}

func (noEvaluate) Identification() ident.Identification {
	return ident.Identification{Name: "nothing", NamespaceURI: stringsNS}
}

func (noEvaluate) Eval(s string) string { return s }

// voidEvaluate returns nothing, which is not a usable function.
type voidEvaluate struct{}

func (voidEvaluate) Identification() ident.Identification {
	return ident.Identification{Name: "void", NamespaceURI: stringsNS}
}

func (voidEvaluate) Evaluate(string) {}
