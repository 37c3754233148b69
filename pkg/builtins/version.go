package builtins

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	modsemver "golang.org/x/mod/semver"

	"github.com/upsun/udfhost/pkg/registry"
)

func VersionParse() registry.Function {
	doc := registry.FuncDoc{
		Comment: "Parse a semantic version into major, minor and patch components",
		Args:    []registry.ArgDoc{{Name: "version"}},
	}

	return mustFunc("parse", VersionNamespace, doc, func(s string) (map[string]string, error) {
		v, err := semver.NewVersion(s)
		if err != nil {
			return nil, fmt.Errorf("invalid version number: %s", s)
		}
		return map[string]string{
			"major": fmt.Sprint(v.Major()),
			"minor": fmt.Sprint(v.Minor()),
			"patch": fmt.Sprint(v.Patch()),
		}, nil
	})
}

func VersionCompare() registry.Function {
	doc := registry.FuncDoc{
		Comment:     "Compare two semantic versions",
		Description: "The result is -1, 0 or +1. A leading `v` is optional.",
		Args:        []registry.ArgDoc{{Name: "v1"}, {Name: "v2"}},
	}

	return mustFunc("compare", VersionNamespace, doc, func(v1, v2 string) (int, error) {
		a, b := canonicalVersion(v1), canonicalVersion(v2)
		if !modsemver.IsValid(a) {
			return 0, fmt.Errorf("invalid version number: %s", v1)
		}
		if !modsemver.IsValid(b) {
			return 0, fmt.Errorf("invalid version number: %s", v2)
		}
		return modsemver.Compare(a, b), nil
	})
}

func canonicalVersion(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "v") {
		s = "v" + s
	}
	return s
}
