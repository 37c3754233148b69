package builtins

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/itchyny/gojq"
	"gopkg.in/yaml.v3"

	"github.com/upsun/udfhost/pkg/registry"
)

func JQ() registry.Function {
	doc := registry.FuncDoc{
		Comment:     "Query JSON bytes using JQ",
		Description: "The first result is returned as a string. Null or no result gives an empty string.",
		Args: []registry.ArgDoc{
			{Name: "contents"},
			{Name: "query"},
		},
	}

	return mustFunc("query", JSONNamespace, doc, func(b []byte, expr string) (string, error) {
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			return "", err
		}
		return jq(v, expr)
	})
}

func YQ() registry.Function {
	doc := registry.FuncDoc{
		Comment:     "Query YAML bytes using YQ (same syntax as JQ)",
		Description: "The first result is returned as a string. Null or no result gives an empty string.",
		Args: []registry.ArgDoc{
			{Name: "contents"},
			{Name: "query"},
		},
	}

	return mustFunc("query", YAMLNamespace, doc, func(b []byte, expr string) (string, error) {
		var v any
		if err := yaml.Unmarshal(b, &v); err != nil {
			return "", err
		}
		return jq(v, expr)
	})
}

func jq(input any, expr string) (string, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return "", err
	}
	iter := query.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			var he *gojq.HaltError
			if errors.As(err, &he) && he.Value() == nil {
				break
			}
			return "", err
		}
		if v == nil {
			return "", nil
		}
		return fmt.Sprint(v), nil //lint:ignore SA4004 only the first result is used
	}

	return "", nil
}
