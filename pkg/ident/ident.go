// Package ident defines the identification metadata of a user-defined function.
package ident

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	ErrBlankName        = errors.New("function name is blank")
	ErrBlankNamespace   = errors.New("function namespace URI is blank")
	ErrInvalidName      = errors.New("function name is not a valid identifier")
	ErrInvalidNamespace = errors.New("function namespace URI is not an absolute URI")
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Words that CEL reserves and which cannot name a function or a namespace prefix.
var reserved = map[string]struct{}{
	"as": {}, "break": {}, "const": {}, "continue": {}, "else": {}, "false": {}, "for": {},
	"function": {}, "if": {}, "import": {}, "in": {}, "let": {}, "loop": {}, "package": {},
	"namespace": {}, "null": {}, "return": {}, "true": {}, "var": {}, "void": {}, "while": {},
}

// IsIdentifier reports whether s can be used as a CEL identifier.
func IsIdentifier(s string) bool {
	if _, ok := reserved[s]; ok {
		return false
	}
	return identPattern.MatchString(s)
}

// Identification is the name and namespace pair that identifies a function in a registry.
type Identification struct {
	Name         string `json:"name" yaml:"name"`
	NamespaceURI string `json:"namespaceURI" yaml:"namespaceURI"`
}

// New creates and validates an Identification.
func New(name, namespaceURI string) (Identification, error) {
	id := Identification{Name: name, NamespaceURI: namespaceURI}
	return id, id.Validate()
}

// Validate checks that both fields are present and well-formed.
//
// Blank fields are reported together, so an identification with neither a name nor a
// namespace matches both ErrBlankName and ErrBlankNamespace.
func (id Identification) Validate() error {
	var errs []error
	name := strings.TrimSpace(id.Name)
	ns := strings.TrimSpace(id.NamespaceURI)
	if name == "" {
		errs = append(errs, ErrBlankName)
	}
	if ns == "" {
		errs = append(errs, ErrBlankNamespace)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if name != id.Name || !IsIdentifier(name) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidName, id.Name))
	}
	if ns != id.NamespaceURI || !isAbsoluteURI(ns) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidNamespace, id.NamespaceURI))
	}
	return errors.Join(errs...)
}

// IsBlank reports whether either field is blank.
func (id Identification) IsBlank() bool {
	return strings.TrimSpace(id.Name) == "" || strings.TrimSpace(id.NamespaceURI) == ""
}

// String returns the identification in Clark notation: {namespaceURI}name.
func (id Identification) String() string {
	return "{" + id.NamespaceURI + "}" + id.Name
}

func isAbsoluteURI(s string) bool {
	if strings.ContainsAny(s, " \t\n") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.IsAbs() && (u.Opaque != "" || u.Host != "" || u.Path != "")
}

var nonIdentChars = regexp.MustCompile(`[^a-z0-9_]+`)

// DefaultPrefix derives a CEL-safe prefix from the last segment of a namespace URI.
//
// For example "http://example.com/udf/strings" gives "strings" and "urn:udfhost:text"
// gives "text". An empty string is returned if nothing usable remains.
func DefaultPrefix(namespaceURI string) string {
	s := strings.TrimRight(strings.TrimSpace(namespaceURI), "/#:")
	if i := strings.LastIndexAny(s, "/:#"); i >= 0 {
		s = s[i+1:]
	}
	s = nonIdentChars.ReplaceAllString(strings.ToLower(s), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return ""
	}
	if (s[0] >= '0' && s[0] <= '9') || !IsIdentifier(s) {
		s = "ns_" + s
	}
	return s
}
