// Package registry holds user-defined functions keyed by their identification.
package registry

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/IGLOU-EU/go-wildcard/v2"

	"github.com/upsun/udfhost/pkg/ident"
)

// Entry is a registered function with the qualified name used to call it in expressions.
type Entry struct {
	QualifiedName string
	Function      Function
}

// Registry is a concurrency-safe set of functions.
//
// Each namespace URI is bound to a prefix, and a function is called in expressions as
// "prefix.name". A namespace with no explicit binding gets ident.DefaultPrefix on first
// registration.
type Registry struct {
	funcs     map[string]Entry
	prefixes  map[string]string // prefix to namespace URI
	uriPrefix map[string]string // namespace URI to prefix
	mux       sync.RWMutex
}

func New() *Registry {
	return &Registry{
		funcs:     make(map[string]Entry),
		prefixes:  make(map[string]string),
		uriPrefix: make(map[string]string),
	}
}

// BindPrefix binds a prefix to a namespace URI.
//
// A namespace can only be rebound to a different prefix while it has no functions.
func (r *Registry) BindPrefix(prefix, namespaceURI string) error {
	if !ident.IsIdentifier(prefix) {
		return fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	if strings.TrimSpace(namespaceURI) == "" {
		return ident.ErrBlankNamespace
	}

	r.mux.Lock()
	defer r.mux.Unlock()
	if uri, ok := r.prefixes[prefix]; ok {
		if uri == namespaceURI {
			return nil
		}
		return fmt.Errorf("%w: prefix %q is bound to %s", ErrPrefixConflict, prefix, uri)
	}
	if old, ok := r.uriPrefix[namespaceURI]; ok {
		if r.countInNamespace(namespaceURI) > 0 {
			return fmt.Errorf("%w: namespace %s is already in use with prefix %q", ErrPrefixConflict, namespaceURI, old)
		}
		delete(r.prefixes, old)
	}
	r.prefixes[prefix] = namespaceURI
	r.uriPrefix[namespaceURI] = prefix
	return nil
}

func (r *Registry) countInNamespace(namespaceURI string) int {
	n := 0
	for _, e := range r.funcs {
		if e.Function.Identification().NamespaceURI == namespaceURI {
			n++
		}
	}
	return n
}

// Register adds a function to the registry.
//
// Registration fails if the function's identification is blank or malformed, if a
// function with the same identification exists, or if its namespace cannot be given a
// prefix.
func (r *Registry) Register(fn Function) error {
	if fn == nil {
		return &RegistrationError{Err: fmt.Errorf("%w: nil function", ErrUnsupportedSignature)}
	}
	id := fn.Identification()
	if err := id.Validate(); err != nil {
		return &RegistrationError{ID: id, Err: err}
	}
	if err := fn.Signature().validate(); err != nil {
		return &RegistrationError{ID: id, Err: err}
	}

	r.mux.Lock()
	defer r.mux.Unlock()
	key := id.String()
	if _, ok := r.funcs[key]; ok {
		return &RegistrationError{ID: id, Err: ErrDuplicate}
	}
	prefix, ok := r.uriPrefix[id.NamespaceURI]
	if !ok {
		prefix = ident.DefaultPrefix(id.NamespaceURI)
		if prefix == "" {
			return &RegistrationError{ID: id, Err: fmt.Errorf("%w: none can be derived from %s", ErrInvalidPrefix, id.NamespaceURI)}
		}
		if other, taken := r.prefixes[prefix]; taken {
			return &RegistrationError{ID: id, Err: fmt.Errorf("%w: prefix %q is bound to %s", ErrPrefixConflict, prefix, other)}
		}
		r.prefixes[prefix] = id.NamespaceURI
		r.uriPrefix[id.NamespaceURI] = prefix
	}
	r.funcs[key] = Entry{QualifiedName: prefix + "." + id.Name, Function: fn}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(fn Function) {
	if err := r.Register(fn); err != nil {
		panic(err)
	}
}

// Lookup finds a function by its identification.
func (r *Registry) Lookup(id ident.Identification) (Function, bool) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	e, ok := r.funcs[id.String()]
	return e.Function, ok
}

// Resolve finds a function by its qualified name ("prefix.name").
func (r *Registry) Resolve(qualified string) (Function, error) {
	i := strings.LastIndexByte(qualified, '.')
	if i <= 0 {
		return nil, fmt.Errorf("%w: %q is not a qualified name", ErrNotFound, qualified)
	}
	r.mux.RLock()
	defer r.mux.RUnlock()
	uri, ok := r.prefixes[qualified[:i]]
	if !ok {
		return nil, fmt.Errorf("%w: unknown prefix in %q", ErrNotFound, qualified)
	}
	e, ok := r.funcs[ident.Identification{Name: qualified[i+1:], NamespaceURI: uri}.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, qualified)
	}
	return e.Function, nil
}

// QualifiedName returns the name used to call a registered function in expressions.
func (r *Registry) QualifiedName(id ident.Identification) (string, bool) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	e, ok := r.funcs[id.String()]
	return e.QualifiedName, ok
}

// Prefix returns the prefix bound to a namespace URI.
func (r *Registry) Prefix(namespaceURI string) (string, bool) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	p, ok := r.uriPrefix[namespaceURI]
	return p, ok
}

// Functions returns all entries, sorted by qualified name.
func (r *Registry) Functions() []Entry {
	r.mux.RLock()
	entries := make([]Entry, 0, len(r.funcs))
	for _, e := range r.funcs {
		entries = append(entries, e)
	}
	r.mux.RUnlock()
	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.QualifiedName, b.QualifiedName)
	})
	return entries
}

// Filter returns the entries whose qualified name matches any of the wildcard patterns.
// With no patterns, all entries are returned.
func (r *Registry) Filter(patterns ...string) []Entry {
	all := r.Functions()
	if len(patterns) == 0 {
		return all
	}
	filtered := make([]Entry, 0, len(all))
	for _, e := range all {
		for _, p := range patterns {
			if wildcard.Match(strings.TrimSpace(p), e.QualifiedName) {
				filtered = append(filtered, e)
				break
			}
		}
	}
	return filtered
}

func (r *Registry) Len() int {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return len(r.funcs)
}
