package registry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/upsun/udfhost/pkg/ident"
)

// Provider supplies functions to a Loader.
//
// Each element returned by Functions is a Function, a Builder, or a value accepted by
// FromDeclared.
type Provider interface {
	Name() string
	Functions() []any
}

// Namespacer can be implemented by a Provider to bind prefixes (keys) to namespace URIs
// (values) before its functions are registered.
type Namespacer interface {
	Namespaces() map[string]string
}

type LoaderConfig struct {
	// Strict makes the first rejected function abort loading.
	Strict bool

	Logger *zap.Logger
}

// Rejection records a function that could not be registered.
type Rejection struct {
	Provider string
	ID       ident.Identification
	Err      error
}

// LoadReport lists the outcome of loading providers.
type LoadReport struct {
	Registered []ident.Identification
	Rejected   []Rejection
}

// Err joins the errors of all rejections, or returns nil.
func (r *LoadReport) Err() error {
	errs := make([]error, len(r.Rejected))
	for i, rej := range r.Rejected {
		errs[i] = rej.Err
	}
	return errors.Join(errs...)
}

// Loader registers the functions of providers, dropping the ones that are invalid.
type Loader struct {
	reg    *Registry
	cnf    *LoaderConfig
	logger *zap.Logger
}

func NewLoader(reg *Registry, cnf *LoaderConfig) *Loader {
	if cnf == nil {
		cnf = &LoaderConfig{}
	}
	logger := cnf.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{reg: reg, cnf: cnf, logger: logger}
}

// Load registers the functions of each provider in order.
//
// Invalid functions are recorded in the report and logged as warnings. In strict mode the
// first one is also returned as an error, and loading stops.
func (l *Loader) Load(ctx context.Context, providers ...Provider) (*LoadReport, error) {
	report := &LoadReport{}
	for _, p := range providers {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := l.loadProvider(p, report); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (l *Loader) loadProvider(p Provider, report *LoadReport) error {
	logger := l.logger.With(zap.String("provider", p.Name()))

	reject := func(id ident.Identification, err error) error {
		var regErr *RegistrationError
		if errors.As(err, &regErr) {
			regErr.Provider = p.Name()
		} else {
			err = &RegistrationError{ID: id, Provider: p.Name(), Err: err}
		}
		report.Rejected = append(report.Rejected, Rejection{Provider: p.Name(), ID: id, Err: err})
		logger.Warn("function dropped",
			zap.String("function", id.String()),
			zap.Error(err),
		)
		if l.cnf.Strict {
			return err
		}
		return nil
	}

	if ns, ok := p.(Namespacer); ok {
		namespaces := ns.Namespaces()
		bound := make(map[string]string, len(namespaces)) // namespace URI to prefix
		for _, prefix := range slices.Sorted(maps.Keys(namespaces)) {
			uri := namespaces[prefix]
			var err error
			if other, ok := bound[uri]; ok {
				err = fmt.Errorf("%w: namespace %s is already bound to prefix %q", ErrPrefixConflict, uri, other)
			} else {
				err = l.reg.BindPrefix(prefix, uri)
			}
			if err != nil {
				if rerr := reject(ident.Identification{NamespaceURI: uri}, fmt.Errorf("prefix %q: %w", prefix, err)); rerr != nil {
					return rerr
				}
				continue
			}
			bound[uri] = prefix
		}
	}

	for _, item := range p.Functions() {
		var id ident.Identification
		if idf, ok := item.(Identified); ok {
			id = idf.Identification()
		}
		fn, err := Build(item)
		if err != nil {
			if rerr := reject(id, err); rerr != nil {
				return rerr
			}
			continue
		}
		if err := l.reg.Register(fn); err != nil {
			if rerr := reject(id, err); rerr != nil {
				return rerr
			}
			continue
		}
		id = fn.Identification()
		report.Registered = append(report.Registered, id)
		logger.Debug("function registered", zap.String("function", id.String()))
	}
	return nil
}

// Builder is a provider element that constructs its Function on demand.
type Builder interface {
	Build() (Function, error)
}

// Build turns a provider element into a Function.
func Build(item any) (Function, error) {
	switch v := item.(type) {
	case Function:
		return v, nil
	case Builder:
		return v.Build()
	}
	return FromDeclared(item)
}

// StaticProvider is a Provider with a fixed list of functions.
type StaticProvider struct {
	ProviderName string
	Items        []any
	Prefixes     map[string]string
}

func (p *StaticProvider) Name() string                  { return p.ProviderName }
func (p *StaticProvider) Functions() []any              { return p.Items }
func (p *StaticProvider) Namespaces() map[string]string { return p.Prefixes }
