package registry

import (
	"errors"
	"fmt"

	"github.com/upsun/udfhost/pkg/ident"
)

var (
	ErrDuplicate            = errors.New("function already registered")
	ErrPrefixConflict       = errors.New("namespace prefix conflict")
	ErrInvalidPrefix        = errors.New("invalid namespace prefix")
	ErrNoEvaluate           = errors.New("no exported Evaluate method")
	ErrNotIdentified        = errors.New("value does not provide an identification")
	ErrUnsupportedSignature = errors.New("unsupported function signature")
	ErrUnsupportedKind      = errors.New("unsupported type")
	ErrArity                = errors.New("wrong number of arguments")
	ErrNilArgument          = errors.New("nil argument")
	ErrArgumentType         = errors.New("invalid argument type")
	ErrNotFound             = errors.New("function not found")
)

// RegistrationError describes why a function could not be registered.
type RegistrationError struct {
	ID       ident.Identification
	Provider string
	Err      error
}

func (e *RegistrationError) Error() string {
	var what string
	if e.ID.IsBlank() {
		what = fmt.Sprintf("function (name %q, namespace %q)", e.ID.Name, e.ID.NamespaceURI)
	} else {
		what = "function " + e.ID.String()
	}
	if e.Provider != "" {
		what += " from provider " + e.Provider
	}
	return "cannot register " + what + ": " + e.Err.Error()
}

func (e *RegistrationError) Unwrap() error { return e.Err }
