package eval

import (
	"sync"

	"github.com/google/cel-go/cel"
)

// Cache stores checked expressions so that they need not be compiled again.
type Cache interface {
	Get(expr string) (ast *cel.Ast, ok bool)
	Set(expr string, ast *cel.Ast) error
}

// EnvironmentAware is implemented by caches that must be invalidated when the set of
// declared functions changes.
type EnvironmentAware interface {
	SetEnvironment(fingerprint string)
}

type memoryCache struct {
	cache sync.Map
}

func (c *memoryCache) Get(expr string) (*cel.Ast, bool) {
	if a, ok := c.cache.Load(expr); ok {
		return a.(*cel.Ast), true //nolint:errcheck // the cached type is known
	}
	return nil, false
}

func (c *memoryCache) Set(expr string, ast *cel.Ast) error {
	c.cache.Store(expr, ast)
	return nil
}

type programCache struct {
	programs map[*cel.Ast]cel.Program
	mux      sync.RWMutex
}

func (pc *programCache) get(ast *cel.Ast) (cel.Program, bool) {
	pc.mux.RLock()
	defer pc.mux.RUnlock()
	prg, ok := pc.programs[ast]
	return prg, ok
}

func (pc *programCache) set(ast *cel.Ast, program cel.Program) {
	pc.mux.Lock()
	defer pc.mux.Unlock()
	if pc.programs == nil {
		pc.programs = make(map[*cel.Ast]cel.Program)
	}
	pc.programs[ast] = program
}
