// Package udfhost registers user-defined functions and makes them callable from
// Common Expression Language (CEL) expressions.
//
// The registry, evaluation and manifest packages live under pkg/. This package provides
// the defaults shipped with the binary.
package udfhost

import (
	"context"
	"embed"
	"os"
	"path/filepath"

	"github.com/upsun/udfhost/pkg/builtins"
	"github.com/upsun/udfhost/pkg/manifest"
	"github.com/upsun/udfhost/pkg/registry"
)

//go:embed functions
var functionsData embed.FS

// LoadDefaultManifests loads the function manifests embedded in the binary.
func LoadDefaultManifests(ctx context.Context) ([]*manifest.Manifest, error) {
	return manifest.LoadDir(ctx, functionsData, "functions")
}

// DefaultProviders returns the builtin functions followed by the embedded manifests.
func DefaultProviders(ctx context.Context) ([]registry.Provider, error) {
	manifests, err := LoadDefaultManifests(ctx)
	if err != nil {
		return nil, err
	}
	providers := []registry.Provider{builtins.Provider()}
	for _, m := range manifests {
		providers = append(providers, m)
	}
	return providers, nil
}

// DefaultCacheFile returns the path of the expression cache in the user cache directory,
// creating the directory if needed.
func DefaultCacheFile() (string, error) {
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	cacheDir := filepath.Join(userCacheDir, "udfhost")
	if err := os.MkdirAll(cacheDir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "expr.cache"), nil
}
