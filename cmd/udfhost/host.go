package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/upsun/udfhost"
	"github.com/upsun/udfhost/pkg/eval"
	"github.com/upsun/udfhost/pkg/manifest"
	"github.com/upsun/udfhost/pkg/registry"
)

// loadManifests loads the manifests in a local directory, or in the root of a Git
// repository. A Git reference may be appended to the URL after a '#'.
func loadManifests(ctx context.Context, location string) ([]*manifest.Manifest, error) {
	if manifest.IsLocal(location) {
		return manifest.LoadDir(ctx, os.DirFS(location), ".")
	}
	gitURL, ref := manifest.SplitLocation(location)
	fsys, err := manifest.Clone(ctx, gitURL, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to clone %s: %w", gitURL, err)
	}
	return manifest.LoadDir(ctx, fsys, ".")
}

// providers returns the default providers followed by the configured manifests.
func (a *app) providers(ctx context.Context) ([]registry.Provider, error) {
	providers, err := udfhost.DefaultProviders(ctx)
	if err != nil {
		return nil, err
	}
	for _, location := range a.cnf.Functions.Dirs {
		manifests, err := loadManifests(ctx, location)
		if err != nil {
			return nil, err
		}
		a.logger.Debug("loaded manifests", zap.String("location", location), zap.Int("count", len(manifests)))
		for _, m := range manifests {
			providers = append(providers, m)
		}
	}
	return providers, nil
}

// loadRegistry registers the functions of all providers. Rejected functions are logged,
// and fail loading only in strict mode.
func (a *app) loadRegistry(ctx context.Context) (*registry.Registry, *registry.LoadReport, error) {
	providers, err := a.providers(ctx)
	if err != nil {
		return nil, nil, err
	}
	reg := registry.New()
	loader := registry.NewLoader(reg, &registry.LoaderConfig{
		Strict: a.cnf.Functions.Strict,
		Logger: a.logger,
	})
	report, err := loader.Load(ctx, providers...)
	if err != nil {
		return nil, report, err
	}
	return reg, report, nil
}

// openCache opens the configured expression cache file. When none is configured, the
// user cache directory is used. A cache that cannot be opened is replaced by an
// in-memory one.
func (a *app) openCache() *eval.FileCache {
	filename := a.cnf.Cache.File
	if filename == "" {
		var err error
		if filename, err = udfhost.DefaultCacheFile(); err != nil {
			a.logger.Debug("no user cache directory", zap.Error(err))
		}
	}
	if filename != "" {
		cache, err := eval.NewFileCache(filename)
		if err == nil {
			return cache
		}
		a.logger.Warn("ignoring expression cache", zap.String("file", filename), zap.Error(err))
	}
	cache, _ := eval.NewFileCacheWithContent(nil, "")
	return cache
}

func (a *app) saveCache(cache *eval.FileCache) {
	if err := cache.Save(); err != nil {
		a.logger.Debug("could not save expression cache", zap.Error(err))
	}
}
