package manifest

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"runtime"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaBytes []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaBytes)

var ErrUnsupportedFormat = errors.New("unsupported manifest format")

// Extensions lists the supported file extensions.
var Extensions = []string{".yaml", ".yml", ".toml", ".json", ".jsonc"}

// IsManifestFile reports whether a filename has a supported extension.
func IsManifestFile(name string) bool {
	return slices.Contains(Extensions, strings.ToLower(path.Ext(name)))
}

// Parse decodes and validates a manifest. The format is chosen by the file extension.
func Parse(name string, data []byte) (*Manifest, error) {
	var doc any
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".toml":
		var m map[string]any
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
		doc = m
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
	if doc == nil {
		// An empty file declares nothing.
		return &Manifest{Source: name}, nil
	}

	jsonData, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to JSON: %w", err)
	}
	if err := validateAgainstSchema(jsonData); err != nil {
		return nil, err
	}
	m := &Manifest{}
	if err := json.Unmarshal(jsonData, m); err != nil {
		return nil, err
	}
	m.Source = name
	return m, nil
}

func validateAgainstSchema(jsonData []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return fmt.Errorf("schema validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LoadDir parses all manifest files in a directory (not recursively), sorted by name.
func LoadDir(ctx context.Context, fsys fs.FS, dir string) ([]*Manifest, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && IsManifestFile(e.Name()) {
			names = append(names, e.Name())
		}
	}

	manifests := make([]*Manifest, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, runtime.GOMAXPROCS(0)))
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p := path.Join(dir, name)
			data, err := fs.ReadFile(fsys, p)
			if err != nil {
				return fmt.Errorf("failed to read manifest %s: %w", p, err)
			}
			m, err := Parse(p, data)
			if err != nil {
				return fmt.Errorf("invalid manifest %s: %w", p, err)
			}
			manifests[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return manifests, nil
}
