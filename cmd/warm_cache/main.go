package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/upsun/udfhost"
	"github.com/upsun/udfhost/pkg/eval"
	"github.com/upsun/udfhost/pkg/manifest"
	"github.com/upsun/udfhost/pkg/registry"
)

func main() {
	if err := warmCacheCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func warmCacheCmd() *cobra.Command {
	var exprFile string
	var functionDirs, variables []string
	cmd := &cobra.Command{
		Use:   "warm_cache --expr-file <file> <cache-file>",
		Short: "Compile expressions and save them to an expression cache file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(exprFile)
			if err != nil {
				return err
			}
			defer f.Close()
			n, err := warmCache(cmd.Context(), f, args[0], functionDirs, variables)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Cache with %d expressions saved to: %s\n", n, args[0])
			return nil
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.Flags().StringVar(&exprFile, "expr-file", "", "File of expressions, one per line")
	cmd.Flags().StringSliceVar(&functionDirs, "functions", nil, "Directories of function manifests to load")
	cmd.Flags().StringSliceVar(&variables, "var", nil, "Names of string variables the expressions use")
	_ = cmd.MarkFlagRequired("expr-file")
	return cmd
}

// warmCache compiles each expression read from r, against the default functions and
// those in functionDirs, and saves the cache to filename.
func warmCache(ctx context.Context, r io.Reader, filename string, functionDirs, variables []string) (int, error) {
	providers, err := udfhost.DefaultProviders(ctx)
	if err != nil {
		return 0, err
	}
	for _, dir := range functionDirs {
		manifests, err := manifest.LoadDir(ctx, os.DirFS(dir), ".")
		if err != nil {
			return 0, err
		}
		for _, m := range manifests {
			providers = append(providers, m)
		}
	}
	reg := registry.New()
	if _, err := registry.NewLoader(reg, &registry.LoaderConfig{Strict: true}).Load(ctx, providers...); err != nil {
		return 0, err
	}

	cache, err := eval.NewFileCacheWithContent(nil, filename)
	if err != nil {
		return 0, err
	}
	vars := make(map[string]registry.Kind, len(variables))
	for _, name := range variables {
		vars[name] = registry.KindString
	}
	ev, err := eval.NewEvaluator(&eval.Config{Registry: reg, Variables: vars, Cache: cache})
	if err != nil {
		return 0, err
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		expr := strings.TrimSpace(scanner.Text())
		if expr == "" || strings.HasPrefix(expr, "#") {
			continue
		}
		if _, err := ev.CompileAndCache(expr); err != nil {
			return 0, err
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return cache.Len(), cache.Save()
}
