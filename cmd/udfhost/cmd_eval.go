package main

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/upsun/udfhost/pkg/eval"
	"github.com/upsun/udfhost/pkg/registry"
)

func evalCmd(a *app) *cobra.Command {
	var vars map[string]string
	var stats bool
	cmd := &cobra.Command{
		Use:   "eval <expression>",
		Short: "Evaluate an expression",
		Long: "Evaluate a CEL expression that may call the registered functions, e.g.\n\n" +
			"  udfhost eval --var a=x --var b=y 'strings.compare(a, b)'\n\n" +
			"Variables are strings. The result is printed as JSON.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEval(cmd.Context(), args[0], vars, stats, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringToStringVar(&vars, "var", nil, "Set a string variable (name=value), repeatable")
	cmd.Flags().BoolVar(&stats, "stats", false, "Print function call counts to stderr")
	return cmd
}

func (a *app) runEval(ctx context.Context, expr string, vars map[string]string, stats bool, stdout, stderr io.Writer) error {
	reg, _, err := a.loadRegistry(ctx)
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	metrics, err := eval.NewMetrics(promReg)
	if err != nil {
		return err
	}

	variables := make(map[string]registry.Kind, len(vars))
	values := make(map[string]any, len(vars))
	for name, value := range vars {
		variables[name] = registry.KindString
		values[name] = value
	}

	cache := a.openCache()
	defer a.saveCache(cache)

	ev, err := eval.NewEvaluator(&eval.Config{
		Registry:  reg,
		Variables: variables,
		Cache:     cache,
		Metrics:   metrics,
		Logger:    a.logger,
	})
	if err != nil {
		return err
	}

	val, err := ev.EvalWith(ctx, expr, values)
	if stats {
		printStats(promReg, stderr, a.logger)
	}
	if err != nil {
		return err
	}
	b, err := eval.ToJSON(val)
	if err != nil {
		return fmt.Errorf("cannot encode result: %w", err)
	}
	fmt.Fprintln(stdout, string(b))
	return nil
}

// printStats prints the function call counters, sorted by function.
func printStats(g prometheus.Gatherer, w io.Writer, logger *zap.Logger) {
	families, err := g.Gather()
	if err != nil {
		logger.Warn("could not gather metrics", zap.Error(err))
		return
	}
	var lines []string
	for _, mf := range families {
		if mf.GetName() != "udfhost_function_calls_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			lines = append(lines, fmt.Sprintf("%s\t%s\t%d", labels["function"], labels["outcome"], int(m.GetCounter().GetValue())))
		}
	}
	slices.Sort(lines)
	fmt.Fprintln(w, "Function\tOutcome\tCalls")
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}
