package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/upsun/udfhost"
	"github.com/upsun/udfhost/pkg/ident"
	"github.com/upsun/udfhost/pkg/registry"
)

var errRejected = errors.New("some functions were rejected")

func validateCmd(a *app) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "validate [dir|git-url...]",
		Short: "Validate function manifests",
		Long: "Load function manifests on top of the defaults and report the functions that were " +
			"registered or rejected.\nWith no arguments, the configured manifest directories are validated.",
		ValidArgsFunction: func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveFilterDirs
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			locations := args
			if len(locations) == 0 {
				locations = a.cnf.Functions.Dirs
			}
			if len(locations) == 0 {
				return fmt.Errorf("no manifest directories given")
			}
			report, err := a.validate(cmd.Context(), locations)
			if err != nil {
				return err
			}
			if plain {
				outputReportPlain(report, cmd.OutOrStdout())
			} else {
				printReport(report, cmd.OutOrStdout())
			}
			if len(report.Rejected) > 0 {
				return errRejected
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Output tab-separated values")
	return cmd
}

// validate loads manifests into a registry that already holds the default functions, so
// that conflicts with them are reported. Only the manifests' functions are reported.
func (a *app) validate(ctx context.Context, locations []string) (*registry.LoadReport, error) {
	reg := registry.New()
	defaults, err := udfhost.DefaultProviders(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := registry.NewLoader(reg, &registry.LoaderConfig{Strict: true, Logger: a.logger}).Load(ctx, defaults...); err != nil {
		return nil, err
	}

	var providers []registry.Provider
	for _, location := range locations {
		manifests, err := loadManifests(ctx, location)
		if err != nil {
			return nil, err
		}
		for _, m := range manifests {
			providers = append(providers, m)
		}
	}
	// Rejections are reported below rather than logged.
	return registry.NewLoader(reg, nil).Load(ctx, providers...)
}

func printReport(report *registry.LoadReport, w io.Writer) {
	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	for _, id := range report.Registered {
		fmt.Fprintf(w, "%s %s\n", ok("✔"), id)
	}
	for _, rej := range report.Rejected {
		fmt.Fprintf(w, "%s %s %s\n  %s\n", bad("✘"), displayID(rej.ID), dim("("+rej.Provider+")"), rejectionReason(rej))
	}
	summary := fmt.Sprintf("%d registered, %d rejected", len(report.Registered), len(report.Rejected))
	if len(report.Rejected) > 0 {
		fmt.Fprintln(w, bad(summary))
	} else {
		fmt.Fprintln(w, ok(summary))
	}
}

func displayID(id ident.Identification) string {
	if id.Name == "" || id.NamespaceURI == "" {
		return fmt.Sprintf("(name %q, namespace %q)", id.Name, id.NamespaceURI)
	}
	return id.String()
}

// rejectionReason returns the cause of a rejection without the function and provider,
// which are displayed separately.
func rejectionReason(rej registry.Rejection) error {
	var regErr *registry.RegistrationError
	if errors.As(rej.Err, &regErr) {
		return regErr.Err
	}
	return rej.Err
}
