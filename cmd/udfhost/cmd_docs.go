package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/upsun/udfhost/pkg/registry"
)

func docsCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Generate Markdown documentation of the registered functions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, _, err := a.loadRegistry(cmd.Context())
			if err != nil {
				return err
			}
			if output == "" {
				return generateDocs(reg, cmd.OutOrStdout())
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := generateDocs(reg, f); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "Documentation generated and saved to:", output)
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

// generateDocs writes a Markdown reference of the functions, grouped by namespace in
// order of qualified name.
func generateDocs(reg *registry.Registry, w io.Writer) error {
	var b strings.Builder
	b.WriteString("# Functions\n")

	var currentNS string
	for _, e := range reg.Functions() {
		id := e.Function.Identification()
		if id.NamespaceURI != currentNS {
			currentNS = id.NamespaceURI
			prefix, _ := reg.Prefix(currentNS)
			fmt.Fprintf(&b, "\n## %s\n\nNamespace: `%s`\n", prefix, currentNS)
		}

		sig := e.Function.Signature()
		doc, _ := registry.DocOf(e.Function)
		params := make([]string, len(sig.Params))
		for i, k := range sig.Params {
			params[i] = string(k)
			if i < len(doc.Args) && doc.Args[i].Name != "" {
				params[i] = doc.Args[i].Name + " " + params[i]
			}
		}
		fmt.Fprintf(&b, "\n### `%s(%s) %s`\n", e.QualifiedName, strings.Join(params, ", "), sig.Result)
		if doc.Comment != "" {
			fmt.Fprintf(&b, "\n%s\n", doc.Comment)
		}
		if doc.Description != "" {
			fmt.Fprintf(&b, "\n%s\n", doc.Description)
		}
		var args []string
		for _, arg := range doc.Args {
			if arg.Comment != "" {
				args = append(args, fmt.Sprintf("- `%s`: %s", arg.Name, arg.Comment))
			}
		}
		if len(args) > 0 {
			fmt.Fprintf(&b, "\nArguments:\n\n%s\n", strings.Join(args, "\n"))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
