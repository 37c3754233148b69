package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/upsun/udfhost/pkg/registry"
)

type functionInfo struct {
	QualifiedName string `json:"qualifiedName"`
	Name          string `json:"name"`
	NamespaceURI  string `json:"namespaceURI"`
	Signature     string `json:"signature"`
	Comment       string `json:"comment,omitempty"`
}

func listCmd(a *app) *cobra.Command {
	var plain, asJSON bool
	cmd := &cobra.Command{
		Use:   "list [pattern...]",
		Short: "List registered functions, optionally filtered by wildcard patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, _, err := a.loadRegistry(cmd.Context())
			if err != nil {
				return err
			}
			infos := functionInfos(reg.Filter(args...))
			stdout := cmd.OutOrStdout()
			switch {
			case asJSON:
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			case plain:
				outputListPlain(infos, stdout)
			default:
				if len(infos) == 0 {
					return fmt.Errorf("no functions found")
				}
				outputListTable(infos, stdout)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Output tab-separated values")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	cmd.MarkFlagsMutuallyExclusive("plain", "json")
	return cmd
}

func functionInfos(entries []registry.Entry) []functionInfo {
	infos := make([]functionInfo, len(entries))
	for i, e := range entries {
		id := e.Function.Identification()
		infos[i] = functionInfo{
			QualifiedName: e.QualifiedName,
			Name:          id.Name,
			NamespaceURI:  id.NamespaceURI,
			Signature:     e.Function.Signature().String(),
		}
		if doc, ok := registry.DocOf(e.Function); ok {
			infos[i].Comment = doc.Comment
		}
	}
	return infos
}

func outputListTable(infos []functionInfo, stdout io.Writer) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(stdout)
	if width := terminalWidth(stdout); width > 0 {
		tbl.SetAllowedRowLength(width)
	}
	tbl.AppendHeader(table.Row{"Function", "Namespace", "Signature", "Description"})
	for _, info := range infos {
		tbl.AppendRow(table.Row{info.QualifiedName, info.NamespaceURI, info.Signature, info.Comment})
	}
	tbl.Render()
}
