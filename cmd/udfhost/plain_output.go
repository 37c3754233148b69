package main

import (
	"fmt"
	"io"

	"github.com/upsun/udfhost/pkg/registry"
)

// outputListPlain outputs functions in plain tab-separated format
func outputListPlain(infos []functionInfo, stdout io.Writer) {
	fmt.Fprintln(stdout, "Function\tNamespace\tSignature\tDescription")
	for _, info := range infos {
		fmt.Fprintf(stdout, "%s\t%s\t%s\t%s\n", info.QualifiedName, info.NamespaceURI, info.Signature, info.Comment)
	}
}

// outputReportPlain outputs a load report in plain tab-separated format
func outputReportPlain(report *registry.LoadReport, stdout io.Writer) {
	fmt.Fprintln(stdout, "Status\tProvider\tFunction\tError")
	for _, rej := range report.Rejected {
		fmt.Fprintf(stdout, "rejected\t%s\t%s\t%v\n", rej.Provider, displayID(rej.ID), rejectionReason(rej))
	}
	for _, id := range report.Registered {
		fmt.Fprintf(stdout, "registered\t\t%s\t\n", id)
	}
}
