package main

import (
	"io"
	"os"

	"golang.org/x/term"
)

// terminalWidth returns the width of the terminal w writes to, or 0 if it is not a terminal.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 80 // fallback width
	}
	return width
}
