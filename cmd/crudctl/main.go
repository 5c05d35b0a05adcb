package main

import (
	"os"

	"github.com/fatih/color"
)

func main() {
	a := newApp(os.Stdout, os.Stderr)
	if err := newRootCmd(a).Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, "✗", err)
		os.Exit(1)
	}
}
