// Package main is the entry point for the rentas CLI.
package main

import (
	"os"

	"github.com/javieronasis1-eng/administracion-rentas/cmd/rentas/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
