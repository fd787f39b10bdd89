// Package main provides the entry point for the geoflow CLI.
package main

import (
	"os"

	"github.com/geoflow-cds/geoflow/cmd/geoflow/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
