package main

import (
	"os"

	"github.com/chazu/facet/cmd/facet/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
