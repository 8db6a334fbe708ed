package main

import (
	"os"

	"github.com/isometry/iredadmin/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
