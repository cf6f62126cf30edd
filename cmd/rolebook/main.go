// Package main provides the rolebook CLI.
package main

import (
	"os"

	"github.com/mesh-intelligence/rolebook/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
