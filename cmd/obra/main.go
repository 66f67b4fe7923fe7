// Command obra answers construction cost questions from indexed price
// documents and generates BC3 budgets.
package main

import (
	"os"

	"github.com/custodia-labs/obra/internal/adapters/driving/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)

	// Cobra has already printed the error.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
