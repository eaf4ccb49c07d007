// Command idsync synchronises identities from external resources into a
// local identity store.
package main

import (
	"fmt"
	"os"

	"github.com/custodia-labs/idsync/internal/adapters/driving/cli"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)
	cli.SetInitConfig(writeDefaultConfig)

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
