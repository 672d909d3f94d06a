// Command emuharness validates a hardware emulator against a catalog of
// black-box scenarios.
package main

import (
	"context"
	"os"

	"github.com/deixis/emuharness/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
