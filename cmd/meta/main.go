package main

import (
	"fmt"
	"os"

	"github.com/metaworkspace/meta/pkg/cli"
	"github.com/metaworkspace/meta/pkg/console"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	root := cli.NewRootCommand(version)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
		os.Exit(1)
	}
}
