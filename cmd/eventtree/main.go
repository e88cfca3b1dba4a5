// Package main is the entry point for the eventtree server and its
// maintenance commands.
package main

import (
	"context"
	"fmt"
	"os"

	"eventtree/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
