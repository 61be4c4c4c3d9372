package main

import (
	"os"

	"github.com/tyemirov/repomirror/cmd/cli"
)

// main executes the repomirror command-line application.
func main() {
	os.Exit(cli.Run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}
