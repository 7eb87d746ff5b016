// ./main.go
package main

import (
	"github.com/forumsign/forumsign/cmd"
)

// main is the entry point for the forumsign CLI.
func main() {
	// The cmd package handles command-line parsing, configuration loading,
	// and execution of the selected command.
	cmd.Execute()
}
