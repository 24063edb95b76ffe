// The main package for the screenshot-daily executable.
package main

import (
	"github.com/JakeFAU/screenshot-daily/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
