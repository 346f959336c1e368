// The main package for the sitebaker executable.
package main

import (
	"github.com/JakeFAU/sitebaker/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
