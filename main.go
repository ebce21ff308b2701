// The main package for the sitewake executable.
package main

import (
	"sitewake/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
