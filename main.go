// The main package for the popnscore executable.
package main

import (
	"github.com/JakeFAU/popn-score-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
