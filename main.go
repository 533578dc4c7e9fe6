// ./main.go
package main

import (
	"github.com/browserpilot/browserpilot/cmd"
)

// main is the entry point for the browserpilot CLI.
func main() {
	cmd.Execute()
}
