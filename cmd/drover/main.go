// drover is the CLI for running coding agents against plans and prompts.
package main

import (
	"os"

	"github.com/droverhq/drover/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
