// Command vmtranslator translates a Hack VM program into Hack assembly.
package main

import (
	"fmt"
	"os"

	"github.com/hackstack/vmtranslator/internal/cmdline"
)

func main() {
	if err := cmdline.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
