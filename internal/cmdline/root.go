// Package cmdline is the command-line front end: it takes the input
// path, invokes the translator, and returns any failure to main, which
// reports it to stderr with a non-zero exit.
package cmdline

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hackstack/vmtranslator/internal/translate"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "vmtranslator <path>",
	Short: "Translate Hack VM code into Hack assembly",
	Long: `vmtranslator translates a Hack VM program into Hack assembly.

The argument is either a single .vm file, translated to a sibling .asm
file, or a directory containing one or more .vm files, translated
together into a single .asm file named after the directory and placed
inside it.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputPath, err := translate.Run(args[0])
		if err != nil {
			return err
		}
		if verbose {
			echo(outputPath)
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the generated assembly to stdout")
}

// echo prints the translated assembly file to stdout. Failing to read it
// back is not itself a translation failure, so it's reported but not
// fatal.
func echo(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vmtranslator: could not echo %s: %v\n", path, err)
		return
	}
	os.Stdout.Write(data)
}

// Execute runs the root command and returns its error, if any, so main
// can map it to an exit status.
func Execute() error {
	return rootCmd.Execute()
}
