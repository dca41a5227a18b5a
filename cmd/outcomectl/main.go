// Command outcomectl inspects stored grading outcomes.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

const version = "v0.1"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "outcomectl",
		Short:        "inspect stored coderunner outcomes",
		SilenceUsage: true,
	}
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print the version number of outcomectl",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("outcomectl " + version)
		},
	})
	root.AddCommand(newRenderCmd(), newCheckCmd(), newGradeCmd())
	return root
}
