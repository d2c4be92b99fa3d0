package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// defaultConfigPath is the --config default of every command.
const defaultConfigPath = "testdeck.yaml"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deck",
		Short: "Testdeck: test case and test run management",
		Long:  "Testdeck organizes manual test cases into projects and folders and records their execution as test runs.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newProjectsCmd())
	cmd.AddCommand(newCasesCmd())
	cmd.AddCommand(newRunsCmd())
	cmd.AddCommand(newAttachmentsCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "deck %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
