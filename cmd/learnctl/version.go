package main

import (
	"cmp"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version and date",
	Args:  cobra.NoArgs,
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "learnctl\nVersion: %s\nBuild Date: %s\n", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
