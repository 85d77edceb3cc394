package main

import (
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/dealscout/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("dealscoutctl %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
