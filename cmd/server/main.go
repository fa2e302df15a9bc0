package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const programName = "quorum"

func main() {
	rootCmd := &cobra.Command{
		Use:   programName,
		Short: "Delegate seat allocation with quotas and gender parity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage: true,
	}
	rootCmd.AddCommand(
		serveCommand(),
		migrateCommand(),
		schemaCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
