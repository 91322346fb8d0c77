package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var opts rootOptions

	ctx := newCommandContext(&opts)

	rootCmd := &cobra.Command{
		Use:           "picsctl",
		Short:         "Inspect the picsapp queue and pictures",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.dataPath, "data-path", "", "Base path for pictures and database")
	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db-path", "", "SQLite database file")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Path to .env file")
	rootCmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Print JSON instead of tables")

	rootCmd.AddCommand(newQueueCommand(ctx))
	rootCmd.AddCommand(newItemsCommand(ctx))
	rootCmd.AddCommand(newReconcileCommand(ctx))

	return rootCmd
}
