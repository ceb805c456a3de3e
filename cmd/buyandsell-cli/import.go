package main

import (
	"log/slog"

	"github.com/maruel/buyandsell/internal/exportjob"
	"github.com/spf13/cobra"
)

func newImportCommand(opts *globalOptions) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "import <path>",
		Short: "Load offers from a TSV file into the database",
		Long: `Import creates the offers listed in path. Authors are matched by email
and categories by name; missing ones are created. New authors get the
password given by --password. Offers failing validation are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStore()
			if err != nil {
				return err
			}
			im := exportjob.Importer{Store: store, DefaultPassword: password}
			stats, err := im.Import(cmd.Context(), args[0])
			slog.InfoContext(cmd.Context(), "Import finished",
				"rows", stats.Rows, "offers", stats.Offers, "users", stats.Users, "skipped", stats.Skipped)
			return err
		},
	}
	cmd.Flags().StringVar(&password, "password", "changeme", "Password of authors created by the import")
	return cmd
}
