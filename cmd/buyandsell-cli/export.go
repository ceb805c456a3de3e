package main

import (
	"log/slog"

	"github.com/maruel/buyandsell/internal/exportjob"
	"github.com/spf13/cobra"
)

func newExportCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <path>",
		Short: "Write every offer in the database to a TSV file",
		Long: `Export writes the offer catalogue to path in the format read by import,
in the order the offers were stored. An existing file is replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStore()
			if err != nil {
				return err
			}
			n, err := exportjob.ExportOffers(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			slog.InfoContext(cmd.Context(), "Offers exported", "count", n, "path", args[0])
			return nil
		},
	}
}
