package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redwell/law-search/internal/pipeline"
)

func newCleanupCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove aged records and inventory files",
		Long: `Deletes stored records and downloaded XML files older than the
retention cutoff. Reprocessing a statute inserts fresh rows rather
than replacing old ones, so periodic cleanup keeps the store bounded.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days <= 0 {
				days = cfg.Storage.RetentionDays
			}

			p, err := pipeline.New(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			records, files, err := p.CleanupOlderThan(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Printf("removed %d records and %d files older than %d days\n",
				records, files, days)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Age cutoff in days (default from config)")
	return cmd
}
