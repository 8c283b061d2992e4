package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/redwell/law-search/internal/collect"
)

func newCollectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect [law-id...]",
		Short: "Download statute XML into the local inventory",
		Long: `Downloads statute XML files from the e-Gov open-data service.
With no arguments the configured default statute set is collected.
Downloads are paced to respect the upstream rate limit; files already
present and valid are reused.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := collect.New(cfg.Collector, logger)
			ctx := cmd.Context()

			var results []collect.DownloadResult
			if len(args) == 0 {
				results = c.FetchAll(ctx)
			} else {
				for _, lawID := range args {
					results = append(results, c.Fetch(ctx, lawID))
				}
			}

			failed := 0
			for _, res := range results {
				switch {
				case res.Err != nil:
					failed++
					fmt.Printf("  %-10s FAILED  %v\n", res.LawID, res.Err)
				case res.Cached:
					fmt.Printf("  %-10s cached  %d bytes\n", res.LawID, res.SizeBytes)
				default:
					fmt.Printf("  %-10s ok      %d bytes in %s\n",
						res.LawID, res.SizeBytes, res.Duration.Round(time.Millisecond))
				}
			}

			fmt.Printf("collected %d/%d statutes\n", len(results)-failed, len(results))
			if failed > 0 {
				return fmt.Errorf("%d downloads failed", failed)
			}
			return nil
		},
	}
}
