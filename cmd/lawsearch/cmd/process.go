package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/redwell/law-search/internal/pipeline"
)

func newProcessCmd() *cobra.Command {
	var lawID string
	var xmlFile string

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Extract, embed, and store collected statutes",
		Long: `Runs the full ingestion pipeline: structural extraction,
normalization, embedding, and storage.

With --law-id a single statute is processed, resolved from the local
inventory (downloading if missing) or from an explicit --xml-file.
Without flags the whole configured statute set is collected and
processed; per-statute failures do not stop the run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if xmlFile != "" && lawID == "" {
				return fmt.Errorf("--xml-file requires --law-id")
			}

			p, err := pipeline.New(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()
			ctx := cmd.Context()

			if lawID != "" {
				res := p.ProcessSingle(ctx, lawID, xmlFile)
				printProcessResult(res)
				if !res.Success {
					return fmt.Errorf("processing %s failed: %s", lawID, res.Err)
				}
				return nil
			}

			bulk := p.ProcessAll(ctx)
			for _, res := range bulk.Results {
				printProcessResult(res)
			}
			fmt.Printf("processed %d statutes: %d succeeded, %d failed, %d skipped (%d fragments, %d embeddings) in %s\n",
				bulk.Processed, bulk.Succeeded, bulk.Failed, bulk.Skipped,
				bulk.Fragments, bulk.Embeddings, bulk.Duration.Round(time.Millisecond))
			if bulk.Failed > 0 || bulk.Skipped > 0 {
				return fmt.Errorf("%d statutes failed, %d skipped", bulk.Failed, bulk.Skipped)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&lawID, "law-id", "", "Process a single statute by ID")
	cmd.Flags().StringVar(&xmlFile, "xml-file", "", "Explicit XML file path (requires --law-id)")
	return cmd
}

func printProcessResult(res pipeline.ProcessResult) {
	if res.Success {
		fmt.Printf("  %-10s ok      %d fragments, %d embeddings in %s\n",
			res.LawID, res.Fragments, res.Embeddings, res.Duration.Round(time.Millisecond))
	} else {
		fmt.Printf("  %-10s FAILED  %s\n", res.LawID, res.Err)
	}
}
