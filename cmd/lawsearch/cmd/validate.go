package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redwell/law-search/internal/pipeline"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Run the post-ingestion readiness checklist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := pipeline.New(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			report := p.Validate(cmd.Context())
			for _, check := range report.Checks {
				mark := "FAIL"
				switch {
				case check.Passed && check.Warning:
					mark = "WARN"
				case check.Passed:
					mark = "ok"
				}
				fmt.Printf("  %-4s %-20s %s\n", mark, check.Name, check.Detail)
			}

			if !report.Valid {
				return fmt.Errorf("validation failed")
			}
			fmt.Println("validation passed")
			return nil
		},
	}
}
