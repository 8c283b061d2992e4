package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/redwell/law-search/internal/pipeline"
)

func newSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a hybrid search from the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			p, err := pipeline.New(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			results, err := p.Search(cmd.Context(), query, limit)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("no results")
				return nil
			}

			for i, r := range results {
				content := r.Record.Content
				if len([]rune(content)) > 80 {
					content = string([]rune(content)[:80]) + "…"
				}
				fmt.Printf("%2d. [%.3f] %s %s\n      %s\n",
					i+1, r.Score, r.Record.LawID, r.Record.ArticleNumber, content)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum results (default from config)")
	return cmd
}
