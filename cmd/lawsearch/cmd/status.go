package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redwell/law-search/internal/pipeline"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store and inventory status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := pipeline.New(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			st, err := p.Status(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("database:       %s (%d bytes)\n", displayPath(st.DatabasePath), st.Stats.SizeBytes)
			fmt.Printf("documents:      %d\n", st.Stats.Documents)
			fmt.Printf("vectors:        %d\n", st.Stats.VectorCount)
			fmt.Printf("indexes:        %d\n", st.Stats.IndexCount)
			fmt.Printf("relationships:  %d law, %d article\n",
				st.Stats.LawRelationships, st.Stats.ArticleRelationships)
			fmt.Printf("inventory:      %d files (%d valid) in %s\n",
				st.InventoryFiles, st.InventoryValid, st.DataDir)
			fmt.Printf("model:          %s\n", st.ModelName)
			return nil
		},
	}
}
