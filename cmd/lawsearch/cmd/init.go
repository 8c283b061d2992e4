package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redwell/law-search/internal/embed"
	"github.com/redwell/law-search/internal/pipeline"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Prepare the store and verify the embedding model",
		Long: `Creates the SQLite database with its collections and indexes,
and checks that the configured embedding model is reachable.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := pipeline.New(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			ctx := cmd.Context()
			if err := p.Store().Ping(ctx); err != nil {
				return err
			}
			fmt.Printf("store ready: %s\n", displayPath(cfg.Storage.Path))

			client := embed.NewClient(cfg.Embedding, logger)
			if err := client.Available(ctx); err != nil {
				fmt.Printf("embedding model %s: NOT available (%v)\n", cfg.Embedding.Model, err)
				return err
			}
			fmt.Printf("embedding model %s: available\n", cfg.Embedding.Model)
			return nil
		},
	}
}

func displayPath(path string) string {
	if path == "" {
		return "(in-memory)"
	}
	return path
}
