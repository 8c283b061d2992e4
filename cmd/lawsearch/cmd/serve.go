package cmd

import (
	"github.com/spf13/cobra"

	"github.com/redwell/law-search/internal/pipeline"
	"github.com/redwell/law-search/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search API over HTTP",
		Long: `Starts the HTTP API:

  GET /health           liveness check
  GET /search?q=&limit= hybrid search
  GET /laws/:id         all fragments of one statute`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := pipeline.New(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			if addr == "" {
				addr = cfg.Server.Addr
			}
			return server.New(p, logger).Run(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}
