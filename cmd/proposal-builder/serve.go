package main

import (
	"github.com/spf13/cobra"

	"github.com/a3tai/proposal-builder/internal/mcp"
	"github.com/a3tai/proposal-builder/internal/proposal"
	"github.com/a3tai/proposal-builder/internal/security"
)

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP tool server over stdio",
		Long: `Expose folder ingestion, business dates and template rendering to MCP
clients over stdio. Folder arguments are confined to the served root.`,
		Args: cobra.NoArgs,
		RunE: a.runServe,
	}

	cmd.Flags().String("root", "", "Directory MCP clients may read (defaults to serve.root or the working directory)")

	return cmd
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	root, _ := cmd.Flags().GetString("root")
	if root == "" {
		root = a.cfg.ServeRootDir
	}

	guard, err := security.NewRootGuard(root)
	if err != nil {
		return err
	}

	engine := proposal.NewOCREngine(a.cfg, a.logger)
	// progress bars would corrupt the stdio transport
	ingestor := proposal.NewIngestor(a.cfg, engine, nil, a.logger)

	server, err := mcp.NewServer(a.cfg, guard, ingestor, a.logger)
	if err != nil {
		return err
	}
	return server.Run(cmd.Context())
}
