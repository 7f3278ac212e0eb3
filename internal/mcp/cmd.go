package mcp

import (
	"context"
	"log"

	"github.com/cloo-solutions/mmrag/internal/cli/client"
	"github.com/spf13/cobra"
)

// Cmd creates the `mcp` command. Stdout carries the protocol, so logs go to
// stderr.
func Cmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run an MCP server over stdio",
		Long:  "Serve the ask_documents and list_sessions tools over stdio, backed by the mmrag API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := client.NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			server, err := NewServer(api, version)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			log.SetOutput(cmd.ErrOrStderr())
			log.Printf("mcp server started (version %s)", version)
			return server.Run(ctx)
		},
	}
}
