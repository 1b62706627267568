package main

import (
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/thywilljoshua/fincontext/internal/server"
)

var version = "dev"

func mcpCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the extract_page_context tool over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// stdout carries the protocol, so logs go to stderr.
			a, err := newApp(cmd.Context(), *configPath, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := mcp.NewServer(&mcp.Implementation{Name: "fincontext", Version: version}, nil)
			server.RegisterMCP(srv, a.wf)
			return srv.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}
