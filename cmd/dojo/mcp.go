package main

import (
	"github.com/spf13/cobra"

	"github.com/rhuss/dojo/pkg/transport/mcp"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := setup(opts)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, stop := notifyContext(cmd.Context())
			defer stop()
			return mcp.NewServer(c.app, version, c.logger).Run(ctx)
		},
	}
}
