package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/luarag/internal/api"
	"github.com/dshills/luarag/internal/mcp"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		transport string
		addr      string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over stdio or the JSON API over HTTP",
		Long: `Serve the index to clients.

  --transport stdio   MCP JSON-RPC on stdin/stdout (default)
  --transport http    JSON HTTP API on --addr

In stdio mode nothing but protocol messages is written to stdout; logs go
to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("transport") {
				transport = root.cfg.Server.Transport
			}
			if !cmd.Flags().Changed("addr") {
				addr = root.cfg.Server.HTTPAddr
			}
			if transport != "stdio" && transport != "http" {
				return fmt.Errorf("unknown transport %q (want stdio or http)", transport)
			}

			a, closeApp, err := root.openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			if transport == "http" {
				return api.NewServer(a).Listen(cmd.Context(), addr)
			}
			return mcp.NewServer(a).Serve(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio or http")
	cmd.Flags().StringVar(&addr, "addr", ":8000", "HTTP listen address")
	return cmd
}

func newWatchCmd(root *rootOptions) *cobra.Command {
	var skipInitial bool

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Index a directory and keep it current as files change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := root.openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			dir := args[0]
			if !skipInitial {
				res, err := a.IndexDirectory(cmd.Context(), dir, root.cfg.DirectoryOptions())
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Indexed %d, unchanged %d, failed %d\n", res.Indexed, res.Unchanged, res.Failed)
			}
			return a.Watch(cmd.Context(), dir)
		},
	}

	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "Do not index the directory before watching")
	return cmd
}
