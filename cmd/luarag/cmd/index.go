package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newIndexCmd(root *rootOptions) *cobra.Command {
	var (
		recursive  bool
		pattern    string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "index <path>",
		Short: "Index a Lua file or directory",
		Long: `Index a single Lua file or every matching file under a directory.

Files whose content hash is unchanged are skipped. Excluded directories
(XSAF.DB, Moose by default) and files (Mist.lua) are never indexed.

Examples:
  luarag index ./XSAF
  luarag index ./XSAF/escort.lua
  luarag index ./missions --recursive=false --pattern "*_init.lua"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("cannot index %s: %w", path, err)
			}

			a, closeApp, err := root.openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			out := cmd.OutOrStdout()
			if !info.IsDir() {
				res, err := a.IndexFile(cmd.Context(), path)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(out, res)
				}
				_, _ = fmt.Fprintf(out, "%s: %s (%d chunks)\n", res.Path, res.Status, res.Chunks)
				return nil
			}

			opts := root.cfg.DirectoryOptions()
			if cmd.Flags().Changed("recursive") {
				opts.Recursive = recursive
			}
			if cmd.Flags().Changed("pattern") {
				opts.Pattern = pattern
			}

			res, err := a.IndexDirectory(cmd.Context(), path, opts)
			if res == nil {
				return err
			}
			if jsonOutput {
				if perr := printJSON(out, res); perr != nil {
					return perr
				}
				return err
			}

			_, _ = fmt.Fprintf(out, "Indexed %d, unchanged %d, failed %d, excluded %d, removed %d in %s\n",
				res.Indexed, res.Unchanged, res.Failed, res.Excluded, res.Removed, res.Duration.Round(time.Millisecond))
			for _, fe := range res.Errors {
				_, _ = fmt.Fprintf(out, "  failed: %s: %s\n", fe.Path, fe.Error)
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "Descend into subdirectories")
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "*.lua", "Glob over file names")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newDeleteCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <path>",
		Short: "Remove a file and its chunks from the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := root.openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			deleted, err := a.DeleteFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !deleted {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s was not indexed\n", args[0])
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
