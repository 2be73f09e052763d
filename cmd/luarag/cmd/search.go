package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/luarag/internal/retriever"
	"github.com/dshills/luarag/pkg/types"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit        int
	mode         string // text, vector, hybrid
	textWeight   float64
	vectorWeight float64
	jsonOutput   bool
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed Lua code",
		Long: `Search the index by substring (text), embedding similarity (vector) or
a weighted fusion of both (hybrid, the default).

Examples:
  luarag search "spawnEscort"
  luarag search "how are CAP flights scheduled" --mode vector
  luarag search "missionCommands" --mode text --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := root.openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			weights := root.cfg.Weights()
			if cmd.Flags().Changed("text-weight") {
				weights.Text = opts.textWeight
			}
			if cmd.Flags().Changed("vector-weight") {
				weights.Vector = opts.vectorWeight
			}

			resp, err := a.Retriever.Search(cmd.Context(), retriever.SearchRequest{
				Query:   strings.Join(args, " "),
				Limit:   opts.limit,
				Mode:    types.SearchMode(opts.mode),
				Weights: weights,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return printJSON(out, resp)
			}
			printDegraded(cmd.ErrOrStderr(), resp.Degraded)
			printResults(out, resp.Results)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "hybrid", "Search mode: text, vector, hybrid")
	cmd.Flags().Float64Var(&opts.textWeight, "text-weight", retriever.DefaultTextWeight, "Hybrid weight of text matches")
	cmd.Flags().Float64Var(&opts.vectorWeight, "vector-weight", retriever.DefaultVectorWeight, "Hybrid weight of vector similarity")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newContextCmd(root *rootOptions) *cobra.Command {
	var (
		limit      int
		maxTokens  int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "context <query>",
		Short: "Print a token-bounded context block for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := root.openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			resp, err := a.Retriever.GetContext(cmd.Context(), strings.Join(args, " "), limit, maxTokens)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), resp.Context)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum number of chunks")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Token budget (default from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON with the included results")

	return cmd
}

func newRelatedCmd(root *rootOptions) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "related <chunk-id>",
		Short: "List chunks near a chunk in the same file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid chunk id %q", args[0])
			}

			a, closeApp, err := root.openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			results, err := a.Retriever.GetRelatedChunks(cmd.Context(), id, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), results)
			}
			printResults(cmd.OutOrStdout(), results)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", retriever.DefaultRelatedLimit, "Maximum number of chunks")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newEnhanceCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "enhance <prompt>",
		Short: "Wrap a DCS scripting question with retrieved code context",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := root.openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			res := a.Enhancer.Enhance(cmd.Context(), strings.Join(args, " "))
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), res.Prompt)
			return nil
		},
	}
}

func newStatsCmd(root *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, closeApp, err := root.openApp()
			if err != nil {
				return err
			}
			defer closeApp()

			stats, err := a.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			printStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
