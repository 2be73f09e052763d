// Package cmd provides the CLI commands for luarag.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/luarag/internal/app"
	"github.com/dshills/luarag/internal/config"
	"github.com/dshills/luarag/internal/logging"
	"github.com/dshills/luarag/internal/mcp"
	"github.com/dshills/luarag/internal/storage"
)

// Set at build time with -ldflags "-X .../cmd.version=..."
var (
	version   = "dev"
	buildTime = "unknown"
)

// rootOptions carries the persistent flags and the state built from them
type rootOptions struct {
	configDir string
	dbPath    string
	logLevel  string
	logFormat string

	cfg     *config.Config
	logger  *slog.Logger
	cleanup func()
}

// NewRootCmd creates the root command for the luarag CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "luarag",
		Short: "Hybrid code search and prompt context for DCS World Lua",
		Long: `luarag indexes DCS World mission scripts (the XSAF codebase and similar
Lua trees) into syntax-aware chunks and retrieves the most relevant ones
with a weighted fusion of substring and vector search.

Retrieved chunks can be formatted into a token-bounded context block or
wrapped around a question as an enhanced LLM prompt. The same operations
are served over MCP (stdio) and a JSON HTTP API.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if opts.cleanup != nil {
				opts.cleanup()
				opts.cleanup = nil
			}
			return nil
		},
	}

	cmd.SetVersionTemplate(fmt.Sprintf("luarag version {{.Version}}\nbuild time: %s\nstorage: %s (driver %s, vector extension %v)\n",
		buildTime, storage.BuildMode, storage.DriverName, storage.VectorExtensionAvailable))

	cmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", ".", "Directory holding .luarag.yaml and .env")
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "Index database path (default ~/.luarag/index.db)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format: text, json")

	cmd.AddCommand(newIndexCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newContextCmd(opts))
	cmd.AddCommand(newRelatedCmd(opts))
	cmd.AddCommand(newEnhanceCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))
	cmd.AddCommand(newDeleteCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newServeCmd(opts))

	return cmd
}

// load resolves the configuration and logger. Flags win over every other
// source.
func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configDir)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = o.dbPath
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = strings.ToLower(o.logLevel)
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = strings.ToLower(o.logFormat)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, cleanup, err := logging.Setup(logging.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		FilePath: cfg.Log.File,
		Output:   cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	slog.SetDefault(logger)

	o.cfg = cfg
	o.logger = logger
	o.cleanup = cleanup
	return nil
}

// openApp builds the component graph and returns it with its closer
func (o *rootOptions) openApp() (*app.App, func(), error) {
	a, err := app.New(o.cfg, o.logger)
	if err != nil {
		return nil, nil, err
	}
	return a, func() {
		if err := a.Close(); err != nil {
			o.logger.Warn("close failed", "error", err)
		}
	}, nil
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	mcp.ServerVersion = version
	return NewRootCmd().ExecuteContext(ctx)
}
