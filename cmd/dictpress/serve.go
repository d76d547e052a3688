package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/dictpress/internal/mcp"
	"github.com/dshills/dictpress/internal/storage"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the dictionary over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts, os.Stderr, appOptions{withCache: true, withSuggestions: true})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			a.logger.Info("dictpress starting",
				"version", version,
				"build_mode", storage.BuildMode,
				"driver", storage.DriverName,
				"db", a.cfg.DB.Path,
				"langs", len(a.langs))

			mcp.ServerVersion = version
			server := mcp.NewServer(a.store, a.searcher, a.indexer,
				mcp.WithDicts(a.cfg.DictPairs(a.langs)),
				mcp.WithLogger(a.logger))

			a.logger.Info("MCP server ready, listening on stdio")
			if err := server.Serve(ctx); err != nil && ctx.Err() == nil {
				return fmt.Errorf("server error: %w", err)
			}
			a.logger.Info("server stopped")
			return nil
		},
	}
}

// newInstallCommand creates the database schema
func newInstallCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, cmd.ErrOrStderr(), appOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			v, err := storage.SchemaVersion(cmd.Context(), a.store.DB())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "database %s ready (schema %s)\n", a.cfg.DB.Path, v)
			return err
		},
	}
}
