// File: cmd/status.go
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/navitron/internal/observability"
	"github.com/xkilldash9x/navitron/internal/pipeline"
	"github.com/xkilldash9x/navitron/internal/store"
)

// newStatusCmd creates the `status` command, the cron entry point that appends
// one server status snapshot per run.
func newStatusCmd() *cobra.Command {
	var dryRun bool

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Snapshot the ESI server status into the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}

			st, closeStore, err := store.NewFromConfig(ctx, cfg.Store(), cfg.Database(), logger)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer closeStore()

			metrics := observability.NewMetrics()
			opts := pipeline.StatusOptions{
				Path:       cfg.Catalog().Paths.Status,
				Collection: cfg.Store().StatusCollection,
				Version:    Version,
				DryRun:     dryRun,
			}
			res, runErr := pipeline.SnapshotStatus(ctx, newFetcher(cfg, logger, metrics), st, opts, logger)
			pushMetrics(cfg.Metrics(), metrics, logger)
			if runErr != nil {
				if errors.Is(runErr, context.Canceled) {
					return runErr
				}
				return fmt.Errorf("server status snapshot failed: %w", runErr)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s\n", res.RunID)
			fmt.Fprintf(out, "  players online:    %v\n", res.Snapshot["players"])
			fmt.Fprintf(out, "  server version:    %v\n", res.Snapshot["server_version"])
			if res.Written {
				fmt.Fprintf(out, "  snapshot appended to %q\n", opts.Collection)
			} else {
				fmt.Fprintf(out, "  snapshot not stored\n")
			}
			return nil
		},
	}

	statusCmd.Flags().BoolVar(&dryRun, "debug", false, "fetch without writing to the store")
	statusCmd.Flags().Int("retries", 0, "override catalog.max_retries")
	statusCmd.Flags().String("status-collection", "", "override store.status_collection")
	addBackendFlags(statusCmd)
	return statusCmd
}
