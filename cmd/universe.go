// File: cmd/universe.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/navitron/internal/config"
	"github.com/xkilldash9x/navitron/internal/esi"
	"github.com/xkilldash9x/navitron/internal/graph"
	"github.com/xkilldash9x/navitron/internal/observability"
	"github.com/xkilldash9x/navitron/internal/pipeline"
	"github.com/xkilldash9x/navitron/internal/store"
)

// newUniverseCmd creates the `universe` command, the cron entry point that
// refreshes the stored topology table from the catalog.
func newUniverseCmd() *cobra.Command {
	var (
		force  bool
		dryRun bool
	)

	universeCmd := &cobra.Command{
		Use:   "universe",
		Short: "Fetch the universe topology from ESI and refresh the stored table",
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
			p := pipeline.New(newFetcher(cfg, logger, metrics), st, pipelineOptions(cfg, force, dryRun), logger, metrics)

			res, runErr := p.Run(ctx)
			pushMetrics(cfg.Metrics(), metrics, logger)
			if runErr != nil {
				if errors.Is(runErr, context.Canceled) {
					return runErr
				}
				return fmt.Errorf("universe refresh failed: %w", runErr)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s\n", res.RunID)
			fmt.Fprintf(out, "  systems assembled: %d (%d without gate data)\n", len(res.Nodes), len(res.Report.Incomplete))
			fmt.Fprintf(out, "  routable graph:    %d systems, %d gates\n", res.Graph.Len(), res.Graph.EdgeCount())
			fmt.Fprintf(out, "  baseline:          %s, %d changed ids\n", res.Stale.Baseline, len(res.Stale.IDs))
			if res.Written {
				fmt.Fprintf(out, "  stored collection %q rewritten\n", cfg.Store().Collection)
			} else {
				fmt.Fprintf(out, "  stored collection %q left unchanged\n", cfg.Store().Collection)
			}
			return nil
		},
	}

	universeCmd.Flags().BoolVar(&force, "force", false, "rewrite the stored table even when no system changed")
	universeCmd.Flags().BoolVar(&dryRun, "debug", false, "run without writing to the store")
	universeCmd.Flags().Int("workers", 0, "override catalog.workers")
	universeCmd.Flags().Float64("rps", 0, "override catalog.requests_per_second")
	universeCmd.Flags().Int("retries", 0, "override catalog.max_retries")
	universeCmd.Flags().Duration("timeout", 0, "override catalog.timeout")
	addStoreFlags(universeCmd)
	return universeCmd
}

func addStoreFlags(cmd *cobra.Command) {
	addBackendFlags(cmd)
	cmd.Flags().String("collection", "", "override store.collection")
}

func addBackendFlags(cmd *cobra.Command) {
	cmd.Flags().String("store", "", "override store.type (postgres or file)")
	cmd.Flags().String("store-dir", "", "override store.dir")
}

func newFetcher(cfg config.Interface, logger *zap.Logger, metrics *observability.Metrics) *esi.Fetcher {
	cc := cfg.Catalog()
	timeout := cc.RequestTimeout
	if timeout <= 0 {
		timeout = esi.DefaultRequestTimeout
	}
	client := esi.NewClient(cc.BaseURL, cc.UserAgent, &http.Client{Timeout: timeout}, logger)
	policy := esi.DefaultRetryPolicy()
	policy.MaxRetries = cc.MaxRetries
	policy.InitialBackoff = cc.InitialBackoff
	policy.MaxBackoff = cc.MaxBackoff
	return esi.NewFetcher(client, esi.NewLimiter(cc.RequestsPerSecond), policy, cc.Workers,
		esi.WithLogger(logger), esi.WithMetrics(metrics))
}

func exclusionRules(cfg config.Interface) graph.ExclusionRules {
	gc := cfg.Graph()
	return graph.ExclusionRules{MaxNodeID: gc.MaxNodeID, ExcludedRegions: gc.ExcludedRegions}
}

func pipelineOptions(cfg config.Interface, force, dryRun bool) pipeline.Options {
	return pipeline.Options{
		Paths:      cfg.Catalog().Paths,
		Collection: cfg.Store().Collection,
		Timeout:    cfg.Catalog().Timeout,
		DryRun:     dryRun,
		Force:      force,
		Rules:      exclusionRules(cfg),
	}
}

func pushMetrics(mc config.MetricsConfig, metrics *observability.Metrics, logger *zap.Logger) {
	if mc.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metrics.Push(ctx, mc.PushgatewayURL, mc.Job); err != nil {
		logger.Warn("Failed to push metrics", zap.Error(err))
	}
}
