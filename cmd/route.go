// File: cmd/route.go
package cmd

import (
	"fmt"
	"math"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/navitron/internal/graph"
	"github.com/xkilldash9x/navitron/internal/observability"
	"github.com/xkilldash9x/navitron/internal/pipeline"
	"github.com/xkilldash9x/navitron/internal/router"
	"github.com/xkilldash9x/navitron/internal/store"
)

type routeStep struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	SecurityStatus float64 `json:"security_status"`
	Region         string  `json:"region,omitempty"`
}

type routeOutput struct {
	From  string      `json:"from"`
	To    string      `json:"to"`
	Jumps int         `json:"jumps"`
	Cost  *float64    `json:"cost,omitempty"`
	Steps []routeStep `json:"steps"`
}

// newRouteCmd creates the `route` command, which plans a path over the stored table.
func newRouteCmd() *cobra.Command {
	var (
		cutoff  float64
		uniform bool
		asJSON  bool
	)

	routeCmd := &cobra.Command{
		Use:   "route <from> <to>",
		Short: "Find the least-risk route between two systems",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("cutoff") {
				cfg.SetGraphCutoff(&cutoff)
			}

			st, closeStore, err := store.NewFromConfig(ctx, cfg.Store(), cfg.Database(), logger)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer closeStore()

			var risk graph.RiskFunc
			if uniform {
				risk = graph.ConstantRisk(1)
			}
			g, err := pipeline.LoadGraph(ctx, st, cfg.Store().Collection, exclusionRules(cfg), risk, logger)
			if err != nil {
				return err
			}

			r := router.New(g, router.WithCutoff(cfg.Graph().Cutoff), router.WithLogger(logger))
			p, err := r.Resolve(args[0], args[1])
			if err != nil {
				return err
			}

			out := routeOutput{From: args[0], To: args[1], Jumps: p.Jumps()}
			if !math.IsInf(p.Cost, 1) {
				out.Cost = &p.Cost
			}
			for _, i := range p.Nodes {
				n := g.Node(i)
				step := routeStep{ID: n.ID, Name: n.Name, SecurityStatus: n.SecurityStatus}
				if n.RegionName != nil {
					step.Region = *n.RegionName
				}
				out.Steps = append(out.Steps, step)
			}

			w := cmd.OutOrStdout()
			if asJSON {
				b, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode route: %w", err)
				}
				fmt.Fprintln(w, string(b))
				return nil
			}

			cost := "unknown"
			if out.Cost != nil {
				cost = fmt.Sprintf("%g", *out.Cost)
			}
			fmt.Fprintf(w, "%s -> %s: %d jumps, cost %s\n", out.From, out.To, out.Jumps, cost)
			for i, s := range out.Steps {
				fmt.Fprintf(w, "%3d. %-16s %4.1f  %s\n", i, s.Name, s.SecurityStatus, s.Region)
			}
			return nil
		},
	}

	routeCmd.Flags().Float64Var(&cutoff, "cutoff", 0, "maximum cumulative route cost (overrides graph.cutoff)")
	routeCmd.Flags().BoolVar(&uniform, "uniform-weight", true, "weight every jump as 1 instead of using the stored risk")
	routeCmd.Flags().BoolVar(&asJSON, "json", false, "print the route as JSON")
	addStoreFlags(routeCmd)
	return routeCmd
}
