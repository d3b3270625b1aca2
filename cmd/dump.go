// File: cmd/dump.go
package cmd

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/navitron/internal/observability"
	"github.com/xkilldash9x/navitron/internal/store"
	"github.com/xkilldash9x/navitron/internal/topology"
)

var csvHeader = []string{
	"id", "name", "security_status", "security_class",
	"region_id", "region_name", "constellation_id", "constellation_name",
	"x", "y", "z", "neighbors",
}

// now is replaced in tests to pin dump file names.
var now = time.Now

// newDumpCmd creates the `dump` command, which exports stored collections.
func newDumpCmd() *cobra.Command {
	var (
		output    string
		outputDir string
		format    string
	)

	dumpCmd := &cobra.Command{
		Use:   "dump [collection...]",
		Short: "Export stored collections as JSON or CSV",
		Long: `Export stored collections as JSON or CSV.

With no arguments the topology collection (store.collection) is exported.
A single collection goes to stdout or --output. Several collections need
--output-dir and are written to navitron_<collection>_<date>.<format>.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			if format != "json" && format != "csv" {
				return fmt.Errorf("unsupported format %q (use json or csv)", format)
			}
			if output != "" && outputDir != "" {
				return errors.New("--output and --output-dir are mutually exclusive")
			}

			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			topologyCollection := cfg.Store().Collection
			collections := args
			if len(collections) == 0 {
				collections = []string{topologyCollection}
			}
			if len(collections) > 1 && outputDir == "" {
				return errors.New("dumping several collections requires --output-dir")
			}

			st, closeStore, err := store.NewFromConfig(ctx, cfg.Store(), cfg.Database(), logger)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer closeStore()

			for _, collection := range collections {
				raw, err := st.ReadAll(ctx, collection)
				if err != nil {
					return err
				}

				target := output
				if outputDir != "" {
					target = dumpFileName(outputDir, collection, format, now())
				}
				if err := writeCollection(cmd.OutOrStdout(), target, format, collection == topologyCollection, raw); err != nil {
					return fmt.Errorf("failed to dump collection %s: %w", collection, err)
				}
				logger.Info("Collection dumped",
					zap.String("collection", collection),
					zap.Int("documents", len(raw)),
					zap.String("format", format),
					zap.String("output", target),
				)
			}
			return nil
		},
	}

	dumpCmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	dumpCmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "write one dated file per collection into this directory")
	dumpCmd.Flags().StringVarP(&format, "format", "f", "json", "output format (json or csv)")
	addStoreFlags(dumpCmd)
	return dumpCmd
}

// dumpFileName follows the archive naming of the dump cron: underscores in the
// collection become dashes and the UTC date is appended.
func dumpFileName(dir, collection, format string, t time.Time) string {
	name := fmt.Sprintf("navitron_%s_%s.%s", strings.ReplaceAll(collection, "_", "-"), t.UTC().Format("2006-01-02"), format)
	return filepath.Join(dir, name)
}

// writeCollection writes to stdout when target is empty, otherwise to target.
func writeCollection(stdout io.Writer, target, format string, isTopology bool, raw []json.RawMessage) (err error) {
	w := stdout
	if target != "" {
		var f *os.File
		f, err = os.Create(target)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("failed to close output file: %w", closeErr)
			}
		}()
		w = f
	}

	if isTopology {
		nodes, err := store.Decode[topology.NodeRecord](raw)
		if err != nil {
			return err
		}
		if format == "csv" {
			return writeCSV(w, nodes)
		}
		return writeJSON(w, nodes)
	}

	docs, err := store.Decode[map[string]any](raw)
	if err != nil {
		return err
	}
	if format == "csv" {
		return writeDocumentsCSV(w, docs)
	}
	return writeJSON(w, docs)
}

func writeJSON[T any](w io.Writer, values []T) error {
	if values == nil {
		values = []T{}
	}
	b, err := jsoniter.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode collection: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func writeCSV(w io.Writer, nodes []topology.NodeRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, n := range nodes {
		neighbors := make([]string, len(n.Neighbors))
		for i, id := range n.Neighbors {
			neighbors[i] = strconv.FormatInt(id, 10)
		}
		row := []string{
			strconv.FormatInt(n.ID, 10),
			n.Name,
			strconv.FormatFloat(n.SecurityStatus, 'f', -1, 64),
			n.SecurityClass,
			optInt(n.RegionID),
			optString(n.RegionName),
			optInt(n.ConstellationID),
			optString(n.ConstellationName),
			strconv.FormatFloat(n.X, 'g', -1, 64),
			strconv.FormatFloat(n.Y, 'g', -1, 64),
			strconv.FormatFloat(n.Z, 'g', -1, 64),
			strings.Join(neighbors, " "),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeDocumentsCSV writes free-form documents with the sorted union of their
// top-level keys as the header. Nested values are written as JSON.
func writeDocumentsCSV(w io.Writer, docs []map[string]any) error {
	var header []string
	for _, d := range docs {
		for k := range d {
			header = append(header, k)
		}
	}
	slices.Sort(header)
	header = slices.Compact(header)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, d := range docs {
		row := make([]string, len(header))
		for i, k := range header {
			cell, err := csvCell(d[k])
			if err != nil {
				return err
			}
			row[i] = cell
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvCell(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		b, err := jsoniter.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

func optInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func optString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
