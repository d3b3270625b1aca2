package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/navitron/internal/esi"
	"github.com/xkilldash9x/navitron/internal/store"
)

// ResourceStatus labels server status requests in logs and metrics.
const ResourceStatus = "status"

// StatusOptions controls a single server status snapshot.
type StatusOptions struct {
	Path       string
	Collection string
	Version    string
	DryRun     bool
	// Now stamps the snapshot. Defaults to time.Now.
	Now func() time.Time
}

// StatusResult describes one snapshot.
type StatusResult struct {
	RunID    string
	Snapshot map[string]any
	Written  bool
}

// SnapshotStatus fetches the server status document, stamps it with the run
// metadata and appends it to the status collection. Snapshots accumulate; the
// collection is never replaced.
func SnapshotStatus(ctx context.Context, fetcher *esi.Fetcher, st store.Store, opts StatusOptions, logger *zap.Logger) (*StatusResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	res := &StatusResult{RunID: uuid.NewString()}
	log := logger.Named("status").With(zap.String("run_id", res.RunID))

	log.Info("Fetching server status")
	body, err := fetcher.FetchDocument(ctx, ResourceStatus, opts.Path)
	if err != nil {
		return nil, err
	}

	snapshot := map[string]any{}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode server status: %w", err)
	}
	snapshot["run_id"] = res.RunID
	snapshot["cron_datetime"] = now().UTC().Format(time.RFC3339)
	snapshot["navitron_version"] = opts.Version
	res.Snapshot = snapshot

	if opts.DryRun {
		log.Info("Dry run, status snapshot not stored")
		return res, nil
	}

	docs, err := store.Encode([]map[string]any{snapshot})
	if err != nil {
		return nil, err
	}
	if err := st.InsertMany(ctx, opts.Collection, docs); err != nil {
		return nil, fmt.Errorf("failed to store server status in %s: %w", opts.Collection, err)
	}
	res.Written = true
	log.Info("Server status stored", zap.String("collection", opts.Collection))
	return res, nil
}
