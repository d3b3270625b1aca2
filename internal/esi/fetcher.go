// File: internal/esi/fetcher.go
package esi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/navitron/internal/observability"
)

// DefaultWorkers is the worker count used when a Fetcher is built with zero workers.
const DefaultWorkers = 20

// Fetcher retrieves many catalog records concurrently. All workers share one
// Limiter; each request carries its own retry budget.
type Fetcher struct {
	client  *Client
	limiter *Limiter
	policy  RetryPolicy
	workers int
	logger  *zap.Logger
	metrics *observability.Metrics
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithMetrics records request outcomes on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// WithLogger sets the fetcher's logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l.Named("esi_fetcher")
		}
	}
}

// NewFetcher wires a client, a shared limiter and a retry policy into a worker pool.
func NewFetcher(client *Client, limiter *Limiter, policy RetryPolicy, workers int, opts ...Option) *Fetcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if limiter == nil {
		limiter = NewLimiter(0)
	}
	f := &Fetcher{
		client:  client,
		limiter: limiter,
		policy:  policy,
		workers: workers,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// fetchJob is one URL in flight and its remaining retry budget.
type fetchJob struct {
	resource         string
	url              string
	retriesRemaining int
	attempts         int
}

// FetchIDs downloads the id list for a resource path.
func (f *Fetcher) FetchIDs(ctx context.Context, resource, resourcePath string) ([]int64, error) {
	job := &fetchJob{resource: resource, url: f.client.ListURL(resourcePath), retriesRemaining: f.policy.MaxRetries}
	body, err := f.do(ctx, job)
	if err != nil {
		return nil, err
	}
	var ids []int64
	if err := json.Unmarshal(body, &ids); err != nil {
		return nil, fmt.Errorf("failed to decode %s id list: %w", resource, err)
	}
	return ids, nil
}

// FetchDocument downloads a single document that has no id list, such as the
// server status. It shares the limiter and retry policy with bulk fetches.
func (f *Fetcher) FetchDocument(ctx context.Context, resource, resourcePath string) ([]byte, error) {
	job := &fetchJob{resource: resource, url: f.client.ListURL(resourcePath), retriesRemaining: f.policy.MaxRetries}
	return f.do(ctx, job)
}

// FetchBulk fetches the detail record for every id and decodes each into T.
// Results are positionally aligned with ids. The first request to exhaust its
// retries cancels the batch; FetchBulk then returns that *FatalAcquisitionError
// and no results.
func FetchBulk[T any](ctx context.Context, f *Fetcher, resource, resourcePath string, ids []int64) ([]T, error) {
	start := time.Now()
	results := make([]T, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)

	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			job := &fetchJob{resource: resource, url: f.client.DetailURL(resourcePath, id), retriesRemaining: f.policy.MaxRetries}
			body, err := f.do(gctx, job)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(body, &results[i]); err != nil {
				return &FatalAcquisitionError{Resource: resource, URL: job.url, Attempts: job.attempts, Err: fmt.Errorf("malformed payload: %w", err)}
			}
			return nil
		})
	}

	err := g.Wait()
	if f.metrics != nil {
		f.metrics.BatchDuration.WithLabelValues(resource).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		var fatal *FatalAcquisitionError
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.As(err, &fatal) {
			return nil, fmt.Errorf("fetching %s interrupted: %w", resource, ctxErr)
		}
		return nil, err
	}

	f.logger.Info("Bulk fetch complete",
		zap.String("resource", resource),
		zap.Int("records", len(results)),
		zap.Duration("duration", time.Since(start)),
	)
	return results, nil
}

// do runs one job to completion: every attempt waits on the shared limiter,
// failures are redispatched until the retry budget is spent.
func (f *Fetcher) do(ctx context.Context, job *fetchJob) ([]byte, error) {
	var body []byte
	operation := func() error {
		if err := f.limiter.Acquire(ctx); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			return backoff.Permanent(err)
		}
		job.attempts++
		b, err := f.client.Get(ctx, job.url)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			f.record(job.resource, "failure")
			if isPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		f.record(job.resource, "success")
		body = b
		return nil
	}

	notify := func(err error, wait time.Duration) {
		job.retriesRemaining--
		if f.metrics != nil {
			f.metrics.CatalogRetries.WithLabelValues(job.resource).Inc()
		}
		f.logger.Warn("Catalog request failed, retrying",
			zap.String("url", job.url),
			zap.Int("retries_remaining", job.retriesRemaining),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(operation, f.policy.newBackOff(ctx), notify)
	if err == nil {
		return body, nil
	}

	var acqErr *AcquisitionError
	if errors.As(err, &acqErr) {
		if f.metrics != nil {
			f.metrics.CatalogFailures.WithLabelValues(job.resource).Inc()
		}
		f.logger.Error("Catalog request exhausted retries",
			zap.String("url", job.url),
			zap.Int("attempts", job.attempts),
			zap.Error(err),
		)
		return nil, &FatalAcquisitionError{Resource: job.resource, URL: job.url, Attempts: job.attempts, Err: err}
	}
	return nil, err
}

// isPermanent reports client errors that no retry can fix. 420 is the ESI
// error-limit status and, like 429, clears after waiting.
func isPermanent(err error) bool {
	var acqErr *AcquisitionError
	if !errors.As(err, &acqErr) {
		return false
	}
	code := acqErr.StatusCode
	return code >= 400 && code < 500 && code != 420 && code != http.StatusTooManyRequests
}

func (f *Fetcher) record(resource, outcome string) {
	if f.metrics != nil {
		f.metrics.CatalogRequests.WithLabelValues(resource, outcome).Inc()
	}
}
