package ingest

import (
	"context"
	stderrors "errors"
	"time"

	"jiraharvest/pkg/config"
	"jiraharvest/pkg/errors"
	"jiraharvest/pkg/jira"
	"jiraharvest/pkg/logger"
	"jiraharvest/pkg/ratelimit"
	"jiraharvest/pkg/retry"
)

// Page is one fetched page of records for a collection
type Page struct {
	// Offset is the requested pagination offset
	Offset int
	// Size is the requested page size
	Size int
	// Total is the server-reported total matching record count
	Total int
	// Issues are the page's records in server order
	Issues []jira.Issue
	// HasMore reports whether further pages exist past this one
	HasMore bool
}

// PageFetcher issues single paginated queries, gated by the shared rate
// limiter and retried under the bounded backoff policy. Pages for one
// collection are always requested in non-decreasing offset order by the
// ingestor; the fetcher itself never reorders or parallelizes.
type PageFetcher struct {
	client   SearchClient
	limiter  ratelimit.Limiter
	retryCfg config.RetryConfig
	fields   string
	logger   logger.Logger
}

// NewPageFetcher creates a page fetcher sharing the given rate limiter
func NewPageFetcher(client SearchClient, limiter ratelimit.Limiter, retryCfg config.RetryConfig, fields string, log logger.Logger) *PageFetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	return &PageFetcher{
		client:   client,
		limiter:  limiter,
		retryCfg: retryCfg,
		fields:   fields,
		logger:   log,
	}
}

// Fetch retrieves one page for a collection at the given offset, combining
// the collection's static filter with the incremental updated-since clause.
// Transient failures are retried with backoff and jitter; a Retry-After hint
// from a 429 overrides the schedule, and the rate permit is re-acquired for
// every attempt. On retry exhaustion the error is retries_exhausted; permanent
// failures return immediately. Both carry collection and offset context.
func (f *PageFetcher) Fetch(ctx context.Context, coll config.CollectionConfig, updatedSince time.Time, offset, pageSize int) (*Page, error) {
	jql := jira.BuildJQL(coll.Key, coll.Filter, updatedSince)

	attempt := func() (*jira.SearchResponse, error) {
		// One permit per attempt, including retries
		if err := f.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		return f.client.SearchPage(ctx, jql, offset, pageSize, f.fields)
	}

	resp, err := retry.DoWithResult(attempt, &retry.Config{
		MaxAttempts: f.retryCfg.MaxAttempts,
		Backoff: &retry.ExponentialBackoff{
			BaseDelay:    f.retryCfg.BaseDelay,
			MaxDelay:     f.retryCfg.MaxDelay,
			Multiplier:   f.retryCfg.Multiplier,
			JitterFactor: f.retryCfg.JitterFactor,
		},
		RetryIf:        errors.IsRetryableError,
		RetryAfterHint: errors.RetryAfterHint,
		Context:        ctx,
		Logger:         f.logger.WithField("collection", coll.Key),
	})
	if err != nil {
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if errors.IsRetryableError(err) {
			// The last error was transient: the attempt budget ran out
			return nil, errors.NewExhausted(coll.Key, offset, err)
		}
		return nil, errors.WithContext(err, coll.Key, offset)
	}

	page := &Page{
		Offset:  offset,
		Size:    pageSize,
		Total:   resp.Total,
		Issues:  resp.Issues,
		HasMore: len(resp.Issues) > 0 && resp.StartAt+len(resp.Issues) < resp.Total,
	}

	f.logger.DebugWithFields("page fetched", map[string]interface{}{
		"collection": coll.Key,
		"offset":     offset,
		"records":    len(page.Issues),
		"total":      page.Total,
		"has_more":   page.HasMore,
	})
	return page, nil
}
