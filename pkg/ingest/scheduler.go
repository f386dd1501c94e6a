package ingest

import (
	"context"
	"sync"

	"jiraharvest/pkg/config"
	"jiraharvest/pkg/corpus"
	"jiraharvest/pkg/cursor"
	"jiraharvest/pkg/dedup"
	"jiraharvest/pkg/logger"
	"jiraharvest/pkg/ratelimit"
)

// Scheduler runs one CollectionIngestor per configured collection on a
// bounded worker pool. All workers share the single rate limiter, so the
// upstream per-client ceiling holds regardless of concurrency. A failing
// collection never aborts its siblings.
type Scheduler struct {
	cfg     *config.Config
	fetcher *PageFetcher
	cursors *cursor.Store
	logger  logger.Logger
}

// NewScheduler creates a scheduler over the configured collections
func NewScheduler(cfg *config.Config, client SearchClient, limiter ratelimit.Limiter, cursors *cursor.Store, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Scheduler{
		cfg:     cfg,
		fetcher: NewPageFetcher(client, limiter, cfg.Retry, cfg.Jira.Fields, log),
		cursors: cursors,
		logger:  log,
	}
}

// Run harvests every configured collection and returns one Outcome each,
// in completion order. Cancellation stops new pages promptly; cursors
// already committed remain valid resume points.
func (s *Scheduler) Run(ctx context.Context) []Outcome {
	collections := s.cfg.Collections
	workers := s.cfg.Harvest.Concurrency
	if workers > len(collections) {
		workers = len(collections)
	}

	s.logger.InfoWithFields("scheduler starting", map[string]interface{}{
		"collections": len(collections),
		"workers":     workers,
	})

	jobs := make(chan config.CollectionConfig)
	results := make(chan Outcome)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for coll := range jobs {
				results <- s.runCollection(ctx, coll)
			}
		}()
	}

	go func() {
		for _, coll := range collections {
			jobs <- coll
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	outcomes := make([]Outcome, 0, len(collections))
	for outcome := range results {
		if outcome.Done() {
			s.logger.InfoWithFields("collection done", map[string]interface{}{
				"collection": outcome.Collection,
				"pages":      outcome.Pages,
				"written":    outcome.Written,
				"duration":   outcome.Duration,
			})
		} else {
			s.logger.ErrorWithFields("collection failed", map[string]interface{}{
				"collection": outcome.Collection,
				"pages":      outcome.Pages,
				"written":    outcome.Written,
				"error":      outcome.Err.Error(),
			})
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// runCollection opens the collection's state and output handles, runs its
// ingestor to completion or failure, and releases the handles
func (s *Scheduler) runCollection(ctx context.Context, coll config.CollectionConfig) Outcome {
	index, err := dedup.Open(s.cfg.Harvest.StateDirectory, coll.Key, s.logger)
	if err != nil {
		return Outcome{Collection: coll.Key, Err: err}
	}

	writer, err := corpus.NewWriter(s.cfg.Output.BaseDirectory, coll.Key, s.logger)
	if err != nil {
		return Outcome{Collection: coll.Key, Err: err}
	}
	defer writer.Close()

	ingestor := NewCollectionIngestor(coll, s.fetcher, s.cursors, index, writer, s.cfg.Harvest.PageSize, s.logger)
	return ingestor.Run(ctx)
}
