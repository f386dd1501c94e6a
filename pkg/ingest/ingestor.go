package ingest

import (
	"context"
	"time"

	"jiraharvest/pkg/config"
	"jiraharvest/pkg/corpus"
	"jiraharvest/pkg/cursor"
	"jiraharvest/pkg/dedup"
	"jiraharvest/pkg/errors"
	"jiraharvest/pkg/logger"
)

// Outcome is the per-collection result of one ingestion run
type Outcome struct {
	Collection string
	Pages      int
	Fetched    int
	Written    int
	Duration   time.Duration
	Err        error
}

// Done reports whether the collection completed its pass
func (o Outcome) Done() bool {
	return o.Err == nil
}

// CollectionIngestor drives one collection through the harvest loop:
// fetch a page, filter it through the dedup index, append survivors to the
// corpus, then commit the cursor. The cursor only moves after the page is
// durably written, so a crash at any point reprocesses at most one page on
// resume and never skips one.
type CollectionIngestor struct {
	coll     config.CollectionConfig
	fetcher  *PageFetcher
	cursors  *cursor.Store
	index    *dedup.Index
	writer   *corpus.Writer
	pageSize int
	logger   logger.Logger
}

// NewCollectionIngestor wires an ingestor for one collection. The ingestor
// owns exactly one cursor and one dedup index view; the writer is the
// collection's single output handle for the run.
func NewCollectionIngestor(
	coll config.CollectionConfig,
	fetcher *PageFetcher,
	cursors *cursor.Store,
	index *dedup.Index,
	writer *corpus.Writer,
	pageSize int,
	log logger.Logger,
) *CollectionIngestor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &CollectionIngestor{
		coll:     coll,
		fetcher:  fetcher,
		cursors:  cursors,
		index:    index,
		writer:   writer,
		pageSize: pageSize,
		logger:   log.WithField("collection", coll.Key),
	}
}

// Run executes the ingestion loop until the pass is exhausted, the context is
// cancelled, or the collection fails. Errors are collection-scoped; the
// caller decides what to do with siblings.
func (ci *CollectionIngestor) Run(ctx context.Context) Outcome {
	start := time.Now()
	outcome := Outcome{Collection: ci.coll.Key}
	defer func() {
		outcome.Duration = time.Since(start)
	}()

	// Starting: load durable progress
	cur, err := ci.cursors.Load(ci.coll.Key)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	if cur.PassComplete {
		// Previous pass finished; begin a fresh incremental pass filtered
		// to the stored high-water-mark
		cur.BeginPass()
	}

	ci.logger.InfoWithFields("ingestion starting", map[string]interface{}{
		"offset":          cur.Offset,
		"high_water_mark": cur.HighWaterMark,
		"known_records":   ci.index.Len(),
	})

	for {
		if err := ctx.Err(); err != nil {
			outcome.Err = err
			return outcome
		}

		// FetchingPage
		page, err := ci.fetcher.Fetch(ctx, ci.coll, cur.HighWaterMark, cur.Offset, ci.pageSize)
		if err != nil {
			outcome.Err = err
			return outcome
		}
		outcome.Pages++
		outcome.Fetched += len(page.Issues)

		// Filtering + Writing, in page order
		emitted, err := ci.writePage(page, cur)
		if err != nil {
			outcome.Err = err
			return outcome
		}
		outcome.Written += emitted

		// CommittingCursor: snapshot the dedup index before moving the
		// cursor so a crash in between only re-dedups one page
		if err := ci.index.Save(); err != nil {
			outcome.Err = err
			return outcome
		}
		if page.HasMore {
			cur.Advance(len(page.Issues))
		} else {
			cur.CompletePass()
		}
		if err := ci.cursors.Commit(ci.coll.Key, cur); err != nil {
			outcome.Err = err
			return outcome
		}

		ci.logger.InfoWithFields("page committed", map[string]interface{}{
			"offset":  page.Offset,
			"records": len(page.Issues),
			"written": emitted,
			"total":   page.Total,
		})

		if !page.HasMore {
			break
		}
	}

	ci.logger.InfoWithFields("pass complete", map[string]interface{}{
		"pages":           outcome.Pages,
		"fetched":         outcome.Fetched,
		"written":         outcome.Written,
		"high_water_mark": cur.HighWaterMark,
	})
	return outcome
}

// writePage filters one page through the dedup index and appends survivors
// to the corpus, folding timestamps into the cursor's pending high-water-mark
func (ci *CollectionIngestor) writePage(page *Page, cur *cursor.Cursor) (int, error) {
	emitted := 0
	for i := range page.Issues {
		issue := &page.Issues[i]

		updated, err := issue.UpdatedTime()
		if err != nil {
			// Malformed record schema is a permanent failure: the page is
			// not committed and the cursor stays put
			return emitted, errors.WithContext(&errors.Error{
				Type:    errors.TypeParsing,
				Message: err.Error(),
				Cause:   err,
			}, ci.coll.Key, page.Offset)
		}

		if ci.index.ShouldEmit(issue.Key, updated) {
			rec := corpus.Record{
				Key:        issue.Key,
				Collection: ci.coll.Key,
				Updated:    updated,
				Payload:    issue.Fields,
			}
			if err := ci.writer.Append(rec); err != nil {
				return emitted, err
			}
			ci.index.MarkEmitted(issue.Key, updated)
			emitted++
		}
		cur.Observe(updated)
	}
	return emitted, nil
}
