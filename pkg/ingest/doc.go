// Package ingest is the harvest engine: the rate-limited page fetcher with
// bounded retries, the per-collection ingestion state machine, and the
// scheduler that runs collections on a bounded worker pool.
//
// The loop per collection is:
//
//	Starting -> FetchingPage -> Filtering -> Writing -> CommittingCursor
//	    -> (loop to FetchingPage | Done), with Failed reachable from
//	    FetchingPage and Writing.
//
// Ordering guarantees at-least-once-but-never-lost semantics: the cursor is
// committed only after the page is durably appended and the dedup snapshot
// saved, so a crash anywhere in the loop reprocesses at most one page on
// resume, and the dedup index absorbs the duplication.
package ingest
