package ingest

import (
	"context"

	"jiraharvest/pkg/jira"
)

// SearchClient is the API surface the ingestion engine needs from the Jira
// layer: one paginated, classified search call.
type SearchClient interface {
	SearchPage(ctx context.Context, jql string, startAt, maxResults int, fields string) (*jira.SearchResponse, error)
}
