package jira

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SearchPath is the REST v2 paginated search endpoint
const SearchPath = "/rest/api/2/search"

// JQLTimeFormat is the timestamp layout JQL accepts in comparisons
const JQLTimeFormat = "2006/01/02 15:04"

// BuildJQL assembles the search query for one collection pass. The result is
// ordered by updated ascending so that offset pagination and the
// high-water-mark promotion agree on what "newest" means within a pass.
func BuildJQL(project, extraFilter string, updatedSince time.Time) string {
	clauses := []string{fmt.Sprintf("project = %s", project)}
	if extraFilter != "" {
		clauses = append(clauses, "("+extraFilter+")")
	}
	if !updatedSince.IsZero() {
		// >= on purpose: records sharing the boundary timestamp are
		// re-fetched and absorbed by the dedup index, never skipped
		clauses = append(clauses, fmt.Sprintf("updated >= %q", updatedSince.Format(JQLTimeFormat)))
	}
	return strings.Join(clauses, " AND ") + " ORDER BY updated ASC"
}

// SearchURL builds the full search request URL
func SearchURL(baseURL, jql string, startAt, maxResults int, fields string) string {
	params := url.Values{}
	params.Set("jql", jql)
	params.Set("startAt", strconv.Itoa(startAt))
	params.Set("maxResults", strconv.Itoa(maxResults))
	if fields != "" {
		params.Set("fields", fields)
	}
	return strings.TrimSuffix(baseURL, "/") + SearchPath + "?" + params.Encode()
}
