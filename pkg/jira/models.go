package jira

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeFormat is the timestamp layout Jira REST v2 uses for issue fields
const TimeFormat = "2006-01-02T15:04:05.000-0700"

// SearchResponse is one page of the search endpoint's response
type SearchResponse struct {
	Expand     string  `json:"expand,omitempty"`
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// Issue is one fetched record. Fields is kept opaque: the harvester only
// extracts the key and the updated timestamp, everything else passes through
// to the corpus untouched.
type Issue struct {
	ID     string          `json:"id"`
	Key    string          `json:"key"`
	Self   string          `json:"self,omitempty"`
	Fields json.RawMessage `json:"fields"`
}

// issueTimestamps is the minimal projection of Fields the harvester reads
type issueTimestamps struct {
	Updated string `json:"updated"`
	Created string `json:"created"`
}

// UpdatedTime extracts the issue's last-modified timestamp from its fields
func (i *Issue) UpdatedTime() (time.Time, error) {
	if len(i.Fields) == 0 {
		return time.Time{}, fmt.Errorf("issue %s has no fields", i.Key)
	}
	var ts issueTimestamps
	if err := json.Unmarshal(i.Fields, &ts); err != nil {
		return time.Time{}, fmt.Errorf("issue %s has malformed fields: %w", i.Key, err)
	}
	if ts.Updated == "" {
		return time.Time{}, fmt.Errorf("issue %s is missing the updated field", i.Key)
	}
	return ParseTime(ts.Updated)
}

// ParseTime parses a Jira timestamp, accepting the native layout and RFC3339
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeFormat, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable jira timestamp %q", s)
	}
	return t, nil
}
