package jira

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"jiraharvest/pkg/errors"
	"jiraharvest/pkg/logger"
)

// Client is a Jira REST API client. It only implements what the harvester
// needs: authenticated, classified GETs against the search endpoint.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	logger     logger.Logger
}

// NewClient creates a new Jira API client
func NewClient(baseURL string, timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"Accept":     "application/json",
			"User-Agent": "jiraharvest/1.0",
		},
		baseURL: baseURL,
		logger:  log,
	}
}

// SetHeader sets a custom header for all requests
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetBearerToken configures personal access token authentication
func (c *Client) SetBearerToken(token string) {
	c.headers["Authorization"] = "Bearer " + token
}

// SetBasicAuth configures email plus API token authentication
func (c *Client) SetBasicAuth(email, token string) {
	cred := base64.StdEncoding.EncodeToString([]byte(email + ":" + token))
	c.headers["Authorization"] = "Basic " + cred
}

// BaseURL returns the configured instance base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SearchPage fetches one page of the paginated search endpoint
func (c *Client) SearchPage(ctx context.Context, jql string, startAt, maxResults int, fields string) (*SearchResponse, error) {
	searchURL := SearchURL(c.baseURL, jql, startAt, maxResults, fields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, &errors.Error{
			Type:    errors.TypePermanent,
			Message: fmt.Sprintf("failed to build search request: %v", err),
			Cause:   err,
		}
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending search request", map[string]interface{}{
		"jql":      jql,
		"start_at": startAt,
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.ErrorWithFields("search request failed", map[string]interface{}{
			"start_at": startAt,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errors.Error{
			Type:    errors.TypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
			Cause:   err,
		}
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("search request completed", map[string]interface{}{
		"start_at": startAt,
		"status":   resp.StatusCode,
		"duration": duration,
	})

	if err := c.checkResponseStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errors.Error{
			Type:    errors.TypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
			Cause:   err,
		}
	}

	var page SearchResponse
	if err := json.Unmarshal(body, &page); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse search response", map[string]interface{}{
			"start_at":     startAt,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return nil, &errors.Error{
			Type:    errors.TypeParsing,
			Message: fmt.Sprintf("failed to parse search response: %v", err),
			Code:    resp.StatusCode,
			Cause:   err,
		}
	}

	return &page, nil
}

// checkResponseStatus classifies a non-200 response into the error taxonomy
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	errType := errors.ClassifyStatusCode(resp.StatusCode)
	herr := &errors.Error{
		Type:    errType,
		Message: fmt.Sprintf("search endpoint returned status %d", resp.StatusCode),
		Code:    resp.StatusCode,
	}

	switch errType {
	case errors.TypeRateLimit:
		herr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		c.logger.WarnWithFields("rate limited by server", map[string]interface{}{
			"status":      resp.StatusCode,
			"retry_after": herr.RetryAfter,
		})
	case errors.TypeServer:
		c.logger.WarnWithFields("server error from search endpoint", map[string]interface{}{
			"status": resp.StatusCode,
		})
	default:
		c.logger.ErrorWithFields("permanent error from search endpoint", map[string]interface{}{
			"status": resp.StatusCode,
		})
	}

	return herr
}

// parseRetryAfter parses a Retry-After header given in whole seconds.
// Anything unparseable yields zero and the retry policy's own backoff applies.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
