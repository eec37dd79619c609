// Package upstream implements the typed client for the ATS/VMS job API.
// Every call obtains a bearer token from the token manager and runs through
// the resilience layer: the circuit breaker wraps each individual attempt so
// it observes retried failures too.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"medstaff/sync-service/internal/model"
	"medstaff/sync-service/internal/resilience"
)

// TokenSource supplies bearer credentials. Invalidate is called on a 401 so
// the follow-up request runs with a fresh token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// Client is the typed upstream API client.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	retry   *resilience.Retryer
	breaker *resilience.Breaker
	log     *logrus.Entry
}

// NewClient constructs a Client. httpTimeout is the per-request timeout,
// deliberately shorter than any sync run's overall budget.
func NewClient(baseURL string, httpTimeout time.Duration, tokens TokenSource, retry *resilience.Retryer, breaker *resilience.Breaker, log *logrus.Entry) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeout},
		tokens:  tokens,
		retry:   retry,
		breaker: breaker,
		log:     log,
	}
}

type listResponse struct {
	Jobs    []model.UpstreamJobPayload `json:"jobs"`
	HasMore *bool                      `json:"has_more"`
}

// ListJobs fetches one page of the full job listing. hasMore is taken from
// the response when present, otherwise inferred from a full page.
func (c *Client) ListJobs(ctx context.Context, page, pageSize int) ([]model.UpstreamJobPayload, bool, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("page_size", strconv.Itoa(pageSize))

	var resp listResponse
	if err := c.get(ctx, "/v1/jobs", params, &resp); err != nil {
		return nil, false, err
	}

	hasMore := len(resp.Jobs) == pageSize
	if resp.HasMore != nil {
		hasMore = *resp.HasMore
	}
	return resp.Jobs, hasMore, nil
}

// ListJobsUpdatedSince fetches every job changed after the given instant.
func (c *Client) ListJobsUpdatedSince(ctx context.Context, since time.Time) ([]model.UpstreamJobPayload, error) {
	params := url.Values{}
	params.Set("updated_since", since.UTC().Format(time.RFC3339))

	var resp listResponse
	if err := c.get(ctx, "/v1/jobs/updated", params, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// HealthCheck probes the upstream's lightweight health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.get(ctx, "/v1/health", nil, nil)
}

// CircuitState exposes the shared breaker's state for the status surface.
func (c *Client) CircuitState() resilience.BreakerState {
	return c.breaker.State()
}

// get runs one logical GET with retry outside and the breaker inside, so
// every attempt (including retries) counts toward breaker accounting.
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	return c.retry.Do(ctx, func(ctx context.Context) error {
		return c.breaker.Do(ctx, func(ctx context.Context) error {
			return c.attempt(ctx, path, params, out)
		})
	})
}

// attempt performs the request, re-authenticating exactly once on a 401.
func (c *Client) attempt(ctx context.Context, path string, params url.Values, out interface{}) error {
	err := c.request(ctx, path, params, out)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized {
		c.log.WithField("path", path).Warn("upstream rejected token, re-authenticating")
		c.tokens.Invalidate()
		return c.request(ctx, path, params, out)
	}
	return err
}

func (c *Client) request(ctx context.Context, path string, params url.Values, out interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("json unmarshal: %w", err)
	}
	return nil
}
