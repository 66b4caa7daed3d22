package gammaapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/liamashdown/polyrank/internal/config"
	"github.com/liamashdown/polyrank/internal/metrics"
	"github.com/liamashdown/polyrank/internal/ratelimit"
)

// ErrEventNotFound signals a slug query that matched no event, as
// opposed to a transport or status failure reaching the API.
var ErrEventNotFound = errors.New("event not found")

// Client handles communication with the Polymarket Gamma API
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
}

// NewClient creates a new Gamma API client
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:    cfg.GammaAPIBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    ratelimit.New(cfg.GammaAPIMarketsRPS),
	}
}

// GetEvents fetches events, optionally scoped to a category tag
func (c *Client) GetEvents(ctx context.Context, params EventParams) (_ []Event, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordAPIRequest("gamma", "/events", time.Since(start), err)
	}()

	if err = c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u, err := url.Parse(c.baseURL + "/events")
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	q := u.Query()
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Active {
		q.Set("closed", "false")
	}
	if params.Tag != "" {
		q.Set("tag", params.Tag)
	}
	if params.Order != "" {
		q.Set("order", params.Order)
		q.Set("ascending", strconv.FormatBool(params.Ascending))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	// Gamma API is public - no auth headers needed
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	// Response can be either a bare array or a paginated wrapper
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var events []Event
	if err := json.Unmarshal(body, &events); err == nil {
		return events, nil
	}

	var wrapped struct {
		Data []Event `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil {
		return wrapped.Data, nil
	}

	return nil, fmt.Errorf("failed to decode events response")
}

// GetEventBySlug fetches a single event by slug
func (c *Client) GetEventBySlug(ctx context.Context, slug string) (_ *Event, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordAPIRequest("gamma", "/events/slug", time.Since(start), err)
	}()

	if err = c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u, err := url.Parse(c.baseURL + "/events")
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	q := u.Query()
	q.Set("slug", slug)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	// The slug query returns a one-element array
	var events []Event
	if err := json.Unmarshal(body, &events); err == nil {
		if len(events) == 0 {
			return nil, fmt.Errorf("%w: slug %s", ErrEventNotFound, slug)
		}
		return &events[0], nil
	}

	var event Event
	if err := json.Unmarshal(body, &event); err == nil {
		return &event, nil
	}

	return nil, fmt.Errorf("failed to decode event response")
}
