package dataapi

import (
	"context"
	"encoding/json"
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

// Client handles communication with the Polymarket Data API
type Client struct {
	baseURL         string
	httpClient      *http.Client
	authMode        config.AuthMode
	bearerToken     string
	apiKey          string
	extraHeaders    map[string]string
	tradesLimiter   *ratelimit.Limiter
	activityLimiter *ratelimit.Limiter
}

// NewClient creates a new Data API client
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:         cfg.DataAPIBaseURL,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		authMode:        cfg.DataAPIAuthMode,
		bearerToken:     cfg.DataAPIBearerToken,
		apiKey:          cfg.DataAPIAPIKey,
		extraHeaders:    cfg.DataAPIExtraHeaders,
		tradesLimiter:   ratelimit.New(cfg.DataAPITradesRPS),
		activityLimiter: ratelimit.New(cfg.DataAPIActivityRPS),
	}
}

// GetTrades fetches trades from the bulk trade feed
func (c *Client) GetTrades(ctx context.Context, params TradeParams) (_ *TradesResponse, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordAPIRequest("data", "/trades", time.Since(start), err)
	}()

	if err = c.tradesLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u, err := url.Parse(c.baseURL + "/trades")
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	q := u.Query()
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Offset > 0 {
		q.Set("offset", strconv.Itoa(params.Offset))
	}
	if params.TakerOnly {
		q.Set("takerOnly", "true")
	}
	if params.TimestampAfter > 0 {
		q.Set("timestamp", strconv.FormatInt(params.TimestampAfter, 10))
	}
	if params.Market != "" {
		q.Set("market", params.Market)
	}
	if params.User != "" {
		q.Set("user", params.User)
	}
	if params.Side != "" {
		q.Set("side", params.Side)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("401 Unauthorized (auth_mode=%s) - check credentials", c.authMode)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	// The API returns a bare array
	var trades []Trade
	if err := json.NewDecoder(resp.Body).Decode(&trades); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &TradesResponse{Trades: trades, Count: len(trades)}, nil
}

// GetWalletActivity fetches recent activity for a wallet, newest first.
// The activity feed fails independently per wallet; callers are expected to
// treat an error here as "activity unavailable", not as a batch failure.
func (c *Client) GetWalletActivity(ctx context.Context, wallet string, limit int) (_ []Activity, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordAPIRequest("data", "/activity", time.Since(start), err)
	}()

	if err = c.activityLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u, err := url.Parse(c.baseURL + "/activity")
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	q := u.Query()
	q.Set("user", wallet)
	q.Set("sortBy", "TIMESTAMP")
	q.Set("sortDirection", "DESC")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("401 Unauthorized (auth_mode=%s) - check credentials", c.authMode)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var activities []Activity
	if err := json.NewDecoder(resp.Body).Decode(&activities); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return activities, nil
}

func (c *Client) setAuthHeaders(req *http.Request) {
	switch c.authMode {
	case config.AuthModeBearer:
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	case config.AuthModeAPIKey:
		req.Header.Set("X-API-KEY", c.apiKey)
	case config.AuthModeNone:
		// No auth headers
	}

	for k, v := range c.extraHeaders {
		req.Header.Set(k, v)
	}
}
