// Package serp provides a client for the search-results provider. The
// provider proxies Google SERPs: a request names a zone and a search URL,
// the response carries parsed organic results.
package serp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.brightdata.com"
	defaultZone    = "serp_api"
)

// Client performs search queries against the SERP provider.
type Client interface {
	Search(ctx context.Context, query string) (*SearchResponse, error)
}

// SearchResponse is the parsed provider payload.
type SearchResponse struct {
	Organic []OrganicResult `json:"organic"`
}

// OrganicResult is a single organic search result entry.
type OrganicResult struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
	Rank        int    `json:"rank"`
}

// searchRequest is the body for POST /request.
type searchRequest struct {
	Zone   string `json:"zone"`
	URL    string `json:"url,omitempty"`
	Query  string `json:"query,omitempty"`
	Format string `json:"format"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithZone overrides the default SERP zone.
func WithZone(zone string) Option {
	return func(c *httpClient) {
		c.zone = zone
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithLimiter paces outbound calls with a rate limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	zone    string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a SERP provider client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		zone:    defaultZone,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Search issues a SERP request for the query. If the primary request
// (search URL payload) fails, one simplified legacy payload is attempted
// before giving up. This is a one-shot alternate request, not a retry loop.
func (c *httpClient) Search(ctx context.Context, query string) (*SearchResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "serp: rate limit wait")
		}
	}

	primary := searchRequest{
		Zone:   c.zone,
		URL:    "https://www.google.com/search?q=" + url.QueryEscape(query) + "&brd_json=1",
		Format: "json",
	}
	resp, err := c.post(ctx, primary)
	if err == nil {
		return resp, nil
	}

	simplified := searchRequest{
		Zone:   c.zone,
		Query:  query,
		Format: "json",
	}
	resp, retryErr := c.post(ctx, simplified)
	if retryErr != nil {
		// Surface the original failure; the alternate is best-effort.
		return nil, err
	}
	return resp, nil
}

func (c *httpClient) post(ctx context.Context, reqBody searchRequest) (*SearchResponse, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, eris.Wrap(err, "serp: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/request", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "serp: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "serp: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "serp: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("serp: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result SearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "serp: unmarshal response")
	}

	return &result, nil
}
