// Package websearch queries hosted web search APIs.
package websearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Provider names accepted by New.
const (
	ProviderSerper = "serper"
	ProviderBrave  = "brave"
	ProviderTavily = "tavily"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported search provider")
	ErrMissingAPIKey       = errors.New("search API key not set")
	ErrBadStatus           = errors.New("search provider returned an error status")
)

// Result is one web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher runs a web search and returns at most k results.
type Searcher interface {
	Search(ctx context.Context, q string, k int) ([]Result, error)
}

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures a provider client.
type Option func(*client)

// WithBaseURL points the client at another endpoint, such as a test server.
func WithBaseURL(u string) Option {
	return func(c *client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(d Doer) Option {
	return func(c *client) { c.http = d }
}

type client struct {
	apiKey  string
	baseURL string
	http    Doer
}

func newClient(apiKey, baseURL string, opts []Option) client {
	c := client{apiKey: apiKey, baseURL: baseURL, http: http.DefaultClient}
	for _, o := range opts {
		o(&c)
	}
	return c
}

// New returns the Searcher for provider.
func New(provider, apiKey string, opts ...Option) (Searcher, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w for %s", ErrMissingAPIKey, provider)
	}
	switch strings.ToLower(provider) {
	case ProviderSerper:
		return &Serper{client: newClient(apiKey, serperURL, opts)}, nil
	case ProviderBrave:
		return &Brave{client: newClient(apiKey, braveURL, opts)}, nil
	case ProviderTavily:
		return &Tavily{client: newClient(apiKey, tavilyURL, opts)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}
}

// send performs req and returns the body of a 2xx response.
func (c client) send(req *http.Request, name string) (io.ReadCloser, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s: %d %s", ErrBadStatus, name, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp.Body, nil
}

func truncate(results []Result, k int) []Result {
	if k >= 0 && len(results) > k {
		return results[:k]
	}
	return results
}
