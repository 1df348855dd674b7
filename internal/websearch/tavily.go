package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const tavilyURL = "https://api.tavily.com"

// Tavily queries the Tavily search API.
type Tavily struct {
	client
}

func (t *Tavily) Search(ctx context.Context, q string, k int) ([]Result, error) {
	body, err := json.Marshal(map[string]any{
		"api_key":     t.apiKey,
		"query":       q,
		"max_results": k,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	rc, err := t.send(req, "tavily")
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var raw struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(rc).Decode(&raw); err != nil {
		return nil, fmt.Errorf("tavily: decode response: %w", err)
	}
	out := make([]Result, 0, len(raw.Results))
	for _, r := range raw.Results {
		out = append(out, Result{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return truncate(out, k), nil
}
