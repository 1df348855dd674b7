package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const serperURL = "https://google.serper.dev"

// Serper queries the serper.dev Google search API.
type Serper struct {
	client
}

func (s *Serper) Search(ctx context.Context, q string, k int) ([]Result, error) {
	body, err := json.Marshal(map[string]any{"q": q, "num": k})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	rc, err := s.send(req, "serper")
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var raw struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(rc).Decode(&raw); err != nil {
		return nil, fmt.Errorf("serper: decode response: %w", err)
	}
	out := make([]Result, 0, len(raw.Organic))
	for _, r := range raw.Organic {
		out = append(out, Result{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}
	return truncate(out, k), nil
}
