package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const defaultSerperBaseURL = "https://google.serper.dev"

// Serper queries the serper.dev Google search API.
type Serper struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewSerper builds a Serper engine. An empty baseURL selects the public
// endpoint; tests point it at a local server.
func NewSerper(apiKey, baseURL string) *Serper {
	if baseURL == "" {
		baseURL = defaultSerperBaseURL
	}
	return &Serper{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: searchTimeout},
	}
}

func (s *Serper) Name() string { return "serper" }

func (s *Serper) Search(ctx context.Context, query string, topK int) ([]string, error) {
	if s.apiKey == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	payload := struct {
		Q   string `json:"q"`
		Num int    `json:"num"`
	}{Q: query, Num: clampNum(topK)}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Organic []struct {
			Link string `json:"link"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	links := make([]string, 0, len(out.Organic))
	for _, item := range out.Organic {
		links = append(links, item.Link)
	}
	return takeNonEmpty(links, topK), nil
}
