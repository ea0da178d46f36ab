package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const defaultSerpAPIBaseURL = "https://serpapi.com"

// SerpAPI queries serpapi.com with the google engine.
type SerpAPI struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewSerpAPI(apiKey, baseURL string) *SerpAPI {
	if baseURL == "" {
		baseURL = defaultSerpAPIBaseURL
	}
	return &SerpAPI{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: searchTimeout},
	}
}

func (s *SerpAPI) Name() string { return "serpapi" }

func (s *SerpAPI) Search(ctx context.Context, query string, topK int) ([]string, error) {
	if s.apiKey == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("api_key", s.apiKey)
	params.Set("num", strconv.Itoa(clampNum(topK)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search.json?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serpapi: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		OrganicResults []struct {
			Link string `json:"link"`
		} `json:"organic_results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	links := make([]string, 0, len(out.OrganicResults))
	for _, item := range out.OrganicResults {
		links = append(links, item.Link)
	}
	return takeNonEmpty(links, topK), nil
}
