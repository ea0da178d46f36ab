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

const defaultGoogleCSEBaseURL = "https://www.googleapis.com"

// GoogleCSE queries the Google Custom Search JSON API. Both an API key and
// a search engine ID (cx) are required.
type GoogleCSE struct {
	apiKey  string
	cx      string
	baseURL string
	client  *http.Client
}

func NewGoogleCSE(apiKey, cx, baseURL string) *GoogleCSE {
	if baseURL == "" {
		baseURL = defaultGoogleCSEBaseURL
	}
	return &GoogleCSE{
		apiKey:  apiKey,
		cx:      cx,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: searchTimeout},
	}
}

func (g *GoogleCSE) Name() string { return "google_cse" }

func (g *GoogleCSE) Search(ctx context.Context, query string, topK int) ([]string, error) {
	if g.apiKey == "" || g.cx == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("cx", g.cx)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(clampNum(topK)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/customsearch/v1?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google cse: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Items []struct {
			Link string `json:"link"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	links := make([]string, 0, len(out.Items))
	for _, item := range out.Items {
		links = append(links, item.Link)
	}
	return takeNonEmpty(links, topK), nil
}
