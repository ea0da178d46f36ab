package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/httpx"
)

const defaultDuckDuckGoBaseURL = "https://html.duckduckgo.com/html"

const duckDuckGoUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0 Safari/537.36"

// DuckDuckGo scrapes the DuckDuckGo html endpoint. It needs no API key,
// which makes it the fallback of last resort in a chain.
type DuckDuckGo struct {
	baseURL string
	client  *http.Client
}

func NewDuckDuckGo(baseURL string) *DuckDuckGo {
	if baseURL == "" {
		baseURL = defaultDuckDuckGoBaseURL
	}
	return &DuckDuckGo{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: searchTimeout},
	}
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

func (d *DuckDuckGo) Search(ctx context.Context, query string, topK int) ([]string, error) {
	if topK <= 0 {
		topK = defaultTopK
	}

	reqURL := d.baseURL + "/?q=" + url.QueryEscape(query)
	req, err := httpx.NewRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", duckDuckGoUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}

	var urls []string
	seen := make(map[string]struct{})
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		if len(urls) >= topK {
			return
		}
		href, ok := a.Attr("href")
		if !ok || href == "" {
			return
		}

		// DuckDuckGo rewrites result links as /l/?uddg=<encoded>
		if strings.Contains(href, "duckduckgo.com/l/?uddg=") {
			if decoded := decodeDDGLink(href); decoded != "" {
				href = decoded
			}
		}

		if !strings.HasPrefix(href, "http") {
			return
		}
		if strings.Contains(href, "duckduckgo.com") {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		urls = append(urls, href)
	})

	return urls, nil
}

func decodeDDGLink(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if v := u.Query().Get("uddg"); v != "" {
		decoded, err := url.QueryUnescape(v)
		if err == nil {
			return decoded
		}
	}
	return ""
}
