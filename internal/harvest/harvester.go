// Package harvest orchestrates search, retrieval, and extraction into a
// single evidence-gathering pass for one product.
package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/extract"
	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/httpx"
	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/observability"
	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/textutil"
)

type Status string

const (
	StatusTrusted   Status = "TRUSTED"
	StatusTentative Status = "TENTATIVE"
	StatusNotFound  Status = "NOT_FOUND"
)

type SourceType string

const (
	SourceRetailer   SourceType = "RETAILER"
	SourceThirdParty SourceType = "THIRD_PARTY"
	SourceOfficial   SourceType = "OFFICIAL"
)

const (
	// trustedThreshold is the minimum extraction score for a DOM-verified
	// candidate to be trusted outright.
	trustedThreshold = 0.8
	// verifiedRankBonus nudges verified candidates ahead of unverified ones
	// of equal score when accumulating the best tentative.
	verifiedRankBonus = 0.05
	tentativeFloor    = 0.3
	tentativeCeil     = 0.8
	maxSearchResults  = 3
	maxAttemptErrLen  = 200
)

var retailerHosts = []string{
	"sephora.", "ulta.", "amazon.", "lookfantastic.", "cultbeauty.", "douglas.",
}

var thirdPartyHosts = []string{
	"wikipedia.org", "incidecoder.com", "cosdna.com", "skincarisma.com",
}

// Attempt records what happened at one URL that did not produce the
// returned evidence.
type Attempt struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// Outcome is the final verdict for one harvest request.
type Outcome struct {
	Status     Status     `json:"status"`
	Confidence float64    `json:"confidence"`
	RawText    string     `json:"raw_text,omitempty"`
	SourceRef  string     `json:"source_ref,omitempty"`
	SourceType SourceType `json:"source_type,omitempty"`
	Query      string     `json:"query"`
	URLs       []string   `json:"urls"`
	Attempts   []Attempt  `json:"attempts,omitempty"`
	Diagnostic string     `json:"diagnostic,omitempty"`
}

// SearchEngine resolves a query to candidate page URLs.
type SearchEngine interface {
	Search(ctx context.Context, query string, topK int) ([]string, error)
}

// PageFetcher retrieves one page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (httpx.FetchResult, error)
}

type Harvester struct {
	search  SearchEngine
	fetcher PageFetcher
	logger  *slog.Logger
}

func NewHarvester(search SearchEngine, fetcher PageFetcher, logger *slog.Logger) *Harvester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Harvester{search: search, fetcher: fetcher, logger: logger}
}

// BuildQuery forms the web search query for a product. Chinese markets get
// the Chinese full-ingredients keyword, everything else the INCI phrasing.
func BuildQuery(market, brand, productName string) string {
	if extract.IsChineseMarket(market) {
		return textutil.NormalizeSpace(fmt.Sprintf("%s %s 全成分", brand, productName))
	}
	return textutil.NormalizeSpace(fmt.Sprintf("%s %s ingredients list INCI", brand, productName))
}

// ClassifySource buckets a source URL by host: known retailers, known
// reference sites, or (by default) the brand's own page.
func ClassifySource(rawURL string) SourceType {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = strings.ToLower(u.Hostname())
	}
	if host == "" {
		return SourceOfficial
	}
	for _, marker := range retailerHosts {
		if strings.Contains(host, marker) {
			return SourceRetailer
		}
	}
	for _, marker := range thirdPartyHosts {
		if strings.Contains(host, marker) {
			return SourceThirdParty
		}
	}
	return SourceOfficial
}

type bestCandidate struct {
	text       string
	confidence float64
	verified   bool
	url        string
	diagnostic string
	rank       float64
	set        bool
}

// Harvest runs the full pipeline for one product: search, then fetch and
// extract each result URL in order. A DOM-verified high-score candidate
// returns TRUSTED immediately; weaker evidence accumulates into the best
// TENTATIVE candidate across URLs. The outcome is always a value, never an
// error; per-URL failures become attempt diagnostics.
func (h *Harvester) Harvest(ctx context.Context, market, brand, productName string) Outcome {
	start := time.Now()
	defer func() {
		observability.ObserveHarvestDuration(time.Since(start).Seconds())
	}()

	query := BuildQuery(market, brand, productName)
	out := Outcome{Status: StatusNotFound, Query: query, URLs: []string{}}

	urls, err := h.search.Search(ctx, query, maxSearchResults)
	observability.IncSearch()
	if err != nil {
		// Search failure means no results, never a failed harvest.
		h.logger.Warn("search failed", "query", query, "error", err)
		urls = nil
	}
	if len(urls) == 0 {
		out.Diagnostic = "no search results"
		observability.IncHarvestStatus(string(out.Status))
		h.logger.Info("harvest complete", "status", out.Status, "query", query, "urls", 0)
		return out
	}
	out.URLs = urls

	var best bestCandidate
	for _, pageURL := range urls {
		if err := ctx.Err(); err != nil {
			out.Attempts = append(out.Attempts, Attempt{URL: pageURL, Error: "canceled"})
			break
		}

		res, err := h.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			observability.IncFetchError()
			observability.IncError(observability.ClassifyFetchError(err), "fetch")
			out.Attempts = append(out.Attempts, Attempt{URL: pageURL, Error: "fetch: " + truncate(err.Error(), maxAttemptErrLen)})
			continue
		}
		observability.IncPageFetched()
		if res.StatusCode >= 400 {
			out.Attempts = append(out.Attempts, Attempt{URL: pageURL, Error: fmt.Sprintf("http_%d", res.StatusCode)})
			continue
		}

		extraction := extract.Ingredients(res.Body, market)
		if extraction == nil {
			out.Attempts = append(out.Attempts, Attempt{URL: pageURL, Error: "no_extract"})
			continue
		}
		observability.IncExtraction()
		observability.AddCandidatesSeen(extraction.CandidateCount)

		sourceURL := res.URL
		if sourceURL == "" {
			sourceURL = pageURL
		}
		confidence := extraction.Score

		if extraction.VerifiedInDOM && confidence >= trustedThreshold {
			out.Status = StatusTrusted
			out.Confidence = math.Min(1.0, confidence)
			out.RawText = extraction.Text
			out.SourceRef = sourceURL
			out.SourceType = ClassifySource(sourceURL)
			out.Diagnostic = extraction.Diagnostic
			observability.IncHarvestStatus(string(out.Status))
			h.logger.Info("harvest complete",
				"status", out.Status,
				"query", query,
				"source", sourceURL,
				"confidence", out.Confidence)
			return out
		}

		rank := confidence
		if extraction.VerifiedInDOM {
			rank += verifiedRankBonus
		}
		if !best.set || rank > best.rank {
			best = bestCandidate{
				text:       extraction.Text,
				confidence: confidence,
				verified:   extraction.VerifiedInDOM,
				url:        sourceURL,
				diagnostic: extraction.Diagnostic,
				rank:       rank,
				set:        true,
			}
		}
	}

	if best.set {
		out.Status = StatusTentative
		out.Confidence = clamp(best.confidence, tentativeFloor, tentativeCeil)
		out.RawText = best.text
		out.SourceRef = best.url
		out.SourceType = ClassifySource(best.url)
		out.Diagnostic = best.diagnostic
	} else {
		out.Diagnostic = "no candidate extracted"
	}
	observability.IncHarvestStatus(string(out.Status))
	h.logger.Info("harvest complete",
		"status", out.Status,
		"query", query,
		"urls", len(urls),
		"attempts", len(out.Attempts),
		"confidence", out.Confidence)
	return out
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
