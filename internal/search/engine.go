// Package search resolves harvest queries to candidate product page URLs
// through pluggable web search backends.
package search

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultTopK   = 3
	searchTimeout = 20 * time.Second
)

// Engine returns up to topK result URLs for a query. Engines with missing
// credentials report no results rather than an error so a chain can move on.
type Engine interface {
	Name() string
	Search(ctx context.Context, query string, topK int) ([]string, error)
}

// Chain tries engines in order and returns the first non-empty result set.
// Engine failures are logged and swallowed; only context cancellation stops
// the walk early.
type Chain struct {
	engines []Engine
	logger  *slog.Logger
}

func NewChain(logger *slog.Logger, engines ...Engine) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{engines: engines, logger: logger}
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Search(ctx context.Context, query string, topK int) ([]string, error) {
	for _, engine := range c.engines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		urls, err := engine.Search(ctx, query, topK)
		if err != nil {
			c.logger.Warn("search engine failed", "engine", engine.Name(), "error", err)
			continue
		}
		if len(urls) > 0 {
			return urls, nil
		}
	}
	return nil, nil
}

// Noop stands in when no search backend is configured.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) Search(context.Context, string, int) ([]string, error) {
	return nil, nil
}

func clampNum(topK int) int {
	if topK < 1 {
		return 1
	}
	if topK > 10 {
		return 10
	}
	return topK
}

// takeNonEmpty slices to topK first and then drops blank links, so a blank
// entry inside the window is not backfilled from below it.
func takeNonEmpty(links []string, topK int) []string {
	if topK < len(links) {
		links = links[:topK]
	}
	out := make([]string, 0, len(links))
	for _, link := range links {
		if link != "" {
			out = append(out, link)
		}
	}
	return out
}
