package httpx

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 20 * time.Second
	defaultMaxBody   = 2 * 1024 * 1024
	maxAttempts      = 3
	baseBackoff      = 500 * time.Millisecond
	maxBackoffJitter = 250 * time.Millisecond
)

// desktopUserAgents is rotated per request so fetches blend in with
// ordinary browser traffic.
var desktopUserAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0 Safari/537.36",
}

// ErrRobotsDisallowed marks URLs the site's robots.txt forbids fetching.
var ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

// FetchResult is one completed retrieval. A result is returned even for
// HTTP error statuses; only transport-level failures produce an error.
type FetchResult struct {
	URL         string
	StatusCode  int
	Body        string
	ContentType string
}

// FetchError is a retrieval failure below the HTTP layer: DNS, timeouts,
// robots denial, or exhausted retries without a usable response.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher retrieves pages politely through Colly: per-host rate limits and
// backoff, cached robots.txt checks, rotated browser user agents, and a
// capped response body.
type Fetcher struct {
	timeout time.Duration
	maxBody int

	mu           sync.Mutex
	defaultRate  rate.Limit
	defaultBurst int
	hosts        map[string]*hostPolicy

	robotsMu     sync.Mutex
	robotsCache  map[string]*robotstxt.RobotsData
	robotsClient *http.Client
}

type hostPolicy struct {
	limiter     *rate.Limiter
	nextAllowed time.Time
	mu          sync.Mutex
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Fetcher{
		timeout:      timeout,
		maxBody:      defaultMaxBody,
		defaultRate:  rate.Every(time.Second),
		defaultBurst: 2,
		hosts:        make(map[string]*hostPolicy),
		robotsCache:  make(map[string]*robotstxt.RobotsData),
		robotsClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SetRateLimit adjusts the per-host request interval and burst applied to
// hosts seen after the call.
func (f *Fetcher) SetRateLimit(per time.Duration, burst int) {
	if per <= 0 || burst <= 0 {
		return
	}
	f.mu.Lock()
	f.defaultRate = rate.Every(per)
	f.defaultBurst = burst
	f.mu.Unlock()
}

// Fetch retrieves one URL with retries. Transport errors and HTTP 429/5xx
// are retried with exponential backoff and jitter; any final status-bearing
// response, including 4xx/5xx, is returned as a FetchResult with nil error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (FetchResult, error) {
	target, err := normalizeURL(rawURL)
	if err != nil {
		return FetchResult{}, &FetchError{URL: rawURL, Err: err}
	}
	if !f.allowed(ctx, target) {
		return FetchResult{}, &FetchError{URL: target, Err: ErrRobotsDisallowed}
	}
	host := hostKey(target)

	var last FetchResult
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return FetchResult{}, &FetchError{URL: target, Err: err}
		}
		if err := f.waitForHost(ctx, host); err != nil {
			return FetchResult{}, &FetchError{URL: target, Err: err}
		}

		last, lastErr = f.fetchOnce(ctx, target)
		if lastErr == nil && !shouldBackoff(last.StatusCode) {
			return last, nil
		}
		if attempt < maxAttempts-1 {
			f.applyBackoff(host, attempt)
		}
	}

	if lastErr != nil {
		return FetchResult{}, &FetchError{URL: target, Status: last.StatusCode, Err: lastErr}
	}
	// Retries exhausted on a retryable status; hand the caller the status.
	return last, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, target string) (FetchResult, error) {
	c := f.newCollector()

	var res FetchResult
	var reqErr error
	c.OnResponse(func(r *colly.Response) {
		res.StatusCode = r.StatusCode
		res.Body = string(r.Body)
		res.ContentType = normalizeContentType(r.Headers.Get("Content-Type"))
		if r.Request != nil && r.Request.URL != nil {
			res.URL = r.Request.URL.String()
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			res.StatusCode = r.StatusCode
			if r.Request != nil && r.Request.URL != nil {
				res.URL = r.Request.URL.String()
			}
		}
		reqErr = err
	})

	collyCtx := colly.NewContext()
	collyCtx.Put("ctx", ctx)

	err := c.Request(http.MethodGet, target, nil, collyCtx, nil)
	if err == nil && reqErr != nil {
		err = reqErr
	}
	// Colly reports HTTP error statuses through the error path; a captured
	// status code means the server answered, so surface it as a result.
	if err != nil && res.StatusCode == 0 {
		return res, err
	}
	if res.URL == "" {
		res.URL = target
	}
	if res.StatusCode == 0 {
		res.StatusCode = http.StatusOK
	}
	return res, nil
}

func (f *Fetcher) newCollector() *colly.Collector {
	ua := desktopUserAgents[rand.Intn(len(desktopUserAgents))]
	c := colly.NewCollector(colly.UserAgent(ua))
	// Robots handling lives in this fetcher so the cache survives across
	// collectors; collectors are rebuilt per attempt.
	c.IgnoreRobotsTxt = true
	c.SetRequestTimeout(f.timeout)
	c.MaxBodySize = f.maxBody

	c.OnRequest(func(r *colly.Request) {
		ctx := context.Background()
		if v := r.Ctx.GetAny("ctx"); v != nil {
			if reqCtx, ok := v.(context.Context); ok {
				ctx = reqCtx
			}
		}
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9,zh-CN;q=0.8,zh;q=0.7")
		r.Headers.Set("Cache-Control", "no-cache")
		r.Headers.Set("Pragma", "no-cache")
	})

	return c
}

// NewRequest builds an HTTP GET request with context and a safe URL
// defaulting to https.
func NewRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	if rawURL == "" {
		return nil, errors.New("empty url")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
}

func (f *Fetcher) allowed(ctx context.Context, target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	data, err := f.robotsFor(ctx, u)
	if err != nil {
		return true // fail open rather than block every harvest
	}
	group := data.FindGroup(desktopUserAgents[0])
	if group == nil {
		group = data.FindGroup("*")
	}
	if group == nil {
		return true
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

func (f *Fetcher) robotsFor(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	host := u.Hostname()
	f.robotsMu.Lock()
	if data, ok := f.robotsCache[host]; ok {
		f.robotsMu.Unlock()
		return data, nil
	}
	f.robotsMu.Unlock()

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", desktopUserAgents[0])

	resp, err := f.robotsClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, err
	}

	f.robotsMu.Lock()
	f.robotsCache[host] = data
	f.robotsMu.Unlock()
	return data, nil
}

func (f *Fetcher) waitForHost(ctx context.Context, host string) error {
	policy := f.hostPolicy(host)
	if err := policy.waitBackoff(ctx); err != nil {
		return err
	}
	return policy.limiter.Wait(ctx)
}

func (f *Fetcher) hostPolicy(host string) *hostPolicy {
	f.mu.Lock()
	defer f.mu.Unlock()
	if host == "" {
		host = "default"
	}
	if policy, ok := f.hosts[host]; ok {
		return policy
	}
	policy := &hostPolicy{
		limiter: rate.NewLimiter(f.defaultRate, f.defaultBurst),
	}
	f.hosts[host] = policy
	return policy
}

func (f *Fetcher) applyBackoff(host string, attempt int) {
	if attempt < 0 {
		attempt = 0
	}
	delay := baseBackoff * time.Duration(1<<attempt)
	delay += time.Duration(rand.Int63n(int64(maxBackoffJitter)))
	policy := f.hostPolicy(host)
	policy.mu.Lock()
	next := time.Now().Add(delay)
	if next.After(policy.nextAllowed) {
		policy.nextAllowed = next
	}
	policy.mu.Unlock()
}

func (p *hostPolicy) waitBackoff(ctx context.Context) error {
	for {
		p.mu.Lock()
		next := p.nextAllowed
		p.mu.Unlock()
		now := time.Now()
		if !now.Before(next) {
			return nil
		}
		if err := sleepWithContext(ctx, next.Sub(now)); err != nil {
			return err
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func normalizeURL(rawURL string) (string, error) {
	if rawURL == "" {
		return "", errors.New("empty url")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	return u.String(), nil
}

func normalizeHost(host string) string {
	host = strings.ToLower(host)
	return strings.TrimPrefix(host, "www.")
}

func hostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "default"
	}
	return normalizeHost(u.Hostname())
}

func normalizeContentType(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	if i := strings.Index(v, ";"); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

func shouldBackoff(status int) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	return status >= 500 && status <= 599
}
