package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dpdp-tools/piiscan/internal/model"
	"github.com/dpdp-tools/piiscan/internal/util"
	"github.com/dpdp-tools/piiscan/internal/worker"
)

// URLFetcher retrieves remote documents for scanning. Fetches respect
// robots.txt (including crawl delay) and a per-host rate limit.
type URLFetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *util.RobotsChecker
	limiter    *worker.Limiter
}

// NewURLFetcher creates a fetcher from the HTTP scan configuration.
func NewURLFetcher(cfg model.HTTPConfig) *URLFetcher {
	var robots *util.RobotsChecker
	if cfg.RespectRobots {
		robots = util.NewRobotsChecker(cfg.UserAgent, cfg.Timeout)
	}

	transport := &http.Transport{
		Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy),
	}

	return &URLFetcher{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBodyBytes,
		robots:    robots,
		limiter:   worker.NewLimiter(cfg.RequestsPerSecond, cfg.BurstSize),
	}
}

// Fetch retrieves one URL and returns it as a scan document. HTML
// responses are reduced to visible text.
func (f *URLFetcher) Fetch(ctx context.Context, rawURL string) (Document, error) {
	var extraDelay time.Duration
	if f.robots != nil {
		allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return Document{}, err
		}
		if !allowed {
			return Document{}, fmt.Errorf("robots.txt disallows %s", rawURL)
		}
		extraDelay = delay
	}

	if err := f.limiter.WaitWithDelay(ctx, rawURL, extraDelay); err != nil {
		return Document{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Document{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,text/plain,application/json;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Document{}, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return Document{}, fmt.Errorf("read body: %w", err)
	}

	doc := Document{
		Path:      resp.Request.URL.String(),
		Hash:      ContentHash(raw),
		SizeBytes: int64(len(raw)),
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/html") {
		text, err := HTMLToText(raw)
		if err != nil {
			return Document{}, fmt.Errorf("extract html: %w", err)
		}
		doc.Text = text
	} else {
		doc.Text = string(raw)
	}
	return doc, nil
}

type fetchJob struct {
	fetcher *URLFetcher
	url     string
}

// FetchOutcome pairs a requested URL with its document or error.
type FetchOutcome struct {
	URL      string
	Document Document
	Error    error
}

// Err satisfies the worker result contract.
func (o FetchOutcome) Err() error { return o.Error }

func (j fetchJob) Execute(ctx context.Context) worker.Result {
	doc, err := j.fetcher.Fetch(ctx, j.url)
	return FetchOutcome{URL: j.url, Document: doc, Error: err}
}

// FetchAll retrieves all URLs with bounded concurrency and returns one
// outcome per URL in input order. A URL skipped by cancellation reports
// the context error.
func (f *URLFetcher) FetchAll(ctx context.Context, urls []string, concurrency int) []FetchOutcome {
	jobs := make([]worker.Job, len(urls))
	for i, u := range urls {
		jobs[i] = fetchJob{fetcher: f, url: u}
	}

	results := worker.NewPool(concurrency).Run(ctx, jobs)

	outcomes := make([]FetchOutcome, len(urls))
	for i, result := range results {
		if result == nil {
			outcomes[i] = FetchOutcome{URL: urls[i], Error: ctx.Err()}
			continue
		}
		outcomes[i] = result.(FetchOutcome)
	}
	return outcomes
}

// ReadURLList reads URLs from a file, one per line, skipping blanks and
// comment lines and dropping duplicates.
func ReadURLList(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open url list: %w", err)
	}
	defer func() { _ = file.Close() }()

	seen := make(map[string]bool)
	var urls []string

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			urls = append(urls, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan url list: %w", err)
	}
	return urls, nil
}
