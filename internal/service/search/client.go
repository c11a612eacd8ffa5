// Package search turns a query into a stream of results from the HTML
// listing of a DuckDuckGo compatible provider.
package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/lumen/backend/internal/analysis/content"
	"github.com/zhouzirui/lumen/backend/internal/metrics"
	searchmodel "github.com/zhouzirui/lumen/backend/internal/model/search"
	"github.com/zhouzirui/lumen/backend/internal/worker"
)

const (
	DefaultBaseURL = "https://duckduckgo.com/html"
	DefaultLocale  = "us-en"
	DefaultTimeout = 30 * time.Second
	DefaultBuffer  = 100

	// maxBodyBytes caps how much of a listing or result page is read.
	maxBodyBytes = 8 << 20
	userAgent    = "Mozilla/5.0 (compatible; lumen/1.0)"
)

type Config struct {
	BaseURL string
	Locale  string
	Timeout time.Duration
	Buffer  int
}

// Client runs searches. Parsing happens on the worker pool so the goroutine
// issuing HTTP requests is never busy with HTML.
type Client struct {
	baseURL    string
	locale     string
	buffer     int
	httpClient *http.Client
	pool       *worker.Pool
	extractor  *content.Extractor
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewClient(cfg Config, pool *worker.Pool, extractor *content.Extractor, m *metrics.Metrics) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Locale == "" {
		cfg.Locale = DefaultLocale
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}
	if pool == nil {
		pool = worker.NewPool(0)
	}
	if extractor == nil {
		extractor = content.DefaultExtractor()
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		locale:     cfg.Locale,
		buffer:     cfg.Buffer,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		pool:       pool,
		extractor:  extractor,
		metrics:    m,
		logger:     slog.Default().With("component", "search"),
	}
}

// Search returns a stream of results for q. A failed listing request is
// returned before any result. Closing the reader stops production.
func (c *Client) Search(ctx context.Context, q searchmodel.Query, mode searchmodel.Mode) (*schema.StreamReader[searchmodel.Result], error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	switch mode {
	case searchmodel.ModeEnriched:
		results, err := c.Enrich(ctx, q)
		if err != nil {
			return nil, err
		}
		return schema.StreamReaderFromArray(results), nil
	case searchmodel.ModeFast, "":
		anchors, err := c.listing(ctx, q)
		if err != nil {
			return nil, err
		}
		reader, writer := schema.Pipe[searchmodel.Result](c.buffer)
		go c.sendAnchors(anchors, writer)
		return reader, nil
	default:
		return nil, fmt.Errorf("unknown search mode %q", mode)
	}
}

func (c *Client) sendAnchors(anchors []anchor, writer *schema.StreamWriter[searchmodel.Result]) {
	defer writer.Close()
	for _, a := range anchors {
		if closed := writer.Send(searchmodel.Result{URL: a.URL, Title: a.Title}, nil); closed {
			c.logger.Debug("consumer detached, stopping search stream")
			return
		}
		c.metrics.SearchResult(string(searchmodel.ModeFast))
	}
}

// Enrich fetches every listed page in order and keeps those that load and
// are not behind a paywall.
func (c *Client) Enrich(ctx context.Context, q searchmodel.Query) ([]searchmodel.Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	anchors, err := c.listing(ctx, q)
	if err != nil {
		return nil, err
	}

	results := make([]searchmodel.Result, 0, len(anchors))
	for _, a := range anchors {
		result, reason, err := c.enrichOne(ctx, a)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			c.metrics.PageSkipped(reason)
			c.logger.Debug("skipping result page", "url", a.URL, "reason", reason, "error", err)
			continue
		}
		c.metrics.SearchResult(string(searchmodel.ModeEnriched))
		results = append(results, result)
	}
	return results, nil
}

var errPaywalled = errors.New("page is paywalled")

func (c *Client) enrichOne(ctx context.Context, a anchor) (searchmodel.Result, string, error) {
	body, err := c.fetch(ctx, a.URL)
	if err != nil {
		var statusErr *statusError
		if errors.As(err, &statusErr) {
			return searchmodel.Result{}, metrics.SkipStatus, err
		}
		return searchmodel.Result{}, metrics.SkipFetchError, err
	}

	type outcome struct {
		extraction content.Extraction
		err        error
	}
	out, err := worker.Run(ctx, c.pool, func() outcome {
		ext, err := c.extractor.Extract(bytes.NewReader(body))
		return outcome{extraction: ext, err: err}
	})
	if err != nil {
		return searchmodel.Result{}, metrics.SkipExtract, err
	}
	if out.err != nil {
		return searchmodel.Result{}, metrics.SkipExtract, out.err
	}
	if out.extraction.Paywalled {
		return searchmodel.Result{}, metrics.SkipPaywall, errPaywalled
	}

	result := searchmodel.Result{
		URL:         a.URL,
		Title:       a.Title,
		Summary:     Summary(out.extraction.Text),
		ReadingTime: ReadingTime(out.extraction.Text),
	}
	if favicon, ok := FaviconURL(a.URL); ok {
		result.FaviconURL = favicon
	}
	return result, "", nil
}

// listing posts the query form and parses the provider's HTML answer.
func (c *Client) listing(ctx context.Context, q searchmodel.Query) ([]anchor, error) {
	form := url.Values{}
	form.Set("q", q.Query)
	form.Set("kl", c.locale)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}

	parsed, err := worker.Run(ctx, c.pool, func() listing {
		return parseListing(body, q.MaxResults)
	})
	if err != nil {
		return nil, err
	}
	if parsed.err != nil {
		return nil, parsed.err
	}

	c.logger.Debug("parsed search listing", "query", q.Query, "results", len(parsed.anchors))
	return parsed.anchors, nil
}

func (c *Client) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create page request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	return c.do(req)
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
