package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/FranksOps/happynews/internal/news"
)

// DefaultSelectors locate the article body on Naver news pages, in priority
// order. The second is the legacy layout.
var DefaultSelectors = []string{"#dic_area", "#articleBodyContents"}

// ExtractConfig configures an Extractor.
type ExtractConfig struct {
	// Selectors are tried in order; nil means DefaultSelectors.
	Selectors []string
	// Robots, when set, is consulted before every fetch.
	Robots *RobotsAuditor
	Logger *slog.Logger
}

// Extractor fetches an article page and returns the inner markup of its
// body region.
type Extractor struct {
	fetcher   *Fetcher
	selectors []string
	robots    *RobotsAuditor
	logger    *slog.Logger
}

// NewExtractor wraps fetcher.
func NewExtractor(fetcher *Fetcher, cfg ExtractConfig) *Extractor {
	selectors := cfg.Selectors
	if len(selectors) == 0 {
		selectors = DefaultSelectors
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		fetcher:   fetcher,
		selectors: selectors,
		robots:    cfg.Robots,
		logger:    logger,
	}
}

// Extract fetches articleURL and returns its body markup. Every failure
// wraps one of the news per-item sentinels. A 2xx page whose body region
// has content is an article even when a challenge marker shows up in it.
func (e *Extractor) Extract(ctx context.Context, articleURL string) (string, error) {
	if e.robots != nil {
		allowed, err := e.robots.Allowed(ctx, articleURL)
		if err != nil {
			return "", fmt.Errorf("scraper: robots: %w: %w", news.ErrFetchFailed, err)
		}
		if !allowed {
			return "", fmt.Errorf("scraper: %s: %w", articleURL, news.ErrDisallowed)
		}
	}

	page, err := e.fetcher.Fetch(ctx, articleURL)
	if err != nil {
		return "", fmt.Errorf("scraper: %w: %w", news.ErrFetchFailed, err)
	}
	if page.OK() {
		body, err := ExtractBody(page.Body, e.selectors)
		if err == nil {
			if page.DetectedBot {
				e.logger.Debug("challenge marker inside article body", "url", articleURL, "src", page.DetectionSrc)
			}
			e.logger.Debug("extracted article body", "url", articleURL, "bytes", len(body))
			return body, nil
		}
		if !page.DetectedBot {
			return "", fmt.Errorf("scraper: %s: %w", articleURL, err)
		}
	}
	if page.DetectedBot {
		return "", fmt.Errorf("scraper: %s (%s): %w", articleURL, page.DetectionSrc, news.ErrBlocked)
	}
	return "", fmt.Errorf("scraper: %s returned %d: %w", articleURL, page.StatusCode, news.ErrFetchFailed)
}

// ExtractBody returns the trimmed inner HTML of the first selector that
// matches non-empty markup.
func ExtractBody(html []byte, selectors []string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("%w: %w", news.ErrParseFailed, err)
	}

	for _, sel := range selectors {
		region := doc.Find(sel).First()
		if region.Length() == 0 {
			continue
		}
		inner, err := region.Html()
		if err != nil {
			return "", fmt.Errorf("%w: %w", news.ErrParseFailed, err)
		}
		if inner = strings.TrimSpace(inner); inner != "" {
			return inner, nil
		}
	}
	return "", news.ErrNoContent
}
