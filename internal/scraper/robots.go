package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// DefaultRobotsAgent is the group looked up in robots.txt when no agent is
// configured.
const DefaultRobotsAgent = "*"

// RobotsAuditor fetches and caches robots.txt per origin and answers whether
// an article URL may be crawled.
type RobotsAuditor struct {
	fetcher *Fetcher
	agent   string
	logger  *slog.Logger
	mu      sync.Mutex
	cache   map[string]*robotstxt.RobotsData
}

// NewRobotsAuditor creates a new instance. An empty agent means "*".
func NewRobotsAuditor(fetcher *Fetcher, agent string, logger *slog.Logger) *RobotsAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	if agent == "" {
		agent = DefaultRobotsAgent
	}
	return &RobotsAuditor{
		fetcher: fetcher,
		agent:   agent,
		logger:  logger,
		cache:   make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether targetURL may be fetched. A robots.txt that is
// missing, unreachable or unparsable allows everything.
func (r *RobotsAuditor) Allowed(ctx context.Context, targetURL string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("invalid url: %w", err)
	}

	origin := u.Scheme + "://" + u.Host
	data := r.lookup(ctx, origin)
	if data == nil {
		return true, nil
	}

	path := u.EscapedPath()
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.FindGroup(r.agent).Test(path), nil
}

func (r *RobotsAuditor) lookup(ctx context.Context, origin string) *robotstxt.RobotsData {
	// held across the fetch so concurrent items share one robots.txt request
	r.mu.Lock()
	defer r.mu.Unlock()

	if data, ok := r.cache[origin]; ok {
		return data
	}

	data, err := r.fetch(ctx, origin)
	if err != nil {
		r.logger.Debug("robots.txt unavailable, defaulting to allow", "origin", origin, "err", err)
		if ctx.Err() != nil {
			// don't pin a cancelled request's failure on later requests
			return nil
		}
	}
	r.cache[origin] = data
	return data
}

func (r *RobotsAuditor) fetch(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	page, err := r.fetcher.Fetch(ctx, origin+"/robots.txt")
	if err != nil {
		return nil, fmt.Errorf("fetch error: %w", err)
	}
	if page.StatusCode >= 400 {
		return nil, nil
	}

	data, err := robotstxt.FromStatusAndBytes(page.StatusCode, page.Body)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return data, nil
}
