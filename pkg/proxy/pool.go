package proxy

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrUnknownProxy is returned when marking a proxy the pool does not hold.
var ErrUnknownProxy = errors.New("proxy: not in pool")

// endpoint is a single upstream proxy with health tracking.
type endpoint struct {
	url           *url.URL
	failures      int
	successes     int
	disabledUntil time.Time
}

func (e *endpoint) available(now time.Time) bool {
	return e.disabledUntil.IsZero() || !now.Before(e.disabledUntil)
}

// Config defines settings for the Pool.
type Config struct {
	// MaxFailures consecutive failures put a proxy on cooldown.
	MaxFailures int
	// Cooldown is how long a failing proxy is skipped.
	Cooldown time.Duration
}

// Pool rotates article fetches across proxies, skipping ones that keep
// failing. It is safe for concurrent use.
type Pool struct {
	mu          sync.Mutex
	endpoints   []*endpoint
	byURL       map[string]*endpoint
	next        int
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
}

// NewPool creates an empty pool. Zero config values get defaults.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Pool{
		byURL:       make(map[string]*endpoint),
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		now:         time.Now,
	}
}

// Add parses proxy URLs and appends them. Entries without a scheme are
// treated as http. Blank entries and '#' comments are skipped, duplicates
// are ignored.
func (p *Pool) Add(rawURLs ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, raw := range rawURLs {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("proxy: parse %q: %w", raw, err)
		}
		key := u.String()
		if _, dup := p.byURL[key]; dup {
			continue
		}
		e := &endpoint{url: u}
		p.endpoints = append(p.endpoints, e)
		p.byURL[key] = e
	}
	return nil
}

// Len reports how many proxies the pool holds.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.endpoints)
}

// Next returns the next available proxy in round-robin order, or nil when
// the pool is empty or every proxy is cooling down.
func (p *Pool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.endpoints)
	now := p.now()
	for i := 0; i < n; i++ {
		e := p.endpoints[p.next]
		p.next = (p.next + 1) % n
		if !e.available(now) {
			continue
		}
		if !e.disabledUntil.IsZero() {
			// back from cooldown
			e.disabledUntil = time.Time{}
			e.failures = 0
		}
		return e.url
	}
	return nil
}

// MarkSuccess records a successful request through proxyURL.
func (p *Pool) MarkSuccess(proxyURL *url.URL) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.lookup(proxyURL)
	if err != nil {
		return err
	}
	e.successes++
	e.failures = 0
	return nil
}

// MarkFailure records a failed request through proxyURL and starts a
// cooldown once MaxFailures is reached.
func (p *Pool) MarkFailure(proxyURL *url.URL) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.lookup(proxyURL)
	if err != nil {
		return err
	}
	e.failures++
	if e.failures >= p.maxFailures {
		e.disabledUntil = p.now().Add(p.cooldown)
	}
	return nil
}

// must hold p.mu
func (p *Pool) lookup(u *url.URL) (*endpoint, error) {
	if u == nil {
		return nil, errors.New("proxy: url cannot be nil")
	}
	e, ok := p.byURL[u.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProxy, u)
	}
	return e, nil
}
