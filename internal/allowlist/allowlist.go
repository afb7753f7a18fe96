package allowlist

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/FranksOps/happynews/internal/news"
)

// DefaultHost is the trusted news content subdomain.
const DefaultHost = "n.news.naver.com"

// Filter decides whether an article URL may be crawled.
type Filter struct {
	hosts []string
}

// New creates a Filter that accepts any URL whose host contains one of the
// given substrings. With no hosts it falls back to DefaultHost.
func New(hosts ...string) *Filter {
	var cleaned []string
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			cleaned = append(cleaned, h)
		}
	}
	if len(cleaned) == 0 {
		cleaned = []string{DefaultHost}
	}
	return &Filter{hosts: cleaned}
}

// Allowed reports whether rawURL points at a trusted host. Unparsable input
// is a rejection, not an error.
func (f *Filter) Allowed(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, h := range f.hosts {
		if strings.Contains(host, h) {
			return true
		}
	}
	return false
}

// CrawlURL picks the URL to crawl for a stub: link first, then originallink.
func CrawlURL(stub news.Stub) (string, bool) {
	if link := strings.TrimSpace(stub.Link); link != "" {
		return link, true
	}
	if link := strings.TrimSpace(stub.OriginalLink); link != "" {
		return link, true
	}
	return "", false
}

// Resolve returns the crawl URL for stub, or a per-item error when the stub
// has no link or its host is not trusted.
func (f *Filter) Resolve(stub news.Stub) (string, error) {
	target, ok := CrawlURL(stub)
	if !ok {
		return "", news.ErrNoLink
	}
	if !f.Allowed(target) {
		return "", fmt.Errorf("%s: %w", target, news.ErrDomainRejected)
	}
	return target, nil
}
