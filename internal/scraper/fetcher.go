package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/net/html/charset"

	"github.com/FranksOps/happynews/internal/bypass"
	"github.com/FranksOps/happynews/internal/fingerprint"
	"github.com/FranksOps/happynews/internal/metrics"
	"github.com/FranksOps/happynews/internal/news"
	"github.com/FranksOps/happynews/internal/storage"
	"github.com/FranksOps/happynews/pkg/httpclient"
	"github.com/FranksOps/happynews/pkg/proxy"
	"github.com/FranksOps/happynews/pkg/ratelimit"
	"github.com/FranksOps/happynews/pkg/useragent"
)

type contextKey string

const proxyKey contextKey = "proxy_url"

// DefaultMaxBodyBytes caps how much of an article page is read.
const DefaultMaxBodyBytes = 5 << 20

// FetchConfig configures article page fetches.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	MaxBodyBytes int64
	ProxyPool    *proxy.Pool
	UAPool       *useragent.Pool
	Fingerprint  fingerprint.Profile
	Limiter      *ratelimit.Limiter
	// Signatures are the bot-challenge detectors; nil means bypass.DefaultSignatures.
	Signatures []bypass.Signature
	// Recorder receives one audit record per fetch attempt. Optional.
	Recorder storage.Backend
	Logger   *slog.Logger
}

// Page is a fetched article page.
type Page struct {
	URL          string
	StatusCode   int
	Header       http.Header
	Body         []byte
	Duration     time.Duration
	DetectedBot  bool
	DetectionSrc string
}

// OK reports whether the page came back with a 2xx status.
func (p *Page) OK() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

// Fetcher performs article GETs with browser-like headers. One Fetcher is
// shared across requests so connections and cookies are reused.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
	logger *slog.Logger
}

// NewFetcher initializes a Fetcher with the given configuration.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil, useragent.ModeSequential)
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileGo
	}
	if cfg.Signatures == nil {
		cfg.Signatures = bypass.DefaultSignatures()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// The proxy is chosen per request and carried in the request context, so
	// a single transport (and its connection pool) serves every fetch.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if u, ok := req.Context().Value(proxyKey).(*url.URL); ok && u != nil {
			return u, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, proxyFunc)
	if err != nil {
		return nil, fmt.Errorf("scraper: transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
		Header: http.Header{
			"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"},
			"Accept-Language": {"ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("scraper: client: %w", err)
	}

	return &Fetcher{config: cfg, client: client, logger: logger}, nil
}

// Fetch GETs targetURL. A transport failure or timeout returns a
// *news.NetworkError; any HTTP response, whatever its status, returns a Page.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	rec := &storage.FetchRecord{
		ID:        uuid.NewString(),
		URL:       targetURL,
		CreatedAt: time.Now().UTC(),
	}
	if u, err := url.Parse(targetURL); err == nil {
		rec.Host = u.Hostname()
	}

	page, err := f.fetch(ctx, targetURL)
	f.record(ctx, rec, page, err)
	return page, err
}

func (f *Fetcher) fetch(ctx context.Context, targetURL string) (*Page, error) {
	if err := f.config.Limiter.Wait(ctx); err != nil {
		return nil, &news.NetworkError{Op: "fetch", Err: err}
	}

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		activeProxy = f.config.ProxyPool.Next()
	}
	if activeProxy != nil {
		ctx = context.WithValue(ctx, proxyKey, activeProxy)
	}

	start := time.Now()
	resp, err := f.client.Get(ctx, targetURL, http.Header{"User-Agent": {f.config.UAPool.Next()}})
	if err != nil {
		if activeProxy != nil {
			_ = f.config.ProxyPool.MarkFailure(activeProxy)
		}
		return nil, &news.NetworkError{Op: "fetch", Err: err}
	}
	defer resp.Body.Close()

	if activeProxy != nil {
		_ = f.config.ProxyPool.MarkSuccess(activeProxy)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes))
	page := &Page{
		URL:        targetURL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       toUTF8(body, resp.Header.Get("Content-Type")),
		Duration:   time.Since(start),
	}
	if err != nil {
		return page, &news.NetworkError{Op: "fetch", Err: fmt.Errorf("read body: %w", err)}
	}

	page.DetectedBot, page.DetectionSrc = bypass.Analyze(bypass.Response{
		StatusCode: page.StatusCode,
		Header:     page.Header,
		Body:       page.Body,
	}, f.config.Signatures)

	return page, nil
}

// toUTF8 decodes a legacy-encoded page (EUC-KR on older Naver layouts) using
// the Content-Type charset, a <meta> declaration or a BOM. Valid UTF-8 is
// returned as is; undeclared pages would otherwise be read as windows-1252.
func toUTF8(body []byte, contentType string) []byte {
	if utf8.Valid(body) {
		return body
	}
	enc, _, _ := charset.DetermineEncoding(body, contentType)
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return decoded
}

func (f *Fetcher) record(ctx context.Context, rec *storage.FetchRecord, page *Page, err error) {
	if page != nil {
		rec.StatusCode = page.StatusCode
		rec.Duration = page.Duration
		rec.Bytes = int64(len(page.Body))
		rec.DetectedBot = page.DetectedBot
		rec.DetectionSrc = page.DetectionSrc
	}
	switch {
	case err != nil:
		rec.Outcome = storage.OutcomeError
		rec.Error = err.Error()
	case page.DetectedBot:
		rec.Outcome = storage.OutcomeBlocked
	case !page.OK():
		rec.Outcome = storage.OutcomeStatus
	default:
		rec.Outcome = storage.OutcomeOK
	}

	metrics.RecordFetch(rec)

	if f.config.Recorder == nil {
		return
	}
	// the audit write outlives a cancelled request
	if saveErr := f.config.Recorder.Save(context.WithoutCancel(ctx), rec); saveErr != nil {
		f.logger.Warn("failed to record fetch", "url", rec.URL, "err", saveErr)
	}
}
