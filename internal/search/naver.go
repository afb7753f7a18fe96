package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/FranksOps/happynews/internal/metrics"
	"github.com/FranksOps/happynews/internal/news"
	"github.com/FranksOps/happynews/pkg/httpclient"
)

// DefaultEndpoint is the Naver News Search API.
const DefaultEndpoint = "https://openapi.naver.com/v1/search/news.json"

// maxErrorBody caps how much of an upstream error body is relayed.
const maxErrorBody = 64 << 10

// NaverConfig configures the Naver search client.
type NaverConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	// Transport is optional, mostly for tests.
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Naver queries the Naver News Search API.
type Naver struct {
	endpoint string
	id       string
	secret   string
	client   *httpclient.Client
	logger   *slog.Logger
}

var _ Provider = (*Naver)(nil)

// NewNaver validates credentials and builds a client. Missing credentials
// return a *news.ConfigurationError.
func NewNaver(cfg NaverConfig) (*Naver, error) {
	var missing []string
	if cfg.ClientID == "" {
		missing = append(missing, "search.client_id")
	}
	if cfg.ClientSecret == "" {
		missing = append(missing, "search.client_secret")
	}
	if len(missing) > 0 {
		return nil, &news.ConfigurationError{Missing: missing}
	}

	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:   cfg.Timeout,
		Transport: cfg.Transport,
		Header:    http.Header{"Accept": {"application/json"}},
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	return &Naver{
		endpoint: cfg.Endpoint,
		id:       cfg.ClientID,
		secret:   cfg.ClientSecret,
		client:   client,
		logger:   logger,
	}, nil
}

// Search issues one search call.
func (n *Naver) Search(ctx context.Context, q news.Query) (*news.SearchResult, error) {
	u, err := url.Parse(n.endpoint)
	if err != nil {
		return nil, fmt.Errorf("search: endpoint: %w", err)
	}
	params := u.Query()
	params.Set("query", q.Text)
	params.Set("display", strconv.Itoa(q.Display))
	params.Set("start", strconv.Itoa(q.Start))
	params.Set("sort", q.Sort)
	u.RawQuery = params.Encode()

	resp, err := n.client.Get(ctx, u.String(), http.Header{
		"X-Naver-Client-Id":     {n.id},
		"X-Naver-Client-Secret": {n.secret},
	})
	if err != nil {
		metrics.RecordSearch(0)
		return nil, &news.NetworkError{Op: "search", Err: err}
	}
	defer resp.Body.Close()
	metrics.RecordSearch(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if err != nil {
			return nil, &news.NetworkError{Op: "search", Err: err}
		}
		n.logger.Warn("upstream search failed", "status", resp.StatusCode, "query", q.Text)
		return nil, &news.UpstreamSearchError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result news.SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &news.NetworkError{Op: "search", Err: fmt.Errorf("decode: %w", err)}
	}

	n.logger.Debug("search complete", "query", q.Text, "total", result.Total, "items", len(result.Items))
	return &result, nil
}
