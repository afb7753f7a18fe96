package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/happynews/internal/allowlist"
	"github.com/FranksOps/happynews/internal/metrics"
	"github.com/FranksOps/happynews/internal/news"
	"github.com/FranksOps/happynews/internal/publish"
	"github.com/FranksOps/happynews/internal/search"
)

// Defaults for Config zero values.
const (
	DefaultConcurrency    = 8
	DefaultItemTimeout    = 20 * time.Second
	DefaultPublishTimeout = 5 * time.Second
)

// Extractor returns the body markup of an article.
type Extractor interface {
	Extract(ctx context.Context, articleURL string) (string, error)
}

// Classifier labels article markup. It does not fail.
type Classifier interface {
	Classify(ctx context.Context, html string) news.Sentiment
}

// Config wires the pipeline stages.
type Config struct {
	Search     search.Provider
	Filter     *allowlist.Filter
	Extractor  Extractor
	Classifier Classifier
	// Publisher receives survivors after every run, off the request path.
	// Optional.
	Publisher      publish.Publisher
	PublishTimeout time.Duration

	Concurrency int
	ItemTimeout time.Duration
	Logger      *slog.Logger
}

// Pipeline runs a search and enriches every stub: domain check, body
// extraction, sentiment. Stubs that fail any stage are dropped.
type Pipeline struct {
	search      search.Provider
	filter      *allowlist.Filter
	extractor   Extractor
	classifier  Classifier
	publisher   publish.Publisher
	concurrency int
	itemTimeout time.Duration
	logger      *slog.Logger

	publishTimeout time.Duration
	publishing     sync.WaitGroup
}

// New validates cfg and applies defaults.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Search == nil {
		return nil, errors.New("pipeline: search provider is nil")
	}
	if cfg.Extractor == nil {
		return nil, errors.New("pipeline: extractor is nil")
	}
	if cfg.Classifier == nil {
		return nil, errors.New("pipeline: classifier is nil")
	}
	if cfg.Filter == nil {
		cfg.Filter = allowlist.New()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = publish.Nop{}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = DefaultItemTimeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		search:      cfg.Search,
		filter:      cfg.Filter,
		extractor:   cfg.Extractor,
		classifier:  cfg.Classifier,
		publisher:   cfg.Publisher,
		concurrency: cfg.Concurrency,
		itemTimeout: cfg.ItemTimeout,
		logger:      logger,

		publishTimeout: cfg.PublishTimeout,
	}, nil
}

// Run searches for q and returns the envelope of survivors. Search failures
// are returned as-is; per-item failures only shrink the result.
func (p *Pipeline) Run(ctx context.Context, q news.Query) (*news.Envelope, error) {
	res, err := p.search.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("pipeline: search: %w", err)
	}

	items, err := p.Enrich(ctx, res.Items)
	if err != nil {
		return nil, err
	}

	p.publish(ctx, q.Text, items)

	p.logger.Info("search enriched", "query", q.Text, "stubs", len(res.Items), "items", len(items))
	return news.NewEnvelope(res, items), nil
}

// publish hands survivors to the publisher in the background. The request
// context only contributes its values: a finished response must not cancel
// the write, and a slow broker must not delay the response.
func (p *Pipeline) publish(ctx context.Context, query string, items []news.Item) {
	if len(items) == 0 {
		return
	}
	p.publishing.Add(1)
	go func() {
		defer p.publishing.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.publishTimeout)
		defer cancel()
		if err := p.publisher.Publish(ctx, query, items); err != nil {
			p.logger.Warn("failed to publish items", "query", query, "err", err)
		}
	}()
}

// Wait blocks until every background publish has finished.
func (p *Pipeline) Wait() {
	p.publishing.Wait()
}

// outcome is the result slot of one stub. err is nil for survivors.
type outcome struct {
	item news.Item
	err  error
}

// Enrich runs every stub through the stages concurrently and returns the
// survivors in stub order. It fails only when ctx is done.
func (p *Pipeline) Enrich(ctx context.Context, stubs []news.Stub) ([]news.Item, error) {
	results := make([]outcome, len(stubs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, stub := range stubs {
		if ctx.Err() != nil {
			break
		}
		// each task owns results[i] and nothing else
		g.Go(func() error {
			results[i] = p.enrich(gCtx, stub)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	items := make([]news.Item, 0, len(stubs))
	for i, res := range results {
		reason := news.DropReason(res.err)
		metrics.ItemsTotal.WithLabelValues(reason).Inc()
		if res.err != nil {
			p.logger.Debug("dropped stub", "index", i, "link", stubs[i].Link, "reason", reason, "err", res.err)
			continue
		}
		items = append(items, res.item)
	}
	return items, nil
}

func (p *Pipeline) enrich(ctx context.Context, stub news.Stub) outcome {
	articleURL, err := p.filter.Resolve(stub)
	if err != nil {
		return outcome{err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, p.itemTimeout)
	defer cancel()

	body, err := p.extractor.Extract(ctx, articleURL)
	if err != nil {
		return outcome{err: err}
	}
	if strings.TrimSpace(body) == "" {
		return outcome{err: fmt.Errorf("%s: %w", articleURL, news.ErrNoContent)}
	}

	return outcome{item: news.Item{
		Stub:      stub,
		Contents:  body,
		Sentiment: p.classifier.Classify(ctx, body),
	}}
}
