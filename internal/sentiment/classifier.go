package sentiment

import (
	"context"
	"log/slog"

	"golang.org/x/sync/semaphore"

	"github.com/FranksOps/happynews/internal/metrics"
	"github.com/FranksOps/happynews/internal/news"
	"github.com/FranksOps/happynews/pkg/ratelimit"
)

// DefaultMaxInFlight caps concurrent sentiment calls.
const DefaultMaxInFlight = 4

// ClassifierConfig configures a Classifier.
type ClassifierConfig struct {
	MaxInFlight int
	// Limiter throttles calls to the service. Optional.
	Limiter *ratelimit.Limiter
	Logger  *slog.Logger
}

// Classifier turns article markup into a sentiment label. It never fails:
// every error degrades to neutral.
type Classifier struct {
	analyzer Analyzer
	sem      *semaphore.Weighted
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
}

// NewClassifier wraps analyzer.
func NewClassifier(analyzer Analyzer, cfg ClassifierConfig) *Classifier {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		analyzer: analyzer,
		sem:      semaphore.NewWeighted(int64(cfg.MaxInFlight)),
		limiter:  cfg.Limiter,
		logger:   logger,
	}
}

// Classify labels the article markup html. Empty text is neutral and is
// never sent to the service.
func (c *Classifier) Classify(ctx context.Context, html string) news.Sentiment {
	text := PlainText(html)
	if text == "" {
		metrics.SentimentTotal.WithLabelValues(string(news.Neutral)).Inc()
		return news.Neutral
	}

	score, err := c.analyze(ctx, text)
	if err != nil {
		c.logger.Warn("sentiment analysis failed, defaulting to neutral", "chars", len(text), "err", err)
		metrics.SentimentErrors.Inc()
		metrics.SentimentTotal.WithLabelValues(string(news.Neutral)).Inc()
		return news.Neutral
	}

	label := Label(score.Score, score.Magnitude)
	c.logger.Debug("classified", "score", score.Score, "magnitude", score.Magnitude, "label", label)
	metrics.SentimentTotal.WithLabelValues(string(label)).Inc()
	return label
}

func (c *Classifier) analyze(ctx context.Context, text string) (Score, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return Score{}, err
	}
	defer c.sem.Release(1)

	if err := c.limiter.Wait(ctx); err != nil {
		return Score{}, err
	}
	return c.analyzer.Analyze(ctx, text)
}
