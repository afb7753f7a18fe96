package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/FranksOps/happynews/internal/allowlist"
	"github.com/FranksOps/happynews/internal/config"
	"github.com/FranksOps/happynews/internal/fingerprint"
	"github.com/FranksOps/happynews/internal/pipeline"
	"github.com/FranksOps/happynews/internal/publish"
	"github.com/FranksOps/happynews/internal/scraper"
	"github.com/FranksOps/happynews/internal/search"
	"github.com/FranksOps/happynews/internal/sentiment"
	"github.com/FranksOps/happynews/internal/server"
	"github.com/FranksOps/happynews/internal/storage"
	"github.com/FranksOps/happynews/internal/storage/csvbackend"
	"github.com/FranksOps/happynews/internal/storage/jsonbackend"
	"github.com/FranksOps/happynews/internal/storage/postgres"
	"github.com/FranksOps/happynews/internal/storage/sqlite"
	"github.com/FranksOps/happynews/pkg/proxy"
	"github.com/FranksOps/happynews/pkg/ratelimit"
	"github.com/FranksOps/happynews/pkg/useragent"
)

// Deps overrides collaborators that would otherwise be built from config.
type Deps struct {
	Logger *slog.Logger
	// Search replaces the Naver client.
	Search search.Provider
	// Analyzer replaces the Cloud Natural Language client.
	Analyzer sentiment.Analyzer
}

// App holds the wired components of one process.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	// ConfigErr is set when credentials are missing. The pipeline is then
	// nil and every search fails fast.
	ConfigErr error
	Pipeline  *pipeline.Pipeline
	Audit     storage.Backend

	closers []func() error
}

// New wires the application from cfg. Missing credentials are not an error
// here; they are reported through ConfigErr so the server can still start.
func New(ctx context.Context, cfg *config.Config, deps Deps) (*App, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{cfg: cfg, logger: logger}

	if a.ConfigErr = cfg.Validate(); a.ConfigErr != nil {
		logger.Warn("credentials missing, searches will fail", "err", a.ConfigErr)
		return a, nil
	}

	if err := a.build(ctx, deps); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, deps Deps) error {
	cfg := a.cfg

	audit, err := OpenAudit(ctx, cfg.Audit)
	if err != nil {
		return err
	}
	if audit != nil {
		a.Audit = audit
		a.closers = append(a.closers, audit.Close)
	}

	provider := deps.Search
	if provider == nil {
		provider, err = search.NewNaver(search.NaverConfig{
			Endpoint:     cfg.Search.Endpoint,
			ClientID:     cfg.Search.ClientID,
			ClientSecret: cfg.Search.ClientSecret,
			Timeout:      cfg.Search.Timeout,
			Logger:       a.logger.With("component", "search"),
		})
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
	}

	extractor, err := a.buildExtractor()
	if err != nil {
		return err
	}

	analyzer := deps.Analyzer
	if analyzer == nil {
		google, err := sentiment.NewGoogleAnalyzer(ctx, sentiment.GoogleConfig{
			Language: cfg.Sentiment.Language,
			Timeout:  cfg.Sentiment.Timeout,
		}, cfg.Sentiment.CredentialOption())
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		a.closers = append(a.closers, google.Close)
		analyzer = google
	}
	classifier := sentiment.NewClassifier(analyzer, sentiment.ClassifierConfig{
		MaxInFlight: cfg.Sentiment.MaxInFlight,
		Limiter:     ratelimit.NewLimiter(cfg.Sentiment.RPS, cfg.Sentiment.Burst, 0),
		Logger:      a.logger.With("component", "sentiment"),
	})

	var publisher publish.Publisher = publish.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		k, err := publish.NewKafka(publish.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			Logger:  a.logger.With("component", "publish"),
		})
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		a.closers = append(a.closers, k.Close)
		publisher = k
	}

	a.Pipeline, err = pipeline.New(pipeline.Config{
		Search:      provider,
		Filter:      allowlist.New(cfg.Scraper.AllowedHosts...),
		Extractor:   extractor,
		Classifier:  classifier,
		Publisher:   publisher,
		Concurrency: cfg.Pipeline.Concurrency,
		ItemTimeout: cfg.Pipeline.ItemTimeout,
		Logger:      a.logger.With("component", "pipeline"),
	})
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}

func (a *App) buildExtractor() (*scraper.Extractor, error) {
	sc := a.cfg.Scraper
	logger := a.logger.With("component", "scraper")

	profile, err := fingerprint.ParseProfile(sc.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	var proxies *proxy.Pool
	if len(sc.Proxies) > 0 {
		proxies = proxy.NewPool(proxy.Config{MaxFailures: sc.ProxyMaxFailures, Cooldown: sc.ProxyCooldown})
		if err := proxies.Add(sc.Proxies...); err != nil {
			return nil, fmt.Errorf("app: proxies: %w", err)
		}
	}

	fetchCfg := scraper.FetchConfig{
		Timeout:      sc.Timeout,
		MaxRedirects: sc.MaxRedirects,
		UseCookieJar: true,
		MaxBodyBytes: sc.MaxBodyBytes,
		ProxyPool:    proxies,
		UAPool:       useragent.NewPool(sc.UserAgents, useragent.ParseMode(sc.UAMode)),
		Fingerprint:  profile,
		Limiter:      ratelimit.NewLimiter(sc.RPS, sc.Burst, sc.Jitter),
		Recorder:     a.Audit,
		Logger:       logger,
	}

	fetcher, err := scraper.NewFetcher(fetchCfg)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	extractCfg := scraper.ExtractConfig{Selectors: sc.Selectors, Logger: logger}
	if sc.RespectRobots {
		extractCfg.Robots = scraper.NewRobotsAuditor(fetcher, sc.RobotsAgent, logger)
	}
	return scraper.NewExtractor(fetcher, extractCfg), nil
}

// Server builds the HTTP API over the pipeline.
func (a *App) Server() *server.Server {
	var runner server.Runner
	if a.Pipeline != nil {
		runner = a.Pipeline
	}
	return server.New(runner, server.Config{
		Addr:            a.cfg.Server.Addr,
		ReadTimeout:     a.cfg.Server.ReadTimeout,
		WriteTimeout:    a.cfg.Server.WriteTimeout,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
		RateLimit:       a.cfg.Server.RateLimit,
		RateBurst:       a.cfg.Server.RateBurst,
		ConfigErr:       a.ConfigErr,
		Logger:          a.logger.With("component", "server"),
	})
}

// Close drains pending publishes, then releases clients and the audit
// backend in reverse order.
func (a *App) Close() error {
	if a.Pipeline != nil {
		a.Pipeline.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenAudit opens the configured fetch audit backend. It returns nil for
// backend "none".
func OpenAudit(ctx context.Context, cfg config.AuditConfig) (storage.Backend, error) {
	if cfg.Backend == "" || cfg.Backend == "none" {
		return nil, nil
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("app: audit backend %q needs a dsn", cfg.Backend)
	}

	var (
		b   storage.Backend
		err error
	)
	switch cfg.Backend {
	case "sqlite":
		b, err = sqlite.New(cfg.DSN)
	case "postgres":
		b, err = postgres.New(ctx, cfg.DSN)
	case "json":
		b, err = jsonbackend.New(cfg.DSN)
	case "csv":
		b, err = csvbackend.New(cfg.DSN)
	default:
		return nil, fmt.Errorf("app: unknown audit backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("app: audit: %w", err)
	}
	return b, nil
}
