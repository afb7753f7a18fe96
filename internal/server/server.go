package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/FranksOps/happynews/internal/metrics"
	"github.com/FranksOps/happynews/internal/news"
)

// Runner produces an envelope for a query.
type Runner interface {
	Run(ctx context.Context, q news.Query) (*news.Envelope, error)
}

// Config configures the HTTP API.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// RateLimit is requests per second per client IP; zero disables it.
	RateLimit float64
	RateBurst int
	// ConfigErr, when non-nil, fails every search with a 500 before any
	// outbound call is made.
	ConfigErr error
	Logger    *slog.Logger
}

// Server serves the news API.
type Server struct {
	cfg    Config
	runner Runner
	engine *gin.Engine
	logger *slog.Logger
}

// ModeFor picks the gin mode for a log level. The route dump and gin's
// debug warnings only show at debug.
func ModeFor(logLevel string) string {
	if strings.EqualFold(strings.TrimSpace(logLevel), "debug") {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}

// New builds the router. runner may be nil only when cfg.ConfigErr is set.
func New(runner Runner, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{cfg: cfg, runner: runner, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	if cfg.RateLimit > 0 {
		api.Use(newIPLimiter(cfg.RateLimit, cfg.RateBurst).middleware())
	}
	api.GET("/news", s.getNews)

	s.engine = r
	return s
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func (s *Server) getNews(c *gin.Context) {
	if s.cfg.ConfigErr != nil {
		s.fail(c, s.cfg.ConfigErr)
		return
	}

	q, err := parseQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	env, err := s.runner.Run(c.Request.Context(), q)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

func (s *Server) fail(c *gin.Context, err error) {
	status := news.StatusCode(err)
	if c.Request.Context().Err() != nil {
		s.logger.Info("client went away", "request_id", c.GetString(requestIDKey), "err", err)
	} else {
		s.logger.Error("request failed", "request_id", c.GetString(requestIDKey), "status", status, "err", err)
	}
	c.JSON(status, gin.H{"error": news.ClientMessage(err)})
}

func parseQuery(c *gin.Context) (news.Query, error) {
	q := news.Query{
		Text: c.Query("query"),
		Sort: c.Query("sort"),
	}

	var err error
	if q.Display, err = intParam(c, "display"); err != nil {
		return q, err
	}
	if q.Start, err = intParam(c, "start"); err != nil {
		return q, err
	}
	return q.Normalize()
}

func intParam(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, raw)
	}
	return n, nil
}

const requestIDKey = "request_id"

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)

		start := time.Now()
		c.Next()

		s.logger.Info("request",
			"request_id", id,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}
