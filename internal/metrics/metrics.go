package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FranksOps/happynews/internal/storage"
)

var (
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "happynews_fetch_requests_total",
			Help: "Article fetches by host, status and bot detection",
		},
		[]string{"host", "status", "detected"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "happynews_fetch_duration_seconds",
			Help:    "Duration of article fetches in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"host"},
	)

	FetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "happynews_fetch_bytes_total",
			Help: "Bytes downloaded from article hosts",
		},
		[]string{"host"},
	)

	ItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "happynews_items_total",
			Help: "Enrichment outcomes per search stub",
		},
		[]string{"outcome"},
	)

	SentimentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "happynews_sentiment_total",
			Help: "Sentiment labels assigned",
		},
		[]string{"label"},
	)

	SentimentErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "happynews_sentiment_errors_total",
			Help: "Sentiment service failures degraded to neutral",
		},
	)

	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "happynews_search_requests_total",
			Help: "Upstream search calls by HTTP status",
		},
		[]string{"status"},
	)
)

// RecordFetch updates the fetch metrics from an audit record.
func RecordFetch(rec *storage.FetchRecord) {
	if rec == nil {
		return
	}

	status := strconv.Itoa(rec.StatusCode)
	if rec.Outcome == storage.OutcomeError {
		status = "error"
	}

	FetchRequestsTotal.WithLabelValues(rec.Host, status, strconv.FormatBool(rec.DetectedBot)).Inc()
	FetchDuration.WithLabelValues(rec.Host).Observe(rec.Duration.Seconds())
	FetchBytesTotal.WithLabelValues(rec.Host).Add(float64(rec.Bytes))
}

// RecordSearch counts an upstream search call. status 0 means transport failure.
func RecordSearch(status int) {
	label := strconv.Itoa(status)
	if status == 0 {
		label = "error"
	}
	SearchRequestsTotal.WithLabelValues(label).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
