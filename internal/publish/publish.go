package publish

import (
	"context"
	"time"

	"github.com/FranksOps/happynews/internal/news"
)

// Event is one enriched item as published downstream.
type Event struct {
	Query      string    `json:"query"`
	Item       news.Item `json:"item"`
	EnrichedAt time.Time `json:"enriched_at"`
}

// Publisher forwards enriched items. Failures are the caller's to log; they
// never fail a search request.
type Publisher interface {
	Publish(ctx context.Context, query string, items []news.Item) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

var _ Publisher = Nop{}

func (Nop) Publish(context.Context, string, []news.Item) error { return nil }
func (Nop) Close() error                                       { return nil }
