package search

import (
	"context"

	"github.com/FranksOps/happynews/internal/news"
)

// Provider runs a keyword search and returns the upstream envelope with its
// stubs unmodified.
type Provider interface {
	Search(ctx context.Context, q news.Query) (*news.SearchResult, error)
}
