package news

import (
	"fmt"
	"strings"
)

// Sort orders accepted by the upstream search API.
const (
	SortDate = "date"
	SortSim  = "sim"
)

// Query is a single keyword search request. It is built once per request
// and never modified afterwards.
type Query struct {
	Text    string
	Display int // page size
	Start   int // 1-based offset
	Sort    string
}

// Query defaults and the upstream API's accepted ranges.
const (
	DefaultQueryText = "주식"
	DefaultDisplay   = 10
	MaxDisplay       = 100
	MaxStart         = 1000
)

// Normalize fills unset fields with defaults and clamps Display and Start to
// the ranges the upstream accepts. An unknown sort order is an error.
func (q Query) Normalize() (Query, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		q.Text = DefaultQueryText
	}
	if q.Display == 0 {
		q.Display = DefaultDisplay
	}
	q.Display = min(max(q.Display, 1), MaxDisplay)
	q.Start = min(max(q.Start, 1), MaxStart)

	switch q.Sort = strings.ToLower(strings.TrimSpace(q.Sort)); q.Sort {
	case "":
		q.Sort = SortDate
	case SortDate, SortSim:
	default:
		return q, fmt.Errorf("unknown sort %q: want %s or %s", q.Sort, SortDate, SortSim)
	}
	return q, nil
}

// Stub is one raw search hit as returned by the upstream search API.
// Description may carry lightweight markup such as <b> highlights.
type Stub struct {
	Title        string `json:"title"`
	OriginalLink string `json:"originallink"`
	Link         string `json:"link"`
	Description  string `json:"description"`
	PubDate      string `json:"pubDate"`
}

// Sentiment is the three-way label attached to every enriched item.
type Sentiment string

const (
	Positive Sentiment = "positive"
	Negative Sentiment = "negative"
	Neutral  Sentiment = "neutral"
)

// Item is a stub that survived every enrichment stage.
type Item struct {
	Stub
	// Contents is the inner markup of the article body region.
	Contents  string    `json:"contents"`
	Sentiment Sentiment `json:"sentiment"`
}

// SearchResult is the upstream search envelope.
type SearchResult struct {
	LastBuildDate string `json:"lastBuildDate"`
	Total         int    `json:"total"`
	Start         int    `json:"start"`
	Display       int    `json:"display"`
	Items         []Stub `json:"items"`
}

// Envelope is the response returned to clients.
type Envelope struct {
	LastBuildDate string `json:"lastBuildDate"`
	Total         int    `json:"total"`
	Start         int    `json:"start"`
	// Display is the number of surviving items, not the requested page size.
	Display int    `json:"display"`
	Items   []Item `json:"items"`
}

// NewEnvelope builds the client envelope from the upstream metadata and the
// surviving items.
func NewEnvelope(src *SearchResult, items []Item) *Envelope {
	if items == nil {
		items = []Item{}
	}
	env := &Envelope{
		Display: len(items),
		Items:   items,
	}
	if src != nil {
		env.LastBuildDate = src.LastBuildDate
		env.Total = src.Total
		env.Start = src.Start
	}
	return env
}
