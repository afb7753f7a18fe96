package sentiment

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/FranksOps/happynews/internal/news"
)

// Thresholds applied by Label.
const (
	MinMagnitude      = 0.1
	PositiveThreshold = 0.2
	NegativeThreshold = -0.2
)

// Score is the document-level result of a sentiment analysis. Score is in
// [-1, 1]; Magnitude is non-negative and unbounded.
type Score struct {
	Score     float64
	Magnitude float64
}

// Analyzer is a sentiment service.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (Score, error)
}

// Label maps a score to a sentiment. Low magnitude means too little
// emotional content to call either way, whatever the sign of the score.
func Label(score, magnitude float64) news.Sentiment {
	switch {
	case magnitude < MinMagnitude:
		return news.Neutral
	case score >= PositiveThreshold:
		return news.Positive
	case score <= NegativeThreshold:
		return news.Negative
	default:
		return news.Neutral
	}
}

// PlainText strips markup from html and collapses whitespace runs to a
// single space.
func PlainText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.Join(strings.Fields(html), " ")
	}
	// script and style bodies are text nodes too
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
