package sentiment

import (
	"context"
	"errors"
	"fmt"
	"time"

	language "cloud.google.com/go/language/apiv1"
	"cloud.google.com/go/language/apiv1/languagepb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
)

// DefaultLanguage is the document language sent with every request.
const DefaultLanguage = "ko"

// ErrNoSentiment is returned when the service answers without a document
// sentiment.
var ErrNoSentiment = errors.New("sentiment: response carries no document sentiment")

type sentimentClient interface {
	AnalyzeSentiment(ctx context.Context, req *languagepb.AnalyzeSentimentRequest, opts ...gax.CallOption) (*languagepb.AnalyzeSentimentResponse, error)
	Close() error
}

// GoogleConfig configures a GoogleAnalyzer.
type GoogleConfig struct {
	// Language is the BCP-47 document language; empty means DefaultLanguage.
	Language string
	// Timeout bounds each AnalyzeSentiment call; zero means 10s.
	Timeout time.Duration
}

// GoogleAnalyzer calls Cloud Natural Language analyzeSentiment.
type GoogleAnalyzer struct {
	client   sentimentClient
	language string
	timeout  time.Duration
}

var _ Analyzer = (*GoogleAnalyzer)(nil)

// NewGoogleAnalyzer dials the Natural Language API. Credentials come from
// opts, typically option.WithCredentialsJSON or option.WithCredentialsFile.
func NewGoogleAnalyzer(ctx context.Context, cfg GoogleConfig, opts ...option.ClientOption) (*GoogleAnalyzer, error) {
	client, err := language.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sentiment: new client: %w", err)
	}
	return newGoogleAnalyzer(client, cfg), nil
}

func newGoogleAnalyzer(client sentimentClient, cfg GoogleConfig) *GoogleAnalyzer {
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &GoogleAnalyzer{client: client, language: cfg.Language, timeout: cfg.Timeout}
}

// Analyze scores text as a plain-text document with UTF-8 offsets.
func (g *GoogleAnalyzer) Analyze(ctx context.Context, text string) (Score, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.AnalyzeSentiment(ctx, &languagepb.AnalyzeSentimentRequest{
		Document: &languagepb.Document{
			Type:     languagepb.Document_PLAIN_TEXT,
			Source:   &languagepb.Document_Content{Content: text},
			Language: g.language,
		},
		EncodingType: languagepb.EncodingType_UTF8,
	})
	if err != nil {
		return Score{}, fmt.Errorf("sentiment: analyze: %w", err)
	}

	doc := resp.GetDocumentSentiment()
	if doc == nil {
		return Score{}, ErrNoSentiment
	}
	return Score{Score: float64(doc.GetScore()), Magnitude: float64(doc.GetMagnitude())}, nil
}

// Close releases the underlying gRPC connection.
func (g *GoogleAnalyzer) Close() error {
	return g.client.Close()
}
