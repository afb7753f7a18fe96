package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/FranksOps/happynews/internal/news"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	// WriteTimeout bounds one batch write; zero means 5s.
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

// Kafka publishes one message per item, keyed by the item's crawl link so
// repeated sightings of an article land on the same partition.
type Kafka struct {
	writer  messageWriter
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

var _ Publisher = (*Kafka)(nil)

// NewKafka builds a synchronous writer on cfg.Topic.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("publish: no kafka brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("publish: no kafka topic configured")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return newKafka(w, cfg), nil
}

func newKafka(w messageWriter, cfg KafkaConfig) *Kafka {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Kafka{writer: w, timeout: cfg.WriteTimeout, logger: logger, now: time.Now}
}

// Publish writes items as a single batch.
func (k *Kafka) Publish(ctx context.Context, query string, items []news.Item) error {
	if len(items) == 0 {
		return nil
	}

	now := k.now().UTC()
	msgs := make([]kafka.Message, 0, len(items))
	for _, it := range items {
		value, err := json.Marshal(Event{Query: query, Item: it, EnrichedAt: now})
		if err != nil {
			return fmt.Errorf("publish: marshal: %w", err)
		}
		key := it.Link
		if key == "" {
			key = it.OriginalLink
		}
		msgs = append(msgs, kafka.Message{Key: []byte(key), Value: value, Time: now})
	}

	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish: write: %w", err)
	}
	k.logger.Debug("published items", "query", query, "count", len(msgs))
	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
