package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/FranksOps/happynews/internal/news"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("expected a write deadline")
	}
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafka_Publish(t *testing.T) {
	fw := &fakeWriter{}
	k := newKafka(fw, KafkaConfig{})
	fixed := time.Date(2025, 1, 6, 1, 0, 0, 0, time.UTC)
	k.now = func() time.Time { return fixed }

	items := []news.Item{
		{Stub: news.Stub{Title: "a", Link: "https://n.news.naver.com/a"}, Contents: "<p>a</p>", Sentiment: news.Positive},
		{Stub: news.Stub{Title: "b", OriginalLink: "https://example.co.kr/b"}, Contents: "<p>b</p>", Sentiment: news.Neutral},
	}
	if err := k.Publish(context.Background(), "경제", items); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fw.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(fw.msgs))
	}
	if string(fw.msgs[0].Key) != "https://n.news.naver.com/a" {
		t.Errorf("expected link key, got %s", fw.msgs[0].Key)
	}
	if string(fw.msgs[1].Key) != "https://example.co.kr/b" {
		t.Errorf("expected originallink fallback key, got %s", fw.msgs[1].Key)
	}

	var ev Event
	if err := json.Unmarshal(fw.msgs[0].Value, &ev); err != nil {
		t.Fatalf("invalid event JSON: %v", err)
	}
	if ev.Query != "경제" || ev.Item.Sentiment != news.Positive || !ev.EnrichedAt.Equal(fixed) {
		t.Errorf("unexpected event %+v", ev)
	}

	if err := k.Close(); err != nil || !fw.closed {
		t.Errorf("expected writer to be closed")
	}
}

func TestKafka_PublishEmptyIsNoop(t *testing.T) {
	fw := &fakeWriter{err: errors.New("should not be called")}
	k := newKafka(fw, KafkaConfig{})
	if err := k.Publish(context.Background(), "q", nil); err != nil {
		t.Errorf("expected nil for empty batch, got %v", err)
	}
}

func TestKafka_PublishError(t *testing.T) {
	boom := errors.New("broker down")
	k := newKafka(&fakeWriter{err: boom}, KafkaConfig{})
	err := k.Publish(context.Background(), "q", []news.Item{{Stub: news.Stub{Link: "l"}}})
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped broker error, got %v", err)
	}
}

func TestNewKafka_Validation(t *testing.T) {
	if _, err := NewKafka(KafkaConfig{Topic: "t"}); err == nil {
		t.Errorf("expected error without brokers")
	}
	if _, err := NewKafka(KafkaConfig{Brokers: []string{"localhost:9092"}}); err == nil {
		t.Errorf("expected error without topic")
	}
}
